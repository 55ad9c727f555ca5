package image

import (
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/abduss/imagehost/internal/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RegisterRoutes mounts image operations on the router.
func RegisterRoutes(router gin.IRouter, service *Service, log *zap.Logger) {
	handler := &httpHandler{service: service, log: log}
	router.POST("/upload", handler.upload)
	router.GET("/download/:name", handler.download)
	router.GET("/metadata/:name", handler.metadata)
	router.DELETE("/delete/:name", handler.delete)
}

type httpHandler struct {
	service *Service
	log     *zap.Logger
}

func (h *httpHandler) upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read uploaded file"})
		return
	}
	defer file.Close()

	result, err := h.service.Upload(c.Request.Context(), fileHeader.Filename, file, fileHeader.Size)
	if err != nil {
		h.fail(c, err, "failed to upload file")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       fmt.Sprintf("File %s uploaded successfully", result.Metadata.FileName),
		"metadata":      result.Metadata,
		"download_link": result.DownloadLink,
	})
}

func (h *httpHandler) download(c *gin.Context) {
	reader, info, err := h.service.Download(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.fail(c, err, "failed to download file")
		return
	}
	defer reader.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": info.Key})
	if disposition == "" {
		disposition = "attachment"
	}
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", disposition)
	c.Header("Content-Length", fmt.Sprintf("%d", info.Size))
	c.Status(http.StatusOK)

	if _, err := io.Copy(c.Writer, reader); err != nil {
		logger.FromContext(c, h.log).Warn("stream object", zap.String("file_name", info.Key), zap.Error(err))
	}
}

func (h *httpHandler) metadata(c *gin.Context) {
	meta, err := h.service.Metadata(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.fail(c, err, "failed to fetch metadata")
		return
	}
	c.JSON(http.StatusOK, meta)
}

func (h *httpHandler) delete(c *gin.Context) {
	name := c.Param("name")
	if err := h.service.Delete(c.Request.Context(), name); err != nil {
		h.fail(c, err, "failed to delete file")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("File %s deleted successfully", name)})
}

func (h *httpHandler) fail(c *gin.Context, err error, fallback string) {
	status := HTTPStatus(err)
	switch status {
	case http.StatusBadRequest:
		c.JSON(status, gin.H{"error": err.Error()})
	case http.StatusNotFound:
		c.JSON(status, gin.H{"error": "file not found"})
	case http.StatusForbidden:
		c.JSON(status, gin.H{"error": "access to the object store was denied"})
	default:
		logger.FromContext(c, h.log).Error(fallback, zap.Error(err))
		c.JSON(status, gin.H{"error": fallback})
	}
}
