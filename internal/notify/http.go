package notify

import (
	"errors"
	"net/http"

	"github.com/abduss/imagehost/internal/image"
	"github.com/abduss/imagehost/internal/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type emailQuery struct {
	Email string `form:"email" binding:"required,email"`
}

type subscriptionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// RegisterRoutes mounts the subscription endpoints.
func RegisterRoutes(router gin.IRouter, topic *Topic, log *zap.Logger) {
	h := &httpHandler{topic: topic, log: log}
	router.GET("/subscribe", h.subscribe)
	router.GET("/unsubscribe", h.unsubscribe)
}

type httpHandler struct {
	topic *Topic
	log   *zap.Logger
}

func (h *httpHandler) subscribe(c *gin.Context) {
	var q emailQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, subscriptionResponse{Message: "a valid email query parameter is required"})
		return
	}

	msg, err := h.topic.Subscribe(c.Request.Context(), q.Email)
	if err != nil {
		h.fail(c, err, "Error subscribing")
		return
	}
	c.JSON(http.StatusOK, subscriptionResponse{Success: true, Message: msg})
}

func (h *httpHandler) unsubscribe(c *gin.Context) {
	var q emailQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, subscriptionResponse{Message: "a valid email query parameter is required"})
		return
	}

	msg, err := h.topic.Unsubscribe(c.Request.Context(), q.Email)
	if err != nil {
		if image.ErrNotFound.Has(err) {
			c.JSON(http.StatusNotFound, subscriptionResponse{Message: NotSubscribedMessage(q.Email)})
			return
		}
		h.fail(c, err, "Error unsubscribing")
		return
	}
	c.JSON(http.StatusOK, subscriptionResponse{Success: true, Message: msg})
}

func (h *httpHandler) fail(c *gin.Context, err error, prefix string) {
	status := image.HTTPStatus(err)
	if errors.Is(err, ErrDisabled) {
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		logger.FromContext(c, h.log).Error(prefix, zap.Error(err))
	}
	c.JSON(status, subscriptionResponse{Message: prefix + ": " + err.Error()})
}
