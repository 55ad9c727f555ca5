package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const regionTimeout = 2 * time.Second

// The index reports the region serving the request. Outside EC2 the lookup
// fails and the reason is shown instead.
func registerIndexRoute(router *gin.Engine, deps Dependencies) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"region": describeRegion(c.Request.Context(), deps.Region)})
	})
}

func describeRegion(ctx context.Context, resolver regionResolver) string {
	if resolver == nil {
		return "can't get region because of missing instance metadata client"
	}

	ctx, cancel := context.WithTimeout(ctx, regionTimeout)
	defer cancel()

	region, err := resolver.Region(ctx)
	if err != nil {
		return fmt.Sprintf("can't get region because of %v", err)
	}
	return region
}
