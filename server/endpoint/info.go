package endpoint

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/notify/version"
)

var started = time.Now()

// InfoResponse is the body served on /info.
type InfoResponse struct {
	Service string `json:"service"`
	version.Info
	StartedAt time.Time `json:"started_at"`
	Uptime    string    `json:"uptime"`
}

// Info serves build metadata and process uptime.
func Info(serviceName string) gin.HandlerFunc {
	build := version.Get()
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, InfoResponse{
			Service:   serviceName,
			Info:      build,
			StartedAt: started.UTC(),
			Uptime:    time.Since(started).Round(time.Second).String(),
		})
	}
}
