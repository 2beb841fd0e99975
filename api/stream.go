package api

import (
	"github.com/gin-gonic/gin"

	"github.com/kbukum/notify/errors"
	"github.com/kbukum/notify/logger"
	"github.com/kbukum/notify/server"
	"github.com/kbukum/notify/server/middleware"
	"github.com/kbukum/notify/sse"
)

// Stream serves the authenticated user's event stream until the client
// disconnects or the server shuts down.
func (h *Handler) Stream(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		server.RespondError(c, errors.Unauthorized(""))
		return
	}

	if h.streams != nil {
		release, err := h.streams.Acquire(c.Request.Context())
		if err != nil {
			h.log.Warn("stream limit reached", logger.Fields(
				logger.FieldUserID, userID,
				"max_streams", h.streams.MaxConcurrent(),
			))
			server.RespondError(c, errors.ServiceUnavailable("event stream").WithCause(err))
			return
		}
		defer release()
	}

	opts := append([]sse.Option{sse.WithSessionID(requestID(c))}, h.sessionOpts...)
	if err := sse.ServeSSE(h.registry, c.Writer, c.Request, userID, opts...); err != nil {
		server.RespondError(c, err)
	}
}

// requestID reuses the request id as the session id so log lines of the
// request and the stream correlate. Empty lets the session pick one.
func requestID(c *gin.Context) string {
	return c.Writer.Header().Get(middleware.HeaderRequestID)
}
