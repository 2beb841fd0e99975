// Package api mounts the notify routes on a Gin router: the authenticated
// event stream and the internal publish ingress.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/kbukum/notify/logger"
	"github.com/kbukum/notify/notify"
	"github.com/kbukum/notify/registry"
	"github.com/kbukum/notify/resilience"
	"github.com/kbukum/notify/server/middleware"
	"github.com/kbukum/notify/sse"
)

// Route paths.
const (
	PathEvents   = "/events"
	PathPublish  = "/internal/events"
	HeaderAPIKey = "X-Internal-Key"
)

// Handler serves the notify routes.
type Handler struct {
	registry    *registry.Registry
	broadcaster notify.Broadcaster
	verifier    middleware.TokenVerifier
	internalKey string
	streams     *resilience.Bulkhead
	sessionOpts []sse.Option
	log         *logger.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithInternalKey sets the shared key required by the publish ingress.
// Without one the ingress rejects every request.
func WithInternalKey(key string) Option {
	return func(h *Handler) { h.internalKey = key }
}

// WithMaxStreams caps concurrently open event streams; zero means no cap.
func WithMaxStreams(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.streams = resilience.NewBulkhead(resilience.BulkheadConfig{
				Name:          "event-streams",
				MaxConcurrent: n,
			})
		}
	}
}

// WithSessionOptions passes options to every stream session.
func WithSessionOptions(opts ...sse.Option) Option {
	return func(h *Handler) { h.sessionOpts = append(h.sessionOpts, opts...) }
}

// WithLogger sets the handler's logger.
func WithLogger(l *logger.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}

// New creates a Handler. Streams attach to reg; published events go
// through b, which is the local publisher or a relay in front of it.
func New(reg *registry.Registry, b notify.Broadcaster, verifier middleware.TokenVerifier, opts ...Option) *Handler {
	h := &Handler{
		registry:    reg,
		broadcaster: b,
		verifier:    verifier,
		log:         logger.WithComponent("api"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts GET /events and POST /internal/events on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET(PathEvents, middleware.Auth(h.verifier), h.Stream)
	r.POST(PathPublish, middleware.RequireKey(HeaderAPIKey, h.internalKey), h.Publish)
}

// OpenStreams returns the number of streams holding a slot, or -1 when
// streams are not capped.
func (h *Handler) OpenStreams() int {
	if h.streams == nil {
		return -1
	}
	return h.streams.InUse()
}
