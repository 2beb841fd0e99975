package sse

import (
	"io"
	"net/http"
	"time"

	ginsse "github.com/gin-contrib/sse"

	"github.com/kbukum/notify/errors"
	"github.com/kbukum/notify/event"
	"github.com/kbukum/notify/logger"
	"github.com/kbukum/notify/registry"
)

const keepAliveComment = ":" + event.KeepAliveText + "\n\n"

// WriteRecord frames rec onto w. Heartbeats become an SSE comment; every
// other record becomes an "event:"/"data:" pair.
func WriteRecord(w io.Writer, rec event.Record) error {
	if rec.IsHeartbeat() {
		_, err := io.WriteString(w, keepAliveComment)
		return err
	}
	return ginsse.Encode(w, ginsse.Event{
		Event: rec.Label,
		Data:  rec.Data,
	})
}

// ServeSSE streams userID's events to w until the client goes away, the
// registry closes the channel or a write fails. It returns an error only
// when the response cannot stream, before anything is written.
func ServeSSE(reg *registry.Registry, w http.ResponseWriter, r *http.Request, userID uint64, opts ...Option) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return errors.StreamingUnsupported()
	}

	// SSE connections outlive the server's WriteTimeout.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		logger.WithComponent("sse").Debug("could not disable write deadline", logger.Fields(
			logger.FieldUserID, userID,
			logger.FieldError, err.Error(),
		))
	}

	h := w.Header()
	h.Set("Content-Type", ginsse.ContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	session := Subscribe(reg, userID, opts...)
	defer session.Close()

	log := session.log.WithContext(r.Context())
	log.Info("client connected", logger.Fields("remote_addr", r.RemoteAddr))

	for rec := range session.Records(r.Context()) {
		if err := WriteRecord(w, rec); err != nil {
			log.Debug("write failed, ending stream", logger.MergeWithError(nil, err))
			break
		}
		flusher.Flush()
	}

	log.Info("client disconnected")
	return nil
}
