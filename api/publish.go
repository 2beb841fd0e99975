package api

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/notify/errors"
	"github.com/kbukum/notify/event"
	"github.com/kbukum/notify/logger"
	"github.com/kbukum/notify/server"
	"github.com/kbukum/notify/validation"
)

// PublishRequest is the body of POST /internal/events. Recipients may be
// omitted for chat events, which then go to the chat's members.
type PublishRequest struct {
	Event      string          `json:"event" validate:"required"`
	Data       json.RawMessage `json:"data" validate:"required"`
	Recipients []uint64        `json:"recipients"`
}

// Publish decodes, validates and fans out one event.
func (h *Handler) Publish(c *gin.Context) {
	var req PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			server.RespondError(c, errors.New(errors.ErrCodeInvalidInput, "Request body too large.", http.StatusRequestEntityTooLarge))
			return
		}
		server.RespondError(c, errors.InvalidInput("body", "malformed JSON").WithCause(err))
		return
	}

	ev, recipients, err := decodeRequest(req)
	if err != nil {
		server.RespondError(c, err)
		return
	}

	res, err := h.broadcaster.Publish(c.Request.Context(), ev, recipients)
	if err != nil {
		h.log.WithContext(c.Request.Context()).Error("publish failed", logger.ErrorFields("publish", err))
		server.RespondError(c, err)
		return
	}
	server.RespondAccepted(c, res)
}

func decodeRequest(req PublishRequest) (event.Event, []uint64, error) {
	if err := validation.Validate(req); err != nil {
		return nil, nil, err
	}

	if !slices.Contains(event.Labels(), req.Event) {
		return nil, nil, errors.UnknownEvent(req.Event)
	}

	ev, err := event.Decode(req.Event, req.Data)
	if err != nil {
		return nil, nil, errors.InvalidInput("data", "does not match the "+req.Event+" payload").WithCause(err)
	}

	payload := event.Payload(ev)
	if err := validation.Validate(payload); err != nil {
		return nil, nil, err
	}

	recipients := req.Recipients
	if len(recipients) == 0 {
		chat, ok := payload.(event.Chat)
		if !ok {
			return nil, nil, errors.MissingField("recipients")
		}
		recipients = chat.MemberIDs()
	}
	return ev, recipients, nil
}
