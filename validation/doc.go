// Package validation validates inbound payloads of the notify service.
//
// Struct tag validation (go-playground/validator) reports fields by their
// JSON names and understands the event_label tag:
//
//	type publishRequest struct {
//	    Event      string   `json:"event" validate:"required,event_label"`
//	    Recipients []uint64 `json:"recipients" validate:"required,min=1"`
//	}
//	err := validation.Validate(req)
//
// The programmatic Validator collects errors for payloads that are checked
// field by field, such as database notifications:
//
//	v := validation.New()
//	v.OneOf("op", op, []string{"INSERT", "UPDATE", "DELETE"})
//	err := v.Validate()
//
// Both return an *errors.AppError with a "fields" detail.
package validation
