package event

import (
	"estate-live/errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks the payload of an event before the hub relays it.
// A direct message must name its receiver; created events must carry the
// server-assigned identifiers the receivers upsert on.
func Validate(evt DomainEvent) error {
	if evt == nil {
		return fmt.Errorf("%w: nil event", errors.ErrInvalidEvent)
	}
	var err error
	switch e := evt.(type) {
	case CommentCreated:
		err = validate.Struct(e.Comment)
	case ReplyCreated:
		err = validate.Struct(e.Reply)
	case DirectMessage:
		err = validate.Var(e.ReceiverID, "required")
	default:
		err = validate.Struct(e)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", errors.ErrInvalidEvent, evt.Kind(), err)
	}
	return nil
}
