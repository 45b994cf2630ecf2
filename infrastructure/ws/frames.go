package ws

import (
	"bytes"
	"encoding/json"
	"estate-live/contract"
	"estate-live/domain/comment"
	"estate-live/domain/event"
	"estate-live/errors"
	"fmt"
)

// EventAnnounce binds the sending connection to a user id.
const EventAnnounce = "announce"

// Frame is the JSON envelope of every websocket text message, in both directions:
// {"event": "<name>", "data": <payload>}.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EncodeAnnounce builds the announce frame a client sends after connecting.
func EncodeAnnounce(userID string) ([]byte, error) {
	data, err := json.Marshal(userID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: EventAnnounce, Data: data})
}

// EncodePublish builds the frame a client sends to publish an event.
// Direct messages keep their receiver.
func EncodePublish(evt event.DomainEvent) ([]byte, error) {
	if dm, ok := evt.(event.DirectMessage); ok {
		return encode(evt.Kind(), dm)
	}
	return encodeDelivery(evt)
}

// EncodeDelivery builds the frame the hub writes to a receiving connection.
// A direct message is delivered as its bare data.
func EncodeDelivery(evt event.DomainEvent) ([]byte, error) {
	if dm, ok := evt.(event.DirectMessage); ok {
		data := dm.Data
		if len(data) == 0 {
			data = json.RawMessage("null")
		}
		return json.Marshal(Frame{Event: string(event.KindDirectMessage), Data: data})
	}
	return encodeDelivery(evt)
}

func encodeDelivery(evt event.DomainEvent) ([]byte, error) {
	switch e := evt.(type) {
	case event.CommentCreated:
		return encode(e.Kind(), e.Comment)
	case event.ReplyCreated:
		return encode(e.Kind(), e.Reply)
	case event.CommentDeleted, event.ReplyDeleted, event.CommentLiked, event.CommentUnliked:
		return encode(e.Kind(), e)
	case nil:
		return nil, fmt.Errorf("%w: nil event", errors.ErrInvalidEvent)
	}
	return nil, fmt.Errorf("%w: %s", errors.ErrUnknownEvent, evt.Kind())
}

func encode(kind event.Kind, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: string(kind), Data: data})
}

// DecodeInbound parses a frame received by the hub from a client.
func DecodeInbound(raw []byte) (contract.Inbound, error) {
	frame, err := decodeFrame(raw)
	if err != nil {
		return contract.Inbound{}, err
	}
	if frame.Event == EventAnnounce {
		userID, err := decodeID(frame.Data)
		if err != nil {
			return contract.Inbound{}, err
		}
		return contract.Inbound{Kind: contract.SignalAnnounce, UserID: userID}, nil
	}
	var evt event.DomainEvent
	if frame.Event == string(event.KindDirectMessage) {
		var dm event.DirectMessage
		if err := unmarshal(frame.Data, &dm); err != nil {
			return contract.Inbound{}, err
		}
		evt = dm
	} else {
		evt, err = decodeEvent(frame)
		if err != nil {
			return contract.Inbound{}, err
		}
	}
	return contract.Inbound{Kind: contract.SignalEvent, Event: evt}, nil
}

// DecodeDelivery parses a frame received by a client from the hub.
func DecodeDelivery(raw []byte) (event.DomainEvent, error) {
	frame, err := decodeFrame(raw)
	if err != nil {
		return nil, err
	}
	if frame.Event == string(event.KindDirectMessage) {
		return event.DirectMessage{Data: frame.Data}, nil
	}
	return decodeEvent(frame)
}

func decodeEvent(frame Frame) (event.DomainEvent, error) {
	switch event.Kind(frame.Event) {
	case event.KindCommentCreated:
		var c comment.Comment
		err := unmarshal(frame.Data, &c)
		return event.CommentCreated{Comment: c}, err
	case event.KindReplyCreated:
		var r comment.Reply
		err := unmarshal(frame.Data, &r)
		return event.ReplyCreated{Reply: r}, err
	case event.KindCommentDeleted:
		var e event.CommentDeleted
		err := unmarshal(frame.Data, &e)
		return e, err
	case event.KindReplyDeleted:
		var e event.ReplyDeleted
		err := unmarshal(frame.Data, &e)
		return e, err
	case event.KindCommentLiked:
		var e event.CommentLiked
		err := unmarshal(frame.Data, &e)
		return e, err
	case event.KindCommentUnliked:
		var e event.CommentUnliked
		err := unmarshal(frame.Data, &e)
		return e, err
	}
	return nil, fmt.Errorf("%w: %q", errors.ErrUnknownEvent, frame.Event)
}

func decodeFrame(raw []byte) (Frame, error) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", errors.ErrMalformedFrame, err)
	}
	if frame.Event == "" {
		return Frame{}, fmt.Errorf("%w: missing event name", errors.ErrMalformedFrame)
	}
	return frame, nil
}

func unmarshal(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", errors.ErrMalformedFrame)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrMalformedFrame, err)
	}
	return nil
}

// decodeID accepts an identity sent either as a JSON string or a JSON number.
func decodeID(data json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return "", fmt.Errorf("%w: identity must be a string or a number", errors.ErrMalformedFrame)
	}
	return n.String(), nil
}
