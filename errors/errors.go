package errors

import "fmt"

var (
	ErrWorkerPanic       = fmt.Errorf("worker panic")
	ErrInvalidEvent      = fmt.Errorf("invalid domain event")
	ErrUnknownEvent      = fmt.Errorf("unknown event name")
	ErrMalformedFrame    = fmt.Errorf("malformed frame")
	ErrConnectionClosed  = fmt.Errorf("connection closed")
	ErrHubQueueFull      = fmt.Errorf("hub inbound queue full")
	ErrCrudFailure       = fmt.Errorf("comment service failure, please try again later")
	ErrCommentHasReplies = fmt.Errorf("cannot delete comment because it has replies")
	ErrCommentNotLoaded  = fmt.Errorf("comment not loaded in the local view")
	ErrSessionClosed     = fmt.Errorf("session closed")
	ErrUnknownPolicy     = fmt.Errorf("unknown registry duplicate policy")
)
