package pipeline

import "fmt"

// Origin tells how a download was requested. It only affects where error
// messages are routed.
type Origin int

const (
	OriginCommand Origin = iota + 1
	OriginInbox
)

func (o Origin) String() string {
	switch o {
	case OriginCommand:
		return "command"
	case OriginInbox:
		return "inbox"
	default:
		return fmt.Sprintf("Origin(%d)", int(o))
	}
}

type Request struct {
	Link       string
	TelegramID int64
	Origin     Origin

	// ReplyTo is the id of the chat message that triggered a command request.
	ReplyTo int
}

func (r Request) String() string {
	return fmt.Sprintf("Request(%s, user=%d, origin=%s)", r.Link, r.TelegramID, r.Origin)
}
