package bot

import (
	"strings"
	"sync"

	"gopkg.in/telebot.v4"
)

type sent struct {
	to   int64
	what any
	opts []any
}

// fakeAPI records outgoing messages. Unimplemented methods panic.
type fakeAPI struct {
	telebot.API

	mu     sync.Mutex
	sent   []sent
	failTo map[int64]bool
}

func (a *fakeAPI) Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := int64(to.(telebot.ChatID))
	if a.failTo[id] {
		return nil, telebot.ErrBlockedByUser
	}
	a.sent = append(a.sent, sent{to: id, what: what, opts: opts})
	return &telebot.Message{ID: len(a.sent)}, nil
}

func (a *fakeAPI) messages() []sent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]sent(nil), a.sent...)
}

// fakeContext is a telebot.Context for a single incoming update.
type fakeContext struct {
	telebot.Context

	update   telebot.Update
	sender   *telebot.User
	chat     *telebot.Chat
	message  *telebot.Message
	callback *telebot.Callback

	mu        sync.Mutex
	replies   []string
	markups   []*telebot.ReplyMarkup
	responded bool
}

func newMessageContext(senderID int64, text string) *fakeContext {
	chat := &telebot.Chat{ID: senderID, Type: telebot.ChatPrivate}
	msg := &telebot.Message{ID: 42, Text: text, Chat: chat, Sender: &telebot.User{ID: senderID}}
	if strings.HasPrefix(text, "/") {
		if _, payload, ok := strings.Cut(text, " "); ok {
			msg.Payload = strings.TrimSpace(payload)
		}
	}
	return &fakeContext{
		update:  telebot.Update{ID: 1000, Message: msg},
		sender:  msg.Sender,
		chat:    chat,
		message: msg,
	}
}

func newCallbackContext(senderID int64, data string) *fakeContext {
	chat := &telebot.Chat{ID: senderID, Type: telebot.ChatPrivate}
	sender := &telebot.User{ID: senderID}
	cb := &telebot.Callback{ID: "cb", Sender: sender, Data: data}
	return &fakeContext{
		update:   telebot.Update{ID: 1001, Callback: cb},
		sender:   sender,
		chat:     chat,
		callback: cb,
	}
}

func (c *fakeContext) Update() telebot.Update      { return c.update }
func (c *fakeContext) Sender() *telebot.User       { return c.sender }
func (c *fakeContext) Chat() *telebot.Chat         { return c.chat }
func (c *fakeContext) Message() *telebot.Message   { return c.message }
func (c *fakeContext) Callback() *telebot.Callback { return c.callback }

func (c *fakeContext) Args() []string {
	if c.message == nil {
		return nil
	}
	return strings.Fields(c.message.Payload)
}

func (c *fakeContext) Send(what interface{}, opts ...interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, what.(string))
	for _, o := range opts {
		if m, ok := o.(*telebot.ReplyMarkup); ok {
			c.markups = append(c.markups, m)
		}
	}
	return nil
}

func (c *fakeContext) Respond(...*telebot.CallbackResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responded = true
	return nil
}

func (c *fakeContext) sentReplies() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.replies...)
}
