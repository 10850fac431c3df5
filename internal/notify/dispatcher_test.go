package notify_test

import (
	"errors"
	"sync"
	"testing"

	"pairline/backend/internal/notify"

	"github.com/stretchr/testify/assert"
)

// captureSender records every intent it is asked to deliver.
type captureSender struct {
	mu       sync.Mutex
	sent     []notify.Intent
	failWith error
}

func (c *captureSender) Send(intent notify.Intent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, intent)
	return c.failWith
}

// TestDispatcherDelivery verifies intents reach every configured sender.
func TestDispatcherDelivery(t *testing.T) {
	first := &captureSender{}
	second := &captureSender{}
	d := notify.NewDispatcher(first, second)

	d.Enqueue(
		notify.Intent{Kind: notify.KindSystemMessage, Recipient: "alice", Body: "hello"},
		notify.Intent{Kind: notify.KindRoomOpened, Recipient: "bob", RoomID: "room-1"},
	)

	// Stop then Run: Run drains the buffered queue synchronously and returns.
	d.Stop()
	d.Run()

	assert.Len(t, first.sent, 2)
	assert.Len(t, second.sent, 2)
	assert.Equal(t, "alice", first.sent[0].Recipient)
	assert.Equal(t, notify.KindRoomOpened, first.sent[1].Kind)
}

// TestDispatcherSenderFailureIsIsolated verifies one failing sender does not
// stop delivery to the others — side effects are best-effort.
func TestDispatcherSenderFailureIsIsolated(t *testing.T) {
	failing := &captureSender{failWith: errors.New("telegram down")}
	healthy := &captureSender{}
	d := notify.NewDispatcher(failing, healthy)

	d.Enqueue(notify.Intent{Kind: notify.KindSystemMessage, Recipient: "alice", Body: "hi"})
	d.Stop()
	d.Run()

	assert.Len(t, failing.sent, 1, "failing sender is still attempted")
	assert.Len(t, healthy.sent, 1, "healthy sender delivers regardless")
}
