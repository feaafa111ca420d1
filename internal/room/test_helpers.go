package room

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/duskveil/onenight/backend/internal/protocol"
)

// fakeChannel records everything sent to one member.
type fakeChannel struct {
	mu     sync.Mutex
	msgs   []protocol.ServerMessage
	fail   bool
	closed bool
}

func newFakeChannel() *fakeChannel { return &fakeChannel{} }

func (c *fakeChannel) Send(msg protocol.ServerMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("queue full")
	}
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *fakeChannel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeChannel) ofType(t protocol.ServerMessageType) []protocol.ServerMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []protocol.ServerMessage
	for _, m := range c.msgs {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

func (c *fakeChannel) lastOfType(t protocol.ServerMessageType) (protocol.ServerMessage, bool) {
	msgs := c.ofType(t)
	if len(msgs) == 0 {
		return protocol.ServerMessage{}, false
	}
	return msgs[len(msgs)-1], true
}

type fakeRecorder struct {
	mu        sync.Mutex
	summaries []GameSummary
}

func (f *fakeRecorder) RecordGame(s GameSummary) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = append(f.summaries, s)
}

func (f *fakeRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.summaries)
}

func threePlayerConfig() protocol.RoomConfig {
	return protocol.RoomConfig{
		MinPlayers:     3,
		MaxPlayers:     3,
		Roles:          []string{"WEREWOLF", "SEER", "VILLAGER", "VILLAGER", "ROBBER", "TANNER"},
		TimeoutProfile: "tournament",
	}
}

func testDeps() Deps {
	logger := zap.NewNop()
	return Deps{
		Logger: logger,
		Recon:  NewReconnectionManager(DefaultReconnectionOptions(), logger),
		Seed:   11,
	}
}
