package room

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// DisconnectStatus tracks one disconnected player's journey.
type DisconnectStatus string

const (
	DisconnectGrace       DisconnectStatus = "GRACE"
	DisconnectAITakenOver DisconnectStatus = "AI_TAKEN_OVER"
	DisconnectReconnected DisconnectStatus = "RECONNECTED"
	DisconnectExpired     DisconnectStatus = "EXPIRED"
)

type disconnectEntry struct {
	roomCode       string
	memberID       string
	name           string
	status         DisconnectStatus
	disconnectedAt time.Time
	timer          *time.Timer
	takeover       func()
}

// ReconnectionOptions tunes the grace window behavior.
type ReconnectionOptions struct {
	GracePeriod time.Duration
	// PerRoomCap bounds concurrent grace timers per room; beyond it, AI
	// takeover is immediate.
	PerRoomCap int
	// AllowAfterTakeover permits a human to reclaim a seat the AI already
	// plays.
	AllowAfterTakeover bool
}

// DefaultReconnectionOptions returns the standard 30 second grace window.
func DefaultReconnectionOptions() ReconnectionOptions {
	return ReconnectionOptions{
		GracePeriod:        30 * time.Second,
		PerRoomCap:         3,
		AllowAfterTakeover: true,
	}
}

// ReconnectionManager tracks disconnected players across rooms. It holds
// only identifiers and timers; the rooms keep the actual seats.
type ReconnectionManager struct {
	logger *zap.Logger
	opts   ReconnectionOptions

	mu      sync.Mutex
	entries map[string]*disconnectEntry // roomCode + "/" + memberID
}

func NewReconnectionManager(opts ReconnectionOptions, logger *zap.Logger) *ReconnectionManager {
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultReconnectionOptions().GracePeriod
	}
	if opts.PerRoomCap <= 0 {
		opts.PerRoomCap = DefaultReconnectionOptions().PerRoomCap
	}
	return &ReconnectionManager{
		logger:  logger,
		opts:    opts,
		entries: make(map[string]*disconnectEntry),
	}
}

func key(roomCode, memberID string) string {
	return roomCode + "/" + memberID
}

func (m *ReconnectionManager) graceCountLocked(roomCode string) int {
	n := 0
	for _, e := range m.entries {
		if e.roomCode == roomCode && e.status == DisconnectGrace {
			n++
		}
	}
	return n
}

// HandleDisconnect opens a grace window for a mid-game disconnect. When the
// window expires, or the room is already over its cap, takeover runs and
// the seat plays on under AI.
func (m *ReconnectionManager) HandleDisconnect(roomCode, memberID, name string, takeover func()) DisconnectStatus {
	m.mu.Lock()
	k := key(roomCode, memberID)
	if e, ok := m.entries[k]; ok && e.status == DisconnectGrace {
		m.mu.Unlock()
		return DisconnectGrace
	}
	e := &disconnectEntry{
		roomCode:       roomCode,
		memberID:       memberID,
		name:           name,
		disconnectedAt: time.Now(),
		takeover:       takeover,
	}
	m.entries[k] = e

	if m.graceCountLocked(roomCode) >= m.opts.PerRoomCap {
		e.status = DisconnectAITakenOver
		m.mu.Unlock()
		m.logger.Info("grace cap reached, immediate AI takeover",
			zap.String("room", roomCode), zap.String("player", memberID))
		takeover()
		return DisconnectAITakenOver
	}

	e.status = DisconnectGrace
	e.timer = time.AfterFunc(m.opts.GracePeriod, func() {
		m.expire(roomCode, memberID)
	})
	m.mu.Unlock()
	m.logger.Info("grace period started",
		zap.String("room", roomCode),
		zap.String("player", memberID),
		zap.Duration("grace", m.opts.GracePeriod))
	return DisconnectGrace
}

func (m *ReconnectionManager) expire(roomCode, memberID string) {
	m.mu.Lock()
	e, ok := m.entries[key(roomCode, memberID)]
	if !ok || e.status != DisconnectGrace {
		m.mu.Unlock()
		return
	}
	e.status = DisconnectAITakenOver
	takeover := e.takeover
	m.mu.Unlock()

	m.logger.Info("grace period expired, AI takeover",
		zap.String("room", roomCode), zap.String("player", memberID))
	if takeover != nil {
		takeover()
	}
}

// HandleReconnect marks a player back. The second return is false when the
// seat cannot be reclaimed (takeover happened and reclaim is disabled, or
// nothing was tracked).
func (m *ReconnectionManager) HandleReconnect(roomCode, memberID string) (DisconnectStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(roomCode, memberID)
	e, ok := m.entries[k]
	if !ok {
		return "", false
	}
	prev := e.status
	switch prev {
	case DisconnectGrace:
		if e.timer != nil {
			e.timer.Stop()
		}
	case DisconnectAITakenOver:
		if !m.opts.AllowAfterTakeover {
			return prev, false
		}
	default:
		return prev, false
	}
	e.status = DisconnectReconnected
	delete(m.entries, k)
	return prev, true
}

// Status reports the tracked status for a player, if any.
func (m *ReconnectionManager) Status(roomCode, memberID string) (DisconnectStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key(roomCode, memberID)]
	if !ok {
		return "", false
	}
	return e.status, true
}

// CancelRoom drops every entry for a room, stopping pending grace timers.
// Called when a room's game ends or the room closes.
func (m *ReconnectionManager) CancelRoom(roomCode string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.entries {
		if e.roomCode != roomCode {
			continue
		}
		if e.timer != nil {
			e.timer.Stop()
		}
		e.status = DisconnectExpired
		delete(m.entries, k)
	}
}
