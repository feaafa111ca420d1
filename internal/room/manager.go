package room

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/duskveil/onenight/backend/internal/protocol"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrTooManyRooms   = errors.New("room limit reached")
	ErrAlreadyInRoom  = errors.New("player is already in a room")
	ErrCodeExhaustion = errors.New("failed to allocate a unique room code")
)

// Ambiguous characters (0/O, 1/I) are left out of join codes.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	codeLength   = 5
	codeAttempts = 10
)

// ManagerOptions configures the directory and its reaper.
type ManagerOptions struct {
	MaxRooms    int
	RoomTimeout time.Duration // idle WAITING rooms older than this are reaped
	ReapEvery   time.Duration
	Recon       ReconnectionOptions
}

func DefaultManagerOptions() ManagerOptions {
	return ManagerOptions{
		MaxRooms:    500,
		RoomTimeout: 10 * time.Minute,
		ReapEvery:   30 * time.Second,
		Recon:       DefaultReconnectionOptions(),
	}
}

// Manager owns the room directory. It is the only structure shared across
// rooms.
type Manager struct {
	logger   *zap.Logger
	opts     ManagerOptions
	recon    *ReconnectionManager
	recorder GameRecorder
	rng      *rand.Rand

	mu    sync.RWMutex
	rooms map[string]*Room

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewManager(opts ManagerOptions, recorder GameRecorder, logger *zap.Logger) *Manager {
	if opts.MaxRooms <= 0 {
		opts.MaxRooms = DefaultManagerOptions().MaxRooms
	}
	if opts.RoomTimeout <= 0 {
		opts.RoomTimeout = DefaultManagerOptions().RoomTimeout
	}
	if opts.ReapEvery <= 0 {
		opts.ReapEvery = DefaultManagerOptions().ReapEvery
	}
	m := &Manager{
		logger:   logger,
		opts:     opts,
		recon:    NewReconnectionManager(opts.Recon, logger),
		recorder: recorder,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		rooms:    make(map[string]*Room),
		stop:     make(chan struct{}),
	}
	m.wg.Add(1)
	go m.reapLoop()
	return m
}

// Recon exposes the shared reconnection manager.
func (m *Manager) Recon() *ReconnectionManager { return m.recon }

func (m *Manager) generateCodeLocked() (string, error) {
	for attempt := 0; attempt < codeAttempts; attempt++ {
		buf := make([]byte, codeLength)
		for i := range buf {
			buf[i] = codeAlphabet[m.rng.Intn(len(codeAlphabet))]
		}
		code := string(buf)
		if _, taken := m.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", ErrCodeExhaustion
}

// CreateRoom allocates a code and seats the host. A non-empty password
// makes the room private regardless of the config flag.
func (m *Manager) CreateRoom(hostID, hostName string, ch Channel, cfg protocol.RoomConfig, password string, debug *protocol.DebugOptions) (*Room, error) {
	var passwordHash []byte
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash room password: %w", err)
		}
		passwordHash = hash
		cfg.IsPrivate = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.rooms) >= m.opts.MaxRooms {
		return nil, ErrTooManyRooms
	}
	if m.findPlayerRoomLocked(hostID) != nil {
		return nil, ErrAlreadyInRoom
	}
	code, err := m.generateCodeLocked()
	if err != nil {
		return nil, err
	}
	r, err := NewRoom(code, hostID, hostName, ch, cfg, passwordHash, debug, Deps{
		Logger:   m.logger,
		Recon:    m.recon,
		Recorder: m.recorder,
	})
	if err != nil {
		return nil, err
	}
	m.rooms[code] = r
	m.logger.Info("room created", zap.String("room", code), zap.String("host", hostID))
	return r, nil
}

// GetRoom looks up a room by join code.
func (m *Manager) GetRoom(code string) (*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// FindPlayerRoom returns the room currently seating the player, if any.
func (m *Manager) FindPlayerRoom(playerID string) *Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findPlayerRoomLocked(playerID)
}

func (m *Manager) findPlayerRoomLocked(playerID string) *Room {
	for _, r := range m.rooms {
		if r.HasMember(playerID) {
			return r
		}
	}
	return nil
}

// ListPublicWaiting lists joinable public lobbies.
func (m *Manager) ListPublicWaiting() []protocol.RoomStatePayload {
	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.RUnlock()

	out := make([]protocol.RoomStatePayload, 0, len(rooms))
	for _, r := range rooms {
		if r.IsPrivate() || r.Status() != StatusWaiting {
			continue
		}
		out = append(out, r.Snapshot())
	}
	return out
}

// RoomCount reports the directory size.
func (m *Manager) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// CloseRoom tears a room down and drops it from the directory.
func (m *Manager) CloseRoom(code, reason string) {
	m.mu.Lock()
	r, ok := m.rooms[code]
	if ok {
		delete(m.rooms, code)
	}
	m.mu.Unlock()
	if ok {
		r.Close(reason)
	}
}

func (m *Manager) reapLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.opts.ReapEvery)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.reap()
		}
	}
}

// reap destroys finished, closed and abandoned lobbies. Rooms in PLAYING
// are never reaped; the engine drives their termination.
func (m *Manager) reap() {
	m.mu.Lock()
	var doomed []*Room
	for code, r := range m.rooms {
		status := r.Status()
		switch {
		case status == StatusEnded || status == StatusClosed:
			doomed = append(doomed, r)
			delete(m.rooms, code)
		case status == StatusWaiting &&
			r.ConnectedHumans() == 0 &&
			time.Since(r.LastActive()) > m.opts.RoomTimeout:
			doomed = append(doomed, r)
			delete(m.rooms, code)
		}
	}
	m.mu.Unlock()

	for _, r := range doomed {
		m.logger.Info("reaping room", zap.String("room", r.Code))
		r.Close("room expired")
	}
}

// Close stops the reaper and closes every room.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.wg.Wait()

	m.mu.Lock()
	rooms := make([]*Room, 0, len(m.rooms))
	for code, r := range m.rooms {
		rooms = append(rooms, r)
		delete(m.rooms, code)
	}
	m.mu.Unlock()
	for _, r := range rooms {
		r.Close("server shutting down")
	}
}
