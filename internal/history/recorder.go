// Package history archives finished games in postgres. The core never
// depends on it; without a DATABASE_URL the server runs with no recorder.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/duskveil/onenight/backend/internal/room"
)

const schema = `
CREATE TABLE IF NOT EXISTS game_history (
	id            BIGSERIAL PRIMARY KEY,
	room_code     TEXT        NOT NULL,
	ended_at      TIMESTAMPTZ NOT NULL,
	duration_ms   BIGINT      NOT NULL,
	winning_teams TEXT[]      NOT NULL,
	players       JSONB       NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_game_history_room_code ON game_history (room_code);
`

// Recorder implements room.GameRecorder with an asynchronous insert queue
// so a slow database never stalls a room.
type Recorder struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	queue  chan room.GameSummary
	stop   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// New connects, applies the schema and starts the writer. A context that
// bounds the connection attempt should be supplied.
func New(ctx context.Context, databaseURL string, logger *zap.Logger) (*Recorder, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply history schema: %w", err)
	}

	r := &Recorder{
		pool:   pool,
		logger: logger,
		queue:  make(chan room.GameSummary, 64),
		stop:   make(chan struct{}),
	}
	r.wg.Add(1)
	go r.writeLoop()
	logger.Info("game history recorder started")
	return r, nil
}

// RecordGame implements room.GameRecorder. It never blocks; summaries are
// dropped with a warning when the queue is full.
func (r *Recorder) RecordGame(summary room.GameSummary) {
	select {
	case r.queue <- summary:
	default:
		r.logger.Warn("history queue full, dropping game summary",
			zap.String("room", summary.RoomCode))
	}
}

func (r *Recorder) writeLoop() {
	defer r.wg.Done()
	for {
		select {
		case <-r.stop:
			// Drain what is already queued before shutting down.
			for {
				select {
				case s := <-r.queue:
					r.insert(s)
				default:
					return
				}
			}
		case s := <-r.queue:
			r.insert(s)
		}
	}
}

func (r *Recorder) insert(s room.GameSummary) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	players, err := json.Marshal(s.Players)
	if err != nil {
		r.logger.Error("failed to encode player summaries", zap.Error(err))
		return
	}
	teams := make([]string, len(s.WinningTeams))
	for i, t := range s.WinningTeams {
		teams[i] = string(t)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO game_history (room_code, ended_at, duration_ms, winning_teams, players)
		 VALUES ($1, $2, $3, $4, $5)`,
		s.RoomCode, s.EndedAt, s.DurationMs, teams, players)
	if err != nil {
		r.logger.Error("failed to insert game summary",
			zap.String("room", s.RoomCode), zap.Error(err))
		return
	}
	r.logger.Debug("game summary recorded", zap.String("room", s.RoomCode))
}

// Close drains the queue and releases the pool.
func (r *Recorder) Close() {
	r.once.Do(func() { close(r.stop) })
	r.wg.Wait()
	r.pool.Close()
}
