package game

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// scriptedProvider serves pre-seeded answers keyed by recipient and prompt
// kind, falling back to the AI for anything unscripted. It doubles as the
// ProviderSource for test games.
type scriptedProvider struct {
	mu     sync.Mutex
	script map[string][]DecisionResponse
	ai     *AIProvider
}

func newScriptedProvider() *scriptedProvider {
	return &scriptedProvider{
		script: make(map[string][]DecisionResponse),
		ai:     NewAIProvider(1),
	}
}

func (s *scriptedProvider) on(recipient string, kind PromptKind, resp DecisionResponse) *scriptedProvider {
	key := recipient + "/" + string(kind)
	s.script[key] = append(s.script[key], resp)
	return s
}

func (s *scriptedProvider) Decide(ctx context.Context, req DecisionRequest) (DecisionResponse, error) {
	s.mu.Lock()
	key := req.Recipient + "/" + string(req.Kind)
	if queue := s.script[key]; len(queue) > 0 {
		resp := queue[0]
		s.script[key] = queue[1:]
		s.mu.Unlock()
		return resp, nil
	}
	s.mu.Unlock()
	return s.ai.Decide(ctx, req)
}

func (s *scriptedProvider) ProviderFor(string) DecisionProvider { return s }

// recordingEmitter captures every engine emission for assertions.
type recordingEmitter struct {
	mu         sync.Mutex
	phases     []Phase
	nightOrder []NightResult
	statements []Statement
	votes      map[string]string
	eliminated []string
	result     *GameResult
}

func newRecordingEmitter() *recordingEmitter {
	return &recordingEmitter{}
}

func (e *recordingEmitter) PhaseChanged(p Phase, _ time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.phases = append(e.phases, p)
}

func (e *recordingEmitter) NightResult(_ string, res NightResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nightOrder = append(e.nightOrder, res)
}

func (e *recordingEmitter) StatementMade(st Statement) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.statements = append(e.statements, st)
}

func (e *recordingEmitter) VotesRevealed(v map[string]string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.votes = v
}

func (e *recordingEmitter) Eliminated(ids []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.eliminated = ids
}

func (e *recordingEmitter) GameEnded(r GameResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.result = &r
}

func (e *recordingEmitter) finalResult() *GameResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result
}

var testProfile = TimeoutProfile{
	Name:        "test",
	NightAction: 2 * time.Second,
	Day:         50 * time.Millisecond,
	Vote:        2 * time.Second,
}

func aiSeats(names ...string) []SeatAssignment {
	seats := make([]SeatAssignment, len(names))
	for i, n := range names {
		seats[i] = SeatAssignment{Name: n, Human: false}
	}
	return seats
}

// mustGame builds a fixed-deal game wired to a scripted provider and a
// recording emitter.
func mustGame(roles, seats, center []Role, names []string, script *scriptedProvider, emitter *recordingEmitter) (*Game, error) {
	return NewGame(Config{
		Roles:        roles,
		Seats:        aiSeats(names...),
		Profile:      testProfile,
		Seed:         7,
		ForcedSeats:  seats,
		ForcedCenter: center,
	}, script, emitter, zap.NewNop())
}
