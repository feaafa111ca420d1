package room

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/duskveil/onenight/backend/internal/game"
)

var (
	ErrUnknownRequest = errors.New("no pending prompt with that request id")
	ErrInvalidAnswer  = errors.New("answer does not fit the prompt")
)

// ProviderCell holds the current decision provider for one seat. Swapping it
// mid-prompt makes the engine re-issue the prompt against the new provider,
// which is how AI takeover answers a question the human left hanging.
type ProviderCell struct {
	mu       sync.RWMutex
	provider game.DecisionProvider
}

func NewProviderCell(p game.DecisionProvider) *ProviderCell {
	return &ProviderCell{provider: p}
}

func (c *ProviderCell) Get() game.DecisionProvider {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.provider
}

// Swap installs a new provider and detaches the old one if it is detachable.
func (c *ProviderCell) Swap(p game.DecisionProvider) {
	c.mu.Lock()
	old := c.provider
	c.provider = p
	c.mu.Unlock()
	if old == p {
		return
	}
	if d, ok := old.(detachable); ok {
		d.Detach()
	}
}

type detachable interface {
	Detach()
}

// PromptNotifier delivers prompt lifecycle messages to one seat's channel.
// The room implements it and translates engine ids on the way out.
type PromptNotifier interface {
	ActionRequired(engineID string, req game.DecisionRequest)
	ActionTimedOut(engineID, requestID string, applied game.DecisionResponse)
}

type pendingPrompt struct {
	req    game.DecisionRequest
	answer chan game.DecisionResponse
}

// HumanProvider bridges one human seat to the engine: Decide pushes the
// prompt over the player's channel and blocks for the matching response,
// the deadline, or detachment.
type HumanProvider struct {
	notify PromptNotifier
	rng    *rand.Rand

	mu       sync.Mutex
	pending  map[string]*pendingPrompt
	detached chan struct{}
	closed   chan struct{}
}

func NewHumanProvider(notify PromptNotifier, seed int64) *HumanProvider {
	return &HumanProvider{
		notify:   notify,
		rng:      rand.New(rand.NewSource(seed)),
		pending:  make(map[string]*pendingPrompt),
		detached: make(chan struct{}),
		closed:   make(chan struct{}),
	}
}

// Decide implements game.DecisionProvider.
func (h *HumanProvider) Decide(ctx context.Context, req game.DecisionRequest) (game.DecisionResponse, error) {
	p := &pendingPrompt{req: req, answer: make(chan game.DecisionResponse, 1)}
	h.mu.Lock()
	select {
	case <-h.closed:
		h.mu.Unlock()
		return game.DecisionResponse{}, game.ErrDecisionCancelled
	case <-h.detached:
		h.mu.Unlock()
		return game.DecisionResponse{}, game.ErrProviderSwapped
	default:
	}
	h.pending[req.RequestID] = p
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.pending, req.RequestID)
		h.mu.Unlock()
	}()

	h.notify.ActionRequired(req.Recipient, req)

	timer := time.NewTimer(time.Until(req.Deadline))
	defer timer.Stop()

	select {
	case resp := <-p.answer:
		return resp, nil
	case <-timer.C:
		// Drop the prompt before surfacing the timeout: a response racing
		// the deadline must get ErrUnknownRequest, not a second ack.
		h.mu.Lock()
		delete(h.pending, req.RequestID)
		applied := game.DefaultResponse(req, h.rng)
		h.mu.Unlock()
		h.notify.ActionTimedOut(req.Recipient, req.RequestID, applied)
		return applied, nil
	case <-h.detached:
		return game.DecisionResponse{}, game.ErrProviderSwapped
	case <-h.closed:
		return game.DecisionResponse{}, game.ErrDecisionCancelled
	case <-ctx.Done():
		return game.DecisionResponse{}, game.ErrDecisionCancelled
	}
}

// Resolve answers a pending prompt. Late or duplicate responses return
// ErrUnknownRequest; answers that do not fit the prompt leave it pending.
func (h *HumanProvider) Resolve(requestID string, resp game.DecisionResponse) error {
	h.mu.Lock()
	p, ok := h.pending[requestID]
	if !ok {
		h.mu.Unlock()
		return ErrUnknownRequest
	}
	if err := game.ValidateResponse(p.req, resp); err != nil {
		h.mu.Unlock()
		return errors.Join(ErrInvalidAnswer, err)
	}
	delete(h.pending, requestID)
	h.mu.Unlock()

	p.answer <- resp
	return nil
}

// PendingRequests snapshots the outstanding prompts, for re-delivery after
// a reconnect.
func (h *HumanProvider) PendingRequests() []game.DecisionRequest {
	h.mu.Lock()
	defer h.mu.Unlock()
	reqs := make([]game.DecisionRequest, 0, len(h.pending))
	for _, p := range h.pending {
		reqs = append(reqs, p.req)
	}
	return reqs
}

// Detach aborts all pending Decide calls with ErrProviderSwapped. Used when
// the seat is handed to AI.
func (h *HumanProvider) Detach() {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.detached:
	default:
		close(h.detached)
	}
}

// Close aborts all pending Decide calls with a cancellation. Used on room
// shutdown.
func (h *HumanProvider) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.closed:
	default:
		close(h.closed)
	}
}
