package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// PromptKind enumerates the prompts the engine can issue to a player.
type PromptKind string

const (
	PromptSelectPlayer     PromptKind = "selectPlayer"
	PromptSelectTwoPlayers PromptKind = "selectTwoPlayers"
	PromptSelectCenter     PromptKind = "selectCenter"
	PromptSeerChoice       PromptKind = "seerChoice"
	PromptMakeStatement    PromptKind = "makeStatement"
	PromptVote             PromptKind = "vote"
)

const (
	SeerChoicePlayer = "player"
	SeerChoiceCenter = "center"
)

// DecisionRequest is one outstanding prompt for one player.
type DecisionRequest struct {
	RequestID   string
	Recipient   string // engine id
	Kind        PromptKind
	Options     []string // eligible engine ids for player selections and votes
	CenterCount int      // for PromptSelectCenter: 1 or 2
	Declinable  bool     // an empty answer is a valid "no thanks" (lone-wolf peek)
	Deadline    time.Time
}

// DecisionResponse is the strict answer shape; which fields are meaningful
// depends on the prompt kind.
type DecisionResponse struct {
	Players []string
	Centers []int
	Choice  string
	Text    string
}

// Errors a provider may return instead of an answer.
var (
	// ErrDecisionCancelled marks a prompt resolved by room shutdown; the
	// engine treats it as terminal for the acting player's turn.
	ErrDecisionCancelled = errors.New("decision cancelled")

	// ErrProviderSwapped signals that the seat's provider changed while the
	// prompt was pending; the caller re-issues against the new provider.
	ErrProviderSwapped = errors.New("decision provider swapped")
)

// DecisionProvider answers prompts on behalf of one player, human or AI.
// Decide blocks until an answer, the request deadline (in which case the
// documented default is returned), or a terminal error.
type DecisionProvider interface {
	Decide(ctx context.Context, req DecisionRequest) (DecisionResponse, error)
}

// ProviderSource resolves the current provider for a seat. The engine looks
// the provider up per prompt so a seat can be handed to AI mid-game.
type ProviderSource interface {
	ProviderFor(engineID string) DecisionProvider
}

// DefaultResponse is the deterministic fallback applied when a prompt
// expires: selections take the first option, the seer falls back to the
// center, statements stay empty, and votes pick a uniformly random eligible
// target from rng.
func DefaultResponse(req DecisionRequest, rng *rand.Rand) DecisionResponse {
	switch req.Kind {
	case PromptSelectPlayer:
		if len(req.Options) > 0 {
			return DecisionResponse{Players: req.Options[:1]}
		}
	case PromptSelectTwoPlayers:
		if len(req.Options) >= 2 {
			return DecisionResponse{Players: []string{req.Options[0], req.Options[1]}}
		}
	case PromptSelectCenter:
		centers := make([]int, 0, req.CenterCount)
		for i := 0; i < req.CenterCount && i < CenterSlots; i++ {
			centers = append(centers, i)
		}
		return DecisionResponse{Centers: centers}
	case PromptSeerChoice:
		return DecisionResponse{Choice: SeerChoiceCenter}
	case PromptMakeStatement:
		return DecisionResponse{}
	case PromptVote:
		if len(req.Options) > 0 {
			return DecisionResponse{Players: []string{req.Options[rng.Intn(len(req.Options))]}}
		}
	}
	return DecisionResponse{}
}

// ValidateResponse checks an answer against the prompt's shape. Only a
// prompt marked Declinable may be answered empty; everything else requires
// a complete answer.
func ValidateResponse(req DecisionRequest, resp DecisionResponse) error {
	inOptions := func(id string) bool {
		for _, o := range req.Options {
			if o == id {
				return true
			}
		}
		return false
	}
	switch req.Kind {
	case PromptSelectPlayer, PromptVote:
		if len(resp.Players) != 1 {
			return fmt.Errorf("%s requires exactly one player", req.Kind)
		}
		if !inOptions(resp.Players[0]) {
			return fmt.Errorf("player %s is not an eligible target", resp.Players[0])
		}
	case PromptSelectTwoPlayers:
		if len(resp.Players) != 2 {
			return fmt.Errorf("%s requires exactly two players", req.Kind)
		}
		if resp.Players[0] == resp.Players[1] {
			return fmt.Errorf("%s requires two distinct players", req.Kind)
		}
		for _, p := range resp.Players {
			if !inOptions(p) {
				return fmt.Errorf("player %s is not an eligible target", p)
			}
		}
	case PromptSelectCenter:
		if len(resp.Centers) == 0 && req.Declinable {
			return nil // declined peek
		}
		if len(resp.Centers) != req.CenterCount {
			return fmt.Errorf("%s requires %d center cards", req.Kind, req.CenterCount)
		}
		seen := make(map[int]bool, len(resp.Centers))
		for _, c := range resp.Centers {
			if c < 0 || c >= CenterSlots {
				return fmt.Errorf("center index %d out of range", c)
			}
			if seen[c] {
				return fmt.Errorf("center index %d selected twice", c)
			}
			seen[c] = true
		}
	case PromptSeerChoice:
		if resp.Choice != SeerChoicePlayer && resp.Choice != SeerChoiceCenter {
			return fmt.Errorf("seer choice must be %q or %q", SeerChoicePlayer, SeerChoiceCenter)
		}
	case PromptMakeStatement:
		// Any text, including empty, is acceptable.
	default:
		return fmt.Errorf("unknown prompt kind %q", req.Kind)
	}
	return nil
}
