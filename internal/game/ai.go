package game

import (
	"context"
	"math/rand"
	"sync"
)

// AIProvider answers prompts locally with lightweight heuristics. One
// instance serves any number of seats; the mutex guards the shared rng.
type AIProvider struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewAIProvider seeds the provider. Use a fixed seed in tests for
// reproducible games.
func NewAIProvider(seed int64) *AIProvider {
	return &AIProvider{rng: rand.New(rand.NewSource(seed))}
}

var statements = []string{
	"I'm just a villager, I swear.",
	"Someone is being very quiet over there.",
	"I had no night action, nothing to share.",
	"I think the werewolf is bluffing right now.",
	"My information checks out, vote with me.",
	"I saw something interesting last night.",
	"I woke up and my card hadn't moved.",
	"The center cards are doing a lot of work tonight.",
	"That claim came out a little too fast for my taste.",
	"Two of you can't both be the seer.",
	"I'd rather vote wrong together than split the table.",
	"Nobody has claimed robber yet, which is suspicious.",
}

// statementOpeners prefix an accusation when the AI has someone to point at.
var statementOpeners = []string{
	"I don't trust",
	"My money is on",
	"Keep an eye on",
	"Something is off about",
}

// Decide answers immediately; AI never waits for the deadline.
func (a *AIProvider) Decide(ctx context.Context, req DecisionRequest) (DecisionResponse, error) {
	if err := ctx.Err(); err != nil {
		return DecisionResponse{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	switch req.Kind {
	case PromptSelectPlayer, PromptVote:
		if len(req.Options) == 0 {
			return DecisionResponse{}, nil
		}
		return DecisionResponse{Players: []string{req.Options[a.rng.Intn(len(req.Options))]}}, nil
	case PromptSelectTwoPlayers:
		if len(req.Options) < 2 {
			return DecisionResponse{}, nil
		}
		perm := a.rng.Perm(len(req.Options))
		return DecisionResponse{Players: []string{req.Options[perm[0]], req.Options[perm[1]]}}, nil
	case PromptSelectCenter:
		perm := a.rng.Perm(CenterSlots)
		n := req.CenterCount
		if n > CenterSlots {
			n = CenterSlots
		}
		centers := make([]int, n)
		copy(centers, perm[:n])
		return DecisionResponse{Centers: centers}, nil
	case PromptSeerChoice:
		if a.rng.Intn(2) == 0 {
			return DecisionResponse{Choice: SeerChoicePlayer}, nil
		}
		return DecisionResponse{Choice: SeerChoiceCenter}, nil
	case PromptMakeStatement:
		if len(req.Options) > 0 && a.rng.Intn(3) == 0 {
			opener := statementOpeners[a.rng.Intn(len(statementOpeners))]
			target := req.Options[a.rng.Intn(len(req.Options))]
			return DecisionResponse{Text: opener + " " + target + "."}, nil
		}
		return DecisionResponse{Text: statements[a.rng.Intn(len(statements))]}, nil
	}
	return DecisionResponse{}, nil
}
