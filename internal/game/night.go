package game

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Viewing is one card the acting player was shown.
type Viewing struct {
	Position CardPosition `json:"position"`
	Role     Role         `json:"role"`
}

// CopyRecord documents a Doppelganger copy.
type CopyRecord struct {
	Target string `json:"target"`
	Role   Role   `json:"role"`
}

// NightResult is the private observation one player earns from one night
// action. A player can accumulate several (Doppelganger acts twice).
type NightResult struct {
	PlayerID   string      `json:"playerId"`
	ActedAs    Role        `json:"actedAs"`
	WakeOrder  int         `json:"wakeOrder"`
	Werewolves []string    `json:"werewolves,omitempty"`
	Masons     []string    `json:"masons,omitempty"`
	Viewings   []Viewing   `json:"viewings,omitempty"`
	Swap       *SwapRecord `json:"swap,omitempty"`
	Copied     *CopyRecord `json:"copied,omitempty"`
	Failed     bool        `json:"failed,omitempty"`
}

type nightStrategy func(ctx context.Context, g *Game, actor string, order int) (*NightResult, error)

var nightStrategies map[Role]nightStrategy

func init() {
	// Built in init to avoid an initialization cycle through the
	// Doppelganger's in-line execution of copied strategies.
	nightStrategies = map[Role]nightStrategy{
		RoleDoppelganger: actDoppelganger,
		RoleWerewolf:     actWerewolf,
		RoleMinion:       actMinion,
		RoleMason:        actMason,
		RoleSeer:         actSeer,
		RoleRobber:       actRobber,
		RoleTroublemaker: actTroublemaker,
		RoleDrunk:        actDrunk,
		RoleInsomniac:    actInsomniac,
	}
}

// runNight executes wake orders 1 through 10. Within an order, players act
// sequentially in seat order so later strategies observe committed swaps.
func (g *Game) runNight(ctx context.Context) error {
	for order := OrderDoppelganger; order <= OrderDoppelInsomniac; order++ {
		var actors []string
		var role Role
		if order == OrderDoppelInsomniac {
			actors = g.shadowCopiers(RoleInsomniac)
			role = RoleInsomniac
		} else {
			for _, r := range AllRoles() {
				if WakeOrderOf(r) == order {
					role = r
					break
				}
			}
			if role == "" {
				continue
			}
			for _, p := range g.players {
				if p.StartingRole == role {
					actors = append(actors, p.ID)
				}
			}
		}
		for _, actor := range actors {
			if err := g.runSeatAction(ctx, actor, role, order); err != nil {
				return err
			}
		}
	}
	return nil
}

// runSeatAction runs one player's strategy, delivering the result and
// containing any strategy failure to that player's turn.
func (g *Game) runSeatAction(ctx context.Context, actor string, role Role, order int) error {
	res, err := nightStrategies[role](ctx, g, actor, order)
	if err != nil {
		if errors.Is(err, ErrDecisionCancelled) || ctx.Err() != nil {
			return err
		}
		g.logger.Warn("night action failed",
			zap.String("player", actor),
			zap.String("role", string(role)),
			zap.Error(err))
		res = &NightResult{PlayerID: actor, ActedAs: role, WakeOrder: order, Failed: true}
	}
	if res != nil {
		g.deliverNightResult(*res)
	}
	return nil
}

// werewolfAllies lists players on the werewolf wake-up: starting Werewolves
// plus Doppelgangers who copied Werewolf, excluding the given player.
// The Minion is never part of this set.
func (g *Game) werewolfAllies(exclude string) []string {
	var allies []string
	for _, p := range g.players {
		if p.ID == exclude {
			continue
		}
		if p.StartingRole == RoleWerewolf || g.shadow[p.ID] == RoleWerewolf {
			allies = append(allies, p.ID)
		}
	}
	return allies
}

// setShadow records a Doppelganger copy. Only the night goroutine touches
// the shadow table while it is being written; resolution reads it later.
func (g *Game) setShadow(id string, r Role) {
	g.shadow[id] = r
}

// shadowCopiers lists Doppelgangers who copied the given role, in seat order.
func (g *Game) shadowCopiers(r Role) []string {
	var ids []string
	for _, p := range g.players {
		if g.shadow[p.ID] == r {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func actDoppelganger(ctx context.Context, g *Game, actor string, order int) (*NightResult, error) {
	resp, err := g.decide(ctx, actor, PromptSelectPlayer, g.otherPlayers(actor), 0)
	if err != nil {
		return nil, err
	}
	target := resp.Players[0]
	copied, err := g.deck.RoleAt(PlayerSlot(g.seatOf(target)))
	if err != nil {
		return nil, err
	}
	g.setShadow(actor, copied)

	res := &NightResult{
		PlayerID:  actor,
		ActedAs:   RoleDoppelganger,
		WakeOrder: order,
		Copied:    &CopyRecord{Target: target, Role: copied},
	}

	// The copied action runs in-line at order 1, except the Insomniac check
	// which waits for order 10 so it sees all swaps.
	if copied == RoleInsomniac {
		return res, nil
	}
	if strat, ok := nightStrategies[copied]; ok && copied != RoleDoppelganger {
		g.deliverNightResult(*res)
		return strat(ctx, g, actor, order)
	}
	return res, nil
}

func actWerewolf(ctx context.Context, g *Game, actor string, order int) (*NightResult, error) {
	res := &NightResult{
		PlayerID:   actor,
		ActedAs:    RoleWerewolf,
		WakeOrder:  order,
		Werewolves: g.werewolfAllies(actor),
	}
	if len(res.Werewolves) > 0 {
		return res, nil
	}
	// Lone wolf: one declinable center peek.
	resp, err := g.issuePrompt(ctx, actor, PromptSelectCenter, nil, 1, true)
	if err != nil {
		return nil, err
	}
	if len(resp.Centers) == 1 {
		r, err := g.deck.RoleAt(CenterSlot(resp.Centers[0]))
		if err != nil {
			return nil, err
		}
		res.Viewings = []Viewing{{Position: CenterSlot(resp.Centers[0]), Role: r}}
	}
	return res, nil
}

func actMinion(ctx context.Context, g *Game, actor string, order int) (*NightResult, error) {
	return &NightResult{
		PlayerID:   actor,
		ActedAs:    RoleMinion,
		WakeOrder:  order,
		Werewolves: g.werewolfAllies(actor),
	}, nil
}

func actMason(ctx context.Context, g *Game, actor string, order int) (*NightResult, error) {
	var others []string
	for _, p := range g.players {
		if p.ID != actor && p.StartingRole == RoleMason {
			others = append(others, p.ID)
		}
	}
	return &NightResult{
		PlayerID:  actor,
		ActedAs:   RoleMason,
		WakeOrder: order,
		Masons:    others,
	}, nil
}

func actSeer(ctx context.Context, g *Game, actor string, order int) (*NightResult, error) {
	choice, err := g.decide(ctx, actor, PromptSeerChoice, nil, 0)
	if err != nil {
		return nil, err
	}
	res := &NightResult{PlayerID: actor, ActedAs: RoleSeer, WakeOrder: order}
	if choice.Choice == SeerChoicePlayer {
		resp, err := g.decide(ctx, actor, PromptSelectPlayer, g.otherPlayers(actor), 0)
		if err != nil {
			return nil, err
		}
		pos := PlayerSlot(g.seatOf(resp.Players[0]))
		r, err := g.deck.RoleAt(pos)
		if err != nil {
			return nil, err
		}
		res.Viewings = []Viewing{{Position: pos, Role: r}}
		return res, nil
	}
	resp, err := g.decide(ctx, actor, PromptSelectCenter, nil, 2)
	if err != nil {
		return nil, err
	}
	for _, c := range resp.Centers {
		r, err := g.deck.RoleAt(CenterSlot(c))
		if err != nil {
			return nil, err
		}
		res.Viewings = append(res.Viewings, Viewing{Position: CenterSlot(c), Role: r})
	}
	return res, nil
}

func actRobber(ctx context.Context, g *Game, actor string, order int) (*NightResult, error) {
	resp, err := g.decide(ctx, actor, PromptSelectPlayer, g.otherPlayers(actor), 0)
	if err != nil {
		return nil, err
	}
	self := PlayerSlot(g.seatOf(actor))
	target := PlayerSlot(g.seatOf(resp.Players[0]))
	if err := g.deck.Swap(self, target); err != nil {
		return nil, err
	}
	stolen, err := g.deck.RoleAt(self)
	if err != nil {
		return nil, err
	}
	return &NightResult{
		PlayerID:  actor,
		ActedAs:   RoleRobber,
		WakeOrder: order,
		Swap:      &SwapRecord{A: self, B: target},
		Viewings:  []Viewing{{Position: self, Role: stolen}},
	}, nil
}

func actTroublemaker(ctx context.Context, g *Game, actor string, order int) (*NightResult, error) {
	resp, err := g.decide(ctx, actor, PromptSelectTwoPlayers, g.otherPlayers(actor), 0)
	if err != nil {
		return nil, err
	}
	a := PlayerSlot(g.seatOf(resp.Players[0]))
	b := PlayerSlot(g.seatOf(resp.Players[1]))
	if err := g.deck.Swap(a, b); err != nil {
		return nil, err
	}
	return &NightResult{
		PlayerID:  actor,
		ActedAs:   RoleTroublemaker,
		WakeOrder: order,
		Swap:      &SwapRecord{A: a, B: b},
	}, nil
}

func actDrunk(ctx context.Context, g *Game, actor string, order int) (*NightResult, error) {
	resp, err := g.decide(ctx, actor, PromptSelectCenter, nil, 1)
	if err != nil {
		return nil, err
	}
	center := 0
	if len(resp.Centers) == 1 {
		center = resp.Centers[0]
	}
	self := PlayerSlot(g.seatOf(actor))
	if err := g.deck.Swap(self, CenterSlot(center)); err != nil {
		return nil, err
	}
	// The drunk never sees the card they picked up.
	return &NightResult{
		PlayerID:  actor,
		ActedAs:   RoleDrunk,
		WakeOrder: order,
		Swap:      &SwapRecord{A: self, B: CenterSlot(center)},
	}, nil
}

func actInsomniac(ctx context.Context, g *Game, actor string, order int) (*NightResult, error) {
	self := PlayerSlot(g.seatOf(actor))
	r, err := g.deck.RoleAt(self)
	if err != nil {
		return nil, err
	}
	return &NightResult{
		PlayerID:  actor,
		ActedAs:   RoleInsomniac,
		WakeOrder: order,
		Viewings:  []Viewing{{Position: self, Role: r}},
	}, nil
}

// otherPlayers lists every engine id except the given one, in seat order.
func (g *Game) otherPlayers(exclude string) []string {
	others := make([]string, 0, len(g.players)-1)
	for _, p := range g.players {
		if p.ID != exclude {
			others = append(others, p.ID)
		}
	}
	return others
}

func (g *Game) seatOf(id string) int {
	if p, ok := g.byID[id]; ok {
		return p.Seat
	}
	return -1
}

func engineID(seat int) string {
	return fmt.Sprintf("player-%d", seat+1)
}
