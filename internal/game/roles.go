package game

import "fmt"

// Role identifies one card in the deck.
type Role string

const (
	RoleDoppelganger Role = "DOPPELGANGER"
	RoleWerewolf     Role = "WEREWOLF"
	RoleMinion       Role = "MINION"
	RoleMason        Role = "MASON"
	RoleSeer         Role = "SEER"
	RoleRobber       Role = "ROBBER"
	RoleTroublemaker Role = "TROUBLEMAKER"
	RoleDrunk        Role = "DRUNK"
	RoleInsomniac    Role = "INSOMNIAC"
	RoleVillager     Role = "VILLAGER"
	RoleHunter       Role = "HUNTER"
	RoleTanner       Role = "TANNER"
)

// Team is the side a role plays for.
type Team string

const (
	TeamVillage  Team = "VILLAGE"
	TeamWerewolf Team = "WEREWOLF"
	TeamTanner   Team = "TANNER"
)

// Wake orders within the night phase. Order 10 is reserved for
// Doppelgangers who copied the Insomniac and wake after all swaps.
const (
	NoWakeOrder          = -1
	OrderDoppelganger    = 1
	OrderWerewolf        = 2
	OrderMinion          = 3
	OrderMason           = 4
	OrderSeer            = 5
	OrderRobber          = 6
	OrderTroublemaker    = 7
	OrderDrunk           = 8
	OrderInsomniac       = 9
	OrderDoppelInsomniac = 10
)

// RoleInfo is the static catalog entry for a role. Immutable.
type RoleInfo struct {
	Role        Role   `json:"role"`
	Team        Team   `json:"team"`
	WakeOrder   int    `json:"wakeOrder"`
	Description string `json:"description"`
}

var catalog = map[Role]RoleInfo{
	RoleDoppelganger: {RoleDoppelganger, TeamVillage, OrderDoppelganger,
		"Copies another player's role and performs its night action immediately."},
	RoleWerewolf: {RoleWerewolf, TeamWerewolf, OrderWerewolf,
		"Wakes to see the other werewolves. A lone wolf may peek at one center card."},
	RoleMinion: {RoleMinion, TeamWerewolf, OrderMinion,
		"Learns who the werewolves are; the werewolves never learn the minion."},
	RoleMason: {RoleMason, TeamVillage, OrderMason,
		"Wakes to see the other mason."},
	RoleSeer: {RoleSeer, TeamVillage, OrderSeer,
		"Views another player's card or two of the center cards."},
	RoleRobber: {RoleRobber, TeamVillage, OrderRobber,
		"Swaps cards with another player and looks at the stolen card."},
	RoleTroublemaker: {RoleTroublemaker, TeamVillage, OrderTroublemaker,
		"Swaps the cards of two other players without looking at them."},
	RoleDrunk: {RoleDrunk, TeamVillage, OrderDrunk,
		"Swaps with a center card without looking at the new card."},
	RoleInsomniac: {RoleInsomniac, TeamVillage, OrderInsomniac,
		"Wakes at the end of the night to check their own card."},
	RoleVillager: {RoleVillager, TeamVillage, NoWakeOrder,
		"No night action. Find the werewolves."},
	RoleHunter: {RoleHunter, TeamVillage, NoWakeOrder,
		"If eliminated, whoever the hunter voted for is eliminated as well."},
	RoleTanner: {RoleTanner, TeamTanner, NoWakeOrder,
		"Wins only by getting eliminated."},
}

// Info returns the catalog entry for a role.
func Info(r Role) (RoleInfo, bool) {
	info, ok := catalog[r]
	return info, ok
}

// TeamOf returns the team of a role; unknown roles default to the village.
func TeamOf(r Role) Team {
	if info, ok := catalog[r]; ok {
		return info.Team
	}
	return TeamVillage
}

// WakeOrderOf returns a role's wake order, or NoWakeOrder.
func WakeOrderOf(r Role) int {
	if info, ok := catalog[r]; ok {
		return info.WakeOrder
	}
	return NoWakeOrder
}

// ValidRole reports whether r is part of the catalog.
func ValidRole(r Role) bool {
	_, ok := catalog[r]
	return ok
}

// AllRoles lists the catalog in wake order, actionless roles last.
func AllRoles() []Role {
	return []Role{
		RoleDoppelganger, RoleWerewolf, RoleMinion, RoleMason, RoleSeer,
		RoleRobber, RoleTroublemaker, RoleDrunk, RoleInsomniac,
		RoleVillager, RoleHunter, RoleTanner,
	}
}

// maxCopies is how many of each card exist in the physical game box.
var maxCopies = map[Role]int{
	RoleDoppelganger: 1,
	RoleWerewolf:     2,
	RoleMinion:       1,
	RoleMason:        2,
	RoleSeer:         1,
	RoleRobber:       1,
	RoleTroublemaker: 1,
	RoleDrunk:        1,
	RoleInsomniac:    1,
	RoleVillager:     3,
	RoleHunter:       1,
	RoleTanner:       1,
}

// ValidateRoleList checks that a configured role list is legal: only known
// roles, within per-role card limits, and masons come in pairs or not at all.
func ValidateRoleList(roles []Role) error {
	counts := make(map[Role]int, len(roles))
	for _, r := range roles {
		if !ValidRole(r) {
			return fmt.Errorf("unknown role %q", r)
		}
		counts[r]++
	}
	for r, n := range counts {
		if n > maxCopies[r] {
			return fmt.Errorf("too many %s cards: %d (max %d)", r, n, maxCopies[r])
		}
	}
	if n := counts[RoleMason]; n == 1 {
		return fmt.Errorf("masons must be included as a pair")
	}
	return nil
}
