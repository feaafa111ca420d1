package game

import (
	"fmt"
)

// CenterSlots is fixed by the rules: three cards always sit in the middle.
const CenterSlots = 3

// CardPosition addresses one card: either a player seat or a center slot.
type CardPosition struct {
	Center bool `json:"center"`
	Index  int  `json:"index"`
}

// PlayerSlot addresses the card in front of seat i.
func PlayerSlot(i int) CardPosition { return CardPosition{Center: false, Index: i} }

// CenterSlot addresses center card i in {0,1,2}.
func CenterSlot(i int) CardPosition { return CardPosition{Center: true, Index: i} }

func (p CardPosition) String() string {
	if p.Center {
		return fmt.Sprintf("center-%d", p.Index)
	}
	return fmt.Sprintf("seat-%d", p.Index)
}

// SwapRecord is the audit entry for one executed swap.
type SwapRecord struct {
	A CardPosition `json:"a"`
	B CardPosition `json:"b"`
}

// ErrInvalidPosition reports an out-of-range card position.
type ErrInvalidPosition struct {
	Pos CardPosition
}

func (e *ErrInvalidPosition) Error() string {
	return fmt.Sprintf("invalid card position %s", e.Pos)
}

// Deck is the authoritative mapping of card positions to roles for one game.
// It is mutated only through Swap; the starting arrangement is snapshotted at
// construction so wake-ups can be computed from starting roles.
//
// Deck is not safe for concurrent use; the engine serializes access.
type Deck struct {
	seats         []Role
	center        [CenterSlots]Role
	startingSeats []Role
	audit         []SwapRecord
}

// NewDeck builds a deck from the dealt seats and center cards and snapshots
// the starting arrangement.
func NewDeck(seats []Role, center [CenterSlots]Role) (*Deck, error) {
	if len(seats) == 0 {
		return nil, fmt.Errorf("deck needs at least one seat")
	}
	for i, r := range seats {
		if !ValidRole(r) {
			return nil, fmt.Errorf("seat %d holds unknown role %q", i, r)
		}
	}
	for i, r := range center {
		if !ValidRole(r) {
			return nil, fmt.Errorf("center %d holds unknown role %q", i, r)
		}
	}
	d := &Deck{
		seats:         append([]Role(nil), seats...),
		center:        center,
		startingSeats: append([]Role(nil), seats...),
	}
	return d, nil
}

// SeatCount returns the number of player slots.
func (d *Deck) SeatCount() int { return len(d.seats) }

func (d *Deck) validate(p CardPosition) error {
	if p.Center {
		if p.Index < 0 || p.Index >= CenterSlots {
			return &ErrInvalidPosition{p}
		}
		return nil
	}
	if p.Index < 0 || p.Index >= len(d.seats) {
		return &ErrInvalidPosition{p}
	}
	return nil
}

// RoleAt returns the role currently at a position.
func (d *Deck) RoleAt(p CardPosition) (Role, error) {
	if err := d.validate(p); err != nil {
		return "", err
	}
	if p.Center {
		return d.center[p.Index], nil
	}
	return d.seats[p.Index], nil
}

// StartingRoleAt returns the role dealt to a seat at setup.
func (d *Deck) StartingRoleAt(seat int) (Role, error) {
	if seat < 0 || seat >= len(d.startingSeats) {
		return "", &ErrInvalidPosition{PlayerSlot(seat)}
	}
	return d.startingSeats[seat], nil
}

// Swap exchanges the roles at two positions atomically. Swapping a position
// with itself is a no-op and leaves no audit entry.
func (d *Deck) Swap(a, b CardPosition) error {
	if err := d.validate(a); err != nil {
		return err
	}
	if err := d.validate(b); err != nil {
		return err
	}
	if a == b {
		return nil
	}
	ra, _ := d.RoleAt(a)
	rb, _ := d.RoleAt(b)
	d.set(a, rb)
	d.set(b, ra)
	d.audit = append(d.audit, SwapRecord{A: a, B: b})
	return nil
}

func (d *Deck) set(p CardPosition, r Role) {
	if p.Center {
		d.center[p.Index] = r
	} else {
		d.seats[p.Index] = r
	}
}

// SeatsWithStartingRole lists the seats dealt the given role, in seat order.
func (d *Deck) SeatsWithStartingRole(r Role) []int {
	var seats []int
	for i, sr := range d.startingSeats {
		if sr == r {
			seats = append(seats, i)
		}
	}
	return seats
}

// SeatsWithCurrentRole lists the seats currently holding the given role.
func (d *Deck) SeatsWithCurrentRole(r Role) []int {
	var seats []int
	for i, sr := range d.seats {
		if sr == r {
			seats = append(seats, i)
		}
	}
	return seats
}

// CenterRoles returns the current center cards.
func (d *Deck) CenterRoles() [CenterSlots]Role { return d.center }

// Multiset counts every role in the deck, seats and center together.
func (d *Deck) Multiset() map[Role]int {
	m := make(map[Role]int)
	for _, r := range d.seats {
		m[r]++
	}
	for _, r := range d.center {
		m[r]++
	}
	return m
}

// AuditLog returns the swaps executed so far, in order.
func (d *Deck) AuditLog() []SwapRecord {
	return append([]SwapRecord(nil), d.audit...)
}
