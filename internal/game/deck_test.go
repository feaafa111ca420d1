package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDeck(t *testing.T) *Deck {
	t.Helper()
	d, err := NewDeck(
		[]Role{RoleWerewolf, RoleSeer, RoleVillager},
		[3]Role{RoleVillager, RoleRobber, RoleTanner},
	)
	require.NoError(t, err)
	return d
}

func TestDeck_SwapTwiceRestoresDeck(t *testing.T) {
	d := testDeck(t)
	before := d.Multiset()

	require.NoError(t, d.Swap(PlayerSlot(0), CenterSlot(1)))
	r0, _ := d.RoleAt(PlayerSlot(0))
	assert.Equal(t, RoleRobber, r0)

	require.NoError(t, d.Swap(PlayerSlot(0), CenterSlot(1)))
	r0, _ = d.RoleAt(PlayerSlot(0))
	c1, _ := d.RoleAt(CenterSlot(1))
	assert.Equal(t, RoleWerewolf, r0)
	assert.Equal(t, RoleRobber, c1)

	assert.Equal(t, before, d.Multiset())
	assert.Len(t, d.AuditLog(), 2)
}

func TestDeck_SelfSwapIsNoOpWithoutAudit(t *testing.T) {
	d := testDeck(t)
	require.NoError(t, d.Swap(PlayerSlot(1), PlayerSlot(1)))
	r1, _ := d.RoleAt(PlayerSlot(1))
	assert.Equal(t, RoleSeer, r1)
	assert.Empty(t, d.AuditLog())
}

func TestDeck_RejectsInvalidPositions(t *testing.T) {
	d := testDeck(t)

	_, err := d.RoleAt(PlayerSlot(3))
	var invalid *ErrInvalidPosition
	require.ErrorAs(t, err, &invalid)

	assert.Error(t, d.Swap(PlayerSlot(0), CenterSlot(3)))
	assert.Error(t, d.Swap(PlayerSlot(-1), CenterSlot(0)))
	assert.Empty(t, d.AuditLog(), "failed swaps leave no audit entry")
}

func TestDeck_StartingRolesSurviveSwaps(t *testing.T) {
	d := testDeck(t)
	require.NoError(t, d.Swap(PlayerSlot(0), PlayerSlot(2)))

	start, err := d.StartingRoleAt(0)
	require.NoError(t, err)
	assert.Equal(t, RoleWerewolf, start)

	assert.Equal(t, []int{0}, d.SeatsWithStartingRole(RoleWerewolf))
	assert.Equal(t, []int{2}, d.SeatsWithCurrentRole(RoleWerewolf))
}
