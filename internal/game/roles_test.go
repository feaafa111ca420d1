package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoles_WakeOrderIsStrict(t *testing.T) {
	assert.Equal(t, 1, WakeOrderOf(RoleDoppelganger))
	assert.Equal(t, 2, WakeOrderOf(RoleWerewolf))
	assert.Equal(t, 3, WakeOrderOf(RoleMinion))
	assert.Equal(t, 4, WakeOrderOf(RoleMason))
	assert.Equal(t, 5, WakeOrderOf(RoleSeer))
	assert.Equal(t, 6, WakeOrderOf(RoleRobber))
	assert.Equal(t, 7, WakeOrderOf(RoleTroublemaker))
	assert.Equal(t, 8, WakeOrderOf(RoleDrunk))
	assert.Equal(t, 9, WakeOrderOf(RoleInsomniac))
	assert.Equal(t, NoWakeOrder, WakeOrderOf(RoleVillager))
	assert.Equal(t, NoWakeOrder, WakeOrderOf(RoleHunter))
	assert.Equal(t, NoWakeOrder, WakeOrderOf(RoleTanner))
}

func TestRoles_Teams(t *testing.T) {
	assert.Equal(t, TeamWerewolf, TeamOf(RoleWerewolf))
	assert.Equal(t, TeamWerewolf, TeamOf(RoleMinion))
	assert.Equal(t, TeamTanner, TeamOf(RoleTanner))
	assert.Equal(t, TeamVillage, TeamOf(RoleSeer))
	assert.Equal(t, TeamVillage, TeamOf(RoleDoppelganger))
}

func TestValidateRoleList(t *testing.T) {
	assert.NoError(t, ValidateRoleList([]Role{
		RoleWerewolf, RoleWerewolf, RoleSeer, RoleVillager, RoleVillager, RoleTanner,
	}))
	assert.Error(t, ValidateRoleList([]Role{RoleSeer, RoleSeer}), "one seer card exists")
	assert.Error(t, ValidateRoleList([]Role{Role("VAMPIRE")}), "unknown role")
	assert.Error(t, ValidateRoleList([]Role{RoleMason, RoleVillager}), "lone mason")
	assert.NoError(t, ValidateRoleList([]Role{RoleMason, RoleMason, RoleVillager}))
}
