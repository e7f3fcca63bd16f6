package discord

import (
	"slices"

	"github.com/bwmarrin/discordgo"
)

// permManageGuild is Discord's MANAGE_GUILD permission bit.
const permManageGuild int64 = 1 << 5

// PermissionChecker decides who may control playback.
type PermissionChecker struct {
	djRoleID string
}

// NewPermissionChecker creates a PermissionChecker for the given DJ role ID.
func NewPermissionChecker(djRoleID string) *PermissionChecker {
	return &PermissionChecker{djRoleID: djRoleID}
}

// IsDJ reports whether the interaction author may start or stop playback.
// With no DJ role configured every guild member qualifies. Otherwise the
// member needs the role, Manage Server or Administrator. Interactions outside
// a guild never qualify.
func (p *PermissionChecker) IsDJ(i *discordgo.InteractionCreate) bool {
	if i.Member == nil {
		return false
	}
	if p.djRoleID == "" {
		return true
	}
	if i.Member.Permissions&(discordgo.PermissionAdministrator|permManageGuild) != 0 {
		return true
	}
	return slices.Contains(i.Member.Roles, p.djRoleID)
}
