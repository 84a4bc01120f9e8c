package internal

import (
	"context"
	"log/slog"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/lmittmann/tint"

	"sticker-bot/types"
)

// DiscordPermissions answers pack-management capability checks against the
// live guild state: the user qualifies with the guild's configured manager
// role or the platform's Manage Server permission.
type DiscordPermissions struct {
	Client *bot.Client
}

func (p *DiscordPermissions) CanManageStickers(ctx context.Context, guild *types.Guild, userID snowflake.ID) bool {
	rest := p.Client.Rest
	member, err := rest.GetMember(guild.ID, userID)
	if err != nil {
		slog.Warn("permissions: error while fetching a member", slog.Any("guild.id", guild.ID), slog.Any("user.id", userID), tint.Err(err))
		return false
	}
	roles, err := rest.GetRoles(guild.ID)
	if err != nil {
		slog.Warn("permissions: error while fetching guild roles", slog.Any("guild.id", guild.ID), tint.Err(err))
		return false
	}
	rolesByID := make(map[snowflake.ID]discord.Role, len(roles))
	for _, role := range roles {
		rolesByID[role.ID] = role
	}
	for _, roleID := range member.RoleIDs {
		role, ok := rolesByID[roleID]
		if !ok {
			continue
		}
		if role.Name == guild.ManagerRole || role.Permissions.Has(discord.PermissionManageGuild) {
			return true
		}
	}
	return false
}
