// Package handlers drives the chat surface: prefix commands and shortcode
// resolution on every incoming message.
package handlers

import (
	"context"
	"log/slog"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"github.com/lmittmann/tint"

	"sticker-bot/internal"
	"sticker-bot/types"
)

type commandContext struct {
	event *events.MessageCreate
	args  []string
	user  *types.User
	guild *types.Guild // nil in direct messages
}

type command struct {
	run         func(ctx context.Context, cmd *commandContext) error
	managerOnly bool // gated by the guild's manager role
	guildOnly   bool // meaningless in direct messages
}

type Handler struct {
	bot      *internal.Bot
	config   *internal.Config
	commands map[string]command
}

// NewHandler builds the dispatcher with its immutable command table.
func NewHandler(b *internal.Bot, c *internal.Config) *Handler {
	h := &Handler{
		bot:    b,
		config: c,
	}
	h.commands = map[string]command{
		"stickers":      {run: h.cmdStickers},
		"addsticker":    {run: h.cmdAddSticker, managerOnly: true},
		"removesticker": {run: h.cmdRemoveSticker, managerOnly: true},
		"setrole":       {run: h.cmdSetRole, managerOnly: true, guildOnly: true},
		"setprefix":     {run: h.cmdSetPrefix, managerOnly: true, guildOnly: true},
		"help":          {run: h.cmdHelp},
	}
	return h
}

// OnMessageCreate is the single entry point of the chat surface. Failures
// are logged here and never surface to the channel, except the anticipated
// permission replies inside the command handlers.
func (h *Handler) OnMessageCreate(event *events.MessageCreate) {
	if event.Message.Author.Bot {
		return
	}
	ctx := context.Background()
	if event.GuildID != nil {
		h.onGuildMessage(ctx, event, *event.GuildID)
		return
	}
	h.onDirectMessage(ctx, event)
}

func (h *Handler) onGuildMessage(ctx context.Context, event *events.MessageCreate, guildID snowflake.ID) {
	guild, err := h.bot.Store.GetOrCreateGuild(ctx, guildID)
	if err != nil {
		slog.Error("handlers: error while loading a guild", slog.Any("guild.id", guildID), tint.Err(err))
		return
	}
	first, args := splitCommand(event.Message.Content)
	if name, ok := strings.CutPrefix(first, guild.Prefix); ok {
		if cmd, known := h.commands[name]; known {
			h.dispatch(ctx, event, cmd, name, args, guild)
			return
		}
	}
	h.maybeSendSticker(ctx, event, guild)
}

func (h *Handler) onDirectMessage(ctx context.Context, event *events.MessageCreate) {
	first, args := splitCommand(event.Message.Content)
	if cmd, known := h.commands[first]; known && !cmd.guildOnly {
		h.dispatch(ctx, event, cmd, first, args, nil)
		return
	}
	h.maybeSendSticker(ctx, event, nil)
}

func (h *Handler) dispatch(ctx context.Context, event *events.MessageCreate, cmd command, name string, args []string, guild *types.Guild) {
	if guild != nil && cmd.managerOnly && !h.hasManagerRole(event, guild) {
		h.reply(event, "You must have the **"+guild.ManagerRole+"** role to use this command.")
		return
	}
	author := event.Message.Author
	user, err := h.bot.Store.GetOrCreateUser(ctx, author.ID, author.Username, author.EffectiveAvatarURL())
	if err != nil {
		slog.Error("handlers: error while loading a user", slog.Any("user.id", author.ID), tint.Err(err))
		return
	}
	h.bot.Metrics.CommandsHandled.WithLabelValues(name).Inc()
	if err := cmd.run(ctx, &commandContext{event: event, args: args, user: user, guild: guild}); err != nil {
		slog.Error("handlers: error while handling a command",
			slog.String("command.name", name),
			slog.Any("user.id", author.ID),
			tint.Err(err))
	}
}

// hasManagerRole checks the cached guild roles for the configured manager
// role by name, or for the generic Manage Server permission.
func (h *Handler) hasManagerRole(event *events.MessageCreate, guild *types.Guild) bool {
	member := event.Message.Member
	if member == nil {
		return false
	}
	caches := event.Client().Caches
	for _, roleID := range member.RoleIDs {
		role, ok := caches.Role(guild.ID, roleID)
		if !ok {
			continue
		}
		if role.Name == guild.ManagerRole || role.Permissions.Has(discord.PermissionManageGuild) {
			return true
		}
	}
	return false
}

func (h *Handler) reply(event *events.MessageCreate, content string) {
	_, err := event.Client().Rest.CreateMessage(event.ChannelID, discord.MessageCreate{
		Content: content,
	})
	if err != nil {
		slog.Error("handlers: error while sending a reply", slog.Any("channel.id", event.ChannelID), tint.Err(err))
	}
}

// splitCommand lowercases the message and separates the command word from
// its arguments. Arguments keep their original casing.
func splitCommand(content string) (string, []string) {
	fields := strings.Fields(strings.TrimSpace(content))
	if len(fields) == 0 {
		return "", nil
	}
	return strings.ToLower(fields[0]), fields[1:]
}
