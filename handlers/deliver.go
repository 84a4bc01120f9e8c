package handlers

import (
	"context"
	"log/slog"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/lmittmann/tint"

	"sticker-bot/resolver"
	"sticker-bot/types"
	"sticker-bot/util"
)

// maybeSendSticker resolves the message as a shortcode. A miss is a silent
// no-op; on a hit the use counter is persisted on the owning document, the
// guild recents ring is updated, the image is delivered and the triggering
// message is deleted best-effort.
func (h *Handler) maybeSendSticker(ctx context.Context, event *events.MessageCreate, guild *types.Guild) {
	author := event.Message.Author
	user, err := h.bot.Store.GetOrCreateUser(ctx, author.ID, author.Username, author.EffectiveAvatarURL())
	if err != nil {
		slog.Error("handlers: error while loading a user", slog.Any("user.id", author.ID), tint.Err(err))
		return
	}
	match, err := h.bot.Resolver.Resolve(ctx, event.Message.Content, user, guild)
	if err != nil {
		slog.Error("handlers: error while resolving a shortcode", slog.Any("user.id", author.ID), tint.Err(err))
		return
	}
	if match == nil {
		h.bot.Metrics.ResolverMisses.Inc()
		return
	}

	match.Sticker.Uses++
	inGuild := guild != nil
	if inGuild && !match.Personal() {
		guild.RecentStickers = resolver.UpdateRecents(guild.RecentStickers, match.Command)
	}
	// the match tag decides which document the counter lives on
	switch match.OwnerKind {
	case resolver.OwnerUser:
		err = h.bot.Store.SaveUser(ctx, match.User)
	case resolver.OwnerGuild:
		err = h.bot.Store.SaveGuild(ctx, match.Guild)
	case resolver.OwnerPack:
		err = h.bot.Store.SavePack(ctx, match.Pack)
	}
	if err != nil {
		slog.Error("handlers: error while persisting a sticker use", slog.String("command", match.Command), tint.Err(err))
		return
	}
	if inGuild && !match.Personal() && match.OwnerKind != resolver.OwnerGuild {
		if err := h.bot.Store.SaveGuild(ctx, guild); err != nil {
			slog.Error("handlers: error while persisting guild recents", slog.Any("guild.id", guild.ID), tint.Err(err))
		}
	}

	image, err := h.bot.CDN.FetchImage(ctx, match.Sticker.URL)
	if err != nil {
		slog.Warn("handlers: unable to download a sticker image",
			slog.String("command", match.Command),
			slog.String("image.url", match.Sticker.URL),
			tint.Err(err))
		return
	}
	defer image.Close()
	rest := event.Client().Rest
	_, err = rest.CreateMessage(event.ChannelID, discord.MessageCreate{
		Content: "**" + util.AuthorDisplayName(event.Message) + ":**",
		Files:   []*discord.File{discord.NewFile(match.Command+".png", "", image)},
	})
	if err != nil {
		slog.Error("handlers: error while sending a sticker", slog.Any("channel.id", event.ChannelID), tint.Err(err))
		return
	}
	h.bot.Metrics.StickersSent.Inc()

	if inGuild {
		if err := rest.DeleteMessage(event.ChannelID, event.MessageID); err != nil {
			slog.Warn("handlers: unable to delete a trigger message",
				slog.Any("guild.id", guild.ID),
				slog.Any("message.id", event.MessageID),
				tint.Err(err))
		}
	}
}
