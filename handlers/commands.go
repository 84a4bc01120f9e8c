package handlers

import (
	"context"
	"strings"

	"sticker-bot/cdn"
	"sticker-bot/errs"
	"sticker-bot/types"
)

const maxPrefixLen = 4

// cmdStickers lists everything the actor context can currently send.
func (h *Handler) cmdStickers(_ context.Context, cmd *commandContext) error {
	var b strings.Builder
	if personal := stickerNames(cmd.user.CustomStickers, "-"); personal != "" {
		b.WriteString("**Your stickers:** " + personal + "\n")
	}
	if cmd.guild != nil {
		if custom := stickerNames(cmd.guild.CustomStickers, ""); custom != "" {
			b.WriteString("**Server stickers:** " + custom + "\n")
		}
		if len(cmd.guild.RecentStickers) > 0 {
			b.WriteString("**Recently used:** " + strings.Join(cmd.guild.RecentStickers, ", ") + "\n")
		}
	}
	keys := append([]string{}, cmd.user.StickerPacks...)
	if cmd.guild != nil {
		keys = append(keys, cmd.guild.StickerPacks...)
	}
	if len(keys) > 0 {
		b.WriteString("**Subscribed packs:** " + strings.Join(keys, ", ") + "\n")
	}
	if b.Len() == 0 {
		h.reply(cmd.event, "No stickers available yet. Use `addsticker` to create one.")
		return nil
	}
	h.reply(cmd.event, b.String())
	return nil
}

// cmdAddSticker creates a custom sticker from an attachment or a URL:
// `addsticker <name> [url]`. In guilds it adds a server sticker, in DMs a
// personal one.
func (h *Handler) cmdAddSticker(ctx context.Context, cmd *commandContext) error {
	if len(cmd.args) == 0 {
		h.reply(cmd.event, "Usage: `addsticker <name> [image url]` (or attach an image).")
		return nil
	}
	name := cmd.args[0]
	var upload cdn.Upload
	if attachments := cmd.event.Message.Attachments; len(attachments) > 0 {
		upload.RemoteURL = attachments[0].URL
	} else if len(cmd.args) > 1 {
		upload.RemoteURL = cmd.args[1]
	} else {
		h.reply(cmd.event, "Attach an image or pass an image URL.")
		return nil
	}

	var (
		sticker *types.Sticker
		err     error
	)
	if cmd.guild != nil {
		sticker, err = h.bot.Packs.AddGuildSticker(ctx, cmd.guild, name, upload, types.CreatedViaChatCommand, cmd.user.ID)
	} else {
		sticker, err = h.bot.Packs.AddUserSticker(ctx, cmd.user, name, upload, types.CreatedViaChatCommand)
	}
	if err != nil {
		return h.replyError(cmd, err)
	}
	shortcode := sticker.Name
	if cmd.guild == nil {
		shortcode = "-" + shortcode
	}
	h.reply(cmd.event, "Added sticker `:"+shortcode+":`.")
	return nil
}

// cmdRemoveSticker drops a custom sticker by name: `removesticker <name>`.
func (h *Handler) cmdRemoveSticker(ctx context.Context, cmd *commandContext) error {
	if len(cmd.args) == 0 {
		h.reply(cmd.event, "Usage: `removesticker <name>`.")
		return nil
	}
	name := strings.ToLower(strings.NewReplacer(":", "", "-", "").Replace(cmd.args[0]))
	var err error
	if cmd.guild != nil {
		err = h.bot.Packs.RemoveGuildSticker(ctx, cmd.guild, name)
	} else {
		err = h.bot.Packs.RemoveUserSticker(ctx, cmd.user, name)
	}
	if err != nil {
		return h.replyError(cmd, err)
	}
	h.reply(cmd.event, "Removed sticker `"+name+"`.")
	return nil
}

// cmdSetRole changes the role required for manager commands:
// `setrole <role name>`.
func (h *Handler) cmdSetRole(ctx context.Context, cmd *commandContext) error {
	if len(cmd.args) == 0 {
		h.reply(cmd.event, "Usage: `setrole <role name>`.")
		return nil
	}
	cmd.guild.ManagerRole = strings.Join(cmd.args, " ")
	if err := h.bot.Store.SaveGuild(ctx, cmd.guild); err != nil {
		return err
	}
	h.reply(cmd.event, "Manager role set to **"+cmd.guild.ManagerRole+"**.")
	return nil
}

// cmdSetPrefix changes the guild command prefix: `setprefix <prefix>`.
func (h *Handler) cmdSetPrefix(ctx context.Context, cmd *commandContext) error {
	if len(cmd.args) == 0 || len(cmd.args[0]) > maxPrefixLen {
		h.reply(cmd.event, "Usage: `setprefix <prefix>` (up to 4 characters).")
		return nil
	}
	cmd.guild.Prefix = strings.ToLower(cmd.args[0])
	if err := h.bot.Store.SaveGuild(ctx, cmd.guild); err != nil {
		return err
	}
	h.reply(cmd.event, "Prefix set to `"+cmd.guild.Prefix+"`.")
	return nil
}

func (h *Handler) cmdHelp(_ context.Context, cmd *commandContext) error {
	prefix := ""
	if cmd.guild != nil {
		prefix = cmd.guild.Prefix
	}
	h.reply(cmd.event,
		"Type `:name:` to send a sticker, `:-name:` for a personal sticker and `:pack-name:` for a pack sticker.\n"+
			"Commands: `"+prefix+"stickers`, `"+prefix+"addsticker`, `"+prefix+"removesticker`, `"+prefix+"setrole`, `"+prefix+"setprefix`, `"+prefix+"help`.")
	return nil
}

// replyError surfaces anticipated user mistakes in the channel and keeps
// everything else as a logged failure.
func (h *Handler) replyError(cmd *commandContext, err error) error {
	switch errs.CodeOf(err) {
	case errs.CodeValidation, errs.CodeConflict, errs.CodeCapacity, errs.CodeUnauthorized, errs.CodeNotFound:
		h.reply(cmd.event, err.Error())
		return nil
	default:
		h.reply(cmd.event, "An unknown error occurred.")
		return err
	}
}

func stickerNames(stickers []types.Sticker, prefix string) string {
	if len(stickers) == 0 {
		return ""
	}
	names := make([]string, 0, len(stickers))
	for _, sticker := range stickers {
		names = append(names, "`"+prefix+sticker.Name+"`")
	}
	return strings.Join(names, ", ")
}
