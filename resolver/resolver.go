// Package resolver turns typed shortcodes into stickers. A shortcode is the
// whole message: ":abc-wave:" hits sticker "wave" of pack "abc", "-grin" a
// personal sticker, "party" a guild sticker. Nearly all messages are not
// shortcodes, so a miss is a silent no-op.
package resolver

import (
	"context"
	"strings"

	"sticker-bot/errs"
	"sticker-bot/types"
)

type Mode string

const (
	// ModeNamespaced resolves by source priority: pack-qualified names
	// first, then personal, then guild stickers.
	ModeNamespaced Mode = "namespaced"
	// ModeFlattened is the legacy strategy: all sources are flattened into
	// one composed-name namespace and the earliest source wins.
	ModeFlattened Mode = "flattened"
)

// ParseMode falls back to the namespaced strategy for unknown values.
func ParseMode(s string) Mode {
	if Mode(s) == ModeFlattened {
		return ModeFlattened
	}
	return ModeNamespaced
}

type OwnerKind int

const (
	OwnerUser OwnerKind = iota + 1
	OwnerGuild
	OwnerPack
)

// Match tags the resolved sticker with its owning document so the caller
// persists the right one after mutating the use counter. Exactly one of
// User/Guild/Pack is set, matching OwnerKind; Sticker points into it.
type Match struct {
	Sticker   *types.Sticker
	OwnerKind OwnerKind
	User      *types.User
	Guild     *types.Guild
	Pack      *types.StickerPack

	// Command is the normalized shortcode, used for the recents ring and
	// the attachment filename.
	Command string
}

// Personal reports whether the match came from the invoking user's own
// stickers; those never enter a guild's recents ring.
func (m *Match) Personal() bool {
	return m.OwnerKind == OwnerUser
}

// PackSource is the slice of the store the resolver reads packs through.
type PackSource interface {
	Pack(ctx context.Context, key string) (*types.StickerPack, error)
	PacksByKeys(ctx context.Context, keys []string) ([]types.StickerPack, error)
}

type Resolver struct {
	packs PackSource
	mode  Mode
}

func New(packs PackSource, mode Mode) *Resolver {
	return &Resolver{
		packs: packs,
		mode:  mode,
	}
}

// Resolve normalizes raw and resolves it against the actor context. A miss
// returns (nil, nil); errors are store failures only. Nothing is mutated.
func (r *Resolver) Resolve(ctx context.Context, raw string, user *types.User, guild *types.Guild) (*Match, error) {
	command := Normalize(raw)
	if command == "" {
		return nil, nil
	}
	if r.mode == ModeFlattened {
		return r.resolveFlattened(ctx, command, user, guild)
	}
	return r.resolveNamespaced(ctx, command, user, guild)
}

// Normalize lowercases the raw text, trims it and strips the ':' shortcode
// delimiters. Anything containing whitespace cannot be a shortcode.
func Normalize(raw string) string {
	command := strings.ToLower(strings.TrimSpace(raw))
	if strings.ContainsAny(command, " \t\n") {
		return ""
	}
	return strings.ReplaceAll(command, ":", "")
}

func (r *Resolver) resolveNamespaced(ctx context.Context, command string, user *types.User, guild *types.Guild) (*Match, error) {
	separator := strings.Index(command, "-")
	switch {
	case separator > 0:
		// pack-qualified: key before the separator, sticker name after
		key := command[:separator]
		name := command[separator+1:]
		if !subscribedToPack(key, user, guild) {
			return nil, nil
		}
		pack, err := r.packs.Pack(ctx, key)
		if err != nil {
			if errs.Is(err, errs.CodeNotFound) {
				return nil, nil
			}
			return nil, err
		}
		sticker, ok := pack.Sticker(name)
		if !ok {
			return nil, nil
		}
		return &Match{Sticker: sticker, OwnerKind: OwnerPack, Pack: pack, Command: command}, nil
	case separator == 0:
		if !personalAllowed(guild) {
			return nil, nil
		}
		sticker, ok := user.CustomSticker(command[1:])
		if !ok {
			return nil, nil
		}
		return &Match{Sticker: sticker, OwnerKind: OwnerUser, User: user, Command: command}, nil
	default:
		if guild == nil {
			return nil, nil
		}
		sticker, ok := guild.CustomSticker(command)
		if !ok {
			return nil, nil
		}
		return &Match{Sticker: sticker, OwnerKind: OwnerGuild, Guild: guild, Command: command}, nil
	}
}

// resolveFlattened walks the sources in concatenation order (personal, guild,
// subscribed packs) and returns the first composed-name hit, so collisions
// across sources resolve to the earliest source silently.
func (r *Resolver) resolveFlattened(ctx context.Context, command string, user *types.User, guild *types.Guild) (*Match, error) {
	if personalAllowed(guild) {
		for i := range user.CustomStickers {
			if "-"+user.CustomStickers[i].Name == command {
				return &Match{Sticker: &user.CustomStickers[i], OwnerKind: OwnerUser, User: user, Command: command}, nil
			}
		}
	}
	if guild != nil {
		for i := range guild.CustomStickers {
			if guild.CustomStickers[i].Name == command {
				return &Match{Sticker: &guild.CustomStickers[i], OwnerKind: OwnerGuild, Guild: guild, Command: command}, nil
			}
		}
	}
	keys := subscribedPackKeys(user, guild)
	if len(keys) == 0 {
		return nil, nil
	}
	packs, err := r.packs.PacksByKeys(ctx, keys)
	if err != nil {
		return nil, err
	}
	packsByKey := make(map[string]*types.StickerPack, len(packs))
	for i := range packs {
		packsByKey[packs[i].Key] = &packs[i]
	}
	for _, key := range keys {
		pack, ok := packsByKey[key]
		if !ok {
			continue
		}
		for i := range pack.Stickers {
			if pack.Key+"-"+pack.Stickers[i].Name == command {
				return &Match{Sticker: &pack.Stickers[i], OwnerKind: OwnerPack, Pack: pack, Command: command}, nil
			}
		}
	}
	return nil, nil
}

func personalAllowed(guild *types.Guild) bool {
	return guild == nil || guild.PersonalStickersAllowed
}

func subscribedToPack(key string, user *types.User, guild *types.Guild) bool {
	if user.SubscribedTo(key) {
		return true
	}
	return guild != nil && guild.SubscribedTo(key)
}

// subscribedPackKeys merges the user's and guild's subscriptions, user first,
// without duplicates.
func subscribedPackKeys(user *types.User, guild *types.Guild) []string {
	keys := append([]string{}, user.StickerPacks...)
	if guild != nil {
		keys = append(keys, guild.StickerPacks...)
	}
	seen := make(map[string]struct{}, len(keys))
	deduped := keys[:0]
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, key)
	}
	return deduped
}
