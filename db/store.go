package db

import (
	"context"

	"github.com/disgoorg/snowflake/v2"

	"sticker-bot/types"
)

// PacksPerPage is the page size of the pack listing endpoint.
const PacksPerPage = 8

const (
	SortPopular = "popular"
	SortNewest  = "newest"
	SortOldest  = "oldest"
)

// PackQuery narrows a pack listing. Search is a literal substring matched
// case-insensitively against pack names and keys.
type PackQuery struct {
	Page   int
	Sort   string
	Search string
}

// Store is the document store behind the pack service, the resolver and the
// bot. A pack document and an actor document are each their own atomic unit;
// multi-document updates are not transactional.
type Store interface {
	CreatePack(ctx context.Context, pack *types.StickerPack) error
	Pack(ctx context.Context, key string) (*types.StickerPack, error)
	Packs(ctx context.Context, query PackQuery) ([]types.StickerPack, error)
	PacksByKeys(ctx context.Context, keys []string) ([]types.StickerPack, error)
	SavePack(ctx context.Context, pack *types.StickerPack) error

	User(ctx context.Context, id snowflake.ID) (*types.User, error)
	Guild(ctx context.Context, id snowflake.ID) (*types.Guild, error)

	// GetOrCreateUser upserts the user document: on insert the defaults
	// apply, on an existing document only the identity fields are updated,
	// never the accumulated sticker/pack state.
	GetOrCreateUser(ctx context.Context, id snowflake.ID, username string, avatarURL string) (*types.User, error)
	GetOrCreateGuild(ctx context.Context, id snowflake.ID) (*types.Guild, error)

	SaveUser(ctx context.Context, user *types.User) error
	SaveGuild(ctx context.Context, guild *types.Guild) error
}

const (
	defaultGuildPrefix      = "$"
	defaultGuildManagerRole = "Stickers Manager"
)

func defaultUser(id snowflake.ID, username string, avatarURL string) *types.User {
	return &types.User{
		ID:             id,
		Username:       username,
		AvatarURL:      avatarURL,
		StickerPacks:   []string{},
		CustomStickers: []types.Sticker{},
	}
}

func defaultGuild(id snowflake.ID) *types.Guild {
	return &types.Guild{
		ID:                      id,
		Prefix:                  defaultGuildPrefix,
		ManagerRole:             defaultGuildManagerRole,
		PersonalStickersAllowed: true,
		StickerPacks:            []string{},
		CustomStickers:          []types.Sticker{},
		RecentStickers:          []string{},
	}
}
