package db

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/disgoorg/snowflake/v2"

	"sticker-bot/errs"
	"sticker-bot/types"
)

// Memory keeps all documents in process. It backs tests and tokenless local
// runs; the semantics mirror the Postgres store document for document.
type Memory struct {
	mu     sync.RWMutex
	packs  map[string]types.StickerPack
	users  map[snowflake.ID]types.User
	guilds map[snowflake.ID]types.Guild
}

func NewMemory() *Memory {
	return &Memory{
		packs:  make(map[string]types.StickerPack),
		users:  make(map[snowflake.ID]types.User),
		guilds: make(map[snowflake.ID]types.Guild),
	}
}

func (m *Memory) CreatePack(_ context.Context, pack *types.StickerPack) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.packs[pack.Key]; ok {
		return errs.Newf(errs.CodeConflict, "there is already a sticker pack with key %q", pack.Key)
	}
	m.packs[pack.Key] = copyPack(pack)
	return nil
}

func (m *Memory) Pack(_ context.Context, key string) (*types.StickerPack, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pack, ok := m.packs[key]
	if !ok {
		return nil, errs.New(errs.CodeNotFound, "sticker pack not found")
	}
	p := copyPack(&pack)
	return &p, nil
}

func (m *Memory) Packs(_ context.Context, query PackQuery) ([]types.StickerPack, error) {
	m.mu.RLock()
	packs := make([]types.StickerPack, 0, len(m.packs))
	search := strings.ToLower(query.Search)
	for key := range m.packs {
		pack := m.packs[key]
		if search != "" &&
			!strings.Contains(strings.ToLower(pack.Name), search) &&
			!strings.Contains(pack.Key, search) {
			continue
		}
		packs = append(packs, copyPack(&pack))
	}
	m.mu.RUnlock()

	switch query.Sort {
	case SortPopular:
		sort.Slice(packs, func(i, j int) bool { return packs[i].Subscribers > packs[j].Subscribers })
	case SortOldest:
		sort.Slice(packs, func(i, j int) bool { return packs[i].CreatedAt.Before(packs[j].CreatedAt) })
	default:
		sort.Slice(packs, func(i, j int) bool { return packs[i].CreatedAt.After(packs[j].CreatedAt) })
	}

	offset := 0
	if query.Page > 1 {
		offset = (query.Page - 1) * PacksPerPage
	}
	if offset >= len(packs) {
		return []types.StickerPack{}, nil
	}
	end := offset + PacksPerPage
	if end > len(packs) {
		end = len(packs)
	}
	return packs[offset:end], nil
}

func (m *Memory) PacksByKeys(_ context.Context, keys []string) ([]types.StickerPack, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	packs := make([]types.StickerPack, 0, len(keys))
	for _, key := range keys {
		if pack, ok := m.packs[key]; ok {
			packs = append(packs, copyPack(&pack))
		}
	}
	return packs, nil
}

func (m *Memory) SavePack(_ context.Context, pack *types.StickerPack) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.packs[pack.Key]; !ok {
		return errs.New(errs.CodeNotFound, "sticker pack not found")
	}
	m.packs[pack.Key] = copyPack(pack)
	return nil
}

func (m *Memory) User(_ context.Context, id snowflake.ID) (*types.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	if !ok {
		return nil, errs.New(errs.CodeNotFound, "user not found")
	}
	u := copyUser(&user)
	return &u, nil
}

func (m *Memory) Guild(_ context.Context, id snowflake.ID) (*types.Guild, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	guild, ok := m.guilds[id]
	if !ok {
		return nil, errs.New(errs.CodeNotFound, "guild not found")
	}
	g := copyGuild(&guild)
	return &g, nil
}

func (m *Memory) GetOrCreateUser(_ context.Context, id snowflake.ID, username string, avatarURL string) (*types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		user = *defaultUser(id, username, avatarURL)
	} else {
		user.Username = username
		user.AvatarURL = avatarURL
	}
	m.users[id] = user
	u := copyUser(&user)
	return &u, nil
}

func (m *Memory) GetOrCreateGuild(_ context.Context, id snowflake.ID) (*types.Guild, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	guild, ok := m.guilds[id]
	if !ok {
		guild = *defaultGuild(id)
		m.guilds[id] = guild
	}
	g := copyGuild(&guild)
	return &g, nil
}

func (m *Memory) SaveUser(_ context.Context, user *types.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return errs.New(errs.CodeNotFound, "user not found")
	}
	m.users[user.ID] = copyUser(user)
	return nil
}

func (m *Memory) SaveGuild(_ context.Context, guild *types.Guild) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.guilds[guild.ID]; !ok {
		return errs.New(errs.CodeNotFound, "guild not found")
	}
	m.guilds[guild.ID] = copyGuild(guild)
	return nil
}

// The copies keep callers from mutating stored documents through shared
// slices; a store write is the only way state changes.

func copyPack(pack *types.StickerPack) types.StickerPack {
	p := *pack
	p.Stickers = append([]types.Sticker{}, pack.Stickers...)
	return p
}

func copyUser(user *types.User) types.User {
	u := *user
	u.StickerPacks = append([]string{}, user.StickerPacks...)
	u.CustomStickers = append([]types.Sticker{}, user.CustomStickers...)
	return u
}

func copyGuild(guild *types.Guild) types.Guild {
	g := *guild
	g.StickerPacks = append([]string{}, guild.StickerPacks...)
	g.CustomStickers = append([]types.Sticker{}, guild.CustomStickers...)
	g.RecentStickers = append([]string{}, guild.RecentStickers...)
	return g
}
