package db

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sticker-bot/errs"
	"sticker-bot/types"
)

type MemorySuite struct {
	suite.Suite
	ctx   context.Context
	store *Memory
}

func TestMemorySuite(t *testing.T) {
	suite.Run(t, new(MemorySuite))
}

func (s *MemorySuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewMemory()
}

func (s *MemorySuite) TestPackLifecycle() {
	pack := &types.StickerPack{Key: "abc", Name: "Test", CreatedAt: time.Now()}
	s.Require().NoError(s.store.CreatePack(s.ctx, pack))

	s.True(errs.Is(s.store.CreatePack(s.ctx, pack), errs.CodeConflict))

	found, err := s.store.Pack(s.ctx, "abc")
	s.Require().NoError(err)
	s.Equal("Test", found.Name)

	found.Name = "Renamed"
	s.Require().NoError(s.store.SavePack(s.ctx, found))
	found, err = s.store.Pack(s.ctx, "abc")
	s.Require().NoError(err)
	s.Equal("Renamed", found.Name)

	_, err = s.store.Pack(s.ctx, "nope")
	s.True(errs.Is(err, errs.CodeNotFound))
	s.True(errs.Is(s.store.SavePack(s.ctx, &types.StickerPack{Key: "nope"}), errs.CodeNotFound))
}

func (s *MemorySuite) TestPackReadsAreIsolated() {
	s.Require().NoError(s.store.CreatePack(s.ctx, &types.StickerPack{
		Key:      "abc",
		Stickers: []types.Sticker{{Name: "wave"}},
	}))
	read, err := s.store.Pack(s.ctx, "abc")
	s.Require().NoError(err)
	read.Stickers[0].Uses = 99

	again, err := s.store.Pack(s.ctx, "abc")
	s.Require().NoError(err)
	s.Zero(again.Stickers[0].Uses, "mutating a read copy must not change the store")
}

func (s *MemorySuite) TestPackListing() {
	base := time.Now()
	for i := 0; i < 10; i++ {
		s.Require().NoError(s.store.CreatePack(s.ctx, &types.StickerPack{
			Key:         fmt.Sprintf("p%d", i),
			Name:        fmt.Sprintf("Pack %d", i),
			Subscribers: i,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}))
	}

	s.Run("newest first by default", func() {
		packs, err := s.store.Packs(s.ctx, PackQuery{})
		s.Require().NoError(err)
		s.Require().Len(packs, PacksPerPage)
		s.Equal("p9", packs[0].Key)
	})

	s.Run("popular sorts by subscribers", func() {
		packs, err := s.store.Packs(s.ctx, PackQuery{Sort: SortPopular})
		s.Require().NoError(err)
		s.Equal("p9", packs[0].Key)
		s.Equal(9, packs[0].Subscribers)
	})

	s.Run("oldest first", func() {
		packs, err := s.store.Packs(s.ctx, PackQuery{Sort: SortOldest})
		s.Require().NoError(err)
		s.Equal("p0", packs[0].Key)
	})

	s.Run("pagination", func() {
		packs, err := s.store.Packs(s.ctx, PackQuery{Page: 2})
		s.Require().NoError(err)
		s.Len(packs, 2)

		packs, err = s.store.Packs(s.ctx, PackQuery{Page: 5})
		s.Require().NoError(err)
		s.Empty(packs)
	})

	s.Run("search matches name and key literally", func() {
		packs, err := s.store.Packs(s.ctx, PackQuery{Search: "pack 3"})
		s.Require().NoError(err)
		s.Require().Len(packs, 1)
		s.Equal("p3", packs[0].Key)

		packs, err = s.store.Packs(s.ctx, PackQuery{Search: "p7"})
		s.Require().NoError(err)
		s.Require().Len(packs, 1)

		packs, err = s.store.Packs(s.ctx, PackQuery{Search: ".*"})
		s.Require().NoError(err)
		s.Empty(packs, "regex metacharacters must not match")
	})
}

func (s *MemorySuite) TestPacksByKeysKeepsRequestOrder() {
	for _, key := range []string{"aa", "bb", "cc"} {
		s.Require().NoError(s.store.CreatePack(s.ctx, &types.StickerPack{Key: key}))
	}
	packs, err := s.store.PacksByKeys(s.ctx, []string{"cc", "missing", "aa"})
	s.Require().NoError(err)
	s.Require().Len(packs, 2)
	s.Equal("cc", packs[0].Key)
	s.Equal("aa", packs[1].Key)
}

func (s *MemorySuite) TestGetOrCreateUser() {
	user, err := s.store.GetOrCreateUser(s.ctx, 1, "alice", "https://cdn.example/a.png")
	s.Require().NoError(err)
	s.Equal("alice", user.Username)
	s.Empty(user.StickerPacks)
	s.Empty(user.CustomStickers)

	// accumulate some state, then upsert again with new identity fields
	user.StickerPacks = []string{"abc"}
	user.CustomStickers = []types.Sticker{{Name: "grin"}}
	s.Require().NoError(s.store.SaveUser(s.ctx, user))

	user, err = s.store.GetOrCreateUser(s.ctx, 1, "alice2", "https://cdn.example/b.png")
	s.Require().NoError(err)
	s.Equal("alice2", user.Username)
	s.Equal([]string{"abc"}, user.StickerPacks, "accumulated state must survive the upsert")
	s.Len(user.CustomStickers, 1)
}

func (s *MemorySuite) TestGetOrCreateGuildDefaults() {
	guild, err := s.store.GetOrCreateGuild(s.ctx, 2)
	s.Require().NoError(err)
	s.Equal("$", guild.Prefix)
	s.Equal("Stickers Manager", guild.ManagerRole)
	s.True(guild.PersonalStickersAllowed)
	s.Empty(guild.RecentStickers)

	guild.Prefix = "!"
	guild.RecentStickers = []string{"abc-wave"}
	s.Require().NoError(s.store.SaveGuild(s.ctx, guild))

	guild, err = s.store.GetOrCreateGuild(s.ctx, 2)
	s.Require().NoError(err)
	s.Equal("!", guild.Prefix, "existing guild state must not be reset")
	s.Equal([]string{"abc-wave"}, guild.RecentStickers)
}

func (s *MemorySuite) TestMissingActors() {
	_, err := s.store.User(s.ctx, 42)
	s.True(errs.Is(err, errs.CodeNotFound))
	_, err = s.store.Guild(s.ctx, 42)
	s.True(errs.Is(err, errs.CodeNotFound))

	// saving never creates; actors only come to exist through getOrCreate
	err = s.store.SaveUser(s.ctx, &types.User{ID: 42})
	s.True(errs.Is(err, errs.CodeNotFound))
	err = s.store.SaveGuild(s.ctx, &types.Guild{ID: 42})
	s.True(errs.Is(err, errs.CodeNotFound))
}
