package resolver_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"sticker-bot/db"
	"sticker-bot/resolver"
	"sticker-bot/types"
)

type ResolverSuite struct {
	suite.Suite
	ctx   context.Context
	store *db.Memory
	user  *types.User
	guild *types.Guild
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = db.NewMemory()
	s.Require().NoError(s.store.CreatePack(s.ctx, &types.StickerPack{
		Key:  "abc",
		Name: "Test Pack",
		Stickers: []types.Sticker{
			{Name: "wave", URL: "https://cdn.example/wave.png", GroupID: "abc"},
			{Name: "grin", URL: "https://cdn.example/pack-grin.png", GroupID: "abc"},
		},
	}))
	s.user = &types.User{
		ID:           1,
		StickerPacks: []string{"abc"},
		CustomStickers: []types.Sticker{
			{Name: "grin", URL: "https://cdn.example/user-grin.png"},
		},
	}
	s.guild = &types.Guild{
		ID:                      2,
		PersonalStickersAllowed: true,
		StickerPacks:            []string{},
		CustomStickers: []types.Sticker{
			{Name: "party", URL: "https://cdn.example/party.png"},
		},
	}
}

func (s *ResolverSuite) resolve(mode resolver.Mode, raw string) *resolver.Match {
	match, err := resolver.New(s.store, mode).Resolve(s.ctx, raw, s.user, s.guild)
	s.Require().NoError(err)
	return match
}

func (s *ResolverSuite) TestNamespacedPackSticker() {
	match := s.resolve(resolver.ModeNamespaced, ":abc-wave:")
	s.Require().NotNil(match)
	s.Equal("wave", match.Sticker.Name)
	s.Equal(resolver.OwnerPack, match.OwnerKind)
	s.Equal("abc", match.Pack.Key)
	s.Equal("abc-wave", match.Command)
	s.False(match.Personal())
}

func (s *ResolverSuite) TestNamespacedMissIsSilent() {
	s.Nil(s.resolve(resolver.ModeNamespaced, "abc-missing"))

	// a miss must leave all state untouched
	pack, err := s.store.Pack(s.ctx, "abc")
	s.Require().NoError(err)
	for _, sticker := range pack.Stickers {
		s.Zero(sticker.Uses)
	}
}

func (s *ResolverSuite) TestNamespacedRequiresSubscription() {
	s.user.StickerPacks = []string{}
	s.Nil(s.resolve(resolver.ModeNamespaced, "abc-wave"))

	// a guild subscription is just as good
	s.guild.StickerPacks = []string{"abc"}
	s.NotNil(s.resolve(resolver.ModeNamespaced, "abc-wave"))
}

func (s *ResolverSuite) TestNamespacedPersonalSticker() {
	match := s.resolve(resolver.ModeNamespaced, ":-grin:")
	s.Require().NotNil(match)
	s.Equal(resolver.OwnerUser, match.OwnerKind)
	s.True(match.Personal())
	s.Equal("https://cdn.example/user-grin.png", match.Sticker.URL)
}

func (s *ResolverSuite) TestNamespacedGuildSticker() {
	match := s.resolve(resolver.ModeNamespaced, "party")
	s.Require().NotNil(match)
	s.Equal(resolver.OwnerGuild, match.OwnerKind)
	s.Equal(s.guild.ID, match.Guild.ID)
}

func (s *ResolverSuite) TestGuildStickerRequiresGuildContext() {
	match, err := resolver.New(s.store, resolver.ModeNamespaced).Resolve(s.ctx, "party", s.user, nil)
	s.Require().NoError(err)
	s.Nil(match)
}

func (s *ResolverSuite) TestPersonalStickersCanBeDisallowed() {
	s.guild.PersonalStickersAllowed = false
	s.Nil(s.resolve(resolver.ModeNamespaced, "-grin"))

	// outside a guild the toggle does not apply
	match, err := resolver.New(s.store, resolver.ModeNamespaced).Resolve(s.ctx, "-grin", s.user, nil)
	s.Require().NoError(err)
	s.NotNil(match)
}

func (s *ResolverSuite) TestFlattenedComposedNamesDoNotCollide() {
	// user sticker "grin" and pack sticker "grin" compose differently
	personal := s.resolve(resolver.ModeFlattened, "-grin")
	s.Require().NotNil(personal)
	s.Equal(resolver.OwnerUser, personal.OwnerKind)
	s.Equal("https://cdn.example/user-grin.png", personal.Sticker.URL)

	packMatch := s.resolve(resolver.ModeFlattened, "abc-grin")
	s.Require().NotNil(packMatch)
	s.Equal(resolver.OwnerPack, packMatch.OwnerKind)
	s.Equal("https://cdn.example/pack-grin.png", packMatch.Sticker.URL)
}

func (s *ResolverSuite) TestFlattenedGuildSticker() {
	match := s.resolve(resolver.ModeFlattened, ":party:")
	s.Require().NotNil(match)
	s.Equal(resolver.OwnerGuild, match.OwnerKind)
}

func (s *ResolverSuite) TestNonShortcodeMessagesAreIgnored() {
	s.Nil(s.resolve(resolver.ModeNamespaced, "hello there"))
	s.Nil(s.resolve(resolver.ModeFlattened, "this is a normal message"))
	s.Nil(s.resolve(resolver.ModeNamespaced, "   "))
}

func (s *ResolverSuite) TestParseMode() {
	s.Equal(resolver.ModeFlattened, resolver.ParseMode("flattened"))
	s.Equal(resolver.ModeNamespaced, resolver.ParseMode("namespaced"))
	s.Equal(resolver.ModeNamespaced, resolver.ParseMode(""))
	s.Equal(resolver.ModeNamespaced, resolver.ParseMode("bogus"))
}
