package handlers

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/suite"

	"sticker-bot/cdn"
	"sticker-bot/db"
	"sticker-bot/internal"
	"sticker-bot/metrics"
	"sticker-bot/packs"
	"sticker-bot/resolver"
	"sticker-bot/types"
)

const (
	testAuthorID  snowflake.ID = 100
	testGuildID   snowflake.ID = 400
	testChannelID snowflake.ID = 600
	testMessageID snowflake.ID = 700
	managerRoleID snowflake.ID = 800
)

// the prometheus default registry rejects duplicate registration, so the
// suite shares one Metrics instance across all tests.
var testMetrics = metrics.New()

type fakeRest struct {
	rest.Rest
	created []discord.MessageCreate
	deleted []snowflake.ID
}

func (r *fakeRest) CreateMessage(_ snowflake.ID, message discord.MessageCreate, _ ...rest.RequestOpt) (*discord.Message, error) {
	r.created = append(r.created, message)
	return &discord.Message{}, nil
}

func (r *fakeRest) DeleteMessage(_ snowflake.ID, messageID snowflake.ID, _ ...rest.RequestOpt) error {
	r.deleted = append(r.deleted, messageID)
	return nil
}

type fakeCaches struct {
	cache.Caches
	roles map[snowflake.ID]discord.Role
}

func (c *fakeCaches) Role(_ snowflake.ID, roleID snowflake.ID) (discord.Role, bool) {
	role, ok := c.roles[roleID]
	return role, ok
}

type fakeUploader struct{}

func (u *fakeUploader) UploadImage(_ context.Context, keyHint string, _ cdn.Upload) (string, error) {
	return "https://cdn.example/" + keyHint + ".png", nil
}

func (u *fakeUploader) DeleteImage(context.Context, string) error { return nil }

type allowAll struct{}

func (allowAll) CanManageStickers(context.Context, *types.Guild, snowflake.ID) bool { return true }

type DispatchSuite struct {
	suite.Suite
	ctx     context.Context
	store   *db.Memory
	restAPI *fakeRest
	caches  *fakeCaches
	client  *bot.Client
	handler *Handler
	images  *httptest.Server
}

func TestDispatchSuite(t *testing.T) {
	suite.Run(t, new(DispatchSuite))
}

func (s *DispatchSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = db.NewMemory()
	s.images = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "missing") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("png bytes"))
	}))
	cdnClient := cdn.New(s.images.Client(), s.images.Client(), s.images.URL)
	s.handler = NewHandler(&internal.Bot{
		Store:    s.store,
		Packs:    packs.NewService(s.store, &fakeUploader{}, allowAll{}),
		Resolver: resolver.New(s.store, resolver.ModeNamespaced),
		CDN:      cdnClient,
		Metrics:  testMetrics,
	}, &internal.Config{})
	s.restAPI = &fakeRest{}
	s.caches = &fakeCaches{roles: map[snowflake.ID]discord.Role{}}
	s.client = &bot.Client{Rest: s.restAPI, Caches: s.caches}
}

func (s *DispatchSuite) TearDownTest() {
	s.images.Close()
}

func (s *DispatchSuite) guildMessage(content string, roleIDs ...snowflake.ID) *events.MessageCreate {
	guildID := testGuildID
	var member *discord.Member
	if len(roleIDs) > 0 {
		member = &discord.Member{RoleIDs: roleIDs}
	}
	return &events.MessageCreate{GenericMessage: &events.GenericMessage{
		GenericEvent: events.NewGenericEvent(s.client, 0, 0),
		MessageID:    testMessageID,
		ChannelID:    testChannelID,
		GuildID:      &guildID,
		Message: discord.Message{
			ID:        testMessageID,
			ChannelID: testChannelID,
			Content:   content,
			Author:    discord.User{ID: testAuthorID, Username: "tester"},
			Member:    member,
		},
	}}
}

func (s *DispatchSuite) directMessage(content string) *events.MessageCreate {
	return &events.MessageCreate{GenericMessage: &events.GenericMessage{
		GenericEvent: events.NewGenericEvent(s.client, 0, 0),
		MessageID:    testMessageID,
		ChannelID:    testChannelID,
		Message: discord.Message{
			ID:        testMessageID,
			ChannelID: testChannelID,
			Content:   content,
			Author:    discord.User{ID: testAuthorID, Username: "tester"},
		},
	}}
}

func (s *DispatchSuite) TestGuildCommandDispatch() {
	s.handler.OnMessageCreate(s.guildMessage("$help"))

	s.Require().Len(s.restAPI.created, 1)
	s.Contains(s.restAPI.created[0].Content, "Commands:")
	s.Contains(s.restAPI.created[0].Content, "$stickers")
}

func (s *DispatchSuite) TestManagerGate() {
	s.caches.roles[managerRoleID] = discord.Role{ID: managerRoleID, Name: "Stickers Manager"}

	s.handler.OnMessageCreate(s.guildMessage("$setprefix !"))
	s.Require().Len(s.restAPI.created, 1)
	s.Contains(s.restAPI.created[0].Content, "**Stickers Manager**")

	guild, err := s.store.Guild(s.ctx, testGuildID)
	s.Require().NoError(err)
	s.Equal("$", guild.Prefix, "a gated command must not change anything")

	s.handler.OnMessageCreate(s.guildMessage("$setprefix !", managerRoleID))
	guild, err = s.store.Guild(s.ctx, testGuildID)
	s.Require().NoError(err)
	s.Equal("!", guild.Prefix)
}

func (s *DispatchSuite) TestManageServerPermissionCountsAsManager() {
	s.caches.roles[managerRoleID] = discord.Role{ID: managerRoleID, Name: "Moderators", Permissions: discord.PermissionManageGuild}

	s.handler.OnMessageCreate(s.guildMessage("$setrole Sticker Admins", managerRoleID))

	guild, err := s.store.Guild(s.ctx, testGuildID)
	s.Require().NoError(err)
	s.Equal("Sticker Admins", guild.ManagerRole)
}

func (s *DispatchSuite) TestUnknownCommandIsASilentMiss() {
	s.handler.OnMessageCreate(s.guildMessage("$nosuchcommand"))
	s.Empty(s.restAPI.created)
	s.Empty(s.restAPI.deleted)
}

func (s *DispatchSuite) TestDirectMessageRouting() {
	// unprefixed commands work in DMs
	s.handler.OnMessageCreate(s.directMessage("help"))
	s.Require().Len(s.restAPI.created, 1)
	s.Contains(s.restAPI.created[0].Content, "Commands:")

	// guild-bound commands do not
	s.restAPI.created = nil
	s.handler.OnMessageCreate(s.directMessage("setprefix !"))
	s.Empty(s.restAPI.created)
}

func (s *DispatchSuite) TestBotAuthorsAreIgnored() {
	event := s.guildMessage("$help")
	event.Message.Author.Bot = true
	s.handler.OnMessageCreate(event)
	s.Empty(s.restAPI.created)
}

func (s *DispatchSuite) TestGuildStickerDelivery() {
	guild, err := s.store.GetOrCreateGuild(s.ctx, testGuildID)
	s.Require().NoError(err)
	guild.CustomStickers = []types.Sticker{{Name: "party", URL: s.images.URL + "/party.png"}}
	s.Require().NoError(s.store.SaveGuild(s.ctx, guild))

	s.handler.OnMessageCreate(s.guildMessage(":party:"))

	s.Require().Len(s.restAPI.created, 1)
	sent := s.restAPI.created[0]
	s.Equal("**tester:**", sent.Content)
	s.Require().Len(sent.Files, 1)
	s.Equal("party.png", sent.Files[0].Name)
	s.Equal([]snowflake.ID{testMessageID}, s.restAPI.deleted, "the trigger message is removed in guilds")

	guild, err = s.store.Guild(s.ctx, testGuildID)
	s.Require().NoError(err)
	s.Equal(1, guild.CustomStickers[0].Uses)
	s.Equal([]string{"party"}, guild.RecentStickers)
}

func (s *DispatchSuite) TestPackStickerDeliveryPersistsPackAndRecents() {
	_, err := s.store.GetOrCreateGuild(s.ctx, testGuildID)
	s.Require().NoError(err)
	user, err := s.store.GetOrCreateUser(s.ctx, testAuthorID, "tester", "")
	s.Require().NoError(err)
	user.StickerPacks = []string{"abc"}
	s.Require().NoError(s.store.SaveUser(s.ctx, user))
	s.Require().NoError(s.store.CreatePack(s.ctx, &types.StickerPack{
		Key:      "abc",
		Name:     "Alphabet",
		Stickers: []types.Sticker{{Name: "wave", URL: s.images.URL + "/wave.png"}},
	}))

	s.handler.OnMessageCreate(s.guildMessage(":abc-wave:"))

	s.Require().Len(s.restAPI.created, 1)
	s.Require().Len(s.restAPI.created[0].Files, 1)
	s.Equal("abc-wave.png", s.restAPI.created[0].Files[0].Name)

	pack, err := s.store.Pack(s.ctx, "abc")
	s.Require().NoError(err)
	s.Equal(1, pack.Stickers[0].Uses, "the use counter lives on the pack document")

	guild, err := s.store.Guild(s.ctx, testGuildID)
	s.Require().NoError(err)
	s.Equal([]string{"abc-wave"}, guild.RecentStickers)
}

func (s *DispatchSuite) TestPersonalStickerSkipsRecents() {
	_, err := s.store.GetOrCreateGuild(s.ctx, testGuildID)
	s.Require().NoError(err)
	user, err := s.store.GetOrCreateUser(s.ctx, testAuthorID, "tester", "")
	s.Require().NoError(err)
	user.CustomStickers = []types.Sticker{{Name: "grin", URL: s.images.URL + "/grin.png"}}
	s.Require().NoError(s.store.SaveUser(s.ctx, user))

	s.handler.OnMessageCreate(s.guildMessage(":-grin:"))

	s.Require().Len(s.restAPI.created, 1)

	user, err = s.store.User(s.ctx, testAuthorID)
	s.Require().NoError(err)
	s.Equal(1, user.CustomStickers[0].Uses, "the use counter lives on the user document")

	guild, err := s.store.Guild(s.ctx, testGuildID)
	s.Require().NoError(err)
	s.Empty(guild.RecentStickers, "personal stickers never enter the guild ring")
}

func (s *DispatchSuite) TestFailedImageDownloadIsLogged() {
	guild, err := s.store.GetOrCreateGuild(s.ctx, testGuildID)
	s.Require().NoError(err)
	guild.CustomStickers = []types.Sticker{{Name: "gone", URL: s.images.URL + "/missing.png"}}
	s.Require().NoError(s.store.SaveGuild(s.ctx, guild))

	var logs bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	defer slog.SetDefault(previous)

	s.handler.OnMessageCreate(s.guildMessage(":gone:"))

	s.Empty(s.restAPI.created, "nothing is sent without the image")
	s.Contains(logs.String(), "unable to download a sticker image")

	guild, err = s.store.Guild(s.ctx, testGuildID)
	s.Require().NoError(err)
	s.Equal(1, guild.CustomStickers[0].Uses, "the use is persisted before delivery")
}
