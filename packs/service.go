// Package packs implements pack creation, the sticker mutation API and the
// subscription manager.
package packs

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/lmittmann/tint"

	"sticker-bot/cdn"
	"sticker-bot/db"
	"sticker-bot/errs"
	"sticker-bot/types"
)

var (
	packKeyRegex     = regexp.MustCompile(`^[a-z0-9]+$`)
	stickerNameRegex = regexp.MustCompile(`^:?-?[a-z0-9]+:?$`)
)

const (
	packKeyMaxLen     = 6
	packNameMaxLen    = 60
	stickerNameMaxLen = 20
)

// Uploader is the CDN collaborator surface the service needs.
type Uploader interface {
	UploadImage(ctx context.Context, keyHint string, upload cdn.Upload) (string, error)
	DeleteImage(ctx context.Context, imageURL string) error
}

// GuildAuthorizer answers whether a user may manage a guild's pack
// subscriptions, either through the pack manager role or the platform's
// generic guild-manager permission.
type GuildAuthorizer interface {
	CanManageStickers(ctx context.Context, guild *types.Guild, userID snowflake.ID) bool
}

type Service struct {
	store db.Store
	cdn   Uploader
	auth  GuildAuthorizer
}

func NewService(store db.Store, uploader Uploader, auth GuildAuthorizer) *Service {
	return &Service{
		store: store,
		cdn:   uploader,
		auth:  auth,
	}
}

// CreatePack validates and stores a new, empty pack.
func (s *Service) CreatePack(ctx context.Context, key string, name string, creatorID snowflake.ID) (*types.StickerPack, error) {
	if key == "" || name == "" {
		return nil, errs.New(errs.CodeValidation, "pack key and name are required")
	}
	if !packKeyRegex.MatchString(key) {
		return nil, errs.New(errs.CodeValidation, "pack key must contain lowercase letters and numbers only")
	}
	if len(key) > packKeyMaxLen {
		return nil, errs.Newf(errs.CodeValidation, "pack key cannot be longer than %d characters", packKeyMaxLen)
	}
	if len(name) > packNameMaxLen {
		return nil, errs.Newf(errs.CodeValidation, "pack name cannot be longer than %d characters", packNameMaxLen)
	}
	pack := &types.StickerPack{
		Key:       key,
		Name:      name,
		CreatorID: creatorID,
		Stickers:  []types.Sticker{},
		CreatedAt: time.Now(),
	}
	if err := s.store.CreatePack(ctx, pack); err != nil {
		return nil, err
	}
	return pack, nil
}

// AddSticker validates, uploads the image and only then persists the new
// sticker at the front of the pack. An upload failure leaves the pack
// untouched.
func (s *Service) AddSticker(ctx context.Context, packKey string, name string, upload cdn.Upload, via types.CreatedVia, requesterID snowflake.ID) (*types.Sticker, error) {
	normalized, err := normalizeStickerName(name)
	if err != nil {
		return nil, err
	}
	if len(upload.Bytes) == 0 && upload.RemoteURL == "" {
		return nil, errs.New(errs.CodeValidation, "a sticker image or url is required")
	}
	pack, err := s.store.Pack(ctx, packKey)
	if err != nil {
		return nil, err
	}
	if requesterID != pack.CreatorID {
		return nil, errs.New(errs.CodeUnauthorized, "only the pack creator can add stickers")
	}
	if _, ok := pack.Sticker(normalized); ok {
		return nil, errs.Newf(errs.CodeConflict, "the pack already has a sticker named %q", normalized)
	}
	if len(pack.Stickers) >= types.PackStickerLimit {
		return nil, errs.Newf(errs.CodeCapacity, "the pack has reached the maximum amount of stickers (%d)", types.PackStickerLimit)
	}

	url, err := s.cdn.UploadImage(ctx, uploadKeyHint(pack.Key, normalized), upload)
	if err != nil {
		return nil, err
	}

	sticker := types.Sticker{
		Name:       normalized,
		URL:        url,
		CreatedVia: via,
		CreatorID:  requesterID,
		GroupID:    pack.Key,
	}
	pack.PrependSticker(sticker)
	if err := s.store.SavePack(ctx, pack); err != nil {
		return nil, err
	}
	return &sticker, nil
}

// RemoveSticker drops a sticker from the pack. The CDN deletion is
// fire-and-forget; its failure never blocks the removal.
func (s *Service) RemoveSticker(ctx context.Context, packKey string, stickerName string, requesterID snowflake.ID) error {
	pack, err := s.store.Pack(ctx, packKey)
	if err != nil {
		return err
	}
	if requesterID != pack.CreatorID {
		return errs.New(errs.CodeUnauthorized, "only the pack creator can remove stickers")
	}
	removed, ok := pack.RemoveSticker(stickerName)
	if !ok {
		return errs.Newf(errs.CodeNotFound, "the pack does not have a sticker named %q", stickerName)
	}
	if err := s.cdn.DeleteImage(ctx, removed.URL); err != nil {
		slog.Warn("packs: error while deleting a sticker image",
			slog.String("pack.key", packKey),
			slog.String("sticker.name", stickerName),
			tint.Err(err))
	}
	return s.store.SavePack(ctx, pack)
}

// IncrementUse bumps the use counter of a pack sticker. Service-to-service
// call, no authorization.
func (s *Service) IncrementUse(ctx context.Context, packKey string, stickerName string) (*types.Sticker, error) {
	pack, err := s.store.Pack(ctx, packKey)
	if err != nil {
		return nil, err
	}
	sticker, ok := pack.Sticker(stickerName)
	if !ok {
		return nil, errs.Newf(errs.CodeNotFound, "the pack does not have a sticker named %q", stickerName)
	}
	sticker.Uses++
	if err := s.store.SavePack(ctx, pack); err != nil {
		return nil, err
	}
	return sticker, nil
}

// AddUserSticker adds a personal sticker to the user's custom list.
func (s *Service) AddUserSticker(ctx context.Context, user *types.User, name string, upload cdn.Upload, via types.CreatedVia) (*types.Sticker, error) {
	sticker, err := s.addCustomSticker(ctx, &user.CustomStickers, fmt.Sprintf("user-%s", user.ID), name, upload, via, user.ID)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	return sticker, nil
}

// AddGuildSticker adds a custom sticker owned by the guild itself.
func (s *Service) AddGuildSticker(ctx context.Context, guild *types.Guild, name string, upload cdn.Upload, via types.CreatedVia, creatorID snowflake.ID) (*types.Sticker, error) {
	sticker, err := s.addCustomSticker(ctx, &guild.CustomStickers, fmt.Sprintf("guild-%s", guild.ID), name, upload, via, creatorID)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveGuild(ctx, guild); err != nil {
		return nil, err
	}
	return sticker, nil
}

func (s *Service) RemoveUserSticker(ctx context.Context, user *types.User, name string) error {
	if err := s.removeCustomSticker(ctx, &user.CustomStickers, name); err != nil {
		return err
	}
	return s.store.SaveUser(ctx, user)
}

func (s *Service) RemoveGuildSticker(ctx context.Context, guild *types.Guild, name string) error {
	if err := s.removeCustomSticker(ctx, &guild.CustomStickers, name); err != nil {
		return err
	}
	return s.store.SaveGuild(ctx, guild)
}

func (s *Service) addCustomSticker(ctx context.Context, stickers *[]types.Sticker, ownerHint string, name string, upload cdn.Upload, via types.CreatedVia, creatorID snowflake.ID) (*types.Sticker, error) {
	normalized, err := normalizeStickerName(name)
	if err != nil {
		return nil, err
	}
	if len(upload.Bytes) == 0 && upload.RemoteURL == "" {
		return nil, errs.New(errs.CodeValidation, "a sticker image or url is required")
	}
	for i := range *stickers {
		if (*stickers)[i].Name == normalized {
			return nil, errs.Newf(errs.CodeConflict, "there is already a sticker named %q", normalized)
		}
	}
	url, err := s.cdn.UploadImage(ctx, uploadKeyHint(ownerHint, normalized), upload)
	if err != nil {
		return nil, err
	}
	sticker := types.Sticker{
		Name:       normalized,
		URL:        url,
		CreatedVia: via,
		CreatorID:  creatorID,
	}
	*stickers = append([]types.Sticker{sticker}, *stickers...)
	return &sticker, nil
}

func (s *Service) removeCustomSticker(ctx context.Context, stickers *[]types.Sticker, name string) error {
	for i := range *stickers {
		if (*stickers)[i].Name == name {
			removed := (*stickers)[i]
			*stickers = append((*stickers)[:i:i], (*stickers)[i+1:]...)
			if err := s.cdn.DeleteImage(ctx, removed.URL); err != nil {
				slog.Warn("packs: error while deleting a custom sticker image", slog.String("sticker.name", name), tint.Err(err))
			}
			return nil
		}
	}
	return errs.Newf(errs.CodeNotFound, "there is no sticker named %q", name)
}

// normalizeStickerName validates the raw name before any upload happens and
// strips the shortcode decoration.
func normalizeStickerName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if !stickerNameRegex.MatchString(name) {
		return "", errs.New(errs.CodeValidation, "sticker name must contain lowercase letters and numbers only")
	}
	if len(name) > stickerNameMaxLen {
		return "", errs.Newf(errs.CodeValidation, "sticker name cannot be longer than %d characters", stickerNameMaxLen)
	}
	return strings.NewReplacer(":", "", "-", "").Replace(strings.ToLower(name)), nil
}

func uploadKeyHint(prefix string, name string) string {
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixMilli(), name)
}
