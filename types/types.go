package types

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// PackStickerLimit is the maximum amount of stickers a single pack may hold.
const PackStickerLimit = 400

type CreatedVia string

const (
	CreatedViaWebsite     CreatedVia = "website"
	CreatedViaChatCommand CreatedVia = "chat-command"
)

// Sticker is owned by exactly one pack or one actor's custom list.
type Sticker struct {
	Name       string       `json:"name"`
	URL        string       `json:"url"`
	Uses       int          `json:"uses"`
	CreatedVia CreatedVia   `json:"createdVia"`
	CreatorID  snowflake.ID `json:"creatorId"`
	GroupID    string       `json:"groupId,omitempty"`
}

type StickerPack struct {
	Key         string       `json:"key"`
	Name        string       `json:"name"`
	CreatorID   snowflake.ID `json:"creatorId"`
	Subscribers int          `json:"subscribers"`
	Stickers    []Sticker    `json:"stickers"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// Sticker returns the pack sticker with the given name.
func (p *StickerPack) Sticker(name string) (*Sticker, bool) {
	for i := range p.Stickers {
		if p.Stickers[i].Name == name {
			return &p.Stickers[i], true
		}
	}
	return nil, false
}

// PrependSticker inserts a sticker at the front of the list, newest first.
func (p *StickerPack) PrependSticker(sticker Sticker) {
	p.Stickers = append([]Sticker{sticker}, p.Stickers...)
}

// RemoveSticker drops the named sticker and reports whether it was present.
func (p *StickerPack) RemoveSticker(name string) (Sticker, bool) {
	for i := range p.Stickers {
		if p.Stickers[i].Name == name {
			removed := p.Stickers[i]
			p.Stickers = append(p.Stickers[:i:i], p.Stickers[i+1:]...)
			return removed, true
		}
	}
	return Sticker{}, false
}

type User struct {
	ID             snowflake.ID `json:"id"`
	Username       string       `json:"username"`
	AvatarURL      string       `json:"avatarURL"`
	StickerPacks   []string     `json:"stickerPacks"`
	CustomStickers []Sticker    `json:"customStickers"`
}

type Guild struct {
	ID                      snowflake.ID `json:"id"`
	Prefix                  string       `json:"prefix"`
	ManagerRole             string       `json:"managerRole"`
	PersonalStickersAllowed bool         `json:"personalStickersAllowed"`
	StickerPacks            []string     `json:"stickerPacks"`
	CustomStickers          []Sticker    `json:"customStickers"`
	RecentStickers          []string     `json:"recentStickers"`
}

// SubscribedTo reports whether the guild's pack set contains the key.
func (g *Guild) SubscribedTo(key string) bool {
	return containsKey(g.StickerPacks, key)
}

// SubscribedTo reports whether the user's pack set contains the key.
func (u *User) SubscribedTo(key string) bool {
	return containsKey(u.StickerPacks, key)
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

// CustomSticker returns the actor-owned sticker with the given name.
func (u *User) CustomSticker(name string) (*Sticker, bool) {
	return findSticker(u.CustomStickers, name)
}

func (g *Guild) CustomSticker(name string) (*Sticker, bool) {
	return findSticker(g.CustomStickers, name)
}

func findSticker(stickers []Sticker, name string) (*Sticker, bool) {
	for i := range stickers {
		if stickers[i].Name == name {
			return &stickers[i], true
		}
	}
	return nil, false
}

type ActorType string

const (
	ActorTypeUser  ActorType = "user"
	ActorTypeGuild ActorType = "guild"
)

// SubscriptionRequest is one entry of a PATCH subscribers batch.
type SubscriptionRequest struct {
	Type       ActorType    `json:"type"`
	ID         snowflake.ID `json:"id"`
	Subscribed bool         `json:"subscribed"`
}

// SubscriptionResult mirrors its request and carries the per-entry outcome.
type SubscriptionResult struct {
	SubscriptionRequest
	SuccessfullyUpdated bool `json:"successfully_updated"`
}
