package internal

import (
	"sticker-bot/cdn"
	"sticker-bot/db"
	"sticker-bot/metrics"
	"sticker-bot/packs"
	"sticker-bot/resolver"
)

// Bot bundles the dependencies shared by the chat surface and the REST
// surface. Everything is injected at startup; there is no ambient state.
type Bot struct {
	Store    db.Store
	Packs    *packs.Service
	Resolver *resolver.Resolver
	CDN      *cdn.Client
	Metrics  *metrics.Metrics
}
