package internal

import (
	"os"

	"sticker-bot/resolver"
)

type Config struct {
	BotToken     string
	DatabaseURL  string
	ListenAddr   string
	CDNBaseURL   string
	CDNAPIKey    string
	APIToken     string
	ResolverMode resolver.Mode
}

// ConfigFromEnv reads the process configuration. An empty DATABASE_URL
// selects the in-memory store.
func ConfigFromEnv() *Config {
	listenAddr := os.Getenv("STICKERS_LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = ":8080"
	}
	return &Config{
		BotToken:     os.Getenv("STICKERS_BOT_TOKEN"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		ListenAddr:   listenAddr,
		CDNBaseURL:   os.Getenv("STICKERS_CDN_URL"),
		CDNAPIKey:    os.Getenv("STICKERS_CDN_KEY"),
		APIToken:     os.Getenv("STICKERS_API_TOKEN"),
		ResolverMode: resolver.ParseMode(os.Getenv("STICKERS_RESOLVER_MODE")),
	}
}
