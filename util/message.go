package util

import (
	"github.com/disgoorg/disgo/discord"
)

// AuthorDisplayName resolves the caption name for a delivered sticker: the
// guild nickname when set, the username otherwise.
func AuthorDisplayName(message discord.Message) string {
	if message.Member != nil && message.Member.Nick != nil && *message.Member.Nick != "" {
		return *message.Member.Nick
	}
	return message.Author.Username
}
