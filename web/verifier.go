package web

import (
	"context"
	"net/http"

	"github.com/disgoorg/json"
	"github.com/disgoorg/snowflake/v2"

	"sticker-bot/errs"
)

const discordIdentityURL = "https://discord.com/api/v10/users/@me"

// DiscordVerifier resolves OAuth bearer tokens handed out by the website by
// asking the platform who they belong to.
type DiscordVerifier struct {
	HTTPClient *http.Client
}

func (v *DiscordVerifier) VerifyToken(ctx context.Context, token string) (snowflake.ID, error) {
	rq, err := http.NewRequestWithContext(ctx, http.MethodGet, discordIdentityURL, nil)
	if err != nil {
		return 0, err
	}
	rq.Header.Set("Authorization", "Bearer "+token)
	rs, err := v.HTTPClient.Do(rq)
	if err != nil {
		return 0, errs.Wrap(errs.CodeUpstream, "identity lookup failed", err)
	}
	defer rs.Body.Close()
	if rs.StatusCode != http.StatusOK {
		return 0, errs.New(errs.CodeUnauthorized, "token rejected by the platform")
	}
	var identity struct {
		ID snowflake.ID `json:"id"`
	}
	if err := json.NewDecoder(rs.Body).Decode(&identity); err != nil {
		return 0, errs.Wrap(errs.CodeUpstream, "identity lookup returned an unreadable response", err)
	}
	return identity.ID, nil
}
