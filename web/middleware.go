package web

import (
	"context"
	"net/http"
	"strings"

	"github.com/disgoorg/snowflake/v2"

	"sticker-bot/errs"
)

// TokenVerifier resolves a bearer token to the platform identity of the
// caller. Identity issuance itself is an external concern.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (snowflake.ID, error)
}

type contextKeyUserID struct{}

// UserID returns the authenticated caller, or zero when the request carried
// no identity.
func UserID(ctx context.Context) snowflake.ID {
	id, _ := ctx.Value(contextKeyUserID{}).(snowflake.ID)
	return id
}

// requireUser authenticates the request through the token verifier and puts
// the caller identity on the context.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeError(w, errs.New(errs.CodeUnauthorized, "missing bearer token"))
			return
		}
		userID, err := s.verifier.VerifyToken(r.Context(), token)
		if err != nil {
			writeError(w, errs.New(errs.CodeUnauthorized, "invalid bearer token"))
			return
		}
		ctx := context.WithValue(r.Context(), contextKeyUserID{}, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireService gates service-to-service endpoints behind the shared API
// token.
func (s *Server) requireService(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiToken == "" || r.Header.Get("Authorization") != s.apiToken {
			writeError(w, errs.New(errs.CodeUnauthorized, "invalid service token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
