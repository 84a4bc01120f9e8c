// Package web exposes the sticker-pack REST API.
package web

import (
	"io"
	"net/http"
	"strconv"

	"github.com/disgoorg/json"
	"github.com/disgoorg/snowflake/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sticker-bot/cdn"
	"sticker-bot/db"
	"sticker-bot/errs"
	"sticker-bot/metrics"
	"sticker-bot/packs"
	"sticker-bot/types"
)

// maxUploadSize bounds multipart sticker image uploads.
const maxUploadSize = 5 << 20

type Server struct {
	store    db.Store
	packs    *packs.Service
	auth     packs.GuildAuthorizer
	metrics  *metrics.Metrics
	verifier TokenVerifier
	apiToken string
}

func NewServer(store db.Store, packService *packs.Service, auth packs.GuildAuthorizer, m *metrics.Metrics, verifier TokenVerifier, apiToken string) *Server {
	return &Server{
		store:    store,
		packs:    packService,
		auth:     auth,
		metrics:  m,
		verifier: verifier,
		apiToken: apiToken,
	}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/api", func(r chi.Router) {
		r.Route("/packs", func(r chi.Router) {
			r.Get("/", s.handleListPacks)
			r.With(s.requireUser).Post("/", s.handleCreatePack)
			r.Route("/{key}", func(r chi.Router) {
				r.Get("/", s.handleGetPack)
				r.With(s.requireUser).Patch("/subscribers", s.handlePatchSubscribers)
				r.Route("/stickers", func(r chi.Router) {
					r.Get("/", s.handleGetPackStickers)
					r.With(s.requireUser).Post("/", s.handleAddSticker)
					r.Get("/{name}", s.handleGetSticker)
					r.With(s.requireService).Post("/{name}/uses", s.handleIncrementUses)
					r.With(s.requireUser).Delete("/{name}", s.handleRemoveSticker)
				})
			})
		})
		r.Route("/guilds/{guildID}", func(r chi.Router) {
			r.Get("/", s.handleGetGuild)
			r.With(s.requireUser).Patch("/", s.handlePatchGuild)
		})
	})
	return r
}

func (s *Server) handleListPacks(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	packList, err := s.store.Packs(r.Context(), db.PackQuery{
		Page:   page,
		Sort:   r.URL.Query().Get("sort"),
		Search: r.URL.Query().Get("search"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, packList)
}

func (s *Server) handleGetPack(w http.ResponseWriter, r *http.Request) {
	pack, err := s.store.Pack(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, pack)
}

func (s *Server) handleGetPackStickers(w http.ResponseWriter, r *http.Request) {
	pack, err := s.store.Pack(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, pack.Stickers)
}

func (s *Server) handleGetSticker(w http.ResponseWriter, r *http.Request) {
	pack, err := s.store.Pack(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, err)
		return
	}
	sticker, ok := pack.Sticker(chi.URLParam(r, "name"))
	if !ok {
		writeError(w, errs.New(errs.CodeNotFound, "the pack does not have a sticker with that name"))
		return
	}
	respondJSON(w, http.StatusOK, sticker)
}

func (s *Server) handleCreatePack(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Key  string `json:"key"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, errs.New(errs.CodeValidation, "invalid body data"))
		return
	}
	pack, err := s.packs.CreatePack(r.Context(), body.Key, body.Name, UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	s.metrics.PacksCreated.Inc()
	respondJSON(w, http.StatusCreated, pack)
}

// handleAddSticker accepts either a multipart upload (field "sticker") or a
// JSON body carrying a source URL.
func (s *Server) handleAddSticker(w http.ResponseWriter, r *http.Request) {
	var (
		name   string
		upload cdn.Upload
	)
	contentType := r.Header.Get("Content-Type")
	if contentType != "" && contentType != "application/json" {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			writeError(w, errs.New(errs.CodeValidation, "invalid multipart body"))
			return
		}
		name = r.FormValue("name")
		file, _, err := r.FormFile("sticker")
		if err == nil {
			defer file.Close()
			data, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
			if err != nil {
				writeError(w, errs.New(errs.CodeValidation, "unreadable sticker image"))
				return
			}
			upload.Bytes = data
		} else {
			upload.RemoteURL = r.FormValue("url")
		}
	} else {
		var body struct {
			Name string `json:"name"`
			URL  string `json:"url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, errs.New(errs.CodeValidation, "invalid body data"))
			return
		}
		name = body.Name
		upload.RemoteURL = body.URL
	}
	sticker, err := s.packs.AddSticker(r.Context(), chi.URLParam(r, "key"), name, upload, types.CreatedViaWebsite, UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, sticker)
}

func (s *Server) handleIncrementUses(w http.ResponseWriter, r *http.Request) {
	sticker, err := s.packs.IncrementUse(r.Context(), chi.URLParam(r, "key"), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sticker)
}

func (s *Server) handleRemoveSticker(w http.ResponseWriter, r *http.Request) {
	err := s.packs.RemoveSticker(r.Context(), chi.URLParam(r, "key"), chi.URLParam(r, "name"), UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePatchSubscribers applies a subscribe/unsubscribe batch. Every entry
// must carry a type, an id and a subscribed state; a malformed entry rejects
// the whole body before anything is applied.
func (s *Server) handlePatchSubscribers(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Subscriptions []struct {
			Type       *types.ActorType `json:"type"`
			ID         *snowflake.ID    `json:"id"`
			Subscribed *bool            `json:"subscribed"`
		} `json:"subscriptions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Subscriptions) == 0 {
		writeError(w, errs.New(errs.CodeValidation, "invalid body data"))
		return
	}
	requests := make([]types.SubscriptionRequest, len(body.Subscriptions))
	for i, entry := range body.Subscriptions {
		if entry.Type == nil || entry.ID == nil || entry.Subscribed == nil ||
			(*entry.Type != types.ActorTypeUser && *entry.Type != types.ActorTypeGuild) {
			writeError(w, errs.New(errs.CodeValidation, "every subscription entry needs a type, an id and a subscribed state"))
			return
		}
		requests[i] = types.SubscriptionRequest{Type: *entry.Type, ID: *entry.ID, Subscribed: *entry.Subscribed}
	}
	results, err := s.packs.ApplySubscriptions(r.Context(), chi.URLParam(r, "key"), UserID(r.Context()), requests)
	if err != nil {
		writeError(w, err)
		return
	}
	for _, result := range results {
		if result.SuccessfullyUpdated {
			s.metrics.SubscriptionUpdates.Inc()
		}
	}
	respondJSON(w, http.StatusMultiStatus, results)
}

func (s *Server) handleGetGuild(w http.ResponseWriter, r *http.Request) {
	guildID, err := snowflake.Parse(chi.URLParam(r, "guildID"))
	if err != nil {
		writeError(w, errs.New(errs.CodeValidation, "invalid guild id"))
		return
	}
	guild, err := s.store.Guild(r.Context(), guildID)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, guild)
}

// handlePatchGuild updates guild bot settings; the caller must be able to
// manage the guild.
func (s *Server) handlePatchGuild(w http.ResponseWriter, r *http.Request) {
	guildID, err := snowflake.Parse(chi.URLParam(r, "guildID"))
	if err != nil {
		writeError(w, errs.New(errs.CodeValidation, "invalid guild id"))
		return
	}
	var body struct {
		PersonalStickersAllowed *bool   `json:"personalStickersAllowed"`
		Prefix                  *string `json:"prefix"`
		ManagerRole             *string `json:"managerRole"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, errs.New(errs.CodeValidation, "invalid body data"))
		return
	}
	guild, err := s.store.Guild(r.Context(), guildID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !s.auth.CanManageStickers(r.Context(), guild, UserID(r.Context())) {
		writeError(w, errs.New(errs.CodeUnauthorized, "you must be able to manage the guild"))
		return
	}
	if body.PersonalStickersAllowed != nil {
		guild.PersonalStickersAllowed = *body.PersonalStickersAllowed
	}
	if body.Prefix != nil && *body.Prefix != "" {
		guild.Prefix = *body.Prefix
	}
	if body.ManagerRole != nil && *body.ManagerRole != "" {
		guild.ManagerRole = *body.ManagerRole
	}
	if err := s.store.SaveGuild(r.Context(), guild); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, guild)
}
