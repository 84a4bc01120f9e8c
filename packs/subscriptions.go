package packs

import (
	"context"
	"sync"

	"github.com/disgoorg/snowflake/v2"
	"golang.org/x/sync/errgroup"

	"sticker-bot/errs"
	"sticker-bot/types"
)

// ApplySubscriptions processes a subscribe/unsubscribe batch against one
// pack. Entries are independent: a missing or unauthorized actor is reported
// as not updated and never aborts the rest. Each mutated actor is persisted
// individually; the pack counter is persisted once at the end.
//
// The counter is read-modify-write over separate documents, so concurrent
// batches against the same pack can skew it. That weakness is inherited from
// the original data model and is bounded by the clamp at zero.
func (s *Service) ApplySubscriptions(ctx context.Context, packKey string, callerID snowflake.ID, requests []types.SubscriptionRequest) ([]types.SubscriptionResult, error) {
	pack, err := s.store.Pack(ctx, packKey)
	if err != nil {
		return nil, err
	}

	// one fetch per distinct actor; duplicate entries in a batch share the
	// document so the second one sees the first one's effect. The ID slices
	// are snapshotted up front: the goroutines write into the maps, so the
	// fan-out must not iterate them.
	var (
		userIDs  []snowflake.ID
		guildIDs []snowflake.ID
	)
	users := make(map[snowflake.ID]*types.User)
	guilds := make(map[snowflake.ID]*types.Guild)
	for _, request := range requests {
		switch request.Type {
		case types.ActorTypeUser:
			if _, seen := users[request.ID]; !seen {
				users[request.ID] = nil
				userIDs = append(userIDs, request.ID)
			}
		case types.ActorTypeGuild:
			if _, seen := guilds[request.ID]; !seen {
				guilds[request.ID] = nil
				guildIDs = append(guildIDs, request.ID)
			}
		}
	}
	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	for _, id := range userIDs {
		eg.Go(func() error {
			user, err := s.store.User(egCtx, id)
			if err != nil {
				if errs.Is(err, errs.CodeNotFound) {
					return nil
				}
				return err
			}
			mu.Lock()
			users[id] = user
			mu.Unlock()
			return nil
		})
	}
	for _, id := range guildIDs {
		eg.Go(func() error {
			guild, err := s.store.Guild(egCtx, id)
			if err != nil {
				if errs.Is(err, errs.CodeNotFound) {
					return nil
				}
				return err
			}
			mu.Lock()
			guilds[id] = guild
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	results := make([]types.SubscriptionResult, len(requests))
	for i, request := range requests {
		results[i] = types.SubscriptionResult{SubscriptionRequest: request}
		switch request.Type {
		case types.ActorTypeUser:
			user := users[request.ID]
			if user == nil || user.ID != callerID {
				continue
			}
			if s.applySubscription(&user.StickerPacks, pack, request.Subscribed) {
				if err := s.store.SaveUser(ctx, user); err != nil {
					return nil, err
				}
			}
			results[i].SuccessfullyUpdated = true
		case types.ActorTypeGuild:
			guild := guilds[request.ID]
			if guild == nil || !s.auth.CanManageStickers(ctx, guild, callerID) {
				continue
			}
			if s.applySubscription(&guild.StickerPacks, pack, request.Subscribed) {
				if err := s.store.SaveGuild(ctx, guild); err != nil {
					return nil, err
				}
			}
			results[i].SuccessfullyUpdated = true
		}
	}

	if err := s.store.SavePack(ctx, pack); err != nil {
		return nil, err
	}
	return results, nil
}

// applySubscription reconciles one actor's pack set with the requested state
// and moves the counter accordingly. Reports whether the actor changed; a
// request matching the current state is an idempotent no-op.
func (s *Service) applySubscription(packKeys *[]string, pack *types.StickerPack, subscribed bool) bool {
	already := false
	index := -1
	for i, key := range *packKeys {
		if key == pack.Key {
			already = true
			index = i
			break
		}
	}
	switch {
	case already && !subscribed:
		*packKeys = append((*packKeys)[:index:index], (*packKeys)[index+1:]...)
		pack.Subscribers--
		if pack.Subscribers < 0 {
			pack.Subscribers = 0
		}
		return true
	case !already && subscribed:
		*packKeys = append(*packKeys, pack.Key)
		pack.Subscribers++
		return true
	default:
		return false
	}
}
