package karma

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// dailyActionLimits caps how many times per day an action can earn karma.
// Actions not listed here are uncapped.
var dailyActionLimits = map[ActionType]int{
	ActionDailyLogin: 1,
	ActionBestAnswer: 3,
}

const defaultLeaderboardLimit = 10

// service implements the Service interface
type service struct {
	repo     Repository
	cache    *redis.Client
	hub      *Hub
	cacheTTL time.Duration
}

// NewService creates a new karma service. cache and hub may be nil; the
// leaderboard then reads straight from the store and no feed events are sent.
func NewService(repo Repository, cache *redis.Client, hub *Hub, cacheTTL time.Duration) Service {
	return &service{
		repo:     repo,
		cache:    cache,
		hub:      hub,
		cacheTTL: cacheTTL,
	}
}

func (s *service) Award(ctx context.Context, input AwardInput) (*Transaction, error) {
	if !input.ActionType.Valid() {
		return nil, ErrInvalidAction
	}

	if limit, ok := dailyActionLimits[input.ActionType]; ok {
		today, err := s.repo.GetUserActionsToday(ctx, input.User.ID, input.ActionType, time.Now().UTC())
		if err != nil {
			return nil, err
		}
		if len(today) >= limit {
			return nil, ErrDailyLimitReached
		}
	}

	tx, err := s.repo.CreateTransaction(ctx, CreateTransaction{
		User:       input.User,
		Points:     input.Points,
		ActionType: input.ActionType,
		Domain:     input.Domain,
		Metadata:   input.Metadata,
	})
	if err != nil {
		return nil, err
	}

	if s.hub != nil {
		s.hub.BroadcastAwarded(ctx, tx)
	}

	log.Info().
		Str("user_id", tx.User.ID).
		Float64("points", tx.Points).
		Str("action_type", string(tx.ActionType)).
		Str("domain", tx.Domain).
		Msg("karma awarded")

	return tx, nil
}

func (s *service) TotalKarma(ctx context.Context, userID string, dates DateRange) (float64, error) {
	return s.repo.GetUserKarma(ctx, userID, dates)
}

func (s *service) DomainKarma(ctx context.Context, userID, domain string, dates DateRange) (float64, error) {
	return s.repo.GetUserKarmaByDomain(ctx, userID, domain, dates)
}

func (s *service) History(ctx context.Context, userID string, dates DateRange) ([]Transaction, error) {
	return s.repo.GetUserActions(ctx, userID, dates)
}

func (s *service) HistoryByDomain(ctx context.Context, userID, domain string, dates DateRange) ([]Transaction, error) {
	return s.repo.GetUserActionsByDomain(ctx, userID, domain, dates)
}

func (s *service) ActionsToday(ctx context.Context, userID string, action ActionType, day time.Time) ([]Transaction, error) {
	if !action.Valid() {
		return nil, ErrInvalidAction
	}
	return s.repo.GetUserActionsToday(ctx, userID, action, day)
}

// Leaderboard serves top users from a short-lived Redis cache when available.
// The store layer itself stays cache-free; cache failures fall through to the
// store and never surface to the caller.
func (s *service) Leaderboard(ctx context.Context, limit int, domain string) ([]UserKarmaTotal, error) {
	if limit <= 0 {
		return []UserKarmaTotal{}, nil
	}

	key := leaderboardCacheKey(limit, domain)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key).Bytes(); err == nil {
			var totals []UserKarmaTotal
			if err := json.Unmarshal(cached, &totals); err == nil {
				return totals, nil
			}
		}
	}

	totals, err := s.repo.GetTopUsers(ctx, limit, domain)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if encoded, err := json.Marshal(totals); err == nil {
			if err := s.cache.Set(ctx, key, encoded, s.cacheTTL).Err(); err != nil {
				log.Debug().Err(err).Str("key", key).Msg("leaderboard cache write failed")
			}
		}
	}

	return totals, nil
}

func leaderboardCacheKey(limit int, domain string) string {
	if domain == "" {
		domain = "_all"
	}
	return fmt.Sprintf("karma:top:%s:%d", domain, limit)
}
