package karma

import (
	"context"
	"time"
)

// AwardInput describes a karma award request from a trusted caller.
// How many points an action is worth is decided by the caller.
type AwardInput struct {
	User       UserRef
	Points     float64
	ActionType ActionType
	Domain     string
	Metadata   Metadata
}

// Service interface defines the karma service operations
type Service interface {
	// Award records a karma transaction after enforcing per-day action caps.
	// Returns ErrInvalidAction for unknown action types and
	// ErrDailyLimitReached when the action's daily cap is exhausted.
	Award(ctx context.Context, input AwardInput) (*Transaction, error)

	// TotalKarma returns the sum of a user's points, optionally date-bounded
	TotalKarma(ctx context.Context, userID string, dates DateRange) (float64, error)

	// DomainKarma returns the sum of a user's points within one domain
	DomainKarma(ctx context.Context, userID, domain string, dates DateRange) (float64, error)

	// History returns a user's transactions, most recent first
	History(ctx context.Context, userID string, dates DateRange) ([]Transaction, error)

	// HistoryByDomain returns a user's transactions within one domain
	HistoryByDomain(ctx context.Context, userID, domain string, dates DateRange) ([]Transaction, error)

	// ActionsToday returns a user's transactions of one action type within
	// the calendar day of the reference date
	ActionsToday(ctx context.Context, userID string, action ActionType, day time.Time) ([]Transaction, error)

	// Leaderboard returns the top users by summed points, optionally per domain
	Leaderboard(ctx context.Context, limit int, domain string) ([]UserKarmaTotal, error)
}
