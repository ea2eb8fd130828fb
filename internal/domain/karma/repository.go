package karma

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

type Repository interface {
	CreateTransaction(ctx context.Context, input CreateTransaction) (*Transaction, error)
	GetUserKarma(ctx context.Context, userID string, dates DateRange) (float64, error)
	GetUserKarmaByDomain(ctx context.Context, userID, domain string, dates DateRange) (float64, error)
	GetUserActions(ctx context.Context, userID string, dates DateRange) ([]Transaction, error)
	GetUserActionsByDomain(ctx context.Context, userID, domain string, dates DateRange) ([]Transaction, error)
	GetUserActionsToday(ctx context.Context, userID string, action ActionType, day time.Time) ([]Transaction, error)
	GetTopUsers(ctx context.Context, limit int, domain string) ([]UserKarmaTotal, error)
}

// KarmaRepository is the durable log of point-earning events. All mutation is
// creation-only; reads filter and aggregate over the karma_transactions table.
type KarmaRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *KarmaRepository {
	return &KarmaRepository{db: db}
}

// CreateTransaction stamps UTC timestamps, assigns an id and persists the row.
// The returned entity is fully populated; updated_at equals created_at.
func (r *KarmaRepository) CreateTransaction(ctx context.Context, input CreateTransaction) (*Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	now := time.Now().UTC()
	tx := &Transaction{
		ID:         uuid.New(),
		User:       input.User,
		Points:     input.Points,
		ActionType: input.ActionType,
		Domain:     input.Domain,
		Metadata:   input.Metadata,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err := r.db.ExecContext(ctx2, `
		INSERT INTO karma_transactions (
			id, user_id, user_snapshot, points, action_type, domain, metadata, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, tx.ID, tx.User.ID, tx.User, tx.Points, string(tx.ActionType), tx.Domain, tx.Metadata, tx.CreatedAt, tx.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: insert transaction", ErrStoreUnavailable)
	}

	return tx, nil
}

// GetUserKarma returns the sum of points for a user, optionally restricted to
// an inclusive created_at range. An empty matching set yields 0.
func (r *KarmaRepository) GetUserKarma(ctx context.Context, userID string, dates DateRange) (float64, error) {
	return r.sumPoints(ctx, userID, "", dates)
}

// GetUserKarmaByDomain is GetUserKarma with an exact-match domain filter.
func (r *KarmaRepository) GetUserKarmaByDomain(ctx context.Context, userID, domain string, dates DateRange) (float64, error) {
	return r.sumPoints(ctx, userID, domain, dates)
}

// GetUserActions returns a user's transactions, most recent first.
func (r *KarmaRepository) GetUserActions(ctx context.Context, userID string, dates DateRange) ([]Transaction, error) {
	return r.listActions(ctx, userID, "", dates)
}

// GetUserActionsByDomain is GetUserActions with an exact-match domain filter.
func (r *KarmaRepository) GetUserActionsByDomain(ctx context.Context, userID, domain string, dates DateRange) ([]Transaction, error) {
	return r.listActions(ctx, userID, domain, dates)
}

// GetUserActionsToday returns a user's transactions of one action type within
// the calendar day of the reference date: [00:00:00.000000, 23:59:59.999999],
// both inclusive. Callers use this to enforce per-day award policies.
func (r *KarmaRepository) GetUserActionsToday(ctx context.Context, userID string, action ActionType, day time.Time) ([]Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	y, m, d := day.Date()
	startOfDay := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	endOfDay := startOfDay.Add(24*time.Hour - time.Microsecond)

	transactions := make([]Transaction, 0)
	err := r.db.SelectContext(ctx2, &transactions, `
		SELECT id, user_snapshot, points, action_type, domain, metadata, created_at, updated_at
		FROM karma_transactions
		WHERE user_id = $1 AND action_type = $2 AND created_at >= $3 AND created_at <= $4
	`, userID, string(action), startOfDay, endOfDay)
	if err != nil {
		return nil, r.mapReadError(err, "list actions for day")
	}

	return transactions, nil
}

// GetTopUsers groups transactions by user, sums points per group and returns
// the top groups by total, optionally restricted to one domain. The user
// snapshot comes from each user's chronologically earliest transaction, and
// equal totals are ordered by user_id ascending, so results are deterministic.
// A non-positive limit yields an empty slice without touching the store.
func (r *KarmaRepository) GetTopUsers(ctx context.Context, limit int, domain string) ([]UserKarmaTotal, error) {
	if limit <= 0 {
		return []UserKarmaTotal{}, nil
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT user_id,
		       SUM(points) AS total_points,
		       (ARRAY_AGG(user_snapshot ORDER BY created_at ASC, id ASC))[1] AS user_snapshot
		FROM karma_transactions`
	args := make([]interface{}, 0, 2)
	idx := 1

	if domain != "" {
		query += fmt.Sprintf(" WHERE domain = $%d", idx)
		args = append(args, domain)
		idx++
	}

	query += fmt.Sprintf(" GROUP BY user_id ORDER BY total_points DESC, user_id ASC LIMIT $%d", idx)
	args = append(args, limit)

	totals := make([]UserKarmaTotal, 0)
	if err := r.db.SelectContext(ctx2, &totals, query, args...); err != nil {
		return nil, r.mapReadError(err, "top users")
	}

	return totals, nil
}

func (r *KarmaRepository) sumPoints(ctx context.Context, userID, domain string, dates DateRange) (float64, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT COALESCE(SUM(points), 0) FROM karma_transactions WHERE user_id = $1`
	args := []interface{}{userID}

	if domain != "" {
		query += " AND domain = $2"
		args = append(args, domain)
	}
	query, args = appendDateRange(query, args, dates)

	var total float64
	if err := r.db.GetContext(ctx2, &total, query, args...); err != nil {
		return 0, fmt.Errorf("%w: sum points", ErrStoreUnavailable)
	}

	return total, nil
}

func (r *KarmaRepository) listActions(ctx context.Context, userID, domain string, dates DateRange) ([]Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT id, user_snapshot, points, action_type, domain, metadata, created_at, updated_at
		FROM karma_transactions
		WHERE user_id = $1`
	args := []interface{}{userID}

	if domain != "" {
		query += " AND domain = $2"
		args = append(args, domain)
	}
	query, args = appendDateRange(query, args, dates)

	query += " ORDER BY created_at DESC"

	transactions := make([]Transaction, 0)
	if err := r.db.SelectContext(ctx2, &transactions, query, args...); err != nil {
		return nil, r.mapReadError(err, "list actions")
	}

	return transactions, nil
}

// appendDateRange adds inclusive created_at bounds to a WHERE clause.
func appendDateRange(query string, args []interface{}, dates DateRange) (string, []interface{}) {
	if dates.Start != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", len(args)+1)
		args = append(args, *dates.Start)
	}
	if dates.End != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", len(args)+1)
		args = append(args, *dates.End)
	}
	return query, args
}

// mapReadError keeps ErrMalformedRecord from row mapping intact and folds
// everything else into ErrStoreUnavailable.
func (r *KarmaRepository) mapReadError(err error, op string) error {
	if errors.Is(err, ErrMalformedRecord) {
		return err
	}
	return fmt.Errorf("%w: %s", ErrStoreUnavailable, op)
}
