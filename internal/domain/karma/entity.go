package karma

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ActionType identifies the kind of activity that produced a transaction.
type ActionType string

const (
	ActionPostCreated      ActionType = "post_created"
	ActionCommentCreated   ActionType = "comment_created"
	ActionUpvoteReceived   ActionType = "upvote_received"
	ActionDownvoteReceived ActionType = "downvote_received"
	ActionBestAnswer       ActionType = "best_answer"
	ActionDailyLogin       ActionType = "daily_login"
)

// Valid reports whether the action type belongs to the known set.
func (a ActionType) Valid() bool {
	switch a {
	case ActionPostCreated, ActionCommentCreated, ActionUpvoteReceived,
		ActionDownvoteReceived, ActionBestAnswer, ActionDailyLogin:
		return true
	}
	return false
}

// UserRef is the denormalized user snapshot stored with each transaction.
// It captures display metadata at transaction time, not a live join.
type UserRef struct {
	ID          string `json:"id"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Value implements driver.Valuer for JSONB storage.
func (u UserRef) Value() (driver.Value, error) {
	return json.Marshal(u)
}

// Scan implements sql.Scanner. A snapshot that cannot be decoded or is
// missing the user id surfaces as ErrMalformedRecord.
func (u *UserRef) Scan(src interface{}) error {
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("%w: user snapshot is not jsonb", ErrMalformedRecord)
	}
	if err := json.Unmarshal(b, u); err != nil {
		return fmt.Errorf("%w: user snapshot: %v", ErrMalformedRecord, err)
	}
	if u.ID == "" {
		return fmt.Errorf("%w: user snapshot missing id", ErrMalformedRecord)
	}
	return nil
}

// Metadata carries caller-supplied fields the store treats as opaque.
type Metadata map[string]interface{}

// Value implements driver.Valuer for JSONB storage.
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *Metadata) Scan(src interface{}) error {
	if src == nil {
		*m = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("%w: metadata is not jsonb", ErrMalformedRecord)
	}
	if err := json.Unmarshal(b, m); err != nil {
		return fmt.Errorf("%w: metadata: %v", ErrMalformedRecord, err)
	}
	return nil
}

// Transaction is one immutable karma ledger row. Rows are never updated or
// deleted; updated_at is stamped once at creation and stays equal to created_at.
type Transaction struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	User       UserRef    `db:"user_snapshot" json:"user"`
	Points     float64    `db:"points" json:"points"`
	ActionType ActionType `db:"action_type" json:"action_type"`
	Domain     string     `db:"domain" json:"domain"`
	Metadata   Metadata   `db:"metadata" json:"metadata,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// CreateTransaction is the payload for a new transaction. Server-assigned
// fields (id and timestamps) are filled in by the repository.
type CreateTransaction struct {
	User       UserRef
	Points     float64
	ActionType ActionType
	Domain     string
	Metadata   Metadata
}

// DateRange restricts a query to created_at within [Start, End].
// Both bounds are inclusive; a nil bound is open.
type DateRange struct {
	Start *time.Time
	End   *time.Time
}

// UserKarmaTotal is one leaderboard row: summed points per user plus the
// snapshot from that user's chronologically earliest transaction.
type UserKarmaTotal struct {
	UserID      string  `db:"user_id" json:"user_id"`
	TotalPoints float64 `db:"total_points" json:"total_points"`
	User        UserRef `db:"user_snapshot" json:"user"`
}
