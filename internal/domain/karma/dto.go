package karma

// UserRefRequest is the denormalized user snapshot supplied by the caller
type UserRefRequest struct {
	ID          string `json:"id" validate:"required"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty" validate:"omitempty,url"`
}

// AwardRequest for recording a karma transaction.
// Point values are taken as-is; the caller decides what an action is worth.
type AwardRequest struct {
	User       UserRefRequest         `json:"user" validate:"required"`
	Points     float64                `json:"points"`
	ActionType string                 `json:"action_type" validate:"required,action_type"`
	Domain     string                 `json:"domain" validate:"required,domain_slug"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// KarmaTotalResponse for aggregate queries
type KarmaTotalResponse struct {
	UserID string  `json:"user_id"`
	Domain string  `json:"domain,omitempty"`
	Total  float64 `json:"total"`
}

// ActionsResponse wraps a transaction listing
type ActionsResponse struct {
	UserID  string        `json:"user_id"`
	Count   int           `json:"count"`
	Actions []Transaction `json:"actions"`
}
