package karma_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/karmahub/karma-api/internal/domain/karma"
)

// stubService lets handler tests script the service layer.
type stubService struct {
	awardFn       func(ctx context.Context, input karma.AwardInput) (*karma.Transaction, error)
	totalFn       func(ctx context.Context, userID string, dates karma.DateRange) (float64, error)
	domainFn      func(ctx context.Context, userID, domain string, dates karma.DateRange) (float64, error)
	historyFn     func(ctx context.Context, userID string, dates karma.DateRange) ([]karma.Transaction, error)
	leaderboardFn func(ctx context.Context, limit int, domain string) ([]karma.UserKarmaTotal, error)
}

func (s *stubService) Award(ctx context.Context, input karma.AwardInput) (*karma.Transaction, error) {
	return s.awardFn(ctx, input)
}

func (s *stubService) TotalKarma(ctx context.Context, userID string, dates karma.DateRange) (float64, error) {
	return s.totalFn(ctx, userID, dates)
}

func (s *stubService) DomainKarma(ctx context.Context, userID, domain string, dates karma.DateRange) (float64, error) {
	return s.domainFn(ctx, userID, domain, dates)
}

func (s *stubService) History(ctx context.Context, userID string, dates karma.DateRange) ([]karma.Transaction, error) {
	return s.historyFn(ctx, userID, dates)
}

func (s *stubService) HistoryByDomain(ctx context.Context, userID, domain string, dates karma.DateRange) ([]karma.Transaction, error) {
	return s.historyFn(ctx, userID, dates)
}

func (s *stubService) ActionsToday(ctx context.Context, userID string, action karma.ActionType, day time.Time) ([]karma.Transaction, error) {
	return nil, nil
}

func (s *stubService) Leaderboard(ctx context.Context, limit int, domain string) ([]karma.UserKarmaTotal, error) {
	return s.leaderboardFn(ctx, limit, domain)
}

func passthrough(next http.Handler) http.Handler { return next }

func newTestRouter(svc karma.Service) chi.Router {
	h := karma.NewHandler(svc, nil, nil)
	return h.Routes(passthrough, passthrough)
}

func TestAwardHandlerValidatesBody(t *testing.T) {
	router := newTestRouter(&stubService{})

	body := `{"user": {"id": "u-1"}, "points": 5, "domain": "golang"}`
	req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for missing action_type, got %d", rr.Code)
	}
}

func TestAwardHandlerCreatesTransaction(t *testing.T) {
	svc := &stubService{
		awardFn: func(_ context.Context, input karma.AwardInput) (*karma.Transaction, error) {
			now := time.Now().UTC()
			return &karma.Transaction{
				User:       input.User,
				Points:     input.Points,
				ActionType: input.ActionType,
				Domain:     input.Domain,
				CreatedAt:  now,
				UpdatedAt:  now,
			}, nil
		},
	}
	router := newTestRouter(svc)

	body := `{"user": {"id": "u-1", "username": "alice"}, "points": 5, "action_type": "post_created", "domain": "golang"}`
	req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Success bool              `json:"success"`
		Data    karma.Transaction `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.Data.User.ID != "u-1" || resp.Data.Points != 5 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestAwardHandlerMapsDailyLimitToConflict(t *testing.T) {
	svc := &stubService{
		awardFn: func(context.Context, karma.AwardInput) (*karma.Transaction, error) {
			return nil, karma.ErrDailyLimitReached
		},
	}
	router := newTestRouter(svc)

	body := `{"user": {"id": "u-1"}, "points": 1, "action_type": "daily_login", "domain": "golang"}`
	req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestGetUserKarmaPassesFilters(t *testing.T) {
	var gotUser, gotDomain string
	var gotDates karma.DateRange
	svc := &stubService{
		domainFn: func(_ context.Context, userID, domain string, dates karma.DateRange) (float64, error) {
			gotUser, gotDomain, gotDates = userID, domain, dates
			return 8.0, nil
		},
	}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/users/u-1/karma?domain=golang&start=2026-03-01&end=2026-03-31", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotUser != "u-1" || gotDomain != "golang" {
		t.Fatalf("unexpected filters: user=%q domain=%q", gotUser, gotDomain)
	}
	if gotDates.Start == nil || gotDates.End == nil {
		t.Fatal("expected both date bounds to be parsed")
	}
	if !gotDates.Start.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start bound: %v", gotDates.Start)
	}

	var resp struct {
		Data karma.KarmaTotalResponse `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.Total != 8.0 {
		t.Fatalf("expected total 8.0, got %f", resp.Data.Total)
	}
}

func TestGetUserKarmaRejectsBadDates(t *testing.T) {
	router := newTestRouter(&stubService{})

	req := httptest.NewRequest(http.MethodGet, "/users/u-1/karma?start=yesterday", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestLeaderboardDefaultsAndLimit(t *testing.T) {
	var gotLimit int
	svc := &stubService{
		leaderboardFn: func(_ context.Context, limit int, domain string) ([]karma.UserKarmaTotal, error) {
			gotLimit = limit
			return []karma.UserKarmaTotal{}, nil
		},
	}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/leaderboard", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if gotLimit != 10 {
		t.Fatalf("expected default limit 10, got %d", gotLimit)
	}

	req = httptest.NewRequest(http.MethodGet, "/leaderboard?limit=3", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if gotLimit != 3 {
		t.Fatalf("expected limit 3, got %d", gotLimit)
	}

	req = httptest.NewRequest(http.MethodGet, "/leaderboard?limit=ten", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rr.Code)
	}
}

func TestActionsTodayRequiresActionType(t *testing.T) {
	router := newTestRouter(&stubService{})

	req := httptest.NewRequest(http.MethodGet, "/users/u-1/actions/today", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without action_type, got %d", rr.Code)
	}
}
