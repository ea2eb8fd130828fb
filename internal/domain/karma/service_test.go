package karma_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/karmahub/karma-api/internal/domain/karma"
)

// fakeRepo is an in-memory Repository for service tests.
type fakeRepo struct {
	created    []karma.CreateTransaction
	today      []karma.Transaction
	todayCalls int
	topUsers   []karma.UserKarmaTotal
	topCalls   int
	createErr  error
}

func (f *fakeRepo) CreateTransaction(_ context.Context, input karma.CreateTransaction) (*karma.Transaction, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, input)
	now := time.Now().UTC()
	return &karma.Transaction{
		User:       input.User,
		Points:     input.Points,
		ActionType: input.ActionType,
		Domain:     input.Domain,
		Metadata:   input.Metadata,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (f *fakeRepo) GetUserKarma(context.Context, string, karma.DateRange) (float64, error) {
	return 0, nil
}

func (f *fakeRepo) GetUserKarmaByDomain(context.Context, string, string, karma.DateRange) (float64, error) {
	return 0, nil
}

func (f *fakeRepo) GetUserActions(context.Context, string, karma.DateRange) ([]karma.Transaction, error) {
	return nil, nil
}

func (f *fakeRepo) GetUserActionsByDomain(context.Context, string, string, karma.DateRange) ([]karma.Transaction, error) {
	return nil, nil
}

func (f *fakeRepo) GetUserActionsToday(context.Context, string, karma.ActionType, time.Time) ([]karma.Transaction, error) {
	f.todayCalls++
	return f.today, nil
}

func (f *fakeRepo) GetTopUsers(context.Context, int, string) ([]karma.UserKarmaTotal, error) {
	f.topCalls++
	return f.topUsers, nil
}

func TestAwardRejectsUnknownAction(t *testing.T) {
	repo := &fakeRepo{}
	svc := karma.NewService(repo, nil, nil, time.Second)

	_, err := svc.Award(context.Background(), karma.AwardInput{
		User:       karma.UserRef{ID: "u-1"},
		Points:     5,
		ActionType: "drive_by_download",
		Domain:     "golang",
	})
	if !errors.Is(err, karma.ErrInvalidAction) {
		t.Fatalf("expected ErrInvalidAction, got %v", err)
	}
	if len(repo.created) != 0 {
		t.Fatal("no transaction should be created for an unknown action")
	}
}

func TestAwardEnforcesDailyLimit(t *testing.T) {
	repo := &fakeRepo{
		today: []karma.Transaction{{ActionType: karma.ActionDailyLogin}},
	}
	svc := karma.NewService(repo, nil, nil, time.Second)

	_, err := svc.Award(context.Background(), karma.AwardInput{
		User:       karma.UserRef{ID: "u-1"},
		Points:     1,
		ActionType: karma.ActionDailyLogin,
		Domain:     "golang",
	})
	if !errors.Is(err, karma.ErrDailyLimitReached) {
		t.Fatalf("expected ErrDailyLimitReached, got %v", err)
	}
	if len(repo.created) != 0 {
		t.Fatal("no transaction should be created past the daily limit")
	}
}

func TestAwardUncappedActionSkipsDailyCheck(t *testing.T) {
	repo := &fakeRepo{}
	svc := karma.NewService(repo, nil, nil, time.Second)

	tx, err := svc.Award(context.Background(), karma.AwardInput{
		User:       karma.UserRef{ID: "u-1", Username: "alice"},
		Points:     -2,
		ActionType: karma.ActionDownvoteReceived,
		Domain:     "golang",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.todayCalls != 0 {
		t.Fatalf("uncapped action should not query today's actions, got %d calls", repo.todayCalls)
	}
	if tx.Points != -2 {
		t.Fatalf("expected negative points preserved, got %f", tx.Points)
	}
}

func TestLeaderboardNonPositiveLimitIsEmpty(t *testing.T) {
	repo := &fakeRepo{topUsers: []karma.UserKarmaTotal{{UserID: "u-1", TotalPoints: 10}}}
	svc := karma.NewService(repo, nil, nil, time.Second)

	for _, limit := range []int{0, -5} {
		totals, err := svc.Leaderboard(context.Background(), limit, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(totals) != 0 {
			t.Fatalf("expected empty leaderboard for limit %d", limit)
		}
	}
	if repo.topCalls != 0 {
		t.Fatalf("store should not be queried for non-positive limits, got %d calls", repo.topCalls)
	}
}

func TestLeaderboardWithoutCachePassesThrough(t *testing.T) {
	repo := &fakeRepo{topUsers: []karma.UserKarmaTotal{
		{UserID: "u-1", TotalPoints: 10, User: karma.UserRef{ID: "u-1"}},
	}}
	svc := karma.NewService(repo, nil, nil, time.Second)

	totals, err := svc.Leaderboard(context.Background(), 10, "golang")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(totals) != 1 || totals[0].UserID != "u-1" {
		t.Fatalf("unexpected leaderboard: %+v", totals)
	}
	if repo.topCalls != 1 {
		t.Fatalf("expected 1 store query, got %d", repo.topCalls)
	}
}

func TestAwardSurfacesStoreErrors(t *testing.T) {
	repo := &fakeRepo{createErr: karma.ErrStoreUnavailable}
	svc := karma.NewService(repo, nil, nil, time.Second)

	_, err := svc.Award(context.Background(), karma.AwardInput{
		User:       karma.UserRef{ID: "u-1"},
		Points:     1,
		ActionType: karma.ActionPostCreated,
		Domain:     "golang",
	})
	if !errors.Is(err, karma.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestActionsTodayRejectsUnknownAction(t *testing.T) {
	svc := karma.NewService(&fakeRepo{}, nil, nil, time.Second)

	_, err := svc.ActionsToday(context.Background(), "u-1", "bogus", time.Now())
	if !errors.Is(err, karma.ErrInvalidAction) {
		t.Fatalf("expected ErrInvalidAction, got %v", err)
	}
}
