package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/opswork/platform/services/auth-service/internal/domain"
	"github.com/opswork/platform/services/auth-service/internal/ports"
)

func TestRecordLoginFailureConcurrentIncrements(t *testing.T) {
	t.Parallel()

	repos := NewRepositories()
	ctx := context.Background()
	user, err := repos.Users.Create(ctx, ports.CreateUserParams{
		Email:        "race@example.com",
		Username:     "race",
		PasswordHash: "irrelevant",
		Role:         domain.RoleCustomer,
		RegisteredAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	const racers = 20
	const threshold = 5
	now := time.Now().UTC()

	counts := make([]int, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			attempts, _, err := repos.Users.RecordLoginFailure(ctx, user.UserID, now, threshold, 30*time.Minute)
			if err != nil {
				t.Errorf("record failure: %v", err)
				return
			}
			counts[i] = attempts
		}(i)
	}
	wg.Wait()

	// Increment-then-check is atomic, so every caller observes a distinct
	// count and exactly one of them lands on the threshold.
	seen := make(map[int]bool, racers)
	thresholdHits := 0
	for _, c := range counts {
		if seen[c] {
			t.Fatalf("attempt count %d observed twice, an increment was lost", c)
		}
		seen[c] = true
		if c == threshold {
			thresholdHits++
		}
	}
	if thresholdHits != 1 {
		t.Fatalf("expected exactly one caller to land on the threshold, got %d", thresholdHits)
	}

	got, err := repos.Users.GetByID(ctx, user.UserID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.FailedLoginAttempts != racers {
		t.Fatalf("expected %d recorded failures, got %d", racers, got.FailedLoginAttempts)
	}
	if !got.IsLocked(now) {
		t.Fatalf("account must be locked once the threshold is crossed")
	}
}
