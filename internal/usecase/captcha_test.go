package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arklim/access-gateway/internal/core/domain"
	"github.com/arklim/access-gateway/internal/repository/memory"
)

func newCaptchaHarness(t *testing.T, values map[string]string) (*CaptchaService, *fixedClock) {
	t.Helper()
	store := memory.NewChallengeStore(time.Hour)
	t.Cleanup(func() { _ = store.Close() })

	policy := NewConfigStore(newFakeConfigRepo(values), nil, nil, nil)
	svc := NewCaptchaService(store, policy, nil, nil)
	clock := newFixedClock(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	svc.WithClock(clock.Now)
	return svc, clock
}

func TestCaptchaIssueUsesPolicyExpiry(t *testing.T) {
	svc, clock := newCaptchaHarness(t, map[string]string{domain.ConfigCaptchaExpiry: "5"})

	challenge, err := svc.Issue(context.Background())
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if len(challenge.Code) != 4 {
		t.Fatalf("expected 4-digit code, got %q", challenge.Code)
	}
	if !challenge.ExpiresAt.Equal(clock.Now().Add(5 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", challenge.ExpiresAt)
	}
}

func TestCaptchaIssueFallsBackToDefaultExpiry(t *testing.T) {
	for _, raw := range []string{"0", "-3", "soon"} {
		svc, clock := newCaptchaHarness(t, map[string]string{domain.ConfigCaptchaExpiry: raw})
		challenge, err := svc.Issue(context.Background())
		if err != nil {
			t.Fatalf("Issue returned error: %v", err)
		}
		if !challenge.ExpiresAt.Equal(clock.Now().Add(2 * time.Minute)) {
			t.Fatalf("expiry %q: expected default two minutes, got %v", raw, challenge.ExpiresAt.Sub(clock.Now()))
		}
	}
}

func TestCaptchaVerifyIsSingleUse(t *testing.T) {
	svc, _ := newCaptchaHarness(t, nil)
	ctx := context.Background()

	challenge, _ := svc.Issue(ctx)
	if err := svc.Verify(ctx, challenge.ID, challenge.Code); err != nil {
		t.Fatalf("first Verify returned error: %v", err)
	}

	err := svc.Verify(ctx, challenge.ID, challenge.Code)
	var captchaErr *CaptchaError
	if !errors.As(err, &captchaErr) || captchaErr.Reason != domain.CaptchaNotFound {
		t.Fatalf("expected NotFound on replay, got %v", err)
	}
	if !errors.Is(err, ErrCaptchaInvalid) {
		t.Fatal("captcha errors should match ErrCaptchaInvalid")
	}
}

func TestCaptchaVerifyAfterExpiry(t *testing.T) {
	svc, clock := newCaptchaHarness(t, nil)
	ctx := context.Background()

	challenge, _ := svc.Issue(ctx)
	clock.Advance(121 * time.Second)

	result, err := svc.Check(ctx, challenge.ID, challenge.Code)
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	if result != domain.CaptchaExpired {
		t.Fatalf("expected expired, got %s", result)
	}
}

func TestCaptchaMismatchDoesNotConsume(t *testing.T) {
	svc, _ := newCaptchaHarness(t, nil)
	ctx := context.Background()

	challenge, _ := svc.Issue(ctx)
	wrong := "0000"
	if challenge.Code == wrong {
		wrong = "1111"
	}

	result, _ := svc.Check(ctx, challenge.ID, wrong)
	if result != domain.CaptchaMismatch {
		t.Fatalf("expected mismatch, got %s", result)
	}
	if err := svc.Verify(ctx, challenge.ID, challenge.Code); err != nil {
		t.Fatalf("correct code after a mismatch should pass, got %v", err)
	}
}

func TestCaptchaBlankInputIsNotFound(t *testing.T) {
	svc, _ := newCaptchaHarness(t, nil)
	result, err := svc.Check(context.Background(), " ", "1234")
	if err != nil || result != domain.CaptchaNotFound {
		t.Fatalf("expected not found, got %s err=%v", result, err)
	}
}

func TestCaptchaConcurrentVerifyHasOneWinner(t *testing.T) {
	svc, _ := newCaptchaHarness(t, nil)
	ctx := context.Background()
	challenge, _ := svc.Issue(ctx)

	var (
		wg    sync.WaitGroup
		valid atomic.Int32
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if svc.Verify(ctx, challenge.ID, challenge.Code) == nil {
				valid.Add(1)
			}
		}()
	}
	wg.Wait()

	if valid.Load() != 1 {
		t.Fatalf("expected exactly one successful verification, got %d", valid.Load())
	}
}

func TestCaptchaRequiredFollowsPolicy(t *testing.T) {
	svc, _ := newCaptchaHarness(t, map[string]string{domain.ConfigCaptchaEnabled: "false"})
	if svc.Required(context.Background()) {
		t.Fatal("captcha should not be required when disabled")
	}
	svc, _ = newCaptchaHarness(t, map[string]string{domain.ConfigCaptchaEnabled: "true"})
	if !svc.Required(context.Background()) {
		t.Fatal("captcha should be required when enabled")
	}
}
