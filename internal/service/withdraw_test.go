package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"earningbot/internal/domain"
	"earningbot/internal/firestore"
	"earningbot/internal/firestore/firestoretest"
	"earningbot/internal/repository"
)

func newWithdrawFixture(t *testing.T) (*WithdrawService, *firestoretest.Store) {
	t.Helper()
	store := firestoretest.New()
	users := repository.NewUserRepository(store)
	withdrawals := repository.NewWithdrawalRepository(store)
	refs := repository.NewReferralRepository(store)
	cache := repository.NewConfigCache(store)
	s := NewWithdrawService(users, withdrawals, refs, cache, NewUserLocks())
	s.now = func() time.Time { return time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC) }
	return s, store
}

func seedUser(t *testing.T, store *firestoretest.Store, id string, coins int64) {
	t.Helper()
	repo := repository.NewUserRepository(store)
	if _, err := repo.Create(context.Background(), id, "User "+id, "", time.Now().UTC()); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if err := repo.SetCoins(context.Background(), id, coins); err != nil {
		t.Fatalf("seed coins: %v", err)
	}
}

func TestWithdrawHappyPathScenarioB(t *testing.T) {
	s, store := newWithdrawFixture(t)
	ctx := context.Background()
	seedUser(t, store, "u2", 100)

	if _, err := s.Begin(ctx, "u2"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if s.State("u2") != StateAwaitingUPI {
		t.Fatalf("state = %v; want AwaitingUPI", s.State("u2"))
	}

	res, err := s.HandleInput(ctx, "u2", "name@bank")
	if err != nil {
		t.Fatalf("upi input: %v", err)
	}
	if res.Outcome != OutcomeUPIAccepted || s.State("u2") != StateAwaitingAmount {
		t.Fatalf("after upi: outcome=%v state=%v", res.Outcome, s.State("u2"))
	}

	res, err = s.HandleInput(ctx, "u2", "30")
	if err != nil {
		t.Fatalf("amount input: %v", err)
	}
	if res.Outcome != OutcomeCompleted {
		t.Fatalf("outcome = %v; want Completed", res.Outcome)
	}
	if res.Balance != 70 {
		t.Fatalf("balance = %d; want 70", res.Balance)
	}
	if s.State("u2") != StateIdle {
		t.Fatalf("session not cleared")
	}

	// Ledger reflects the debit and counters.
	u, err := repository.NewUserRepository(store).Get(ctx, "u2")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.Coins != 70 || u.WithdrawalsDone != 1 || u.TotalWithdrawn != 30 {
		t.Fatalf("ledger = coins %d done %d total %d", u.Coins, u.WithdrawalsDone, u.TotalWithdrawn)
	}

	// Exactly one pending record with the requested amount.
	if store.Count("withdrawals") != 1 {
		t.Fatalf("withdrawals count = %d; want 1", store.Count("withdrawals"))
	}
	recs, err := repository.NewWithdrawalRepository(store).GetByUserID(ctx, "u2")
	if err != nil {
		t.Fatalf("get withdrawals: %v", err)
	}
	w := recs[0]
	if w.Status != domain.WithdrawalStatusPending || w.Amount != 30 || w.UPI != "name@bank" {
		t.Fatalf("record = %+v", w)
	}
	if w.ProcessedAt != "" {
		t.Fatalf("processedAt = %q; want empty until resolved", w.ProcessedAt)
	}
}

func TestWithdrawOverBalanceScenarioC(t *testing.T) {
	s, store := newWithdrawFixture(t)
	ctx := context.Background()
	seedUser(t, store, "u3", 100)

	s.Begin(ctx, "u3")
	s.HandleInput(ctx, "u3", "name@bank")

	res, err := s.HandleInput(ctx, "u3", "150")
	if err != nil {
		t.Fatalf("amount input: %v", err)
	}
	if res.Outcome != OutcomeInsufficientBalance {
		t.Fatalf("outcome = %v; want InsufficientBalance", res.Outcome)
	}
	if s.State("u3") != StateAwaitingAmount {
		t.Fatalf("rejected amount should keep the state for a retry")
	}

	u, _ := repository.NewUserRepository(store).Get(ctx, "u3")
	if u.Coins != 100 {
		t.Fatalf("balance = %d; want untouched 100", u.Coins)
	}
	if store.Count("withdrawals") != 0 {
		t.Fatalf("no record should be created on rejection")
	}
}

func TestWithdrawInputValidation(t *testing.T) {
	s, store := newWithdrawFixture(t)
	ctx := context.Background()
	seedUser(t, store, "u4", 50)

	s.Begin(ctx, "u4")

	for _, bad := range []string{"x", "no separator", "@bank", "name@", "a b@c"} {
		res, err := s.HandleInput(ctx, "u4", bad)
		if err != nil {
			t.Fatalf("upi %q: %v", bad, err)
		}
		if res.Outcome != OutcomeInvalidUPI || s.State("u4") != StateAwaitingUPI {
			t.Fatalf("upi %q: outcome=%v state=%v", bad, res.Outcome, s.State("u4"))
		}
	}

	s.HandleInput(ctx, "u4", "name@bank")

	for _, bad := range []string{"abc", "-5", "0", "3.5", ""} {
		res, err := s.HandleInput(ctx, "u4", bad)
		if err != nil {
			t.Fatalf("amount %q: %v", bad, err)
		}
		if res.Outcome != OutcomeInvalidAmount || s.State("u4") != StateAwaitingAmount {
			t.Fatalf("amount %q: outcome=%v state=%v", bad, res.Outcome, s.State("u4"))
		}
	}
}

func TestWithdrawCancel(t *testing.T) {
	s, store := newWithdrawFixture(t)
	ctx := context.Background()
	seedUser(t, store, "u5", 50)

	if s.Cancel("u5") {
		t.Fatalf("cancel with no session should report false")
	}

	s.Begin(ctx, "u5")
	s.HandleInput(ctx, "u5", "name@bank")
	if !s.Cancel("u5") {
		t.Fatalf("cancel with active session should report true")
	}
	if s.State("u5") != StateIdle {
		t.Fatalf("state after cancel = %v; want Idle", s.State("u5"))
	}

	// Cancel has no ledger side effects.
	u, _ := repository.NewUserRepository(store).Get(ctx, "u5")
	if u.Coins != 50 {
		t.Fatalf("balance = %d; want 50", u.Coins)
	}

	if _, err := s.HandleInput(ctx, "u5", "10"); !errors.Is(err, ErrNotWithdrawing) {
		t.Fatalf("input after cancel: err = %v; want ErrNotWithdrawing", err)
	}
}

func TestWithdrawMinReferralGate(t *testing.T) {
	s, store := newWithdrawFixture(t)
	ctx := context.Background()

	store.Set(ctx, "config", "global", map[string]firestore.Value{
		"minRefForWithdraw": firestore.Int(2),
	})
	seedUser(t, store, "u6", 500)

	res, err := s.Begin(ctx, "u6")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if res.Outcome != OutcomeTooFewReferrals || res.NeedReferral != 2 {
		t.Fatalf("result = %+v; want TooFewReferrals(2)", res)
	}
	if s.State("u6") != StateIdle {
		t.Fatalf("gated begin must not open a session")
	}

	// With enough referrals the conversation opens.
	users := repository.NewUserRepository(store)
	users.Create(ctx, "r1", "R1", "u6", time.Now().UTC())
	users.Create(ctx, "r2", "R2", "u6", time.Now().UTC())

	res, err = s.Begin(ctx, "u6")
	if err != nil {
		t.Fatalf("second begin: %v", err)
	}
	if res.Outcome == OutcomeTooFewReferrals || s.State("u6") != StateAwaitingUPI {
		t.Fatalf("gate should pass with 2 referrals")
	}
}

func TestWithdrawConcurrentAmountInputsDebitOnce(t *testing.T) {
	s, store := newWithdrawFixture(t)
	ctx := context.Background()
	seedUser(t, store, "u8", 100)

	s.Begin(ctx, "u8")
	s.HandleInput(ctx, "u8", "name@bank")

	// Updates arrive on their own goroutines, so the same amount can be
	// sent twice in flight. Only one may complete the conversation.
	const workers = 2
	results := make([]*StepResult, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.HandleInput(ctx, "u8", "30")
		}(i)
	}
	wg.Wait()

	var completed, rejected int
	for i := 0; i < workers; i++ {
		switch {
		case errs[i] == nil && results[i].Outcome == OutcomeCompleted:
			completed++
		case errors.Is(errs[i], ErrNotWithdrawing):
			rejected++
		default:
			t.Fatalf("worker %d: res=%+v err=%v", i, results[i], errs[i])
		}
	}
	if completed != 1 || rejected != 1 {
		t.Fatalf("completed=%d rejected=%d; want exactly one of each", completed, rejected)
	}

	u, err := repository.NewUserRepository(store).Get(ctx, "u8")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.Coins != 70 || u.WithdrawalsDone != 1 || u.TotalWithdrawn != 30 {
		t.Fatalf("ledger = coins %d done %d total %d; want single debit", u.Coins, u.WithdrawalsDone, u.TotalWithdrawn)
	}
	if store.Count("withdrawals") != 1 {
		t.Fatalf("withdrawals count = %d; want 1", store.Count("withdrawals"))
	}
}

func TestWithdrawConcurrentUPIInputs(t *testing.T) {
	s, store := newWithdrawFixture(t)
	ctx := context.Background()
	seedUser(t, store, "u9", 100)

	s.Begin(ctx, "u9")

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.HandleInput(ctx, "u9", "name@bank")
		}()
	}
	wg.Wait()

	if s.State("u9") != StateAwaitingAmount {
		t.Fatalf("state = %v; want AwaitingAmount", s.State("u9"))
	}

	res, err := s.HandleInput(ctx, "u9", "10")
	if err != nil || res.Outcome != OutcomeCompleted {
		t.Fatalf("amount after racing upi inputs: res=%+v err=%v", res, err)
	}
	if res.Withdrawal.UPI != "name@bank" {
		t.Fatalf("upi = %q; want name@bank", res.Withdrawal.UPI)
	}
}

func TestWithdrawSessionsAreEphemeral(t *testing.T) {
	s, store := newWithdrawFixture(t)
	ctx := context.Background()
	seedUser(t, store, "u7", 50)

	s.Begin(ctx, "u7")
	s.HandleInput(ctx, "u7", "name@bank")

	// A fresh service over the same store (a process restart) has no
	// memory of the conversation.
	s2 := NewWithdrawService(
		repository.NewUserRepository(store),
		repository.NewWithdrawalRepository(store),
		repository.NewReferralRepository(store),
		repository.NewConfigCache(store),
		NewUserLocks(),
	)
	if s2.State("u7") != StateIdle {
		t.Fatalf("sessions must not survive a restart")
	}
	if _, err := s2.HandleInput(ctx, "u7", "10"); !errors.Is(err, ErrNotWithdrawing) {
		t.Fatalf("err = %v; want ErrNotWithdrawing", err)
	}
}
