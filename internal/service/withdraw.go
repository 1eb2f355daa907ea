package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"earningbot/internal/domain"
	"earningbot/internal/firestore"
	"earningbot/internal/repository"
)

// WithdrawState tags where a user's withdrawal conversation stands.
type WithdrawState int

const (
	StateIdle WithdrawState = iota
	StateAwaitingUPI
	StateAwaitingAmount
)

// Outcome of a single conversation step.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeTooFewReferrals
	OutcomeUPIAccepted
	OutcomeInvalidUPI
	OutcomeInvalidAmount
	OutcomeInsufficientBalance
	OutcomeCompleted
	OutcomeCancelled
)

// StepResult is what one conversation step produced.
type StepResult struct {
	Outcome      Outcome
	Withdrawal   *domain.Withdrawal
	Balance      int64
	NeedReferral int64
}

// ErrNotWithdrawing is returned when input arrives for a user with no
// active withdrawal conversation.
var ErrNotWithdrawing = errors.New("no withdrawal in progress")

type withdrawSession struct {
	state WithdrawState
	upi   string
}

// WithdrawService runs the per-user withdrawal conversation. Sessions
// live in process memory only: a restart clears them, and nothing in
// the economy depends on them persisting.
type WithdrawService struct {
	users       *repository.UserRepository
	withdrawals *repository.WithdrawalRepository
	referrals   *repository.ReferralRepository
	config      *repository.ConfigCache
	locks       *UserLocks

	mu       sync.Mutex
	sessions map[string]*withdrawSession

	now func() time.Time
}

func NewWithdrawService(
	users *repository.UserRepository,
	withdrawals *repository.WithdrawalRepository,
	referrals *repository.ReferralRepository,
	config *repository.ConfigCache,
	locks *UserLocks,
) *WithdrawService {
	return &WithdrawService{
		users:       users,
		withdrawals: withdrawals,
		referrals:   referrals,
		config:      config,
		locks:       locks,
		sessions:    make(map[string]*withdrawSession),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// State returns the user's current conversation state.
func (s *WithdrawService) State(userID string) WithdrawState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[userID]; ok {
		return sess.state
	}
	return StateIdle
}

// Begin starts a withdrawal conversation. When a minimum referral
// policy is configured and the user falls short, the conversation is
// refused without entering a session.
func (s *WithdrawService) Begin(ctx context.Context, userID string) (*StepResult, error) {
	cfg, err := s.config.Get(ctx, false)
	if err != nil {
		return nil, err
	}

	if cfg.MinRefForWithdraw > 0 {
		n, err := s.referrals.CountReferrals(ctx, userID)
		if err != nil {
			return nil, err
		}
		if int64(n) < cfg.MinRefForWithdraw {
			return &StepResult{
				Outcome:      OutcomeTooFewReferrals,
				NeedReferral: cfg.MinRefForWithdraw,
			}, nil
		}
	}

	s.mu.Lock()
	s.sessions[userID] = &withdrawSession{state: StateAwaitingUPI}
	s.mu.Unlock()

	return &StepResult{Outcome: OutcomeNone}, nil
}

// HandleInput advances the conversation with one piece of user text.
// Invalid input keeps the current state so the user can retry in place.
// The whole step runs under the per-user lock: concurrent inputs from
// one user are serialized, and a step that completes the conversation
// leaves nothing for the next input to re-enter.
func (s *WithdrawService) HandleInput(ctx context.Context, userID, text string) (*StepResult, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	s.mu.Lock()
	sess, ok := s.sessions[userID]
	var state WithdrawState
	var upi string
	if ok {
		state = sess.state
		upi = sess.upi
	}
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotWithdrawing
	}

	switch state {
	case StateAwaitingUPI:
		return s.handleUPI(userID, text)
	case StateAwaitingAmount:
		return s.handleAmount(ctx, userID, upi, text)
	default:
		return nil, ErrNotWithdrawing
	}
}

// Cancel ends any in-flight conversation without side effects. It
// reports whether there was one to cancel.
func (s *WithdrawService) Cancel(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[userID]; !ok {
		return false
	}
	delete(s.sessions, userID)
	return true
}

func (s *WithdrawService) handleUPI(userID, text string) (*StepResult, error) {
	upi := strings.TrimSpace(text)
	if !validUPI(upi) {
		return &StepResult{Outcome: OutcomeInvalidUPI}, nil
	}
	s.mu.Lock()
	if sess, ok := s.sessions[userID]; ok {
		sess.upi = upi
		sess.state = StateAwaitingAmount
	}
	s.mu.Unlock()
	return &StepResult{Outcome: OutcomeUPIAccepted}, nil
}

// handleAmount runs with the per-user lock already held by HandleInput.
func (s *WithdrawService) handleAmount(ctx context.Context, userID, upi, text string) (*StepResult, error) {
	amount, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil || amount <= 0 {
		return &StepResult{Outcome: OutcomeInvalidAmount}, nil
	}

	u, err := s.users.Get(ctx, userID)
	if err != nil {
		if firestore.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if amount > u.Coins {
		return &StepResult{Outcome: OutcomeInsufficientBalance, Balance: u.Coins}, nil
	}

	now := s.now()
	newBalance := u.Coins - amount
	if err := s.users.ApplyWithdrawal(ctx, userID, newBalance, u.WithdrawalsDone+1, u.TotalWithdrawn+amount); err != nil {
		return nil, err
	}

	w := &domain.Withdrawal{
		ID:          repository.NewWithdrawalID(userID, now),
		UserID:      userID,
		UPI:         upi,
		Amount:      amount,
		Status:      domain.WithdrawalStatusPending,
		RequestedAt: firestore.FormatTimestamp(now),
	}
	if err := s.withdrawals.Create(ctx, w); err != nil {
		// The debit already landed; surface the failure instead of
		// pretending the request was recorded.
		return nil, err
	}

	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()

	return &StepResult{Outcome: OutcomeCompleted, Withdrawal: w, Balance: newBalance}, nil
}

// validUPI checks the payout destination for shape only: something
// before and after a single-ish separator, no whitespace.
func validUPI(upi string) bool {
	if len(upi) < 5 || strings.ContainsAny(upi, " \t\n") {
		return false
	}
	at := strings.Index(upi, "@")
	return at > 0 && at < len(upi)-1
}
