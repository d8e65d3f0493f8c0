package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/watchpay-backend/internal/config"
	"github.com/ignatzorin/watchpay-backend/internal/models"
	"github.com/ignatzorin/watchpay-backend/internal/repository"
)

// memStore: хранилище в памяти для тестов сервисов. Один мьютекс заменяет
// транзакцию с блокировкой строки пользователя.
type memStore struct {
	mu          sync.Mutex
	users       map[uuid.UUID]*models.User
	watches     []models.WatchEvent
	withdrawals map[uuid.UUID]*models.Withdrawal
	order       []uuid.UUID
	journal     []models.BalanceTransaction
}

func newMemStore() *memStore {
	return &memStore{
		users:       make(map[uuid.UUID]*models.User),
		withdrawals: make(map[uuid.UUID]*models.Withdrawal),
	}
}

func (s *memStore) addUser(username string, balance string, referredBy *string) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &models.User{
		ID:           uuid.New(),
		Username:     username,
		ReferralCode: ReferralCodeFor(username),
		ReferredBy:   referredBy,
		Balance:      decimal.RequireFromString(balance),
	}
	s.users[u.ID] = u
	return u
}

func (s *memStore) balance(id uuid.UUID) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id].Balance
}

func (s *memStore) watchCount(userID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, w := range s.watches {
		if w.UserID == userID {
			n++
		}
	}
	return n
}

func (s *memStore) pendingSum() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := decimal.Zero
	for _, w := range s.withdrawals {
		if w.Status == models.WithdrawalStatusPending {
			sum = sum.Add(w.Amount)
		}
	}
	return sum
}

func (s *memStore) addToBalance(userID uuid.UUID, delta decimal.Decimal, txType string, ref uuid.UUID) decimal.Decimal {
	u := s.users[userID]
	u.Balance = u.Balance.Add(delta)
	s.journal = append(s.journal, models.BalanceTransaction{
		ID: uuid.New(), UserID: userID, Type: txType, Amount: delta, ReferenceID: &ref, BalanceAfter: u.Balance,
	})
	return u.Balance
}

func (s *memStore) countSince(userID uuid.UUID, videoID string, since time.Time) int {
	n := 0
	for _, w := range s.watches {
		if w.UserID == userID && w.VideoID == videoID && !w.WatchedAt.Before(since) {
			n++
		}
	}
	return n
}

// WatchHistory, CreditLedger

func (s *memStore) CountRecentWatches(ctx context.Context, userID uuid.UUID, videoID string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countSince(userID, videoID, since), nil
}

func (s *memStore) CreditWatch(ctx context.Context, p models.CreditParams) (*models.CreditResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[p.UserID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	if s.countSince(p.UserID, p.VideoID, p.WindowStart) > 0 {
		return nil, repository.ErrDuplicateWatch
	}

	event := models.WatchEvent{
		ID: uuid.New(), UserID: p.UserID, VideoID: p.VideoID,
		WatchedSeconds: p.WatchedSeconds, Credited: p.Credit, WatchedAt: p.Now,
	}
	s.watches = append(s.watches, event)
	result := &models.CreditResult{
		Event:         event,
		NewBalance:    s.addToBalance(p.UserID, p.Credit, models.TransactionTypeWatchCredit, event.ID),
		ReferralBonus: decimal.Zero,
	}

	if user.ReferredBy == nil {
		return result, nil
	}
	for _, ref := range s.users {
		if ref.ReferralCode == *user.ReferredBy && ref.ID != user.ID {
			bal := s.addToBalance(ref.ID, p.ReferralBonus, models.TransactionTypeReferralBonus, event.ID)
			id := ref.ID
			result.ReferrerID = &id
			result.ReferralBonus = p.ReferralBonus
			result.ReferrerBalance = &bal
			break
		}
	}
	return result, nil
}

// WithdrawalStore

func (s *memStore) Create(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, key *string, now time.Time) (*models.Withdrawal, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, false, repository.ErrUserNotFound
	}
	if key != nil {
		for _, w := range s.withdrawals {
			if w.UserID == userID && w.IdempotencyKey != nil && *w.IdempotencyKey == *key {
				cp := *w
				return &cp, false, nil
			}
		}
	}
	if user.Balance.LessThan(amount) {
		return nil, false, repository.ErrInsufficientFunds
	}

	w := &models.Withdrawal{
		ID: uuid.New(), UserID: userID, Amount: amount,
		Status: models.WithdrawalStatusPending, IdempotencyKey: key, RequestedAt: now,
	}
	s.withdrawals[w.ID] = w
	s.order = append(s.order, w.ID)
	s.addToBalance(userID, amount.Neg(), models.TransactionTypeWithdrawalReserve, w.ID)
	cp := *w
	return &cp, true, nil
}

func (s *memStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.withdrawals[id]
	if !ok {
		return nil, repository.ErrWithdrawalNotFound
	}
	cp := *w
	return &cp, nil
}

func (s *memStore) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Withdrawal{}
	for _, id := range s.order {
		if w := s.withdrawals[id]; w.UserID == userID {
			out = append(out, *w)
		}
	}
	return out, nil
}

func (s *memStore) ListAll(ctx context.Context, filter models.WithdrawalFilter) ([]models.WithdrawalWithUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.WithdrawalWithUser{}
	for _, id := range s.order {
		w := s.withdrawals[id]
		if filter.Status != "" && w.Status != filter.Status {
			continue
		}
		name := s.users[w.UserID].Username
		out = append(out, models.WithdrawalWithUser{Withdrawal: *w, Username: &name})
	}
	return out, nil
}

func (s *memStore) lockPending(id uuid.UUID) (*models.Withdrawal, error) {
	w, ok := s.withdrawals[id]
	if !ok {
		return nil, repository.ErrWithdrawalNotFound
	}
	if w.Status != models.WithdrawalStatusPending {
		return nil, repository.ErrWithdrawalNotPending
	}
	return w, nil
}

func (s *memStore) Approve(ctx context.Context, id uuid.UUID, now time.Time) (*models.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.lockPending(id)
	if err != nil {
		return nil, err
	}
	w.Status = models.WithdrawalStatusApproved
	w.ProcessedAt = &now
	cp := *w
	return &cp, nil
}

func (s *memStore) Reject(ctx context.Context, id uuid.UUID, now time.Time) (*models.Withdrawal, decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.lockPending(id)
	if err != nil {
		return nil, decimal.Zero, err
	}
	w.Status = models.WithdrawalStatusRejected
	w.ProcessedAt = &now
	bal := s.addToBalance(w.UserID, w.Amount, models.TransactionTypeWithdrawalRefund, w.ID)
	cp := *w
	return &cp, bal, nil
}

// AccountHistory

func (s *memStore) ListWatches(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WatchEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.WatchEvent{}
	for _, w := range s.watches {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *memStore) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.BalanceTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.BalanceTransaction{}
	for _, t := range s.journal {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

// memUsers реализует AuthRepository и AccountUsers поверх memStore.
type memUsers struct {
	*memStore
}

func (u memUsers) Create(ctx context.Context, user *models.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, existing := range u.users {
		if existing.Username == user.Username || existing.ReferralCode == user.ReferralCode {
			return repository.ErrUserExists
		}
	}
	user.ID = uuid.New()
	user.Balance = decimal.Zero
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	u.users[user.ID] = &cp
	return nil
}

func (u memUsers) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if user, ok := u.users[id]; ok {
		cp := *user
		return &cp, nil
	}
	return nil, repository.ErrUserNotFound
}

func (u memUsers) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return u.find(func(user *models.User) bool { return user.Username == username })
}

func (u memUsers) GetByReferralCode(ctx context.Context, code string) (*models.User, error) {
	return u.find(func(user *models.User) bool { return user.ReferralCode == code })
}

func (u memUsers) find(match func(*models.User) bool) (*models.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, user := range u.users {
		if match(user) {
			cp := *user
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (u memUsers) EnsureAdmin(ctx context.Context, user *models.User) error {
	if existing, err := u.GetByUsername(ctx, user.Username); err == nil {
		u.mu.Lock()
		u.users[existing.ID].IsAdmin = true
		u.mu.Unlock()
		*user = *existing
		user.IsAdmin = true
		return nil
	}
	user.IsAdmin = true
	return u.Create(ctx, user)
}

func (u memUsers) CountReferrals(ctx context.Context, code string) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	n := 0
	for _, user := range u.users {
		if user.ReferredBy != nil && *user.ReferredBy == code {
			n++
		}
	}
	return n, nil
}

func (u memUsers) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]models.User, 0, len(u.users))
	for _, user := range u.users {
		out = append(out, *user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// recordingNotifier запоминает отправленные события.
type recordingNotifier struct {
	mu     sync.Mutex
	events []sentEvent
}

type sentEvent struct {
	userID uuid.UUID
	event  string
	data   any
}

func (n *recordingNotifier) BroadcastToUser(userID uuid.UUID, event string, data any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sentEvent{userID: userID, event: event, data: data})
	return nil
}

func (n *recordingNotifier) forUser(userID uuid.UUID) []sentEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentEvent
	for _, e := range n.events {
		if e.userID == userID {
			out = append(out, e)
		}
	}
	return out
}

// testClock: управляемые часы для окна дублей.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newRewardServiceForTest(store *memStore, notifier Notifier, clock *testClock) *RewardService {
	rewards := config.DefaultRewardConfig()
	verifier := NewWatchVerifier(store, rewards)
	verifier.now = clock.Now
	engine := NewCreditingEngine(store, rewards)
	engine.now = clock.Now
	return NewRewardService(verifier, engine, notifier)
}
