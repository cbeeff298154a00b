package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"subledger/internal/catalog"
	"subledger/internal/core"
	applog "subledger/internal/log"
)

// LedgerStore is the local persistence used by LedgerService.
type LedgerStore interface {
	LedgerSource
	Clear(ctx context.Context) error
	LoadCategoryOrder(ctx context.Context) core.CategoryOrder
	SaveCategoryOrder(ctx context.Context, order core.CategoryOrder) error
}

// PushRequester asks for the local ledger of userID to be pushed.
type PushRequester interface {
	RequestPush(ctx context.Context, userID string) error
}

// DirectPusher pushes in-process and waits for the result.
type DirectPusher struct {
	Reconciler *Reconciler
}

func (d DirectPusher) RequestPush(ctx context.Context, userID string) error {
	_, err := d.Reconciler.SyncToCloud(ctx, userID)
	return err
}

// CustomInput describes a subscription that is not in the catalog.
type CustomInput struct {
	Name        string
	Category    string
	Amount      decimal.Decimal // already in the base currency
	Currency    string
	Cycle       core.Cycle
	Memo        string
	RenewalDate *core.Date
	IconRef     string
}

// LedgerService owns the in-memory view of the local ledger. Every mutation
// is saved locally first; while a user is signed in it then requests a push.
// A failed push is returned wrapped in ErrPushFailed, but the local change
// is kept.
type LedgerService struct {
	mu      sync.Mutex
	store   LedgerStore
	catalog *catalog.Catalog
	ids     core.IDGenerator
	now     func() time.Time
	pusher  PushRequester
	puller  *Reconciler

	userID string
	cache  []core.Subscription
	cached bool
}

type LedgerOption func(*LedgerService)

func WithIDGenerator(g core.IDGenerator) LedgerOption {
	return func(s *LedgerService) { s.ids = g }
}

func WithClock(now func() time.Time) LedgerOption {
	return func(s *LedgerService) { s.now = now }
}

// WithPusher sets how pushes are requested after mutations.
func WithPusher(p PushRequester) LedgerOption {
	return func(s *LedgerService) { s.pusher = p }
}

// WithReconciler enables Login to pull from the cloud.
func WithReconciler(r *Reconciler) LedgerOption {
	return func(s *LedgerService) { s.puller = r }
}

func NewLedgerService(store LedgerStore, cat *catalog.Catalog, opts ...LedgerOption) *LedgerService {
	s := &LedgerService{
		store:   store,
		catalog: cat,
		ids:     core.UUIDGenerator{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.catalog == nil {
		s.catalog = catalog.Default()
	}
	return s
}

func (s *LedgerService) Catalog() *catalog.Catalog {
	return s.catalog
}

// List returns a copy of the ledger in stored order.
func (s *LedgerService) List(ctx context.Context) []core.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.Clone(s.loadLocked(ctx))
}

func (s *LedgerService) Get(ctx context.Context, id string) (core.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.loadLocked(ctx) {
		if sub.ID == id {
			return core.Clone([]core.Subscription{sub})[0], nil
		}
	}
	return core.Subscription{}, fmt.Errorf("get %s: %w", id, core.ErrNotFound)
}

func (s *LedgerService) loadLocked(ctx context.Context) []core.Subscription {
	if !s.cached {
		s.cache = s.store.Load(ctx)
		s.cached = true
	}
	return s.cache
}

func (s *LedgerService) invalidateLocked() {
	s.cache = nil
	s.cached = false
}

// AddFromPlan adds a catalog plan. Plans priced in a foreign currency are
// converted to the base currency with rate.
func (s *LedgerService) AddFromPlan(ctx context.Context, catalogRef, planID string, rate decimal.Decimal) (core.Subscription, error) {
	entry, ok := s.catalog.Lookup(catalogRef)
	if !ok {
		return core.Subscription{}, fmt.Errorf("add %s: unknown catalog entry", catalogRef)
	}
	plan, ok := entry.Plan(planID)
	if !ok {
		return core.Subscription{}, fmt.Errorf("add %s: unknown plan %q", catalogRef, planID)
	}
	currency := strings.ToUpper(plan.Currency)
	if currency == "" {
		currency = core.BaseCurrency
	}
	sub := core.Subscription{
		CatalogRef: catalogRef,
		PlanID:     planID,
		Amount:     core.ToBase(plan.Price, currency, rate),
		Currency:   currency,
		Cycle:      plan.Cycle,
	}
	return s.add(ctx, sub)
}

// AddCustom adds a subscription that is not in the catalog.
func (s *LedgerService) AddCustom(ctx context.Context, in CustomInput) (core.Subscription, error) {
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = core.BaseCurrency
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = core.DefaultCategory
	}
	sub := core.Subscription{
		DisplayName:   strings.TrimSpace(in.Name),
		Category:      category,
		Amount:        in.Amount,
		Currency:      currency,
		Cycle:         in.Cycle,
		Memo:          in.Memo,
		RenewalDate:   in.RenewalDate,
		CustomIconRef: in.IconRef,
	}
	return s.add(ctx, sub)
}

func (s *LedgerService) add(ctx context.Context, sub core.Subscription) (core.Subscription, error) {
	sub.ID = s.ids.NewID()
	sub.Active = true
	sub.UpdatedAt = s.now()

	err := s.mutate(ctx, applog.OpAdd, func(subs []core.Subscription) ([]core.Subscription, error) {
		next := -1
		for _, x := range subs {
			next = max(next, x.SortOrder)
		}
		sub.SortOrder = next + 1
		if err := sub.Validate(); err != nil {
			return nil, fmt.Errorf("add: %w", err)
		}
		return append(subs, sub), nil
	})
	if err != nil && !isPushErr(err) {
		return core.Subscription{}, err
	}
	slog.DebugContext(ctx, "Subscription added",
		applog.NewFields().WithOperation(applog.OpAdd).WithSubscription(sub.ID, sub.CatalogRef).ToSlice()...)
	return sub, err
}

// Toggle flips the active flag.
func (s *LedgerService) Toggle(ctx context.Context, id string) (core.Subscription, error) {
	return s.update(ctx, "toggle", id, func(sub *core.Subscription) error {
		sub.Active = !sub.Active
		return nil
	})
}

func (s *LedgerService) SetMemo(ctx context.Context, id, memo string) (core.Subscription, error) {
	return s.update(ctx, "memo", id, func(sub *core.Subscription) error {
		sub.Memo = memo
		return nil
	})
}

// Rename sets the display name. An empty name is only allowed for catalog entries.
func (s *LedgerService) Rename(ctx context.Context, id, name string) (core.Subscription, error) {
	return s.update(ctx, "rename", id, func(sub *core.Subscription) error {
		sub.DisplayName = strings.TrimSpace(name)
		return sub.Validate()
	})
}

// SetPrice changes the amount (base currency) and cycle.
func (s *LedgerService) SetPrice(ctx context.Context, id string, amount decimal.Decimal, cycle core.Cycle) (core.Subscription, error) {
	return s.update(ctx, "price", id, func(sub *core.Subscription) error {
		sub.Amount = amount
		sub.Cycle = cycle
		return sub.Validate()
	})
}

// SetRenewalDate sets or, with nil, clears the renewal date.
func (s *LedgerService) SetRenewalDate(ctx context.Context, id string, d *core.Date) (core.Subscription, error) {
	return s.update(ctx, "renewal", id, func(sub *core.Subscription) error {
		sub.RenewalDate = d
		return nil
	})
}

func (s *LedgerService) update(ctx context.Context, op, id string, fn func(*core.Subscription) error) (core.Subscription, error) {
	var updated core.Subscription
	err := s.mutate(ctx, op, func(subs []core.Subscription) ([]core.Subscription, error) {
		for i := range subs {
			if subs[i].ID != id {
				continue
			}
			if err := fn(&subs[i]); err != nil {
				return nil, fmt.Errorf("%s %s: %w", op, id, err)
			}
			subs[i].UpdatedAt = s.now()
			updated = subs[i]
			return subs, nil
		}
		return nil, fmt.Errorf("%s %s: %w", op, id, core.ErrNotFound)
	})
	if err != nil && !isPushErr(err) {
		return core.Subscription{}, err
	}
	slog.DebugContext(ctx, "Subscription updated",
		applog.NewFields().WithOperation(applog.OpUpdate).WithSubscription(updated.ID, updated.CatalogRef).ToSlice()...)
	return updated, err
}

func (s *LedgerService) Delete(ctx context.Context, id string) error {
	return s.mutate(ctx, applog.OpDelete, func(subs []core.Subscription) ([]core.Subscription, error) {
		for i := range subs {
			if subs[i].ID == id {
				return append(subs[:i], subs[i+1:]...), nil
			}
		}
		return nil, fmt.Errorf("delete %s: %w", id, core.ErrNotFound)
	})
}

// Reorder assigns SortOrder from the position of each id. ids must be a
// permutation of the ledger.
func (s *LedgerService) Reorder(ctx context.Context, ids []string) error {
	return s.mutate(ctx, applog.OpReorder, func(subs []core.Subscription) ([]core.Subscription, error) {
		if len(ids) != len(subs) {
			return nil, core.ErrInvalidOrder
		}
		pos := make(map[string]int, len(ids))
		for i, id := range ids {
			if _, dup := pos[id]; dup {
				return nil, core.ErrInvalidOrder
			}
			pos[id] = i
		}
		now := s.now()
		for i := range subs {
			p, ok := pos[subs[i].ID]
			if !ok {
				return nil, core.ErrInvalidOrder
			}
			if subs[i].SortOrder != p {
				subs[i].SortOrder = p
				subs[i].UpdatedAt = now
			}
		}
		return subs, nil
	})
}

// mutate applies fn to a private copy of the ledger, saves the result and
// requests a push when signed in.
func (s *LedgerService) mutate(ctx context.Context, op string, fn func([]core.Subscription) ([]core.Subscription, error)) error {
	s.mu.Lock()
	next, err := fn(core.Clone(s.loadLocked(ctx)))
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.store.Save(ctx, next); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%s: save ledger: %w", op, err)
	}
	s.invalidateLocked()
	userID := s.userID
	s.mu.Unlock()

	slog.DebugContext(ctx, "Ledger saved", applog.NewFields().WithOperation(op).WithCount(len(next)).ToSlice()...)
	return s.requestPush(ctx, userID)
}

func (s *LedgerService) requestPush(ctx context.Context, userID string) error {
	if userID == "" || s.pusher == nil {
		return nil
	}
	if err := s.pusher.RequestPush(ctx, userID); err != nil {
		slog.WarnContext(ctx, "Push after local change failed",
			applog.NewFields().WithOperation(applog.OpPush).WithUser(userID).WithError(err).ToSlice()...)
		if isPushErr(err) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrPushFailed, err)
	}
	return nil
}

func isPushErr(err error) bool {
	return err != nil && errors.Is(err, ErrPushFailed)
}

// CalculateTotal sums active subscriptions normalized to per.
func (s *LedgerService) CalculateTotal(ctx context.Context, per core.Cycle) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.CalculateTotal(s.loadLocked(ctx), per)
}

// SavedTotal sums inactive subscriptions normalized to per.
func (s *LedgerService) SavedTotal(ctx context.Context, per core.Cycle) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.SavedTotal(s.loadLocked(ctx), per)
}

// IsRegistered reports whether the plan is already in the ledger. An empty
// planID matches any plan of the entry.
func (s *LedgerService) IsRegistered(ctx context.Context, catalogRef, planID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.loadLocked(ctx) {
		if sub.CatalogRef == catalogRef && (planID == "" || sub.PlanID == planID) {
			return true
		}
	}
	return false
}

func (s *LedgerService) CategoryOrder(ctx context.Context) core.CategoryOrder {
	return s.store.LoadCategoryOrder(ctx)
}

func (s *LedgerService) SetCategoryOrder(ctx context.Context, order core.CategoryOrder) error {
	if err := s.store.SaveCategoryOrder(ctx, order); err != nil {
		return fmt.Errorf("save category order: %w", err)
	}
	return nil
}

// Login signs userID in and replaces the local ledger with the cloud copy.
// If the pull fails the user stays signed in with the local ledger.
func (s *LedgerService) Login(ctx context.Context, userID string) ([]core.Subscription, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrNotAuthenticated
	}
	s.mu.Lock()
	s.userID = userID
	s.mu.Unlock()

	if s.puller == nil {
		return s.List(ctx), nil
	}
	subs, err := s.puller.LoadFromCloud(ctx, userID)

	s.mu.Lock()
	s.invalidateLocked()
	s.mu.Unlock()
	if err != nil {
		slog.WarnContext(ctx, "Pull on login failed, keeping local ledger",
			applog.NewFields().WithOperation(applog.OpPull).WithUser(userID).WithError(err).ToSlice()...)
		return s.List(ctx), err
	}
	return subs, nil
}

// Resume restores a signed-in session without pulling. Later mutations
// push as userID.
func (s *LedgerService) Resume(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrNotAuthenticated
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
	return nil
}

// Logout signs out. Local data is kept.
func (s *LedgerService) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = ""
}

func (s *LedgerService) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Refresh drops the cached view so the next read comes from the store.
func (s *LedgerService) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidateLocked()
}

// Clear removes all local data.
func (s *LedgerService) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	s.invalidateLocked()
	return nil
}
