package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"subledger/internal/catalog"
	"subledger/internal/core"
	"subledger/internal/remote/memory"
	"subledger/internal/storage"
)

func testCatalog() *catalog.Catalog {
	return catalog.New([]core.CatalogEntry{
		{ID: "spotify", Name: "Spotify", Category: "music", Plans: []core.Plan{
			{ID: "individual", Name: "Individual", Price: decimal.NewFromInt(980), Currency: "JPY", Cycle: core.Monthly},
			{ID: "annual", Name: "Annual", Price: decimal.NewFromInt(9800), Currency: "JPY", Cycle: core.Yearly},
		}},
		{ID: "chatgpt", Name: "ChatGPT", Category: "software", Plans: []core.Plan{
			{ID: "plus", Name: "Plus", Price: decimal.NewFromInt(20), Currency: "USD", Cycle: core.Monthly},
		}},
	}, map[string]string{"music": "Music"})
}

func seqIDs() core.IDGenerator {
	n := 0
	return core.IDFunc(func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	})
}

type recordingPusher struct {
	users []string
	err   error
}

func (p *recordingPusher) RequestPush(_ context.Context, userID string) error {
	p.users = append(p.users, userID)
	return p.err
}

func newService(opts ...LedgerOption) (*LedgerService, *storage.LocalStore) {
	store := storage.NewLocalStore(storage.NewMemoryKV())
	clock := time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)
	base := []LedgerOption{WithIDGenerator(seqIDs()), WithClock(func() time.Time { return clock })}
	return NewLedgerService(store, testCatalog(), append(base, opts...)...), store
}

func TestAddThenToggle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	sub, err := svc.AddFromPlan(ctx, "spotify", "individual", decimal.Zero)
	if err != nil {
		t.Fatal(err)
	}
	if sub.ID != "id-1" || !sub.Active || sub.Cycle != core.Monthly {
		t.Fatalf("unexpected record %+v", sub)
	}
	if got := svc.CalculateTotal(ctx, core.Monthly); !got.Equal(decimal.NewFromInt(980)) {
		t.Fatalf("monthly total %s", got)
	}
	if got := svc.CalculateTotal(ctx, core.Yearly); !got.Equal(decimal.NewFromInt(11760)) {
		t.Fatalf("yearly total %s", got)
	}

	if _, err := svc.Toggle(ctx, sub.ID); err != nil {
		t.Fatal(err)
	}
	if got := svc.CalculateTotal(ctx, core.Monthly); !got.IsZero() {
		t.Fatalf("toggled off should total 0, got %s", got)
	}
	if got := svc.SavedTotal(ctx, core.Monthly); !got.Equal(decimal.NewFromInt(980)) {
		t.Fatalf("saved total %s", got)
	}
}

func TestAddFromPlanForeignCurrency(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	sub, err := svc.AddFromPlan(ctx, "chatgpt", "plus", decimal.RequireFromString("0.008"))
	if err != nil {
		t.Fatal(err)
	}
	if !sub.Amount.Equal(decimal.NewFromInt(2500)) || sub.Currency != "USD" {
		t.Fatalf("expected 2500 JPY stored, got %s %s", sub.Amount, sub.Currency)
	}

	if _, err := svc.AddFromPlan(ctx, "nope", "x", decimal.Zero); err == nil {
		t.Fatalf("unknown entry should fail")
	}
	if _, err := svc.AddFromPlan(ctx, "spotify", "family", decimal.Zero); err == nil {
		t.Fatalf("unknown plan should fail")
	}
}

func TestAddCustomValidation(t *testing.T) {
	ctx := context.Background()
	svc, store := newService()

	sub, err := svc.AddCustom(ctx, CustomInput{Name: " Gym ", Amount: decimal.NewFromInt(36000), Cycle: core.Yearly})
	if err != nil {
		t.Fatal(err)
	}
	if sub.DisplayName != "Gym" || sub.Category != core.DefaultCategory || sub.Currency != core.BaseCurrency {
		t.Fatalf("unexpected %+v", sub)
	}

	bad := []CustomInput{
		{Name: "", Amount: decimal.NewFromInt(1), Cycle: core.Monthly},
		{Name: "x", Amount: decimal.NewFromInt(-1), Cycle: core.Monthly},
		{Name: "x", Amount: decimal.NewFromInt(1), Cycle: "weekly"},
	}
	for i, in := range bad {
		if _, err := svc.AddCustom(ctx, in); err == nil {
			t.Fatalf("case %d should fail", i)
		}
	}
	if n := len(store.Load(ctx)); n != 1 {
		t.Fatalf("invalid adds must not be stored, have %d", n)
	}
}

func TestSortOrderAssignedAndReorder(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	for _, n := range []string{"a", "b", "c"} {
		if _, err := svc.AddCustom(ctx, CustomInput{Name: n, Amount: decimal.NewFromInt(1), Cycle: core.Monthly}); err != nil {
			t.Fatal(err)
		}
	}
	subs := svc.List(ctx)
	for i, s := range subs {
		if s.SortOrder != i {
			t.Fatalf("record %d has SortOrder %d", i, s.SortOrder)
		}
	}

	if err := svc.Reorder(ctx, []string{"id-3", "id-1", "id-2"}); err != nil {
		t.Fatal(err)
	}
	got, _ := svc.Get(ctx, "id-3")
	if got.SortOrder != 0 {
		t.Fatalf("id-3 should be first, SortOrder %d", got.SortOrder)
	}

	for _, bad := range [][]string{{"id-1", "id-2"}, {"id-1", "id-1", "id-2"}, {"id-1", "id-2", "x"}} {
		if err := svc.Reorder(ctx, bad); !errors.Is(err, core.ErrInvalidOrder) {
			t.Fatalf("Reorder(%v) = %v, want ErrInvalidOrder", bad, err)
		}
	}
}

func TestUpdatesAndDelete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	sub, _ := svc.AddCustom(ctx, CustomInput{Name: "Gym", Amount: decimal.NewFromInt(3000), Cycle: core.Monthly})

	if s, err := svc.SetMemo(ctx, sub.ID, "cancel in spring"); err != nil || s.Memo != "cancel in spring" {
		t.Fatalf("memo: %+v %v", s, err)
	}
	if s, err := svc.Rename(ctx, sub.ID, "Fitness club"); err != nil || s.DisplayName != "Fitness club" {
		t.Fatalf("rename: %+v %v", s, err)
	}
	if _, err := svc.Rename(ctx, sub.ID, "  "); !errors.Is(err, core.ErrEmptyName) {
		t.Fatalf("custom entry cannot lose its name: %v", err)
	}
	if s, err := svc.SetPrice(ctx, sub.ID, decimal.NewFromInt(30000), core.Yearly); err != nil || s.Cycle != core.Yearly {
		t.Fatalf("price: %+v %v", s, err)
	}
	d := core.NewDate(2027, 4, 1)
	if s, err := svc.SetRenewalDate(ctx, sub.ID, &d); err != nil || s.RenewalDate.String() != "2027-04-01" {
		t.Fatalf("renewal: %+v %v", s, err)
	}

	if _, err := svc.Toggle(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("toggle missing: %v", err)
	}
	if err := svc.Delete(ctx, sub.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(ctx, sub.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
	if len(svc.List(ctx)) != 0 {
		t.Fatalf("ledger should be empty")
	}
}

func TestIsRegistered(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	_, _ = svc.AddFromPlan(ctx, "spotify", "individual", decimal.Zero)

	if !svc.IsRegistered(ctx, "spotify", "individual") || !svc.IsRegistered(ctx, "spotify", "") {
		t.Fatalf("spotify should be registered")
	}
	if svc.IsRegistered(ctx, "spotify", "annual") || svc.IsRegistered(ctx, "chatgpt", "") {
		t.Fatalf("unexpected registration")
	}
}

func TestPushOnlyWhenSignedIn(t *testing.T) {
	ctx := context.Background()
	p := &recordingPusher{}
	svc, _ := newService(WithPusher(p))

	_, _ = svc.AddCustom(ctx, CustomInput{Name: "a", Amount: decimal.NewFromInt(1), Cycle: core.Monthly})
	if len(p.users) != 0 {
		t.Fatalf("signed out: no push expected, got %v", p.users)
	}

	if _, err := svc.Login(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	_, _ = svc.AddCustom(ctx, CustomInput{Name: "b", Amount: decimal.NewFromInt(1), Cycle: core.Monthly})
	if len(p.users) != 1 || p.users[0] != "u1" {
		t.Fatalf("expected push for u1, got %v", p.users)
	}

	svc.Logout()
	_, _ = svc.Toggle(ctx, "id-1")
	if len(p.users) != 1 {
		t.Fatalf("push after logout: %v", p.users)
	}
	if len(svc.List(ctx)) != 2 {
		t.Fatalf("logout must keep local data")
	}
}

func TestPushFailureKeepsLocalChange(t *testing.T) {
	ctx := context.Background()
	p := &recordingPusher{err: errors.New("offline")}
	svc, store := newService(WithPusher(p))
	_, _ = svc.Login(ctx, "u1")

	sub, err := svc.AddCustom(ctx, CustomInput{Name: "a", Amount: decimal.NewFromInt(1), Cycle: core.Monthly})
	if !errors.Is(err, ErrPushFailed) {
		t.Fatalf("expected ErrPushFailed, got %v", err)
	}
	if sub.ID == "" {
		t.Fatalf("record should still be returned")
	}
	if n := len(store.Load(ctx)); n != 1 {
		t.Fatalf("local change lost, have %d records", n)
	}
}

func TestLoginPullsAndDirectPush(t *testing.T) {
	ctx := context.Background()
	rem := memory.New()

	// Device one adds and pushes directly
	store1 := storage.NewLocalStore(storage.NewMemoryKV())
	rec1 := NewReconciler(store1, rem)
	dev1 := NewLedgerService(store1, testCatalog(), WithReconciler(rec1), WithPusher(DirectPusher{Reconciler: rec1}))
	if _, err := dev1.Login(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if _, err := dev1.AddFromPlan(ctx, "spotify", "individual", decimal.Zero); err != nil {
		t.Fatal(err)
	}

	// Device two has unrelated local data that login replaces
	store2 := storage.NewLocalStore(storage.NewMemoryKV())
	_ = store2.Save(ctx, []core.Subscription{mk("stale", 1, core.Monthly, true)})
	rec2 := NewReconciler(store2, rem)
	dev2 := NewLedgerService(store2, testCatalog(), WithReconciler(rec2))
	_ = dev2.List(ctx) // warm the cache

	subs, err := dev2.Login(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 1 || subs[0].CatalogRef != "spotify" {
		t.Fatalf("unexpected pulled ledger %+v", subs)
	}
	if got := dev2.CalculateTotal(ctx, core.Monthly); !got.Equal(decimal.NewFromInt(980)) {
		t.Fatalf("cache not refreshed after login, total %s", got)
	}
	if dev2.UserID() != "u1" {
		t.Fatalf("user not signed in")
	}
	if _, err := dev2.Login(ctx, " "); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("blank user: %v", err)
	}
}

func TestCategoryOrderAndClear(t *testing.T) {
	ctx := context.Background()
	svc, store := newService()
	_, _ = svc.AddCustom(ctx, CustomInput{Name: "a", Amount: decimal.NewFromInt(1), Cycle: core.Monthly})
	if err := svc.SetCategoryOrder(ctx, core.CategoryOrder{"Music", "Other"}); err != nil {
		t.Fatal(err)
	}
	if got := svc.CategoryOrder(ctx); len(got) != 2 || got[0] != "Music" {
		t.Fatalf("order %v", got)
	}
	if err := svc.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if len(svc.List(ctx)) != 0 || len(store.LoadCategoryOrder(ctx)) != 0 {
		t.Fatalf("clear left data behind")
	}
}

func TestListReturnsCopy(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	_, _ = svc.AddCustom(ctx, CustomInput{Name: "a", Amount: decimal.NewFromInt(1), Cycle: core.Monthly})
	subs := svc.List(ctx)
	subs[0].Active = false
	if !svc.List(ctx)[0].Active {
		t.Fatalf("List leaked internal state")
	}
}

func TestResumeDoesNotPull(t *testing.T) {
	ctx := context.Background()
	rem := memory.New()
	p := &recordingPusher{}
	store := storage.NewLocalStore(storage.NewMemoryKV())
	_ = store.Save(ctx, []core.Subscription{mk("local", 500, core.Monthly, true)})
	svc := NewLedgerService(store, testCatalog(), WithReconciler(NewReconciler(store, rem)), WithPusher(p))

	if err := svc.Resume(""); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("blank user: %v", err)
	}
	if err := svc.Resume("u1"); err != nil {
		t.Fatal(err)
	}
	if len(svc.List(ctx)) != 1 {
		t.Fatalf("resume must keep the local ledger")
	}
	if _, err := svc.Toggle(ctx, "local"); err != nil {
		t.Fatal(err)
	}
	if len(p.users) != 1 || p.users[0] != "u1" {
		t.Fatalf("mutation after resume should push, got %v", p.users)
	}
}
