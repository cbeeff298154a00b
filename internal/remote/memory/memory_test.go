package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"subledger/internal/remote"
)

func TestStoreUpsertAndList(t *testing.T) {
	ctx := context.Background()
	s := New()

	_ = s.UpsertRows(ctx, "u1", []remote.Row{{ID: "a", Price: decimal.NewFromInt(1)}, {ID: "b"}})
	_ = s.UpsertRows(ctx, "u1", []remote.Row{{ID: "a", Price: decimal.NewFromInt(2)}})
	_ = s.UpsertRows(ctx, "u2", []remote.Row{{ID: "z"}})

	rows, err := s.ListRows(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].ID != "a" || !rows[0].Price.Equal(decimal.NewFromInt(2)) || rows[0].UserID != "u1" {
		t.Fatalf("unexpected rows %+v", rows)
	}
	ids, _ := s.ListIDs(ctx, "u2")
	if len(ids) != 1 || ids[0] != "z" {
		t.Fatalf("users should be isolated, got %v", ids)
	}
}

func TestStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.UpsertRows(ctx, "u1", []remote.Row{{ID: "a"}, {ID: "b"}, {ID: "c"}})

	if err := s.DeleteRows(ctx, "u1", []string{"b", "missing"}); err != nil {
		t.Fatal(err)
	}
	ids, _ := s.ListIDs(ctx, "u1")
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "c" {
		t.Fatalf("got %v", ids)
	}

	_ = s.DeleteAllRows(ctx, "u1")
	rows, _ := s.ListRows(ctx, "u1")
	if len(rows) != 0 {
		t.Fatalf("expected no rows, got %d", len(rows))
	}
	if err := s.DeleteRows(ctx, "nobody", []string{"x"}); err != nil {
		t.Fatalf("unknown user should be a no-op: %v", err)
	}
}
