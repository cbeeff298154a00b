// Package remote defines the cloud-side row model and the ports through which
// the reconciliation engine reads and writes a user's subscriptions.
package remote

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"subledger/internal/core"
)

// Row is the remote representation of one subscription. Rows are keyed by ID
// and scoped to UserID.
type Row struct {
	ID          string
	UserID      string
	ServiceID   string
	NameCustom  string
	Price       decimal.Decimal
	Currency    string
	Cycle       string
	Category    string
	IsActive    bool
	CustomIcon  string
	RenewalDate string // YYYY-MM-DD or empty
	Memo        string
	UpdatedAt   time.Time
	SortOrder   int
}

// Ports for outbound adapters.
type (
	RowWriter interface {
		// UpsertRows inserts or replaces rows by ID.
		UpsertRows(ctx context.Context, userID string, rows []Row) error
	}

	RowReader interface {
		ListRows(ctx context.Context, userID string) ([]Row, error)
		ListIDs(ctx context.Context, userID string) ([]string, error)
	}

	RowDeleter interface {
		// DeleteRows removes the given ids; unknown ids are ignored.
		DeleteRows(ctx context.Context, userID string, ids []string) error
		DeleteAllRows(ctx context.Context, userID string) error
	}

	// Store is the full set of operations a remote backend provides.
	Store interface {
		RowWriter
		RowReader
		RowDeleter
	}
)

// FromSubscription maps a local record to its remote row. PlanID has no
// remote column and is dropped.
func FromSubscription(userID string, s core.Subscription) Row {
	r := Row{
		ID:         s.ID,
		UserID:     userID,
		ServiceID:  s.CatalogRef,
		NameCustom: s.DisplayName,
		Price:      s.Amount,
		Currency:   s.Currency,
		Cycle:      string(s.Cycle),
		Category:   s.Category,
		IsActive:   s.Active,
		CustomIcon: s.CustomIconRef,
		Memo:       s.Memo,
		UpdatedAt:  s.UpdatedAt,
		SortOrder:  s.SortOrder,
	}
	if r.Currency == "" {
		r.Currency = core.BaseCurrency
	}
	if s.RenewalDate != nil {
		r.RenewalDate = s.RenewalDate.String()
	}
	return r
}

// ToSubscription maps a remote row back to a local record. An unknown cycle
// is read as monthly and an unparsable renewal date is dropped.
func (r Row) ToSubscription() core.Subscription {
	s := core.Subscription{
		ID:            r.ID,
		CatalogRef:    r.ServiceID,
		DisplayName:   r.NameCustom,
		Category:      r.Category,
		Amount:        r.Price,
		Currency:      r.Currency,
		Active:        r.IsActive,
		SortOrder:     r.SortOrder,
		Memo:          r.Memo,
		CustomIconRef: r.CustomIcon,
		UpdatedAt:     r.UpdatedAt,
	}
	c, err := core.ParseCycle(r.Cycle)
	if err != nil {
		slog.Warn("Remote row has unknown cycle, reading as monthly", "id", r.ID, "cycle", r.Cycle)
		c = core.Monthly
	}
	s.Cycle = c
	if r.RenewalDate != "" {
		if d, err := core.ParseDate(r.RenewalDate); err == nil {
			s.RenewalDate = &d
		}
	}
	return s
}
