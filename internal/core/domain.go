package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Monthly Cycle = "monthly"
	Yearly  Cycle = "yearly"
)

// DefaultCategory is used for custom entries that do not name a category.
const DefaultCategory = "other"

const dateLayout = "2006-01-02"

type (
	// Cycle is the billing period of a subscription.
	Cycle string

	Date struct {
		time.Time
	}

	// Subscription is a user's instance of a paid plan. Amount is always
	// denominated in the base currency regardless of Currency.
	Subscription struct {
		ID            string          `json:"id"`
		CatalogRef    string          `json:"catalogRef,omitempty"`
		PlanID        string          `json:"planId,omitempty"`
		DisplayName   string          `json:"displayName,omitempty"`
		Category      string          `json:"category,omitempty"`
		Amount        decimal.Decimal `json:"amount"`
		Currency      string          `json:"currency,omitempty"`
		Cycle         Cycle           `json:"cycle"`
		Active        bool            `json:"active"`
		SortOrder     int             `json:"sortOrder"`
		Memo          string          `json:"memo,omitempty"`
		RenewalDate   *Date           `json:"renewalDate,omitempty"`
		CustomIconRef string          `json:"customIconRef,omitempty"`
		UpdatedAt     time.Time       `json:"updatedAt"`
	}

	// MonthlySnapshot is an immutable aggregate of the ledger for one month.
	MonthlySnapshot struct {
		YearMonth     string           `json:"yearMonth"`
		ActiveCount   int              `json:"activeCount"`
		InactiveCount int              `json:"inactiveCount"`
		TotalMonthly  int64            `json:"totalMonthly"`
		TotalYearly   int64            `json:"totalYearly"`
		ByCategory    map[string]int64 `json:"byCategory"`
		CreatedAt     time.Time        `json:"createdAt"`
	}

	// CategoryOrder is a user-chosen ordering of category labels.
	CategoryOrder []string

	Plan struct {
		ID       string          `json:"id"`
		Name     string          `json:"name"`
		Price    decimal.Decimal `json:"price"`
		Currency string          `json:"currency"`
		Cycle    Cycle           `json:"cycle"`
	}

	// CatalogEntry is a read-only service description from the static catalog.
	CatalogEntry struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		Color      string `json:"color"`
		HomeDomain string `json:"homeDomain,omitempty"`
		Category   string `json:"category"`
		Plans      []Plan `json:"plans"`
	}
)

var (
	ErrEmptyID       = errors.New("empty subscription id")
	ErrEmptyName     = errors.New("custom subscription requires a display name")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidCycle  = errors.New("invalid billing cycle")
	ErrNotFound      = errors.New("subscription not found")
	ErrInvalidOrder  = errors.New("order is not a permutation of the ledger")
)

// Valid reports whether c is one of the two supported billing periods.
func (c Cycle) Valid() bool {
	return c == Monthly || c == Yearly
}

func (c Cycle) String() string {
	return string(c)
}

// ParseCycle accepts "monthly"/"yearly" in any case.
func ParseCycle(s string) (Cycle, error) {
	c := Cycle(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", ErrInvalidCycle
	}
	return c, nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a calendar date in YYYY-MM-DD form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// IsCustom reports whether the subscription has no catalog reference.
func (s Subscription) IsCustom() bool {
	return s.CatalogRef == ""
}

func (s Subscription) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return ErrEmptyID
	}
	if s.IsCustom() && strings.TrimSpace(s.DisplayName) == "" {
		return ErrEmptyName
	}
	if len(s.DisplayName) > 200 {
		return errors.New("display name too long (max 200 characters)")
	}
	if s.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if !s.Cycle.Valid() {
		return ErrInvalidCycle
	}
	return nil
}

// Plan returns the plan with the given id, if the entry offers it.
func (e CatalogEntry) Plan(id string) (Plan, bool) {
	for _, p := range e.Plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// YearMonth returns the snapshot key for t.
func YearMonth(t time.Time) string {
	return t.Format("2006-01")
}

// Year returns the calendar year encoded in the snapshot key.
func (m MonthlySnapshot) Year() int {
	t, err := time.Parse("2006-01", m.YearMonth)
	if err != nil {
		return 0
	}
	return t.Year()
}

// Clone returns a deep copy so callers cannot alias the stored collection.
func Clone(subs []Subscription) []Subscription {
	if subs == nil {
		return []Subscription{}
	}
	out := make([]Subscription, len(subs))
	for i, s := range subs {
		if s.RenewalDate != nil {
			d := *s.RenewalDate
			s.RenewalDate = &d
		}
		out[i] = s
	}
	return out
}
