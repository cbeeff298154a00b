package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"subledger/internal/remote"
)

const (
	colID = iota
	colUserID
	colServiceID
	colNameCustom
	colPrice
	colCurrency
	colCycle
	colCategory
	colIsActive
	colCustomIcon
	colRenewalDate
	colMemo
	colUpdatedAt
	colSortOrder
)

var headerColumns = []string{
	"id", "user_id", "service_id", "name_custom", "price", "currency", "cycle",
	"category", "is_active", "custom_icon", "renewal_date", "memo", "updated_at", "sort_order",
}

type sheetRow struct {
	number int64
	cells  []string
}

// columnIndex maps each known column to its position in header. id and
// user_id are required; other columns may be missing or reordered.
func columnIndex(header []string) ([]int, error) {
	cols := make([]int, len(headerColumns))
	var missing []string
	for i, name := range headerColumns {
		cols[i] = indexOf(header, name)
		if cols[i] == -1 && (i == colID || i == colUserID) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("unexpected sheet header: missing %s; got headers=%v", strings.Join(missing, ","), header)
	}
	return cols, nil
}

// parseRows converts sheet rows belonging to userID. Rows with an empty id
// are skipped.
func parseRows(header []string, rows []sheetRow, userID string) ([]remote.Row, error) {
	out := []remote.Row{}
	if len(header) == 0 {
		return out, nil
	}
	cols, err := columnIndex(header)
	if err != nil {
		return nil, err
	}
	for _, sr := range rows {
		get := func(col int) string { return strings.TrimSpace(safeGet(sr.cells, cols[col])) }
		if get(colUserID) != userID || get(colID) == "" {
			continue
		}
		r := remote.Row{
			ID:          get(colID),
			UserID:      userID,
			ServiceID:   get(colServiceID),
			NameCustom:  get(colNameCustom),
			Currency:    get(colCurrency),
			Cycle:       get(colCycle),
			Category:    get(colCategory),
			IsActive:    parseBool(get(colIsActive)),
			CustomIcon:  get(colCustomIcon),
			RenewalDate: get(colRenewalDate),
			Memo:        get(colMemo),
		}
		price, ok := parsePrice(get(colPrice))
		if !ok {
			return nil, fmt.Errorf("row %d: invalid price %q", sr.number, get(colPrice))
		}
		r.Price = price
		if t, err := time.Parse(time.RFC3339Nano, get(colUpdatedAt)); err == nil {
			r.UpdatedAt = t
		}
		r.SortOrder, _ = strconv.Atoi(get(colSortOrder))
		out = append(out, r)
	}
	return out, nil
}

// layoutRow places the fields of r under their header columns. Columns the
// header does not know keep their value from base.
func layoutRow(r remote.Row, cols []int, width int, base []string) []string {
	out := make([]string, width)
	copy(out, base)
	for i, v := range formatRow(r) {
		if cols[i] >= 0 && cols[i] < width {
			out[cols[i]] = v
		}
	}
	return out
}

// columnLetter returns the A1 name of the n-th (1-based) column.
func columnLetter(n int) string {
	if n < 1 {
		n = 1
	}
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}

// formatRow renders r in headerColumns order.
func formatRow(r remote.Row) []string {
	updated := ""
	if !r.UpdatedAt.IsZero() {
		updated = r.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	return []string{
		r.ID, r.UserID, r.ServiceID, r.NameCustom, r.Price.String(), r.Currency, r.Cycle,
		r.Category, strconv.FormatBool(r.IsActive), r.CustomIcon, r.RenewalDate, r.Memo,
		updated, strconv.Itoa(r.SortOrder),
	}
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y":
		return true
	}
	return false
}

// parsePrice accepts plain decimals and the decimal comma a spreadsheet
// locale may introduce. Empty means zero.
func parsePrice(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, true
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}
