package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"subledger/internal/remote"
)

// Client stores remote rows in one tab of a spreadsheet. Row 1 is a header
// naming the columns; data starts at row 2.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	sheetID       *int64
}

var _ remote.Store = (*Client)(nil)

// NewWithCredentials authenticates with a service account key. Extra opts
// (an endpoint, for instance) are applied after the credentials.
func NewWithCredentials(ctx context.Context, spreadsheetID, sheetName string, credentialsJSON []byte, opts ...goption.ClientOption) (*Client, error) {
	if len(credentialsJSON) == 0 {
		return nil, errors.New("missing service account credentials")
	}
	opts = append([]goption.ClientOption{
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	}, opts...)
	return NewWithOptions(ctx, spreadsheetID, sheetName, opts...)
}

// NewWithOptions builds a client from explicit API options.
func NewWithOptions(ctx context.Context, spreadsheetID, sheetName string, opts ...goption.ClientOption) (*Client, error) {
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return New(svc, spreadsheetID, sheetName), nil
}

func New(svc *gsheet.Service, spreadsheetID, sheetName string) *Client {
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}
}

// readTable returns the header and every data row with its 1-based sheet row number.
func (c *Client) readTable(ctx context.Context) (header []string, rows []sheetRow, err error) {
	if c.svc == nil {
		return nil, nil, errors.New("sheets service not initialized")
	}
	rng := c.sheetName
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", rng, err)
	}
	if len(resp.Values) == 0 {
		return nil, nil, nil
	}
	header = toStrings(resp.Values[0])
	for i := 1; i < len(resp.Values); i++ {
		rows = append(rows, sheetRow{number: int64(i + 1), cells: toStrings(resp.Values[i])})
	}
	return header, rows, nil
}

func (c *Client) ListRows(ctx context.Context, userID string) ([]remote.Row, error) {
	header, rows, err := c.readTable(ctx)
	if err != nil {
		return nil, err
	}
	return parseRows(header, rows, userID)
}

func (c *Client) ListIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := c.ListRows(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

// UpsertRows overwrites the rows whose id is already present and appends
// the others. An empty sheet gets a header first.
func (c *Client) UpsertRows(ctx context.Context, userID string, rows []remote.Row) error {
	header, existing, err := c.readTable(ctx)
	if err != nil {
		return err
	}
	if len(header) == 0 {
		header = append([]string(nil), headerColumns...)
		rng := fmt.Sprintf("%s!A1:%s1", c.sheetName, columnLetter(len(header)))
		vr := &gsheet.ValueRange{Values: [][]any{toAny(header)}}
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
			ValueInputOption("RAW").Context(ctx).Do(); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	cols, err := columnIndex(header)
	if err != nil {
		return err
	}

	byID := map[string]sheetRow{}
	for _, r := range existing {
		if safeGet(r.cells, cols[colUserID]) == userID {
			byID[safeGet(r.cells, cols[colID])] = r
		}
	}

	last := columnLetter(len(header))
	var updates []*gsheet.ValueRange
	var appends [][]any
	for _, r := range rows {
		r.UserID = userID
		if cur, ok := byID[r.ID]; ok {
			updates = append(updates, &gsheet.ValueRange{
				Range:  fmt.Sprintf("%s!A%d:%s%d", c.sheetName, cur.number, last, cur.number),
				Values: [][]any{toAny(layoutRow(r, cols, len(header), cur.cells))},
			})
			continue
		}
		appends = append(appends, toAny(layoutRow(r, cols, len(header), nil)))
	}

	if len(updates) > 0 {
		req := &gsheet.BatchUpdateValuesRequest{ValueInputOption: "RAW", Data: updates}
		if _, err := c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
			return fmt.Errorf("update rows: %w", err)
		}
	}
	if len(appends) > 0 {
		rng := fmt.Sprintf("%s!A:%s", c.sheetName, last)
		vr := &gsheet.ValueRange{Values: appends}
		if _, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
			ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do(); err != nil {
			return fmt.Errorf("append rows: %w", err)
		}
	}
	slog.DebugContext(ctx, "Sheet rows upserted", "updated", len(updates), "appended", len(appends))
	return nil
}

func (c *Client) DeleteRows(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	return c.deleteWhere(ctx, userID, func(id string) bool {
		_, ok := want[id]
		return ok
	})
}

func (c *Client) DeleteAllRows(ctx context.Context, userID string) error {
	return c.deleteWhere(ctx, userID, func(string) bool { return true })
}

func (c *Client) deleteWhere(ctx context.Context, userID string, match func(id string) bool) error {
	header, rows, err := c.readTable(ctx)
	if err != nil {
		return err
	}
	if len(header) == 0 {
		return nil
	}
	cols, err := columnIndex(header)
	if err != nil {
		return err
	}

	var numbers []int64
	for _, r := range rows {
		if safeGet(r.cells, cols[colUserID]) == userID && match(safeGet(r.cells, cols[colID])) {
			numbers = append(numbers, r.number)
		}
	}
	if len(numbers) == 0 {
		return nil
	}

	sheetID, err := c.resolveSheetID(ctx)
	if err != nil {
		return err
	}
	// Bottom-up so earlier deletions do not shift later indexes
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] > numbers[j] })
	reqs := make([]*gsheet.Request, 0, len(numbers))
	for _, n := range numbers {
		reqs = append(reqs, &gsheet.Request{DeleteDimension: &gsheet.DeleteDimensionRequest{
			Range: &gsheet.DimensionRange{
				SheetId:    sheetID,
				Dimension:  "ROWS",
				StartIndex: n - 1,
				EndIndex:   n,
			},
		}})
	}
	batch := &gsheet.BatchUpdateSpreadsheetRequest{Requests: reqs}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, batch).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete rows: %w", err)
	}
	slog.DebugContext(ctx, "Sheet rows deleted", "count", len(numbers))
	return nil
}

func (c *Client) resolveSheetID(ctx context.Context) (int64, error) {
	if c.sheetID != nil {
		return *c.sheetID, nil
	}
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == c.sheetName {
			id := sh.Properties.SheetId
			c.sheetID = &id
			return id, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", c.sheetName)
}
