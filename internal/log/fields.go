package log

import (
	"sort"
	"time"
)

// Common field names for structured logging
const (
	FieldComponent    = "component"
	FieldError        = "error"
	FieldOperation    = "operation"
	FieldUserID       = "user_id"
	FieldSubscription = "subscription_id"
	FieldCatalogRef   = "catalog_ref"
	FieldYearMonth    = "year_month"
	FieldCount        = "count"
	FieldUpserted     = "upserted"
	FieldPruned       = "pruned"
	FieldBackend      = "backend"
	FieldDuration     = "duration_ms"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentCLI     = "cli"
	ComponentLedger  = "ledger"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentBackend = "backend"
)

// Operations defines standard operation names
const (
	OpAdd      = "add"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpReorder  = "reorder"
	OpPush     = "push"
	OpPull     = "pull"
	OpSnapshot = "snapshot"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithError adds the error text; a nil error adds nothing.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithUser(userID string) LogFields {
	f[FieldUserID] = userID
	return f
}

func (f LogFields) WithSubscription(id, catalogRef string) LogFields {
	f[FieldSubscription] = id
	if catalogRef != "" {
		f[FieldCatalogRef] = catalogRef
	}
	return f
}

func (f LogFields) WithCount(n int) LogFields {
	f[FieldCount] = n
	return f
}

// WithPush records the outcome counts of one push.
func (f LogFields) WithPush(upserted, pruned int) LogFields {
	f[FieldUpserted] = upserted
	f[FieldPruned] = pruned
	return f
}

func (f LogFields) WithDuration(d time.Duration) LogFields {
	f[FieldDuration] = d.Milliseconds()
	return f
}

// ToSlice converts LogFields to alternating key/value args for slog, sorted
// by key.
func (f LogFields) ToSlice() []any {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	slice := make([]any, 0, len(f)*2)
	for _, k := range keys {
		slice = append(slice, k, f[k])
	}
	return slice
}
