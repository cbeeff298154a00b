package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"INFO", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
			}
		})
	}
}

func TestLoggerComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Component: ComponentLedger, Output: &buf})

	l.Info("hello", FieldUserID, "u1")
	l.WithComponent(ComponentAMQP).Debug("child")

	out := buf.String()
	if !strings.Contains(out, "component=ledger") || !strings.Contains(out, "user_id=u1") {
		t.Errorf("missing fields in %q", out)
	}
	if !strings.Contains(out, "component=amqp") {
		t.Errorf("child component missing in %q", out)
	}
}

func TestLoggerJSONAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelWarn, Format: "json", Output: &buf})

	l.Info("dropped")
	l.WithFields(NewFields().WithOperation(OpPush).WithError(errors.New("boom"))).Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("info should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, `"operation":"push"`) || !strings.Contains(out, `"error":"boom"`) {
		t.Errorf("unexpected JSON output %q", out)
	}
}

func TestContext(t *testing.T) {
	l := New(Config{Component: ComponentCLI, Output: &bytes.Buffer{}})
	ctx := IntoContext(context.Background(), l)
	if FromContext(ctx) != l {
		t.Error("FromContext should return the stored logger")
	}
	if FromContext(context.Background()).Logger != slog.Default() {
		t.Error("missing logger should fall back to slog.Default")
	}
}

func TestFieldsWithError(t *testing.T) {
	f := NewFields().WithError(nil).WithSubscription("id-1", "")
	if _, ok := f[FieldError]; ok {
		t.Error("nil error should not add a field")
	}
	if _, ok := f[FieldCatalogRef]; ok {
		t.Error("empty catalog ref should not add a field")
	}
	if len(f.WithPush(2, 1).ToSlice()) != 6 {
		t.Errorf("unexpected slice %v", f.ToSlice())
	}
}

func TestFieldsToSliceIsSorted(t *testing.T) {
	got := NewFields().WithUser("u1").WithOperation(OpPull).WithCount(3).WithDuration(1500 * time.Millisecond).ToSlice()
	want := []any{FieldCount, 3, FieldDuration, int64(1500), FieldOperation, OpPull, FieldUserID, "u1"}
	if len(got) != len(want) {
		t.Fatalf("ToSlice() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ToSlice()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
