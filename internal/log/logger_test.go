package log

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"WARN", slog.LevelWarn, false},
		{" error ", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestLoggerComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Component: ComponentBackup, Output: &buf})
	l.Info("exported", FieldBytes, 10)
	l.WithComponent(ComponentHTTP).Debug("served")

	out := buf.String()
	if !strings.Contains(out, "component=backup") || !strings.Contains(out, "bytes=10") {
		t.Fatalf("missing attributes in %q", out)
	}
	if strings.Count(out, "component=") != 2 || !strings.Contains(out, "component=http") {
		t.Fatalf("component not replaced: %q", out)
	}
}

func TestMiddlewareStoresLogger(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Component: ComponentHTTP, Output: &buf})
	h := Middleware(l, func(*http.Request) string { return "req_1" })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Info("inside")
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.Contains(buf.String(), "request_id=req_1") {
		t.Fatalf("request id not attached: %q", buf.String())
	}
	if FromContext(context.Background()).Component() != "unknown" {
		t.Fatalf("expected fallback logger")
	}
}

func TestFieldsBuilder(t *testing.T) {
	f := NewFields().WithImport(3, 2, 1).WithError(nil).WithOperation(OpImport)
	if f[FieldInserted] != 3 || f[FieldSkipped] != 2 || f[FieldFailed] != 1 {
		t.Fatalf("unexpected fields %v", f)
	}
	if _, ok := f[FieldError]; ok {
		t.Fatalf("nil error should not be recorded")
	}
	if len(f.ToSlice()) != 2*len(f) {
		t.Fatalf("ToSlice length mismatch")
	}
}
