package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestFromContext_Default(t *testing.T) {
	if FromContext(context.Background()) != slog.Default() {
		t.Error("FromContext without logger should return slog.Default()")
	}
}

func TestWithLogger(t *testing.T) {
	l := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx := WithLogger(context.Background(), l)
	if FromContext(ctx) != l {
		t.Error("FromContext did not return the stored logger")
	}
}

func TestConnID(t *testing.T) {
	ctx := context.Background()
	if got := ConnIDFromContext(ctx); got != "" {
		t.Errorf("ConnIDFromContext(empty) = %q", got)
	}
	ctx = WithConnID(ctx, "conn_01hx")
	if got := ConnIDFromContext(ctx); got != "conn_01hx" {
		t.Errorf("ConnIDFromContext = %q", got)
	}
}

func TestL_AddsConnID(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := WithConnID(WithLogger(context.Background(), l), "conn_abc")
	L(ctx).Info("client connected")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON log: %v", err)
	}
	if entry["conn_id"] != "conn_abc" {
		t.Errorf("conn_id = %v", entry["conn_id"])
	}
}
