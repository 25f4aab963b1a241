package logger

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}
	if err := InitWithWriter(nil); err == nil {
		t.Fatal("expected error for nil writer")
	}
}

func TestLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	ctx := WithRequestID(context.Background(), "req-1")
	Named("series").Info(ctx, "served",
		String("view", "dashboard"),
		Int("points", 12),
		Bool("cached", true),
		Duration("took", 15*time.Millisecond),
	)

	out := buf.String()
	for _, want := range []string{"msg=served", "component=series", "view=dashboard", "points=12", "cached=true", "took=15ms", "request_id=req-1", "source="} {
		if !bytes.Contains([]byte(out), []byte(want)) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	Get().Debug(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug record written at info level: %q", buf.String())
	}

	if err := SetLevelString("DEBUG"); err != nil {
		t.Fatalf("set level: %v", err)
	}
	Get().Debug(context.Background(), "visible")
	if !bytes.Contains(buf.Bytes(), []byte("visible")) {
		t.Fatalf("debug record missing after level change: %q", buf.String())
	}

	if err := SetLevelString("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
	SetLevelString("info") //nolint:errcheck
}

func TestRequestID(t *testing.T) {
	if got := RequestID(context.Background()); got != "" {
		t.Fatalf("expected empty request id, got %q", got)
	}
	ctx := WithRequestID(context.Background(), "abc")
	if got := RequestID(ctx); got != "abc" {
		t.Fatalf("expected abc, got %q", got)
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info(context.Background(), "dropped", Error(context.Canceled))
	l.Named("x").Warn(context.Background(), "dropped")
}
