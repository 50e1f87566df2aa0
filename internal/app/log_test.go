package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestFimHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		opID    string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			opID:    "op-123",
			level:   slog.LevelInfo,
			message: "baseline created",
			want:    "2024-06-15T14:30:45Z\tINFO\top-123\tbaseline created\n",
		},
		{
			name:    "debug level",
			opID:    "op-456",
			level:   slog.LevelDebug,
			message: "unchanged",
			want:    "2024-06-15T14:30:45Z\tDEBUG\top-456\tunchanged\n",
		},
		{
			name:    "with record attrs",
			opID:    "op-789",
			level:   slog.LevelInfo,
			message: "change detected",
			attrs:   []slog.Attr{slog.String("path", "docs/file.txt"), slog.String("status", "modified")},
			want:    "2024-06-15T14:30:45Z\tINFO\top-789\tchange detected\tpath=docs/file.txt\tstatus=modified\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := newFimHandler(&buf, nil, slog.LevelInfo, tt.opID)

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			for _, a := range tt.attrs {
				r.AddAttrs(a)
			}

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}

			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestFimHandler_ConsoleLevel(t *testing.T) {
	var file, console bytes.Buffer
	logger := slog.New(newFimHandler(&file, &console, slog.LevelWarn, "op-1"))

	logger.Debug("unchanged", "path", "a.txt")
	logger.Info("check complete")
	logger.Warn("old baseline format detected")

	if n := strings.Count(file.String(), "\n"); n != 3 {
		t.Errorf("file got %d lines, want 3:\n%s", n, file.String())
	}
	if got := console.String(); !strings.Contains(got, "old baseline format") || strings.Contains(got, "check complete") {
		t.Errorf("console output = %q, want only the warning", got)
	}
}

func TestFimHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := newFimHandler(&buf, nil, slog.LevelInfo, "op-1")

	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "mirror")}).(*fimHandler)

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := slog.NewRecord(ts, slog.LevelInfo, "upload", 0)
	r.AddAttrs(slog.String("key", "abc"))

	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "component=mirror") {
		t.Errorf("expected pre-set attr component=mirror, got: %q", got)
	}
	if !strings.Contains(got, "key=abc") {
		t.Errorf("expected record attr key=abc, got: %q", got)
	}
	if h2.mu != h.mu {
		t.Error("derived handler must share the parent's lock")
	}
}

func TestFimHandler_WithAttrs_doesNotMutateOriginal(t *testing.T) {
	h := newFimHandler(nil, nil, slog.LevelInfo, "op-1")
	h.attrs = []slog.Attr{slog.String("a", "1")}

	h2 := h.WithAttrs([]slog.Attr{slog.String("b", "2")}).(*fimHandler)

	if len(h.attrs) != 1 {
		t.Errorf("original handler attrs modified: got %d, want 1", len(h.attrs))
	}
	if len(h2.attrs) != 2 {
		t.Errorf("new handler attrs: got %d, want 2", len(h2.attrs))
	}
}

func TestFimHandler_ConcurrentWritesDoNotInterleave(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newFimHandler(&buf, nil, slog.LevelInfo, "op-1"))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				logger.Info("hashing", "worker", i, "n", j)
			}
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 400 {
		t.Fatalf("got %d lines, want 400", len(lines))
	}
	for _, line := range lines {
		if strings.Count(line, "\t") != 5 {
			t.Fatalf("malformed line %q", line)
		}
	}
}

func TestNewLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")

	logger, f, err := newLogger(dir, "test-op", slog.LevelError)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	defer f.Close()

	logger.Info("hello")

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "\ttest-op\thello") {
		t.Errorf("log file = %q", string(data))
	}
}
