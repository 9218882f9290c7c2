package runtime

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/solatis/alkatest/internal/blocks"
	"github.com/solatis/alkatest/internal/board"
	"github.com/solatis/alkatest/internal/packs"
	"github.com/solatis/alkatest/internal/types"
)

const counterPack = `{
  "display": "Counter",
  "types": {"counter": {"data": {"ticks": {"_type": "number", "default": 0}}}},
  "counter": {"main": {}},
  "nodes": {"lamp": {"display": "Lamp", "size": 1}},
  "eventListeners": {
    "tick": [{
      "_type": "setData",
      "object": {"_type": "property", "object": "counter", "property": "main"},
      "key": "ticks",
      "value": {"_type": "getContext", "id": "@iteration"}
    }]
  }
}`

func writePack(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func quietHost(dir string, opts ...Option) *Host {
	base := []Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}
	return New(DirLoader(dir, nil), append(base, opts...)...)
}

func counterTicks(h *Host) any {
	var got any
	h.Inspect(func(reg *packs.Registry, _ *board.Board, _ *blocks.Engine) {
		if reg == nil {
			return
		}
		if obj, ok := reg.Object("counter", "main"); ok {
			got = obj["ticks"]
		}
	})
	return got
}

func TestHost_NotLoaded(t *testing.T) {
	h := quietHost(t.TempDir())
	if err := h.Emit("tick", 1.0); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Emit() error = %v, want ErrNotLoaded", err)
	}
	if err := h.Tick(); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Tick() error = %v, want ErrNotLoaded", err)
	}
	if _, err := h.Place("lamp", types.Position{}); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Place() error = %v, want ErrNotLoaded", err)
	}
}

func TestHost_ReloadAndTick(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, "counter.json", counterPack)

	var reloads int
	h := quietHost(dir, OnReload(func(reg *packs.Registry, report *packs.Report, err error) {
		if err == nil {
			reloads++
		}
	}))
	report, err := h.Reload()
	if err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if report.Err() != nil {
		t.Fatalf("Reload() report = %v", report.Err())
	}

	for i := 0; i < 3; i++ {
		if err := h.Tick(); err != nil {
			t.Fatalf("Tick() error = %v", err)
		}
	}
	if got := counterTicks(h); got != 3.0 {
		t.Errorf("counter.main.ticks = %v, want 3", got)
	}
	if h.Ticks() != 3 {
		t.Errorf("Ticks() = %d, want 3", h.Ticks())
	}

	n, err := h.Place("lamp", types.Position{X: 1, Y: 2})
	if err != nil || n.ID != 1 {
		t.Fatalf("Place() = %+v, %v, want node 1", n, err)
	}

	// The board survives a reload; the registry is rebuilt.
	if _, err := h.Reload(); err != nil {
		t.Fatalf("second Reload() error = %v", err)
	}
	if got := counterTicks(h); got != 0.0 {
		t.Errorf("counter.main.ticks after reload = %v, want 0", got)
	}
	h.Inspect(func(_ *packs.Registry, b *board.Board, _ *blocks.Engine) {
		if _, ok := b.Node(1); !ok {
			t.Errorf("node 1 lost on reload")
		}
	})
	if reloads != 2 {
		t.Errorf("OnReload ran %d times, want 2", reloads)
	}
}

func TestHost_ReloadErrorKeepsRegistry(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, "counter.json", counterPack)
	h := quietHost(dir)
	if _, err := h.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	writePack(t, dir, "broken.json", `{"display": `)
	if _, err := h.Reload(); err == nil {
		t.Fatalf("Reload() with a broken pack error = nil, want error")
	}
	if err := h.Tick(); err != nil {
		t.Errorf("Tick() after failed reload error = %v, want the old registry", err)
	}
}

func TestHost_TickReportsFailedReload(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, "counter.json", counterPack)
	h := quietHost(dir)
	if _, err := h.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	writePack(t, dir, "broken.json", `{"display": `)
	h.markDirty()
	err := h.Tick()
	if err == nil || errors.Is(err, ErrNotLoaded) {
		t.Fatalf("Tick() after a failed reload error = %v, want the reload error", err)
	}
	if h.Ticks() != 1 {
		t.Errorf("Ticks() = %d, want 1", h.Ticks())
	}
	if got := counterTicks(h); got != 1.0 {
		t.Errorf("counter.main.ticks = %v, want 1 from the previous content", got)
	}

	if err := h.Tick(); err != nil {
		t.Errorf("second Tick() error = %v, want nil once the host is clean", err)
	}
}

func TestHost_RunWatchesContent(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, "counter.json", counterPack)
	h := quietHost(dir, WithTickInterval(5*time.Millisecond), WithWatchDir(dir))
	if _, err := h.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	waitFor(t, func() bool { return h.Ticks() >= 2 })

	writePack(t, dir, "extra.json", `{"display": "Extra", "items": {"coal": {"display": "Coal"}}}`)
	waitFor(t, func() bool {
		var loaded bool
		h.Inspect(func(reg *packs.Registry, _ *board.Board, _ *blocks.Engine) {
			_, loaded = reg.Items["coal"]
		})
		return loaded
	})

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within 5s")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
