// internal/runtime/host.go
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/solatis/alkatest/internal/blocks"
	"github.com/solatis/alkatest/internal/board"
	"github.com/solatis/alkatest/internal/packs"
	"github.com/solatis/alkatest/internal/types"
)

/*
 * Runtime host.
 *
 * A Host owns one registry, one board and the engine bound to them. Every
 * entry point (reload, emit, tick, placement) takes the host mutex, so the
 * single-threaded engine never sees two callers at once. The board survives
 * reloads; the registry and engine are swapped as a unit.
 *
 * Run drives the host: it emits "tick" with the tick count on every
 * interval and, when a watch directory is set, reloads on the first tick
 * after a pack file in it changed.
 */

// EventTick is emitted by Run on every tick.
const EventTick = "tick"

// ErrNotLoaded is returned before the first successful Reload.
var ErrNotLoaded = errors.New("no content loaded")

// Loader returns the packs to load, in load order.
type Loader func() ([]packs.ContentPack, error)

// DirLoader reads packs from dir, optionally limited to names in order.
func DirLoader(dir string, names []string) Loader {
	return func() ([]packs.ContentPack, error) {
		return packs.ReadDir(dir, names)
	}
}

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the logger for the host, loader and engine.
func WithLogger(l *slog.Logger) Option { return func(h *Host) { h.logger = l } }

// WithLimits sets the engine call depth and repeat limits.
func WithLimits(maxCallDepth, maxRepeatIterations int) Option {
	return func(h *Host) { h.maxCallDepth, h.maxRepeatIterations = maxCallDepth, maxRepeatIterations }
}

// WithTickInterval sets how often Run emits tick.
func WithTickInterval(d time.Duration) Option { return func(h *Host) { h.tickInterval = d } }

// WithWatchDir makes Run reload when pack files in dir change.
func WithWatchDir(dir string) Option { return func(h *Host) { h.watchDir = dir } }

// OnReload registers fn to run after every reload attempt with its outcome.
func OnReload(fn func(reg *packs.Registry, report *packs.Report, err error)) Option {
	return func(h *Host) { h.onReload = fn }
}

// Host serialises access to a registry, a board and their engine.
type Host struct {
	mu     sync.Mutex
	load   Loader
	logger *slog.Logger
	board  *board.Board
	reg    *packs.Registry
	engine *blocks.Engine
	ticks  int
	dirty  bool

	maxCallDepth        int
	maxRepeatIterations int
	tickInterval        time.Duration
	watchDir            string
	onReload            func(*packs.Registry, *packs.Report, error)
}

// New creates a host. Nothing is loaded until Reload.
func New(load Loader, opts ...Option) *Host {
	h := &Host{load: load, board: board.New(), tickInterval: time.Second}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// Reload runs the load pipeline and swaps in the result. A loader error
// keeps the previous registry; entity rejections only show in the Report.
func (h *Host) Reload() (*packs.Report, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reload()
}

func (h *Host) reload() (*packs.Report, error) {
	h.dirty = false
	list, err := h.load()
	if err != nil {
		err = fmt.Errorf("reload: %w", err)
		h.logger.Error("content reload failed", "error", err)
		if h.onReload != nil {
			h.onReload(h.reg, nil, err)
		}
		return nil, err
	}

	reg, report := packs.Process(list, packs.WithLogger(h.logger))
	h.reg = reg
	h.engine = blocks.NewEngine(
		blocks.WithBoard(h.board),
		blocks.WithInventories(h.board),
		blocks.WithScheduler(h.board),
		blocks.WithListeners(reg.Listeners),
		blocks.WithContext(reg.Root()),
		blocks.WithLogger(h.logger),
		blocks.WithLimits(h.maxCallDepth, h.maxRepeatIterations),
	)
	h.logger.Info("content reloaded", "load_id", reg.LoadID, "digest", reg.Digest, "rejected", report.Len())
	if h.onReload != nil {
		h.onReload(reg, report, nil)
	}
	return report, nil
}

// Emit dispatches event with payload.
func (h *Host) Emit(event string, payload any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.engine == nil {
		return ErrNotLoaded
	}
	return h.engine.Emit(event, payload)
}

// Tick advances the tick count, reloading first when the watch directory
// changed, and emits tick with the new count. A failed reload is returned
// after the tick ran on the previous content.
func (h *Host) Tick() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	var reloadErr error
	if h.dirty {
		if _, err := h.reload(); err != nil {
			reloadErr = err
		}
	}
	if h.engine == nil {
		return errors.Join(reloadErr, ErrNotLoaded)
	}
	h.ticks++
	err := h.engine.Emit(EventTick, float64(h.ticks))
	for _, w := range h.board.DrainWaits() {
		h.logger.Debug("wait requested", "node", w.Node, "duration", w.Duration)
	}
	return errors.Join(reloadErr, err)
}

// Ticks returns the number of ticks emitted so far.
func (h *Host) Ticks() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ticks
}

// Place adds a node of nodeType at pos and runs its place actions.
func (h *Host) Place(nodeType string, pos types.Position) (types.Node, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.engine == nil {
		return types.Node{}, ErrNotLoaded
	}
	return h.reg.PlaceNode(h.engine, h.board, nodeType, pos)
}

// RunAction runs the node action name on the node nodeID.
func (h *Host) RunAction(nodeID int, name string) (types.NodeAction, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.engine == nil {
		return types.NodeAction{}, ErrNotLoaded
	}
	return h.reg.RunNodeAction(h.engine, h.board, nodeID, name)
}

// Inspect runs fn with the current registry, board and engine while holding
// the host lock. reg and e are nil before the first load.
func (h *Host) Inspect(fn func(reg *packs.Registry, b *board.Board, e *blocks.Engine)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(h.reg, h.board, h.engine)
}

func (h *Host) markDirty() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dirty = true
}

// Run ticks until ctx ends. Tick errors are logged, never fatal.
func (h *Host) Run(ctx context.Context) error {
	var events <-chan fsnotify.Event
	var errs <-chan error
	if h.watchDir != "" {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		defer watcher.Close()
		if err := watcher.Add(h.watchDir); err != nil {
			return fmt.Errorf("watch %s: %w", h.watchDir, err)
		}
		events, errs = watcher.Events, watcher.Errors
	}

	ticker := time.NewTicker(h.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := h.Tick(); err != nil {
				h.logger.Warn("tick failed", "error", err)
			}
		case ev := <-events:
			if packs.IsPackFile(filepath.Base(ev.Name)) && ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				h.logger.Debug("content changed", "file", ev.Name, "op", ev.Op.String())
				h.markDirty()
			}
		case err := <-errs:
			h.logger.Warn("watcher error", "error", err)
		}
	}
}
