// internal/blocks/engine.go
package blocks

import (
	"crypto/rand"
	"encoding/binary"
	"log/slog"

	"github.com/solatis/alkatest/internal/types"
)

/*
 * Runtime engine.
 *
 * The Engine resolves collapsed blocks against an environment, executing
 * action side effects through injected collaborators. Nothing here is a
 * package-level singleton: the board, inventories, scheduler and listener
 * registry are all supplied by the caller, and any of them may be nil when
 * a caller only resolves values.
 *
 * An Engine is not safe for concurrent use. Resolution is synchronous and
 * runs to completion; a failure partway through an action array leaves the
 * earlier actions' effects in place.
 */

// Base is the declaring custom type of a custom object, stored under the
// object's "_base" key. Method returns a collapsed MethodType block and
// Property a collapsed Property block.
type Base interface {
	Method(name string) (map[string]any, bool)
	Property(name string) (map[string]any, bool)
}

// Board is the node collection mutated by addNode and removeNode.
type Board interface {
	NextNodeID() int
	AddNode(node types.Node)
	RemoveNode(id int) bool
}

// Inventories receives items from addItemsToInventory.
type Inventories interface {
	AddItems(node string, stacks []types.ItemStack) error
}

// Scheduler receives wait actions. Timing is the board layer's concern; the
// engine only reports the request.
type Scheduler interface {
	Wait(node string, duration float64)
}

// Listeners supplies the ordered action arrays registered for an event.
type Listeners interface {
	Listeners(event string) []any
}

// Engine resolves blocks and runs actions.
type Engine struct {
	board       Board
	inventories Inventories
	scheduler   Scheduler
	listeners   Listeners
	root        map[string]any
	logger      *slog.Logger
	random      func() float64

	maxCallDepth        int
	maxRepeatIterations int
	depth               int
}

// Option configures an Engine.
type Option func(*Engine)

// WithBoard attaches the node collection.
func WithBoard(b Board) Option { return func(e *Engine) { e.board = b } }

// WithInventories attaches the inventory collaborator.
func WithInventories(i Inventories) Option { return func(e *Engine) { e.inventories = i } }

// WithScheduler attaches the wait collaborator.
func WithScheduler(s Scheduler) Option { return func(e *Engine) { e.scheduler = s } }

// WithListeners attaches the event listener registry.
func WithListeners(l Listeners) Option { return func(e *Engine) { e.listeners = l } }

// WithContext sets the root bindings every event and RootEnv starts from.
func WithContext(root map[string]any) Option { return func(e *Engine) { e.root = root } }

// WithLogger sets the logger used by error actions and event dispatch.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithRandom replaces the random source. fn must return values in [0, 1).
func WithRandom(fn func() float64) Option { return func(e *Engine) { e.random = fn } }

// WithLimits overrides the call depth and repeat limits. Zero keeps the default.
func WithLimits(maxCallDepth, maxRepeatIterations int) Option {
	return func(e *Engine) {
		if maxCallDepth > 0 {
			e.maxCallDepth = maxCallDepth
		}
		if maxRepeatIterations > 0 {
			e.maxRepeatIterations = maxRepeatIterations
		}
	}
}

// NewEngine creates an engine with the given collaborators.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		root:                map[string]any{},
		random:              cryptoFloat64,
		maxCallDepth:        types.MaxCallDepth,
		maxRepeatIterations: types.MaxRepeatIterations,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// RootEnv returns a fresh environment holding only the root bindings.
func (e *Engine) RootEnv() *Env {
	return NewEnv(e.root)
}

// cryptoFloat64 draws a uniform float64 in [0, 1) from crypto/rand.
// The top 53 bits of a random uint64 fill the mantissa exactly, so the
// result can never round up to 1.
func cryptoFloat64() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0
	}
	n := binary.BigEndian.Uint64(buf[:]) >> 11
	return float64(n) / float64(1<<53)
}

// enter increments the call depth for a method call or event dispatch.
func (e *Engine) enter(stack types.Stack) error {
	if e.depth >= e.maxCallDepth {
		return types.NewBlockError(types.ErrCallDepthExceeded, stack, "call depth exceeds %d", e.maxCallDepth)
	}
	e.depth++
	return nil
}

func (e *Engine) leave() {
	e.depth--
}
