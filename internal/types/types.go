// Package types provides domain models shared across the block engine,
// the content-pack loader and the surrounding CLI.
//
// Zero-dependency design: types.go, domain.go, errors.go and stack.go use only
// the standard library. ID utilities in ids.go import uuid but are isolated so
// the engine packages can depend on types without pulling in ID generation.
package types

// LoadID identifies one run of the content-pack load pipeline.
// UUIDv7 time-ordering lets reload logs and stored packs sort by creation.
type LoadID string

// ReservedPrefix marks identifiers owned by the engine. Content pack ids may
// not start with it and iteration bindings are always placed under it.
const ReservedPrefix = "@"

// Resource limits enforced by the engine so untrusted packs cannot run unbounded.
const (
	// MaxCallDepth bounds nested method calls and event dispatches.
	// A method that calls itself, or an event listener that re-emits its own
	// event, fails at this depth instead of exhausting the goroutine stack.
	MaxCallDepth = 64

	// MaxRepeatIterations caps a single repeat action.
	// 10000 covers grid fills and bulk spawns while keeping a frame bounded.
	MaxRepeatIterations = 10000

	// MaxStackDepth bounds block nesting during collapse and resolve.
	// Each nested field adds one or two stack entries; 256 allows roughly
	// a hundred levels of authored nesting.
	MaxStackDepth = 256
)
