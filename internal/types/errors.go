package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for block validation, collapse, resolution and pack loading.
var (
	// ErrInvalidBlock indicates a block failed shape or required-field validation.
	ErrInvalidBlock = errors.New("invalid block")

	// ErrUnknownBlockType indicates a _type discriminator no block category accepts.
	ErrUnknownBlockType = fmt.Errorf("%w: unknown block type", ErrInvalidBlock)

	// ErrUnresolvableReference indicates a method, property or context id was missing at runtime.
	ErrUnresolvableReference = errors.New("unresolvable reference")

	// ErrMethodNotFound indicates neither _base nor the object declares the method.
	ErrMethodNotFound = fmt.Errorf("%w: method not found", ErrUnresolvableReference)

	// ErrPropertyNotFound indicates neither _base nor the object declares the property.
	ErrPropertyNotFound = fmt.Errorf("%w: property not found", ErrUnresolvableReference)

	// ErrContextKeyNotFound indicates the id is not bound in the environment.
	ErrContextKeyNotFound = fmt.Errorf("%w: context key not found", ErrUnresolvableReference)

	// ErrSchemaViolation indicates a custom-object field does not satisfy its declared Type.
	ErrSchemaViolation = errors.New("schema violation")

	// ErrDuplicateIdentifier indicates an id was already collected from an earlier pack.
	ErrDuplicateIdentifier = errors.New("duplicate identifier")

	// ErrInvalidIdentifier indicates an empty or reserved-prefixed id.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrNodeNotFound indicates removeNode targeted an id the board does not hold.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNoReturnValue indicates a method used as a value finished without @return.
	ErrNoReturnValue = errors.New("method returned no value")

	// ErrCallDepthExceeded indicates nested method calls or events passed MaxCallDepth.
	ErrCallDepthExceeded = errors.New("call depth exceeded")

	// ErrTooManyIterations indicates a repeat action asked for more than MaxRepeatIterations.
	ErrTooManyIterations = errors.New("too many iterations")

	// ErrStackTooDeep indicates block nesting passed MaxStackDepth.
	ErrStackTooDeep = errors.New("block nesting too deep")
)
