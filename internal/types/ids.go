package types

import (
	"github.com/google/uuid"
)

// NewLoadID generates a UUIDv7 identifying one run of the load pipeline.
func NewLoadID() LoadID {
	return LoadID(uuid.Must(uuid.NewV7()).String())
}

// NewPackID generates a UUIDv7 primary key for a stored content pack.
func NewPackID() string {
	return uuid.Must(uuid.NewV7()).String()
}
