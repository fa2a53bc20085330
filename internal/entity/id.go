package entity

import (
	"fmt"

	"github.com/google/uuid"
)

// NewID generates a random UUIDv4 entity id.
func NewID() string {
	return uuid.New().String()
}

// ValidateID checks that id is a UUIDv4.
func ValidateID(id string) error {
	u, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidID, id, err)
	}
	if u.Version() != 4 {
		return fmt.Errorf("%w: %q is a version %d uuid, want 4", ErrInvalidID, id, u.Version())
	}
	return nil
}

// ResolveID returns id when it is a valid UUIDv4, a fresh id when it is empty,
// and ErrInvalidID otherwise.
func ResolveID(id string) (string, error) {
	if id == "" {
		return NewID(), nil
	}
	if err := ValidateID(id); err != nil {
		return "", err
	}
	return id, nil
}
