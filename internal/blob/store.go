// Package blob persists receipt artifacts by name.
package blob

import (
	"context"
	"fmt"
	"io"
	"strings"

	"payback/internal/core"
)

// Store is a flat namespace of immutable objects addressed by name.
type Store interface {
	// Put writes the whole object or nothing.
	Put(ctx context.Context, name string, data []byte, contentType string) error
	// Open returns core.ErrNotFound when the object does not exist.
	Open(ctx context.Context, name string) (*Object, error)
	Delete(ctx context.Context, name string) error
}

type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// ValidateName rejects names that could escape the namespace.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("%w: invalid object name %q", core.ErrValidation, name)
	}
	if strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: invalid object name %q", core.ErrValidation, name)
	}
	return nil
}
