// Package song defines the boundary to the external song catalog.
package song

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the catalog cannot resolve a song id.
var ErrNotFound = errors.New("song not found")

// Song is the display metadata clients need to render a selection
// without a second round trip.
type Song struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Language string `json:"language"`
}

// Catalog resolves song ids against the external catalog service.
type Catalog interface {
	Resolve(ctx context.Context, id string) (*Song, error)
}
