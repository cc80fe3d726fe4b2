package uploads

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
)

// ErrInvalidName is returned for names that would escape the storage root
var ErrInvalidName = errors.New("invalid image name")

// Storage persists uploaded post images
type Storage interface {
	// Save stores the content under name and returns the path to record on the post
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	// Delete removes a previously saved image; a missing image is not an error
	Delete(ctx context.Context, path string) error
	// URL returns the address a browser can load the image from
	URL(path string) string
}

// NewName returns a fresh random file name keeping the extension
func NewName(ext string) string {
	return uuid.NewString() + ext
}
