package core

import (
	"context"
	"io"

	"github.com/pkg/errors"
)

// File is an uploaded file.
type File struct {
	Name        string // original file name
	ContentType string
	Size        int64
	Content     io.Reader
}

// StoredFile describes a file saved by a FileStore.
type StoredFile struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// FileStore is any service that can persist uploaded files.
type FileStore interface {
	// Save stores f under the dir prefix.
	Save(ctx context.Context, dir string, f File) (StoredFile, error)
	// SaveImage re-encodes the image f to webp, fitting it in maxWidth x maxHeight, before storing it.
	SaveImage(ctx context.Context, dir string, f File, maxWidth, maxHeight int) (StoredFile, error)
	Delete(ctx context.Context, key string) error
}

var (
	ErrFileTooLarge    = errors.New("file is too large")
	ErrUnsupportedFile = errors.New("file type is not supported")
)
