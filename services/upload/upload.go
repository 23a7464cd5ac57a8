// Package uploadsvc stores uploaded files on the local disk or in an Aliyun OSS bucket.
package uploadsvc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolhub/core"
)

const webpQuality = 80

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9.\-_]+`)

	// attachments teachers may share
	allowedTypes = []string{
		"application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.ms-powerpoint",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/zip",
		"text/plain",
		"image/jpeg",
		"image/png",
		"image/gif",
		"image/webp",
	}
	imageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

	newKeyFunc = func(dir, name string) string { // mockable
		return path.Join(dir, core.NowFunc().UTC().Format("20060102")+"-"+uuid.New().String()+"-"+sanitize(name))
	}
)

// backend persists the bytes of a file under key.
type backend interface {
	put(ctx context.Context, key, contentType string, content []byte) error
	remove(ctx context.Context, key string) error
	url(key string) string
}

type fileStore struct {
	backend
	maxSize int64
}

var _ core.FileStore = (*fileStore)(nil) // interface compliance check

// NewFileStore returns the file store selected by conf.Storage.Driver: "local" (default) or "oss".
func NewFileStore(conf *core.Config) (core.FileStore, error) {
	var (
		b   backend
		err error
	)
	switch conf.Storage.Driver {
	case "", "local":
		b = newLocalBackend(conf.Storage)
	case "oss":
		if b, err = newOSSBackend(conf.Storage); err != nil {
			return nil, err
		}
	default:
		return nil, errors.Errorf("unknown storage driver %q", conf.Storage.Driver)
	}
	return &fileStore{backend: b, maxSize: conf.Storage.MaxUploadSize}, nil
}

// read loads the content of f, rejecting files larger than the max upload size.
func (fs *fileStore) read(f core.File) ([]byte, error) {
	if f.Content == nil {
		return nil, core.NewFieldError("file", core.ErrUnsupportedFile)
	}
	r := f.Content
	if fs.maxSize > 0 {
		if f.Size > fs.maxSize {
			return nil, core.NewFieldError("file", core.ErrFileTooLarge)
		}
		r = io.LimitReader(f.Content, fs.maxSize+1)
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading file")
	}
	if fs.maxSize > 0 && int64(len(content)) > fs.maxSize {
		return nil, core.NewFieldError("file", core.ErrFileTooLarge)
	}
	return content, nil
}

func (fs *fileStore) store(ctx context.Context, dir, name, contentType string, content []byte) (core.StoredFile, error) {
	key := newKeyFunc(dir, name)
	if err := fs.put(ctx, key, contentType, content); err != nil {
		return core.StoredFile{}, errors.Wrap(err, "storing file")
	}
	return core.StoredFile{
		Key:         key,
		URL:         fs.url(key),
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(content)),
	}, nil
}

// Save stores an attachment. Its content type is sniffed, the announced one is ignored.
func (fs *fileStore) Save(ctx context.Context, dir string, f core.File) (core.StoredFile, error) {
	content, err := fs.read(f)
	if err != nil {
		return core.StoredFile{}, err
	}
	mtype := mimetype.Detect(content)
	if !mimetype.EqualsAny(mtype.String(), allowedTypes...) {
		return core.StoredFile{}, core.NewFieldError("file", core.ErrUnsupportedFile)
	}
	return fs.store(ctx, dir, f.Name, mtype.String(), content)
}

// SaveImage stores an image re-encoded to webp, fitting in maxWidth x maxHeight.
func (fs *fileStore) SaveImage(ctx context.Context, dir string, f core.File, maxWidth, maxHeight int) (core.StoredFile, error) {
	content, err := fs.read(f)
	if err != nil {
		return core.StoredFile{}, err
	}
	if !mimetype.EqualsAny(mimetype.Detect(content).String(), imageTypes...) {
		return core.StoredFile{}, core.NewFieldError("file", core.ErrUnsupportedFile)
	}

	encoded, err := toWebP(content, maxWidth, maxHeight)
	if err != nil {
		return core.StoredFile{}, core.NewFieldError("file", core.ErrUnsupportedFile)
	}
	name := strings.TrimSuffix(f.Name, path.Ext(f.Name)) + ".webp"
	return fs.store(ctx, dir, name, "image/webp", encoded)
}

func (fs *fileStore) Delete(ctx context.Context, key string) error {
	return fs.remove(ctx, key)
}

func toWebP(content []byte, maxWidth, maxHeight int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(content), imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrap(err, "decoding image")
	}
	if b := img.Bounds(); maxWidth > 0 && maxHeight > 0 && (b.Dx() > maxWidth || b.Dy() > maxHeight) {
		img = imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err = webp.Encode(&buf, img, &webp.Options{Quality: webpQuality}); err != nil {
		return nil, errors.Wrap(err, "encoding webp")
	}
	return buf.Bytes(), nil
}

func sanitize(name string) string {
	name = unsafeChars.ReplaceAllString(path.Base(name), "_")
	if name == "" || name == "." || name == "_" {
		return fmt.Sprintf("file-%d", core.NowFunc().Unix())
	}
	return name
}
