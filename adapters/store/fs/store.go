package storefs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/goliatone/go-harvest/harvest"
)

const metaSuffix = ".meta.json"

// Store keeps delivered documents in a directory. Each document is written
// next to a JSON sidecar holding its metadata.
type Store struct {
	Root string
	Now  func() time.Time
}

var _ harvest.DocumentStore = (*Store)(nil)

// NewStore creates a filesystem-backed document store.
func NewStore(root string) *Store {
	return &Store{Root: root, Now: time.Now}
}

// Put writes a document atomically.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, meta harvest.DocumentMeta) (harvest.DocumentRef, error) {
	target, err := s.target(ctx, key)
	if err != nil {
		return harvest.DocumentRef{}, err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return harvest.DocumentRef{}, err
	}

	size, err := writeAtomic(target, ".document-*", func(w io.Writer) (int64, error) {
		return io.Copy(w, r)
	})
	if err != nil {
		return harvest.DocumentRef{}, err
	}

	meta.Size = size
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = s.now()
	}
	if meta.ContentType == "" {
		meta.ContentType = mime.TypeByExtension(filepath.Ext(target))
	}
	if meta.Filename == "" {
		meta.Filename = path.Base(key)
	}

	payload, err := json.Marshal(meta)
	if err != nil {
		return harvest.DocumentRef{}, err
	}
	if _, err := writeAtomic(target+metaSuffix, ".meta-*", func(w io.Writer) (int64, error) {
		n, err := w.Write(payload)
		return int64(n), err
	}); err != nil {
		_ = os.Remove(target)
		return harvest.DocumentRef{}, err
	}

	return harvest.DocumentRef{Key: key, Meta: meta}, nil
}

// Open reads a document and its metadata.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, harvest.DocumentMeta, error) {
	target, err := s.target(ctx, key)
	if err != nil {
		return nil, harvest.DocumentMeta{}, err
	}

	file, err := os.Open(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, harvest.DocumentMeta{}, harvest.NewError(harvest.KindNotFound, fmt.Sprintf("document %q not found", key), err)
		}
		return nil, harvest.DocumentMeta{}, err
	}

	meta := readMeta(target)
	if meta.ContentType == "" {
		meta.ContentType = mime.TypeByExtension(filepath.Ext(target))
	}
	if meta.Size == 0 {
		if info, err := file.Stat(); err == nil {
			meta.Size = info.Size()
			if meta.CreatedAt.IsZero() {
				meta.CreatedAt = info.ModTime()
			}
		}
	}
	return file, meta, nil
}

// Delete removes a document. Missing documents are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	target, err := s.target(ctx, key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(target + metaSuffix); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Purge removes every document under Root, leaving the directory in place.
// The application calls it at startup and shutdown so documents do not
// outlive the session.
func (s *Store) Purge(ctx context.Context) error {
	if s == nil || s.Root == "" {
		return harvest.NewError(harvest.KindValidation, "store root is required", nil)
	}
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := os.RemoveAll(filepath.Join(s.Root, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) target(ctx context.Context, key string) (string, error) {
	if s == nil {
		return "", harvest.NewError(harvest.KindInternal, "store is nil", nil)
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return "", err
		}
	}
	if s.Root == "" {
		return "", harvest.NewError(harvest.KindValidation, "store root is required", nil)
	}
	if key == "" {
		return "", harvest.NewError(harvest.KindValidation, "document key is required", nil)
	}

	rel := strings.TrimPrefix(path.Clean("/"+key), "/")
	if rel == "" || rel == "." || strings.HasSuffix(rel, metaSuffix) {
		return "", harvest.NewError(harvest.KindValidation, fmt.Sprintf("invalid document key %q", key), nil)
	}
	root, err := filepath.Abs(s.Root)
	if err != nil {
		return "", err
	}
	target := filepath.Join(root, filepath.FromSlash(rel))
	if !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return "", harvest.NewError(harvest.KindValidation, "document key escapes root", nil)
	}
	return target, nil
}

func (s *Store) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// writeAtomic writes through a temp file in the target directory and renames
// it into place once synced.
func writeAtomic(target, pattern string, write func(w io.Writer) (int64, error)) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(target), pattern)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	n, err := write(tmp)
	if err != nil {
		return n, err
	}
	if err := tmp.Sync(); err != nil {
		return n, err
	}
	if err := tmp.Close(); err != nil {
		return n, err
	}
	return n, os.Rename(tmp.Name(), target)
}

func readMeta(target string) harvest.DocumentMeta {
	var meta harvest.DocumentMeta
	data, err := os.ReadFile(target + metaSuffix)
	if err != nil {
		return meta
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return harvest.DocumentMeta{}
	}
	return meta
}
