package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Local stores objects as plain files under a root directory.
type Local struct {
	root   string
	logger *slog.Logger
}

// NewLocal creates the root directory if needed and returns a store
// rooted there.
func NewLocal(root string, logger *slog.Logger) (*Local, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if root == "" {
		root = "data/storybooks"
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}

	return &Local{
		root:   abs,
		logger: logger.With("component", "local-store"),
	}, nil
}

// resolve maps an object key to an absolute file path. Keys with parent
// segments are rejected rather than normalized; nothing may address
// outside the root.
func (l *Local) resolve(key string) (string, error) {
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return "", fmt.Errorf("invalid object key %q", key)
		}
	}

	clean := path.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("invalid object key %q", key)
	}

	full := filepath.Join(l.root, filepath.FromSlash(clean))
	if full != l.root && !strings.HasPrefix(full, l.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return full, nil
}

func (l *Local) Put(ctx context.Context, key string, body io.Reader) (int64, error) {
	full, err := l.resolve(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return 0, fmt.Errorf("create object directory: %w", err)
	}

	f, err := os.Create(full)
	if err != nil {
		return 0, fmt.Errorf("create object file: %w", err)
	}

	n, err := io.Copy(f, body)
	if err != nil {
		f.Close()
		os.Remove(full)
		return 0, fmt.Errorf("write object: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(full)
		return 0, fmt.Errorf("write object: %w", err)
	}

	return n, nil
}

func (l *Local) Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	full, err := l.resolve(key)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrObjectNotFound
		}
		return nil, nil, fmt.Errorf("open object: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stat object: %w", err)
	}
	if stat.IsDir() {
		f.Close()
		return nil, nil, ErrObjectNotFound
	}

	return f, &ObjectInfo{
		Key:          key,
		Size:         stat.Size(),
		LastModified: stat.ModTime(),
	}, nil
}

func (l *Local) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	full, err := l.resolve(key)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("stat object: %w", err)
	}
	if stat.IsDir() {
		return nil, ErrObjectNotFound
	}

	return &ObjectInfo{
		Key:          key,
		Size:         stat.Size(),
		LastModified: stat.ModTime(),
	}, nil
}

func (l *Local) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	full, err := l.resolve(prefix)
	if err != nil {
		return nil, err
	}

	var objects []ObjectInfo
	err = filepath.WalkDir(full, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		objects = append(objects, ObjectInfo{
			Key:          filepath.ToSlash(rel),
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}

	return objects, nil
}

func (l *Local) ListPrefixes(ctx context.Context, prefix string) ([]string, error) {
	full, err := l.resolve(prefix)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list prefixes: %w", err)
	}

	var prefixes []string
	for _, e := range entries {
		if e.IsDir() {
			prefixes = append(prefixes, e.Name())
		}
	}
	return prefixes, nil
}

func (l *Local) Delete(ctx context.Context, key string) error {
	full, err := l.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (l *Local) DeletePrefix(ctx context.Context, prefix string) error {
	full, err := l.resolve(prefix)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(full); err != nil {
		return fmt.Errorf("delete objects: %w", err)
	}
	return nil
}

func (l *Local) Ping(ctx context.Context) error {
	stat, err := os.Stat(l.root)
	if err != nil {
		return fmt.Errorf("storage root unavailable: %w", err)
	}
	if !stat.IsDir() {
		return fmt.Errorf("storage root %s is not a directory", l.root)
	}
	return nil
}
