package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/mkrupp/storefront/internal/infra/logging"
	"github.com/mkrupp/storefront/internal/util/encoding"
)

const (
	dirPrefixLength = 2
	docExt          = "json"
)

// FileSystemStoreConfig holds configuration for the filesystem store.
type FileSystemStoreConfig struct {
	// Basedir is the root directory for stored documents
	Basedir string `env:"BASEDIR" default:"var/storage/kv"`
}

// FileSystemStore implements Store with one file per key. Keys are encoded with
// Crockford base32 so any key maps to a portable filename, and every access holds
// an flock on a sibling lock file.
type FileSystemStore struct {
	cfg FileSystemStoreConfig
	log logging.Logger
}

var _ Store = (*FileSystemStore)(nil)

// FileSystemStoreFactory creates a factory function that returns a new FileSystemStore.
func FileSystemStoreFactory(cfg FileSystemStoreConfig) StoreFactory {
	return func(ctx context.Context) (Store, error) {
		return NewFileSystemStore(ctx, cfg)
	}
}

// NewFileSystemStore creates the base directory if needed.
func NewFileSystemStore(ctx context.Context, cfg FileSystemStoreConfig) (*FileSystemStore, error) {
	log := logging.GetLogger("repo.kv.filesystem_store").With(
		logging.Group("repo", "basedir", cfg.Basedir),
	)

	if err := os.MkdirAll(cfg.Basedir, 0o755); err != nil {
		log.ErrorContext(ctx, "init storage failed", "error", err)

		return nil, fmt.Errorf("mkdir all: %w", err)
	}

	return &FileSystemStore{cfg: cfg, log: log}, nil
}

// GetFilename returns the full filesystem path for the document stored under key,
// fanned out into subdirectories by the first two characters of the encoded key.
func (s *FileSystemStore) GetFilename(key string) string {
	basename := encoding.EncodeCrockfordB32LC([]byte(key))

	prefix := "00"
	if len(basename) >= dirPrefixLength {
		prefix = basename[:dirPrefixLength]
	}

	return filepath.Join(s.cfg.Basedir, prefix, basename+"."+docExt)
}

func (s *FileSystemStore) Get(ctx context.Context, key string) (value []byte, found bool, err error) {
	filename := s.GetFilename(key)

	release, err := s.flock(ctx, filename, syscall.LOCK_SH)
	if err != nil {
		return nil, false, err
	}
	defer release()

	value, err = os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("read file: %w", err)
	}

	return value, true, nil
}

func (s *FileSystemStore) Set(ctx context.Context, key string, value []byte) (err error) {
	filename := s.GetFilename(key)

	defer func() {
		log := s.log.With(logging.Group("doc", "key", key, "filename", filename))
		if err != nil {
			log.ErrorContext(ctx, "document store failed", "error", err)
		} else {
			log.DebugContext(ctx, "document stored", "size", len(value))
		}
	}()

	release, err := s.flock(ctx, filename, syscall.LOCK_EX)
	if err != nil {
		return err
	}
	defer release()

	tmp, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}

	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("write: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("sync: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	if err := os.Rename(tmp.Name(), filename); err != nil {
		return fmt.Errorf("rename: %w", err)
	}

	return nil
}

func (s *FileSystemStore) Remove(ctx context.Context, key string) error {
	filename := s.GetFilename(key)

	release, err := s.flock(ctx, filename, syscall.LOCK_EX)
	if err != nil {
		return err
	}
	defer release()

	if err := os.Remove(filename); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove: %w", err)
	}

	return nil
}

func (s *FileSystemStore) Close() error {
	return nil
}

func (s *FileSystemStore) flock(ctx context.Context, filename string, mode int) (release func(), err error) {
	lockfile := filename + ".lock"
	log := s.log.With(logging.Group("doc", "lockfile", lockfile))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "lock failed", "error", err)
		}
	}()

	if err := os.MkdirAll(filepath.Dir(lockfile), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir all: %w", err)
	}

	file, err := os.OpenFile(lockfile, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lockfile: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), mode); err != nil {
		_ = file.Close()

		return nil, fmt.Errorf("flock: %w", err)
	}

	return func() {
		_ = syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		_ = file.Close()
	}, nil
}
