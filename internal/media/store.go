package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"echobox/internal/mediaurl"
)

var ErrInvalidPath = errors.New("invalid media path")

// Stored locates a durably stored file.
type Stored struct {
	Locator  string
	ObjectID *string
}

// Store persists a finished file under name and can later remove it again.
// Delete ignores locators it does not own.
type Store interface {
	Put(ctx context.Context, path, name, contentType string) (*Stored, error)
	Delete(ctx context.Context, s Stored) error
}

// LocalStore keeps files under a directory served at mediaurl.PathPrefix.
type LocalStore struct {
	rootDir string
}

func NewLocalStore(rootDir string) (*LocalStore, error) {
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &LocalStore{rootDir: rootDir}, nil
}

func (s *LocalStore) RootDir() string {
	return s.rootDir
}

// Put moves path into the upload directory.
func (s *LocalStore) Put(_ context.Context, path, name, _ string) (*Stored, error) {
	absPath, err := s.resolve(name)
	if err != nil {
		return nil, err
	}

	if err := os.Rename(path, absPath); err != nil {
		// Transient and upload dirs may sit on different filesystems.
		if copyErr := copyFile(path, absPath); copyErr != nil {
			return nil, fmt.Errorf("finalizing audio file: %w", copyErr)
		}
	}

	return &Stored{Locator: mediaurl.Audio("", name)}, nil
}

func (s *LocalStore) Delete(_ context.Context, stored Stored) error {
	name, ok := mediaurl.ParseAudioName(stored.Locator)
	if !ok {
		return nil
	}
	absPath, err := s.resolve(name)
	if err != nil {
		return err
	}

	err = os.Remove(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("deleting audio file: %w", err)
	}
	return nil
}

// Open returns the stored file for name.
func (s *LocalStore) Open(name string) (*os.File, error) {
	absPath, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	return os.Open(absPath)
}

func (s *LocalStore) resolve(name string) (string, error) {
	if !mediaurl.ValidName(name) {
		return "", ErrInvalidPath
	}
	return filepath.Join(s.rootDir, name), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "audio-write-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := io.Copy(tmp, in); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, dst)
}
