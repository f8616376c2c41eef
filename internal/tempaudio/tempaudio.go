// Package tempaudio manages the scoped temporary files that hold one inbound
// audio payload for the duration of a single turn.
package tempaudio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Resource 表示一个仅属于当前轮次的临时音频文件。
// The owner must call Close on every exit path.
type Resource struct {
	path string
}

// Materialize writes the payload to a uniquely named file under dir (the OS
// temp dir when empty). The name embeds the owner identifier plus a fresh
// uuid so back-to-back turns on one channel cannot clobber each other.
func Materialize(dir, ownerID string, payload io.Reader) (*Resource, error) {
	if dir == "" {
		dir = os.TempDir()
	}

	name := fmt.Sprintf("turn-audio-%s-%s.wav", sanitize(ownerID), uuid.NewString())
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create temp audio file: %w", err)
	}

	if _, err := io.Copy(f, payload); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("write temp audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("close temp audio file: %w", err)
	}

	return &Resource{path: path}, nil
}

// Path returns the location of the materialized file.
func (r *Resource) Path() string {
	return r.path
}

// Bytes reads the full payload back.
func (r *Resource) Bytes() ([]byte, error) {
	return os.ReadFile(r.path)
}

// Close removes the file. Safe to call more than once.
func (r *Resource) Close() error {
	if r == nil || r.path == "" {
		return nil
	}
	path := r.path
	r.path = ""
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// sanitize keeps owner identifiers path-safe.
func sanitize(id string) string {
	if id == "" {
		return "anonymous"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}
