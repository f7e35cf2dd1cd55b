// Package voice locates a user's reference recordings.
package voice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cuongbtq/voice-jobs/internal/domain"
)

// ReferenceFile is the name of the reference recording inside a voice directory
const ReferenceFile = "ref.wav"

// Store resolves an owner to the reference audio the engine clones
type Store interface {
	Resolve(ctx context.Context, owner domain.Owner) (string, error)
}

// FileStore lays voices out as <root>/<user_id>/<voice_slug>/ref.wav
type FileStore struct {
	root string
}

// NewFileStore creates a store rooted at dir
func NewFileStore(dir string) *FileStore {
	return &FileStore{root: dir}
}

// Resolve returns the path of the owner's reference audio
func (s *FileStore) Resolve(_ context.Context, owner domain.Owner) (string, error) {
	dir, err := s.Dir(owner)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, ReferenceFile)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s/%s", domain.ErrVoiceNotFound, owner.UserID, owner.VoiceName)
		}
		return "", fmt.Errorf("failed to stat reference audio: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s/%s", domain.ErrVoiceNotFound, owner.UserID, owner.VoiceName)
	}
	return path, nil
}

// Dir returns the voice directory for owner without checking that it exists
func (s *FileStore) Dir(owner domain.Owner) (string, error) {
	user, err := pathSegment("user_id", owner.UserID)
	if err != nil {
		return "", err
	}
	slug, err := pathSegment("voice_name", Slug(owner.VoiceName))
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, user, slug), nil
}

// Slug is the directory name used for a voice: lower case, spaces replaced with underscores
func Slug(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

func pathSegment(field, value string) (string, error) {
	if value == "" || value == "." || value == ".." || strings.ContainsAny(value, `/\`) || strings.ContainsRune(value, 0) {
		return "", domain.InvalidArgumentf("%s %q is not a valid name", field, value)
	}
	return value, nil
}
