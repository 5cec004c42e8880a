package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DefaultMountPrefix is where the backend workers see the shared network
// volume.
const DefaultMountPrefix = "/runpod-volume"

// VolumeStore stages input images onto the network volume shared with the
// execution backend. Locally it is just a directory; the returned
// references use the backend's mount prefix.
type VolumeStore struct {
	basePath    string
	mountPrefix string
}

// NewVolumeStore initializes a store rooted at basePath. References are
// reported under mountPrefix; pass "" for DefaultMountPrefix.
func NewVolumeStore(basePath, mountPrefix string) (*VolumeStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	mountPrefix = strings.TrimSpace(mountPrefix)
	if mountPrefix == "" {
		mountPrefix = DefaultMountPrefix
	}
	return &VolumeStore{basePath: basePath, mountPrefix: strings.TrimRight(mountPrefix, "/")}, nil
}

// BasePath returns the local root directory.
func (s *VolumeStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// Stage writes data under the given key and returns the path the backend
// can load it from. Keys are cleaned to prevent directory traversal.
func (s *VolumeStore) Stage(ctx context.Context, key string, data []byte) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(cleanKey))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	return path.Join(s.mountPrefix, cleanKey), nil
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.Clean(key)
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}
