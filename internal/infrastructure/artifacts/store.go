package artifacts

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/mkazarin/accountgate/internal/domain"
)

// journalSuffix is the write-ahead sidecar some session artifacts carry
const journalSuffix = "-journal"

// Store owns on-disk placement of session artifacts under
// <root>/<country_slug>/<status>/<phone>.session.
type Store struct {
	root   string
	logger zerolog.Logger
}

// NewStore creates an artifact store rooted at dir
func NewStore(dir string, logger zerolog.Logger) *Store {
	return &Store{
		root:   dir,
		logger: logger.With().Str("component", "artifact_store").Logger(),
	}
}

// Allocate builds the partition path for an artifact, creating directories lazily
func (s *Store) Allocate(countryName, status, phone string) (string, error) {
	dir := filepath.Join(s.root, domain.CountrySlug(countryName), status)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create artifact partition: %w", err)
	}
	return filepath.Join(dir, phone+".session"), nil
}

// Move relocates an artifact into the country/status partition on a status
// transition. A missing source is a no-op; a failed move keeps the old path.
func (s *Store) Move(oldPath, phone, newStatus, countryName string) (string, error) {
	if oldPath == "" || !s.Exists(oldPath) {
		return "", nil
	}
	newPath, err := s.Allocate(countryName, newStatus, phone)
	if err != nil {
		return oldPath, err
	}
	if newPath == oldPath {
		return oldPath, nil
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		s.logger.Error().Err(err).Str("from", oldPath).Str("to", newPath).Msg("failed to move artifact")
		return oldPath, fmt.Errorf("failed to move artifact: %w", err)
	}
	return newPath, nil
}

// Remove deletes an artifact and its write-ahead sidecar if present
func (s *Store) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove artifact: %w", err)
	}
	if err := os.Remove(path + journalSuffix); err != nil && !os.IsNotExist(err) {
		s.logger.Warn().Err(err).Str("path", path).Msg("failed to remove artifact sidecar")
	}
	return nil
}

// Exists reports whether an artifact file is present
func (s *Store) Exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// Read loads the artifact contents
func (s *Store) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return data, nil
}

// Ensure Store implements domain.ArtifactStore interface
var _ domain.ArtifactStore = (*Store)(nil)
