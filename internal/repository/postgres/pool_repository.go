package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/mkazarin/accountgate/internal/domain"
)

// CredentialRepository implements domain.CredentialStore on PostgreSQL
type CredentialRepository struct {
	db *gorm.DB
}

// NewCredentialRepository creates a new credential pool repository
func NewCredentialRepository(db *gorm.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// All returns the configured API identity pairs in insertion order
func (r *CredentialRepository) All(ctx context.Context) ([]domain.CredentialRecord, error) {
	var models []CredentialModel
	if err := r.db.WithContext(ctx).Order("id").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to load credential pool: %w", err)
	}
	credentials := make([]domain.CredentialRecord, 0, len(models))
	for _, m := range models {
		credentials = append(credentials, domain.CredentialRecord{APIID: m.APIID, APIHash: m.APIHash})
	}
	return credentials, nil
}

// ProxyRepository implements domain.ProxyStore on PostgreSQL
type ProxyRepository struct {
	db *gorm.DB
}

// NewProxyRepository creates a new proxy pool repository
func NewProxyRepository(db *gorm.DB) *ProxyRepository {
	return &ProxyRepository{db: db}
}

// All returns the raw proxy pool entries
func (r *ProxyRepository) All(ctx context.Context) ([]string, error) {
	var models []ProxyModel
	if err := r.db.WithContext(ctx).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to load proxy pool: %w", err)
	}
	entries := make([]string, 0, len(models))
	for _, m := range models {
		entries = append(entries, m.Entry)
	}
	return entries, nil
}

var (
	_ domain.CredentialStore = (*CredentialRepository)(nil)
	_ domain.ProxyStore      = (*ProxyRepository)(nil)
)
