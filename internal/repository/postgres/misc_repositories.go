package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mkazarin/accountgate/internal/domain"
)

// UserRepository implements domain.UserStore on PostgreSQL
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetOrCreate finds a user or registers it on first contact
func (r *UserRepository) GetOrCreate(ctx context.Context, id int64, username string) (*domain.User, error) {
	model := UserModel{ID: id, Username: username}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"username"}),
		}).
		Create(&model).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get or create user: %w", err)
	}
	return &domain.User{ID: model.ID, Username: model.Username, CreatedAt: model.CreatedAt}, nil
}

// Find returns a user by id
func (r *UserRepository) Find(ctx context.Context, id int64) (*domain.User, error) {
	var model UserModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &domain.User{ID: model.ID, Username: model.Username, CreatedAt: model.CreatedAt}, nil
}

// CountryRepository implements domain.CountryStore on PostgreSQL
type CountryRepository struct {
	db *gorm.DB
}

// NewCountryRepository creates a new country configuration repository
func NewCountryRepository(db *gorm.DB) *CountryRepository {
	return &CountryRepository{db: db}
}

// All loads every configured country policy
func (r *CountryRepository) All(ctx context.Context) ([]domain.CountryConfig, error) {
	var models []CountryModel
	if err := r.db.WithContext(ctx).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to load countries: %w", err)
	}
	countries := make([]domain.CountryConfig, 0, len(models))
	for _, m := range models {
		countries = append(countries, domain.CountryConfig{
			Code:             m.Code,
			Name:             m.Name,
			Flag:             m.Flag,
			Capacity:         m.Capacity,
			AcceptRestricted: m.AcceptRestricted,
			PriceOK:          m.PriceOK,
			PriceRestricted:  m.PriceRestricted,
			ReviewTime:       time.Duration(m.ReviewTimeSecs) * time.Second,
		})
	}
	return countries, nil
}

// SettingsRepository implements domain.SettingsStore on PostgreSQL
type SettingsRepository struct {
	db *gorm.DB
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns a setting value; missing keys return an empty string
func (r *SettingsRepository) Get(ctx context.Context, key string) (string, error) {
	var model SettingModel
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting %q: %w", key, err)
	}
	return model.Value, nil
}

// Set upserts a setting value
func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).
		Create(&SettingModel{Key: key, Value: value}).Error
	if err != nil {
		return fmt.Errorf("failed to set setting %q: %w", key, err)
	}
	return nil
}

// BucketRepository implements domain.BucketCache on PostgreSQL
type BucketRepository struct {
	db *gorm.DB
}

// NewBucketRepository creates a new audit bucket cache repository
func NewBucketRepository(db *gorm.DB) *BucketRepository {
	return &BucketRepository{db: db}
}

// Lookup returns the cached external bucket id for a name
func (r *BucketRepository) Lookup(ctx context.Context, name string) (int, bool, error) {
	var model BucketModel
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up bucket %q: %w", name, err)
	}
	return model.BucketID, true, nil
}

// Store caches a freshly created bucket id
func (r *BucketRepository) Store(ctx context.Context, name string, bucketID int) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"bucket_id"}),
		}).
		Create(&BucketModel{Name: name, BucketID: bucketID}).Error
	if err != nil {
		return fmt.Errorf("failed to store bucket %q: %w", name, err)
	}
	return nil
}

// Delete invalidates a cached bucket
func (r *BucketRepository) Delete(ctx context.Context, name string) error {
	if err := r.db.WithContext(ctx).Where("name = ?", name).Delete(&BucketModel{}).Error; err != nil {
		return fmt.Errorf("failed to delete bucket %q: %w", name, err)
	}
	return nil
}

// DeleteOlderThan drops stale bucket cache entries
func (r *BucketRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&BucketModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to clean bucket cache: %w", result.Error)
	}
	return result.RowsAffected, nil
}

var (
	_ domain.UserStore     = (*UserRepository)(nil)
	_ domain.CountryStore  = (*CountryRepository)(nil)
	_ domain.SettingsStore = (*SettingsRepository)(nil)
	_ domain.BucketCache   = (*BucketRepository)(nil)
)
