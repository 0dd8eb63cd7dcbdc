package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mkazarin/accountgate/internal/domain"
)

// AccountRepository implements domain.AccountStore on PostgreSQL
type AccountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts a new account record
func (r *AccountRepository) Create(ctx context.Context, record *domain.AccountRecord) error {
	model := AccountModel{
		JobID:         record.JobID,
		UserID:        record.UserID,
		PhoneNumber:   record.PhoneNumber,
		Status:        string(record.Status),
		ArtifactRef:   record.ArtifactRef,
		RegisteredAt:  record.RegisteredAt,
		LastCheckedAt: record.RegisteredAt,
		StatusDetails: record.StatusDetails,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to create account record: %w", err)
	}
	return nil
}

// FindByJobID loads one record by its job identity
func (r *AccountRepository) FindByJobID(ctx context.Context, jobID string) (*domain.AccountRecord, error) {
	var model AccountModel
	err := r.db.WithContext(ctx).Where("job_id = ?", jobID).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account record: %w", err)
	}
	record := model.toDomain()
	return &record, nil
}

// PhoneExists reports whether a phone number was already submitted
func (r *AccountRepository) PhoneExists(ctx context.Context, phone string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&AccountModel{}).
		Where("phone_number = ?", phone).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check phone existence: %w", err)
	}
	return count > 0, nil
}

// CountByCountryCode counts records whose phone starts with the dialing code
func (r *AccountRepository) CountByCountryCode(ctx context.Context, code string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&AccountModel{}).
		Where("phone_number LIKE ?", code+"%").
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count accounts for country: %w", err)
	}
	return count, nil
}

// FinalizeIfNonTerminal commits the terminal verdict with a guarded update.
// The WHERE clause on non-terminal statuses makes racing finalizations
// linearize: the losing writer matches zero rows and reports false.
func (r *AccountRepository) FinalizeIfNonTerminal(ctx context.Context, jobID string, status domain.Status, details, artifactRef string) (bool, error) {
	updates := map[string]interface{}{
		"status":          string(status),
		"status_details":  details,
		"last_checked_at": time.Now().UTC(),
	}
	if artifactRef != "" {
		updates["artifact_ref"] = artifactRef
	}

	nonTerminal := make([]string, 0, len(domain.NonTerminalStatuses))
	for _, s := range domain.NonTerminalStatuses {
		nonTerminal = append(nonTerminal, string(s))
	}

	result := r.db.WithContext(ctx).Model(&AccountModel{}).
		Where("job_id = ? AND status IN ?", jobID, nonTerminal).
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("failed to finalize account record: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ReclassifyIfOK downgrades an accepted record with the same guarded-update
// pattern, keyed on the ok status instead of the non-terminal set.
func (r *AccountRepository) ReclassifyIfOK(ctx context.Context, jobID string, status domain.Status, details, artifactRef string) (bool, error) {
	updates := map[string]interface{}{
		"status":          string(status),
		"status_details":  details,
		"last_checked_at": time.Now().UTC(),
	}
	if artifactRef != "" {
		updates["artifact_ref"] = artifactRef
	}

	result := r.db.WithContext(ctx).Model(&AccountModel{}).
		Where("job_id = ? AND status = ?", jobID, string(domain.StatusOK)).
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("failed to reclassify account record: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// StuckPending selects non-terminal records not examined since the grace
// window. That covers fresh pending records as well as errored and
// termination-pending ones awaiting another attempt.
func (r *AccountRepository) StuckPending(ctx context.Context, olderThan time.Time) ([]domain.AccountRecord, error) {
	nonTerminal := make([]string, 0, len(domain.NonTerminalStatuses))
	for _, s := range domain.NonTerminalStatuses {
		nonTerminal = append(nonTerminal, string(s))
	}

	var models []AccountModel
	err := r.db.WithContext(ctx).
		Where("status IN ? AND last_checked_at <= ?", nonTerminal, olderThan).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to select stuck pending accounts: %w", err)
	}
	return toDomainRecords(models), nil
}

// ReverifyDue selects accepted records past the re-verification window
func (r *AccountRepository) ReverifyDue(ctx context.Context, checkedBefore time.Time) ([]domain.AccountRecord, error) {
	var models []AccountModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND last_checked_at <= ?", string(domain.StatusOK), checkedBefore).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to select accounts for reprocessing: %w", err)
	}
	return toDomainRecords(models), nil
}

// TouchChecked records when a record was last examined
func (r *AccountRepository) TouchChecked(ctx context.Context, jobID string, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&AccountModel{}).
		Where("job_id = ?", jobID).
		Update("last_checked_at", at).Error
	if err != nil {
		return fmt.Errorf("failed to touch account record: %w", err)
	}
	return nil
}

func toDomainRecords(models []AccountModel) []domain.AccountRecord {
	records := make([]domain.AccountRecord, 0, len(models))
	for _, m := range models {
		records = append(records, m.toDomain())
	}
	return records
}

// Ensure AccountRepository implements domain.AccountStore interface
var _ domain.AccountStore = (*AccountRepository)(nil)
