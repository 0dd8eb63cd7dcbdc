package postgres

import (
	"time"

	"github.com/mkazarin/accountgate/internal/domain"
)

// AccountModel is the database model for account lifecycle records
type AccountModel struct {
	JobID         string    `gorm:"column:job_id;primaryKey;size:128"`
	UserID        int64     `gorm:"column:user_id;not null"`
	PhoneNumber   string    `gorm:"column:phone_number;uniqueIndex:idx_accounts_phone;not null;size:32"`
	Status        string    `gorm:"column:status;not null;index:idx_accounts_status;default:'pending_confirmation';size:32"`
	ArtifactRef   string    `gorm:"column:artifact_ref;not null;default:''"`
	RegisteredAt  time.Time `gorm:"column:registered_at;not null"`
	LastCheckedAt time.Time `gorm:"column:last_checked_at;not null"`
	StatusDetails string    `gorm:"column:status_details;not null;default:''"`
}

// TableName returns the table name for AccountModel
func (AccountModel) TableName() string {
	return "accounts"
}

func (m AccountModel) toDomain() domain.AccountRecord {
	return domain.AccountRecord{
		JobID:         m.JobID,
		UserID:        m.UserID,
		PhoneNumber:   m.PhoneNumber,
		Status:        domain.Status(m.Status),
		ArtifactRef:   m.ArtifactRef,
		RegisteredAt:  m.RegisteredAt,
		LastCheckedAt: m.LastCheckedAt,
		StatusDetails: m.StatusDetails,
	}
}

// UserModel is the database model for account owners
type UserModel struct {
	ID        int64     `gorm:"column:id;primaryKey"`
	Username  string    `gorm:"column:username;not null;default:'';size:64"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the table name for UserModel
func (UserModel) TableName() string {
	return "users"
}

// CredentialModel is the database model for the API identity pool
type CredentialModel struct {
	ID      uint   `gorm:"primaryKey"`
	APIID   int    `gorm:"column:api_id;not null"`
	APIHash string `gorm:"column:api_hash;not null;size:64"`
}

// TableName returns the table name for CredentialModel
func (CredentialModel) TableName() string {
	return "api_credentials"
}

// ProxyModel is the database model for the proxy pool
type ProxyModel struct {
	ID    uint   `gorm:"primaryKey"`
	Entry string `gorm:"column:entry;not null"`
}

// TableName returns the table name for ProxyModel
func (ProxyModel) TableName() string {
	return "proxies"
}

// CountryModel is the database model for country acceptance policies
type CountryModel struct {
	Code             string  `gorm:"column:code;primaryKey;size:8"`
	Name             string  `gorm:"column:name;not null;size:64"`
	Flag             string  `gorm:"column:flag;not null;default:'';size:16"`
	Capacity         int     `gorm:"column:capacity;not null;default:-1"`
	AcceptRestricted bool    `gorm:"column:accept_restricted;not null;default:false"`
	PriceOK          float64 `gorm:"column:price_ok;not null;default:0"`
	PriceRestricted  float64 `gorm:"column:price_restricted;not null;default:0"`
	ReviewTimeSecs   int     `gorm:"column:review_time_secs;not null;default:600"`
}

// TableName returns the table name for CountryModel
func (CountryModel) TableName() string {
	return "countries"
}

// SettingModel is the database model for runtime-tunable parameters
type SettingModel struct {
	Key   string `gorm:"column:key;primaryKey;size:64"`
	Value string `gorm:"column:value;not null;default:''"`
}

// TableName returns the table name for SettingModel
func (SettingModel) TableName() string {
	return "settings"
}

// BucketModel caches external audit bucket identifiers
type BucketModel struct {
	Name      string    `gorm:"column:name;primaryKey;size:128"`
	BucketID  int       `gorm:"column:bucket_id;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the table name for BucketModel
func (BucketModel) TableName() string {
	return "audit_buckets"
}
