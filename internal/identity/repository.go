// Package identity reads farmer profiles from the relational users table.
// The table is owned by the account service; this package never writes to it.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"agri-advisor/internal/domain"
)

// ErrUserNotFound is domain.ErrUserNotFound.
var ErrUserNotFound = domain.ErrUserNotFound

type userRecord struct {
	ID                string `gorm:"column:id;primaryKey"`
	Location          string `gorm:"column:location"`
	PreferredLanguage string `gorm:"column:preferred_language"`
}

func (userRecord) TableName() string {
	return "users"
}

// Open connects to postgres with a small pool sized for a Lambda container.
func Open(dsn string) (*gorm.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("identity: database url must not be empty")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("identity: open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("identity: get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) (*Repository, error) {
	if db == nil {
		return nil, errors.New("identity: db must not be nil")
	}
	return &Repository{db: db}, nil
}

// GetUser returns ErrUserNotFound when no row matches id.
func (r *Repository) GetUser(ctx context.Context, id string) (domain.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.User{}, ErrUserNotFound
	}
	var rec userRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("identity: get user %s: %w", id, err)
	}

	lang, ok := domain.ParseLanguage(rec.PreferredLanguage)
	if !ok {
		lang = domain.PivotLanguage
	}
	return domain.User{
		ID:                rec.ID,
		Location:          strings.TrimSpace(rec.Location),
		PreferredLanguage: lang,
	}, nil
}

// Ping checks the database connection.
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("identity: get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
