// Package store is the persistence layer: users and code submissions in the
// relational store, raw source blobs on disk.
package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"codesense/pkg/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("already registered")
)

// Store wraps the GORM handle with the operations the service needs. Users
// support create/lookup/last-login bump; submissions are append-only.
type Store struct {
	db *gorm.DB
}

// Open connects to Postgres, configures the pool, and migrates the schema.
func Open(databaseURL string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return New(db)
}

// New wraps an existing GORM handle (tests use an in-memory sqlite handle)
// and runs migrations.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&models.User{}, &models.CodeSubmission{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// CreateUser inserts a new user. Duplicate username or email returns
// ErrDuplicate.
func (s *Store) CreateUser(user *models.User) error {
	var count int64
	q := s.db.Model(&models.User{}).Where("username = ?", user.Username)
	if user.Email != nil {
		q = s.db.Model(&models.User{}).Where("username = ? OR email = ?", user.Username, *user.Email)
	}
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicate
	}

	if err := s.db.Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// UserByUsername looks a user up by exact (case-sensitive) username.
func (s *Store) UserByUsername(username string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UserByEmail looks a user up by email.
func (s *Store) UserByEmail(email string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// TouchLastLogin stamps the user's last_login inside tx-scoped work supplied
// by fn. Login uses this so the bump and any follow-on work commit together.
func (s *Store) TouchLastLogin(userID uint, fn func() error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		if err := tx.Model(&models.User{}).Where("id = ?", userID).
			Update("last_login", now).Error; err != nil {
			return err
		}
		if fn != nil {
			return fn()
		}
		return nil
	})
}

// CreateSubmission appends one submission row.
func (s *Store) CreateSubmission(sub *models.CodeSubmission) error {
	return s.db.Create(sub).Error
}

// SubmissionsByUser lists a user's submissions, newest first.
func (s *Store) SubmissionsByUser(userID uint, limit int) ([]models.CodeSubmission, error) {
	if limit <= 0 {
		limit = 50
	}
	var subs []models.CodeSubmission
	err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&subs).Error
	return subs, err
}

// SubmissionByID fetches one submission owned by userID. The (id, user_id)
// pair is the only access key; other users' rows are invisible.
func (s *Store) SubmissionByID(id, userID uint) (*models.CodeSubmission, error) {
	var sub models.CodeSubmission
	err := s.db.Where("id = ? AND user_id = ?", id, userID).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
