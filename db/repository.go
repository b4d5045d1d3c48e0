package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var errNotInitialized = fmt.Errorf("repository not initialized")

// HiddenRepository persists the set of hidden game names.
type HiddenRepository interface {
	List(ctx context.Context) ([]string, error)
	Replace(ctx context.Context, names []string) error
	Add(ctx context.Context, name string) error
	Remove(ctx context.Context, name string) error
	Clear(ctx context.Context) error
}

// ReleaseCacheRepository persists the last known release per repository.
type ReleaseCacheRepository interface {
	Get(ctx context.Context, repository string) (*ReleaseCache, error)
	Put(ctx context.Context, rc *ReleaseCache) error
}

// CustomIconRepository persists custom icon assignments.
type CustomIconRepository interface {
	Get(ctx context.Context, gameName string) (*CustomIcon, error)
	List(ctx context.Context) ([]CustomIcon, error)
	Put(ctx context.Context, gameName, path string) error
	Delete(ctx context.Context, gameName string) error
}

// TokenRepository defines decoupled operations for token persistence.
type TokenRepository interface {
	Get(ctx context.Context) (*Token, error)
	Upsert(ctx context.Context, token *Token) error
	Clear(ctx context.Context) error
}

type gormHiddenRepo struct{ db *gorm.DB }
type gormReleaseCacheRepo struct{ db *gorm.DB }
type gormCustomIconRepo struct{ db *gorm.DB }
type gormTokenRepo struct{ db *gorm.DB }

// NewHiddenRepository creates a HiddenRepository. Accepts *gorm.DB to avoid global access.
func NewHiddenRepository(db *gorm.DB) HiddenRepository { return &gormHiddenRepo{db: db} }

// NewReleaseCacheRepository creates a ReleaseCacheRepository.
func NewReleaseCacheRepository(db *gorm.DB) ReleaseCacheRepository {
	return &gormReleaseCacheRepo{db: db}
}

// NewCustomIconRepository creates a CustomIconRepository.
func NewCustomIconRepository(db *gorm.DB) CustomIconRepository { return &gormCustomIconRepo{db: db} }

// NewTokenRepository creates a TokenRepository.
func NewTokenRepository(db *gorm.DB) TokenRepository { return &gormTokenRepo{db: db} }

func (r *gormHiddenRepo) List(ctx context.Context) ([]string, error) {
	if r.db == nil {
		return nil, errNotInitialized
	}
	var names []string
	if err := r.db.WithContext(ctx).Model(&HiddenGame{}).Order("name").Pluck("name", &names).Error; err != nil {
		return nil, err
	}
	return names, nil
}

// Replace swaps the whole hidden set in one transaction.
func (r *gormHiddenRepo) Replace(ctx context.Context, names []string) error {
	if r.db == nil {
		return errNotInitialized
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&HiddenGame{}).Error; err != nil {
			return err
		}
		rows := make([]HiddenGame, 0, len(names))
		seen := make(map[string]struct{}, len(names))
		for _, n := range names {
			if _, dup := seen[n]; dup || n == "" {
				continue
			}
			seen[n] = struct{}{}
			rows = append(rows, HiddenGame{Name: n})
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
}

func (r *gormHiddenRepo) Add(ctx context.Context, name string) error {
	if r.db == nil {
		return errNotInitialized
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&HiddenGame{Name: name}).Error
}

func (r *gormHiddenRepo) Remove(ctx context.Context, name string) error {
	if r.db == nil {
		return errNotInitialized
	}
	return r.db.WithContext(ctx).Delete(&HiddenGame{}, "name = ?", name).Error
}

func (r *gormHiddenRepo) Clear(ctx context.Context) error {
	if r.db == nil {
		return errNotInitialized
	}
	return r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&HiddenGame{}).Error
}

func (r *gormReleaseCacheRepo) Get(ctx context.Context, repository string) (*ReleaseCache, error) {
	if r.db == nil {
		return nil, errNotInitialized
	}
	var rc ReleaseCache
	err := r.db.WithContext(ctx).First(&rc, "repository = ?", repository).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rc, nil
}

func (r *gormReleaseCacheRepo) Put(ctx context.Context, rc *ReleaseCache) error {
	if r.db == nil {
		return errNotInitialized
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(rc).Error
}

func (r *gormCustomIconRepo) Get(ctx context.Context, gameName string) (*CustomIcon, error) {
	if r.db == nil {
		return nil, errNotInitialized
	}
	var ci CustomIcon
	err := r.db.WithContext(ctx).First(&ci, "game_name = ?", gameName).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ci, nil
}

func (r *gormCustomIconRepo) List(ctx context.Context) ([]CustomIcon, error) {
	if r.db == nil {
		return nil, errNotInitialized
	}
	var icons []CustomIcon
	if err := r.db.WithContext(ctx).Order("game_name").Find(&icons).Error; err != nil {
		return nil, err
	}
	return icons, nil
}

func (r *gormCustomIconRepo) Put(ctx context.Context, gameName, path string) error {
	if r.db == nil {
		return errNotInitialized
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&CustomIcon{GameName: gameName, Path: path}).Error
}

func (r *gormCustomIconRepo) Delete(ctx context.Context, gameName string) error {
	if r.db == nil {
		return errNotInitialized
	}
	return r.db.WithContext(ctx).Delete(&CustomIcon{}, "game_name = ?", gameName).Error
}

func (r *gormTokenRepo) Get(ctx context.Context) (*Token, error) {
	if r.db == nil {
		return nil, errNotInitialized
	}
	var token Token
	err := r.db.WithContext(ctx).First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *gormTokenRepo) Upsert(ctx context.Context, token *Token) error {
	if r.db == nil {
		return errNotInitialized
	}
	token.ID = 1
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"access_token", "rate_limit", "verified_at"}),
	}).Create(token).Error
}

func (r *gormTokenRepo) Clear(ctx context.Context) error {
	if r.db == nil {
		return errNotInitialized
	}
	return r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Token{}).Error
}
