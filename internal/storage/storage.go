package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/C4T-BuT-S4D/reelbridge/internal/apperr"
	"github.com/C4T-BuT-S4D/reelbridge/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("record not found")

type Storage struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Storage {
	return &Storage{db: db}
}

func (s *Storage) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(
		&models.User{},
		&models.Download{},
		&models.GlobalState{},
	); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	return nil
}

func (s *Storage) Ping(ctx context.Context) error {
	db, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting sql db: %w", err)
	}
	return db.PingContext(ctx)
}

func (s *Storage) GetOrCreateGlobalState(ctx context.Context) (*models.GlobalState, error) {
	state := models.GlobalState{ID: models.GlobalStateID}
	if err := s.db.
		WithContext(ctx).
		Where(models.GlobalState{ID: models.GlobalStateID}).
		FirstOrCreate(&state).
		Error; err != nil {
		return nil, apperr.Persistence("getting global state", err)
	}
	return &state, nil
}

func (s *Storage) UpdateLastUpdate(ctx context.Context, updateID int) error {
	if err := s.db.
		WithContext(ctx).
		Model(&models.GlobalState{}).
		Where("id = ? AND last_update_id < ?", models.GlobalStateID, updateID).
		Update("last_update_id", updateID).
		Error; err != nil {
		return apperr.Persistence("updating last update", err)
	}
	return nil
}

func (s *Storage) GetUser(ctx context.Context, telegramID int64) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("getting user %d: %w", telegramID, ErrNotFound)
		}
		return nil, apperr.Persistence("getting user", err)
	}
	return &user, nil
}

func (s *Storage) GetOrCreateUser(ctx context.Context, telegramID int64) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := createIfAbsent(tx, telegramID); err != nil {
			return err
		}
		if err := tx.Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
			return fmt.Errorf("getting user: %w", err)
		}
		return nil
	}); err != nil {
		return nil, apperr.Persistence("getting or creating user", err)
	}
	return &user, nil
}

// UpsertLinkedUser creates or overwrites a user as activated with the given
// identity, lifting any ban and dropping a pending code.
func (s *Storage) UpsertLinkedUser(ctx context.Context, telegramID int64, identity string) error {
	user := &models.User{
		TelegramID:     telegramID,
		LinkedIdentity: &identity,
	}
	if err := s.db.
		WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "telegram_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"linked_identity": identity,
				"activation_code": nil,
				"banned":          false,
				"updated_at":      time.Now(),
			}),
		}).
		Create(user).
		Error; err != nil {
		return apperr.Persistence("upserting user", err)
	}
	return nil
}

// DeleteUser reports whether a user was removed.
func (s *Storage) DeleteUser(ctx context.Context, telegramID int64) (bool, error) {
	res := s.db.WithContext(ctx).Where("telegram_id = ?", telegramID).Delete(&models.User{})
	if res.Error != nil {
		return false, apperr.Persistence("deleting user", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// SetBanned reports whether a user with the id exists.
func (s *Storage) SetBanned(ctx context.Context, telegramID int64, banned bool) (bool, error) {
	res := s.db.
		WithContext(ctx).
		Model(&models.User{}).
		Where("telegram_id = ?", telegramID).
		Update("banned", banned)
	if res.Error != nil {
		return false, apperr.Persistence("updating ban status", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// RequestActivationCode stores newCode as the user's pending code unless the
// user already has one, in which case the existing code is returned. Fails
// with apperr.ErrAlreadyActivated for linked users.
func (s *Storage) RequestActivationCode(ctx context.Context, telegramID int64, newCode string) (string, error) {
	var code string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := createIfAbsent(tx, telegramID); err != nil {
			return err
		}

		var user models.User
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("telegram_id = ?", telegramID).
			First(&user).
			Error; err != nil {
			return fmt.Errorf("locking user: %w", err)
		}

		switch {
		case user.IsActivated():
			return apperr.ErrAlreadyActivated
		case user.IsPending():
			code = *user.ActivationCode
			return nil
		}

		if err := tx.
			Model(&models.User{}).
			Where("telegram_id = ?", telegramID).
			Update("activation_code", newCode).
			Error; err != nil {
			return fmt.Errorf("setting activation code: %w", err)
		}
		code = newCode
		return nil
	})
	switch {
	case errors.Is(err, apperr.ErrAlreadyActivated):
		return "", err
	case err != nil:
		return "", apperr.Persistence("requesting activation code", err)
	}
	return code, nil
}

// FindUsersByActivationCode returns at most two users so callers can detect
// a collision without loading the table.
func (s *Storage) FindUsersByActivationCode(ctx context.Context, code string) ([]*models.User, error) {
	var users []*models.User
	if err := s.db.
		WithContext(ctx).
		Where("activation_code = ?", code).
		Limit(2).
		Find(&users).
		Error; err != nil {
		return nil, apperr.Persistence("finding users by code", err)
	}
	return users, nil
}

// LinkExternalIdentity activates the user only while code is still pending.
// Returns false if the code was consumed or replaced concurrently.
func (s *Storage) LinkExternalIdentity(ctx context.Context, telegramID int64, code, identity string) (bool, error) {
	res := s.db.
		WithContext(ctx).
		Model(&models.User{}).
		Where("telegram_id = ? AND activation_code = ?", telegramID, code).
		Updates(map[string]any{
			"linked_identity": identity,
			"activation_code": nil,
		})
	if res.Error != nil {
		return false, apperr.Persistence("linking identity", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// FindUsersByLinkedIdentity matches usernames case-insensitively.
func (s *Storage) FindUsersByLinkedIdentity(ctx context.Context, identity string) ([]*models.User, error) {
	var users []*models.User
	if err := s.db.
		WithContext(ctx).
		Where("LOWER(linked_identity) = LOWER(?)", identity).
		Order("telegram_id").
		Find(&users).
		Error; err != nil {
		return nil, apperr.Persistence("finding users by identity", err)
	}
	return users, nil
}

func (s *Storage) AddDownload(ctx context.Context, d *models.Download) error {
	if d.DownloadedAt.IsZero() {
		d.DownloadedAt = time.Now()
	}
	d.DownloadedAt = d.DownloadedAt.UTC()
	if err := s.db.WithContext(ctx).Create(d).Error; err != nil {
		return apperr.Persistence("creating download", err)
	}
	return nil
}

func (s *Storage) HasDownloadSince(ctx context.Context, link string, telegramID int64, since time.Time) (bool, error) {
	var count int64
	if err := s.db.
		WithContext(ctx).
		Model(&models.Download{}).
		Where("link = ? AND telegram_id = ? AND downloaded_at >= ?", link, telegramID, since.UTC()).
		Count(&count).
		Error; err != nil {
		return false, apperr.Persistence("checking recent downloads", err)
	}
	return count > 0, nil
}

func (s *Storage) Stats(ctx context.Context) (users int64, downloads int64, err error) {
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&users).Error; err != nil {
		return 0, 0, apperr.Persistence("counting users", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.Download{}).Count(&downloads).Error; err != nil {
		return 0, 0, apperr.Persistence("counting downloads", err)
	}
	return users, downloads, nil
}

func (s *Storage) ListUserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := s.db.
		WithContext(ctx).
		Model(&models.User{}).
		Order("telegram_id").
		Pluck("telegram_id", &ids).
		Error; err != nil {
		return nil, apperr.Persistence("listing users", err)
	}
	return ids, nil
}

func createIfAbsent(tx *gorm.DB, telegramID int64) error {
	if err := tx.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "telegram_id"}},
			DoNothing: true,
		}).
		Create(&models.User{TelegramID: telegramID}).
		Error; err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}
