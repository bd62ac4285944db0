package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/mediacache/internal/models"
)

var errStoreNotInitialised = errors.New("cache: database store not initialised")

const keyColumn = "kv_key"

// DatabaseStore implements Store on the metadata database. It is the
// default when Redis is not configured and is only shared between replicas
// that share the database.
type DatabaseStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDatabaseStore returns nil when db is nil.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	if db == nil {
		return nil
	}
	return &DatabaseStore{db: db, now: time.Now}
}

func expired(entry models.KVEntry, now time.Time) bool {
	return !entry.ExpiresAt.IsZero() && !now.Before(entry.ExpiresAt)
}

// IncrementWithTTL bumps the counter under a row lock. The window starts at
// the first increment and later increments do not extend it.
func (s *DatabaseStore) IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if s == nil {
		return 0, 0, errStoreNotInitialised
	}
	if window <= 0 {
		window = time.Minute
	}

	now := s.now()
	var entry models.KVEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Take(&entry, keyColumn+" = ?", key).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			entry = models.KVEntry{Key: key, Value: []byte("1"), ExpiresAt: now.Add(window)}
			return tx.Create(&entry).Error
		case err != nil:
			return err
		}

		count := int64(1)
		if !expired(entry, now) {
			current, _ := strconv.ParseInt(string(entry.Value), 10, 64)
			count = current + 1
		}
		if expired(entry, now) || entry.ExpiresAt.IsZero() {
			entry.ExpiresAt = now.Add(window)
		}
		entry.Value = []byte(strconv.FormatInt(count, 10))
		return tx.Save(&entry).Error
	})
	if err != nil {
		return 0, 0, err
	}

	count, _ := strconv.ParseInt(string(entry.Value), 10, 64)
	return count, entry.ExpiresAt.Sub(now), nil
}

// Set upserts key. A non-positive ttl never expires.
func (s *DatabaseStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s == nil {
		return errStoreNotInitialised
	}

	entry := models.KVEntry{Key: key, Value: value}
	if ttl > 0 {
		entry.ExpiresAt = s.now().Add(ttl)
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: keyColumn}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
		}).Create(&entry).Error
}

// Get treats expired rows as missing and removes them on the way out.
func (s *DatabaseStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s == nil {
		return nil, false, errStoreNotInitialised
	}

	var entry models.KVEntry
	err := s.db.WithContext(ctx).Take(&entry, keyColumn+" = ?", key).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	case expired(entry, s.now()):
		_ = s.Delete(ctx, key)
		return nil, false, nil
	}
	return entry.Value, true, nil
}

func (s *DatabaseStore) Delete(ctx context.Context, keys ...string) error {
	if s == nil {
		return errStoreNotInitialised
	}
	if len(keys) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Where(keyColumn+" IN ?", keys).Delete(&models.KVEntry{}).Error
}

// PurgeExpired deletes rows past their expiry and reports how many went.
// Rows without an expiry are kept.
func (s *DatabaseStore) PurgeExpired(ctx context.Context) (int64, error) {
	if s == nil {
		return 0, errStoreNotInitialised
	}
	res := s.db.WithContext(ctx).
		Where("expires_at > ? AND expires_at <= ?", time.Time{}, s.now()).
		Delete(&models.KVEntry{})
	return res.RowsAffected, res.Error
}
