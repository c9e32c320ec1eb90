package kv

import (
	"context"
	"errors"
	"time"

	"github.com/laglue/storefront/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Entry is one row of kv_entries.
type Entry struct {
	Key       string     `gorm:"column:entry_key;primaryKey"`
	Value     string     `gorm:"column:entry_value;type:text;not null"`
	ExpiresAt *time.Time `gorm:"column:expires_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at;not null"`
}

func (Entry) TableName() string { return "kv_entries" }

// SQLStore persists blobs in postgres or sqlite through gorm. Change
// notifications only reach subscribers in the same process; other replicas
// rely on the sync poller's fallback ticker.
type SQLStore struct {
	client *db.Client
	hub    *Hub
	now    func() time.Time
}

func NewSQLStore(client *db.Client) *SQLStore {
	return &SQLStore{client: client, hub: NewHub(), now: time.Now}
}

func (s *SQLStore) conn(ctx context.Context) *gorm.DB {
	return s.client.DB().WithContext(ctx)
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	var entry Entry
	err := s.conn(ctx).Where("entry_key = ?", key).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if entry.ExpiresAt != nil && !s.now().UTC().Before(*entry.ExpiresAt) {
		return "", false, nil
	}
	return entry.Value, true, nil
}

func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	entry := Entry{Key: key, Value: value, UpdatedAt: s.now().UTC()}
	err := s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"entry_value", "expires_at", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return err
	}
	s.hub.Publish(Change{Key: key, Op: OpSet})
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	res := s.conn(ctx).Where("entry_key = ?", key).Delete(&Entry{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		s.hub.Publish(Change{Key: key, Op: OpDelete})
	}
	return nil
}

func (s *SQLStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.conn(ctx).Model(&Entry{}).
		Where("expires_at IS NULL OR expires_at > ?", s.now().UTC()).
		Order("entry_key").
		Pluck("entry_key", &keys).Error
	return keys, err
}

// SetNX inserts key only when no live row exists. Expired rows are cleared
// first; a concurrent insert makes the conflict clause skip ours.
func (s *SQLStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	now := s.now().UTC()
	entry := Entry{Key: key, Value: value, UpdatedAt: now}
	if ttl > 0 {
		expires := now.Add(ttl)
		entry.ExpiresAt = &expires
	}

	acquired := false
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("entry_key = ? AND expires_at IS NOT NULL AND expires_at <= ?", key, now).
			Delete(&Entry{}).Error; err != nil {
			return err
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry)
		if res.Error != nil {
			if db.IsUniqueViolation(res.Error, "") {
				return nil
			}
			return res.Error
		}
		acquired = res.RowsAffected == 1
		return nil
	})
	if err != nil {
		return false, err
	}
	if acquired {
		s.hub.Publish(Change{Key: key, Op: OpSet})
	}
	return acquired, nil
}

func (s *SQLStore) Subscribe(ctx context.Context) (<-chan Change, error) {
	return s.hub.Subscribe(ctx)
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s *SQLStore) Close() error {
	return s.client.Close()
}
