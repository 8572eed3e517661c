package kv

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/GoPowerDNS-Admin/adminauth/internal/db/models"
)

// Gorm stores entries in the application database through gorm.
type Gorm struct {
	db  *gorm.DB
	now func() time.Time
}

var (
	_ Store  = (*Gorm)(nil)
	_ Lister = (*Gorm)(nil)
)

// NewGorm migrates the entry table and returns the store.
func NewGorm(db *gorm.DB) (*Gorm, error) {
	if err := db.AutoMigrate(&models.KVEntry{}); err != nil {
		return nil, fmt.Errorf("migrate kv entries: %w", err)
	}

	return &Gorm{db: db, now: time.Now}, nil
}

// Get returns the value or nil if missing or expired.
func (g *Gorm) Get(key string) ([]byte, error) {
	var e models.KVEntry

	err := g.db.Where("k = ?", key).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}

	if e.ExpiresAt > 0 && e.ExpiresAt <= g.now().Unix() {
		return nil, nil
	}

	return e.Value, nil
}

// Set upserts the value.
func (g *Gorm) Set(key string, val []byte, exp time.Duration) error {
	e := models.KVEntry{Key: key, Value: val}
	if exp > 0 {
		e.ExpiresAt = g.now().Add(exp).Unix()
	}

	err := g.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "k"}},
		DoUpdates: clause.AssignmentColumns([]string{"v", "expires_at"}),
	}).Create(&e).Error
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}

	return nil
}

// Delete removes key.
func (g *Gorm) Delete(key string) error {
	if err := g.db.Where("k = ?", key).Delete(&models.KVEntry{}).Error; err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}

	return nil
}

// Keys returns the unexpired keys starting with prefix.
func (g *Gorm) Keys(prefix string) ([]string, error) {
	var keys []string

	err := g.db.Model(&models.KVEntry{}).
		Where("k LIKE ? AND (expires_at = 0 OR expires_at > ?)", likePattern(prefix), g.now().Unix()).
		Pluck("k", &keys).Error
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}

	return withPrefix(keys, prefix), nil
}

// Purge removes expired entries.
func (g *Gorm) Purge() (int64, error) {
	res := g.db.Where("expires_at > 0 AND expires_at <= ?", g.now().Unix()).Delete(&models.KVEntry{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge kv entries: %w", res.Error)
	}

	return res.RowsAffected, nil
}
