package models

// KVEntry is one durable key-value record, used for sessions and rate-limit entries.
type KVEntry struct {
	Key   string `gorm:"column:k;primaryKey;size:255"`
	Value []byte `gorm:"column:v"`
	// ExpiresAt is a unix timestamp, 0 means no expiry.
	ExpiresAt int64 `gorm:"index"`
}

// TableName overrides the gorm default.
func (KVEntry) TableName() string {
	return "kv_entries"
}
