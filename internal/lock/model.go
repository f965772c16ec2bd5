package lock

import (
	"errors"
	"fmt"
	"strings"
)

const maxIdentifierLength = 190

// ErrInvalidKey indicates that a lock key component is empty or exceeds storage bounds.
var ErrInvalidKey = errors.New("lock: invalid key")

// Key identifies the mutual-exclusion scope: one lock per (group, user) pair.
type Key struct {
	groupID string
	userID  string
}

// NewKey validates the components and returns a Key.
func NewKey(groupID, userID string) (Key, error) {
	trimmedGroup := strings.TrimSpace(groupID)
	trimmedUser := strings.TrimSpace(userID)
	if trimmedGroup == "" || trimmedUser == "" {
		return Key{}, fmt.Errorf("%w: empty component", ErrInvalidKey)
	}
	if len(trimmedGroup)+len(trimmedUser)+1 > maxIdentifierLength {
		return Key{}, fmt.Errorf("%w: exceeds %d characters", ErrInvalidKey, maxIdentifierLength)
	}
	return Key{groupID: trimmedGroup, userID: trimmedUser}, nil
}

// String returns the storage form of the key.
func (k Key) String() string {
	return k.groupID + "_" + k.userID
}

// Record is the persisted lock entry. A row whose expiry has passed is
// logically absent: acquisition treats it exactly like a missing row.
type Record struct {
	LockKey      string `gorm:"column:lock_key;primaryKey;size:190;not null"`
	OwnerToken   string `gorm:"column:owner_token;size:190;not null"`
	AcquiredAtMs int64  `gorm:"column:acquired_at_ms;not null"`
	ExpiresAtMs  int64  `gorm:"column:expires_at_ms;not null;index"`
}

// TableName provides the explicit table binding for GORM.
func (Record) TableName() string {
	return "activity_locks"
}
