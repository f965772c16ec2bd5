package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrLockBusy indicates another holder owns a live lease on the key.
	ErrLockBusy = errors.New("lock: busy")

	errMissingDatabase = errors.New("lock: database handle is required")
	errInvalidLease    = errors.New("lock: lease duration must be positive")
)

// TokenProvider issues opaque owner tokens, unique per acquisition.
type TokenProvider interface {
	NewToken() (string, error)
}

type uuidTokenProvider struct{}

// NewUUIDTokenProvider constructs a TokenProvider that issues UUIDv7 tokens.
func NewUUIDTokenProvider() TokenProvider {
	return &uuidTokenProvider{}
}

func (p *uuidTokenProvider) NewToken() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return value.String(), nil
}

// ManagerConfig describes the dependencies required by the lock manager.
type ManagerConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Tokens   TokenProvider
	Logger   *zap.Logger
}

// Manager provides leased mutual exclusion keyed per (group, user), backed by
// a single conditional write against the shared store. Leases make the lock
// self-healing: a holder that dies mid-critical-section is superseded once its
// expiry passes, without any external watchdog.
type Manager struct {
	db     *gorm.DB
	clock  func() time.Time
	tokens TokenProvider
	logger *zap.Logger
}

// NewManager constructs the lock manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	tokens := cfg.Tokens
	if tokens == nil {
		tokens = NewUUIDTokenProvider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		db:     cfg.Database,
		clock:  clock,
		tokens: tokens,
		logger: logger,
	}, nil
}

// Lease is a releasable hold on a key. Release is safe to defer on every exit
// path and is a no-op once the lease has been released or superseded.
type Lease struct {
	manager  *Manager
	key      Key
	token    string
	released bool
}

// Token exposes the opaque owner token for the acquisition.
func (l *Lease) Token() string {
	return l.token
}

// Release clears the lock entry if this lease still owns it. A stale token
// never clears a successor's lease.
func (l *Lease) Release(ctx context.Context) error {
	if l == nil || l.released {
		return nil
	}
	l.released = true
	return l.manager.release(ctx, l.key, l.token)
}

// Acquire claims the key when no live lease exists for it. The claim is a
// single atomic conditional upsert: it inserts a fresh lease, or overwrites a
// row whose expiry has passed. When two callers race against the same
// absent-or-expired state the store admits exactly one write.
func (m *Manager) Acquire(ctx context.Context, key Key, lease time.Duration) (*Lease, error) {
	if lease <= 0 {
		return nil, errInvalidLease
	}

	token, err := m.tokens.NewToken()
	if err != nil {
		return nil, fmt.Errorf("lock: token generation failed: %w", err)
	}

	now := m.clock().UTC()
	record := Record{
		LockKey:      key.String(),
		OwnerToken:   token,
		AcquiredAtMs: now.UnixMilli(),
		ExpiresAtMs:  now.Add(lease).UnixMilli(),
	}

	result := m.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "lock_key"}},
		Where: clause.Where{
			Exprs: []clause.Expression{
				gorm.Expr("activity_locks.expires_at_ms <= ?", record.AcquiredAtMs),
			},
		},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"owner_token":    record.OwnerToken,
			"acquired_at_ms": record.AcquiredAtMs,
			"expires_at_ms":  record.ExpiresAtMs,
		}),
	}).Create(&record)
	if result.Error != nil {
		return nil, fmt.Errorf("lock: acquire failed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrLockBusy
	}

	return &Lease{manager: m, key: key, token: token}, nil
}

// release deletes the lock entry only while its owner token still matches.
// Guards against the lost-release hazard: a lease that expired and was
// re-acquired by someone else must not be cleared by the late first holder.
func (m *Manager) release(ctx context.Context, key Key, token string) error {
	result := m.db.WithContext(ctx).
		Where("lock_key = ? AND owner_token = ?", key.String(), token).
		Delete(&Record{})
	if result.Error != nil {
		return fmt.Errorf("lock: release failed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		m.logger.Debug("lock release skipped, token superseded",
			zap.String("lock_key", key.String()))
	}
	return nil
}
