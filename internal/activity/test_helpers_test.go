package activity

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bhai-cabal/tracker/internal/lock"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type stubGateway struct {
	mu      sync.Mutex
	verdict Verdict
	err     error
	calls   int
}

func (g *stubGateway) Classify(_ context.Context, _ Category, _ []byte, _ string) (Verdict, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return Verdict{}, g.err
	}
	return g.verdict, nil
}

func (g *stubGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *stubGateway) set(verdict Verdict, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verdict = verdict
	g.err = err
}

func newTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&lock.Record{}, &DailyRecord{}, &UserAggregate{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, name string, gateway Gateway) (*Service, *gorm.DB, *manualClock) {
	t.Helper()
	db := newTestDB(t, name)
	clock := &manualClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}

	locks, err := lock.NewManager(lock.ManagerConfig{Database: db, Clock: clock.Now})
	if err != nil {
		t.Fatalf("failed to build lock manager: %v", err)
	}

	service, err := NewService(ServiceConfig{
		Database: db,
		Locks:    locks,
		Gateway:  gateway,
		Clock:    clock.Now,
	})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return service, db, clock
}

func gymSubmission(groupID, userID, displayName string) Submission {
	return Submission{
		GroupID:         groupID,
		UserID:          userID,
		DisplayName:     displayName,
		Category:        CategoryGym,
		Caption:         "/pumped leg day",
		Image:           []byte{0xff, 0xd8, 0xff},
		SourceMessageID: "msg-1",
	}
}

func loadDaily(t *testing.T, db *gorm.DB, groupID, userID, day string) DailyRecord {
	t.Helper()
	var record DailyRecord
	err := db.Where("group_id = ? AND user_id = ? AND day = ?", groupID, userID, day).
		Take(&record).Error
	if err != nil {
		t.Fatalf("failed to load daily record: %v", err)
	}
	return record
}

func loadAggregate(t *testing.T, db *gorm.DB, groupID, userID string) UserAggregate {
	t.Helper()
	var aggregate UserAggregate
	err := db.Where("group_id = ? AND user_id = ?", groupID, userID).
		Take(&aggregate).Error
	if err != nil {
		t.Fatalf("failed to load aggregate: %v", err)
	}
	return aggregate
}
