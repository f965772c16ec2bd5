package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bhai-cabal/tracker/internal/lock"
	"github.com/bhai-cabal/tracker/internal/observability"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// DefaultLeaseDuration bounds how long one submission may hold its lock.
	DefaultLeaseDuration = 10 * time.Second
	// DefaultDailyAttemptCap is the number of attempts per day before a
	// category-independent Exhausted state.
	DefaultDailyAttemptCap = 5

	dayLayout = "2006-01-02"
)

var (
	errMissingDatabase    = errors.New("database handle is required")
	errMissingLockManager = errors.New("lock manager is required")
	errMissingGateway     = errors.New("classification gateway is required")
	noOpLogger            = zap.NewNop()
)

// ServiceError carries an operation.reason code alongside the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the operation.reason identifier.
func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew       = "activity.service.new"
	opHandleSubmission = "activity.handle_submission"
	opRegister         = "activity.register"
	opLeaderboard      = "activity.leaderboard"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ServiceConfig describes the dependencies of the activity service.
type ServiceConfig struct {
	Database        *gorm.DB
	Locks           *lock.Manager
	Gateway         Gateway
	Clock           func() time.Time
	Logger          *zap.Logger
	LeaseDuration   time.Duration
	DailyAttemptCap int
}

// Service runs the submission pipeline and owns the daily ledger and the
// user aggregates. All ledger mutations happen while the submitting user's
// (group, user) lock is held; mention credits are independent atomic adds.
type Service struct {
	db         *gorm.DB
	locks      *lock.Manager
	gateway    Gateway
	clock      func() time.Time
	logger     *zap.Logger
	lease      time.Duration
	attemptCap int
}

// NewService constructs the activity service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.Locks == nil {
		return nil, newServiceError(opServiceNew, "missing_lock_manager", errMissingLockManager)
	}
	if cfg.Gateway == nil {
		return nil, newServiceError(opServiceNew, "missing_gateway", errMissingGateway)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	lease := cfg.LeaseDuration
	if lease <= 0 {
		lease = DefaultLeaseDuration
	}
	attemptCap := cfg.DailyAttemptCap
	if attemptCap <= 0 {
		attemptCap = DefaultDailyAttemptCap
	}

	return &Service{
		db:         cfg.Database,
		locks:      cfg.Locks,
		gateway:    cfg.Gateway,
		clock:      clock,
		logger:     logger,
		lease:      lease,
		attemptCap: attemptCap,
	}, nil
}

// HandleSubmission runs one inbound event through the pipeline: acquire the
// (group, user) lock, decide against today's ledger entry, classify, persist,
// release. The returned error is non-nil only for malformed events; every
// runtime fault resolves into an Outcome the reply layer can render.
func (s *Service) HandleSubmission(ctx context.Context, sub Submission) (Outcome, error) {
	if err := sub.Validate(); err != nil {
		return Outcome{}, newServiceError(opHandleSubmission, "invalid_submission", err)
	}

	key, err := lock.NewKey(sub.GroupID, sub.UserID)
	if err != nil {
		return Outcome{}, newServiceError(opHandleSubmission, "invalid_lock_key", err)
	}

	lease, err := s.locks.Acquire(ctx, key, s.lease)
	if errors.Is(err, lock.ErrLockBusy) {
		observability.RecordLockContention()
		return s.finish(sub.Category, Outcome{Kind: OutcomeLockBusy}), nil
	}
	if err != nil {
		s.logError(opHandleSubmission, "lock_acquire_failed", err,
			zap.String("group_id", sub.GroupID), zap.String("user_id", sub.UserID))
		return s.finish(sub.Category, Outcome{Kind: OutcomeStoreUnavailable}), nil
	}
	// Release must run on every exit path, including caller cancellation mid
	// critical section, so it is detached from ctx's cancellation.
	defer func() {
		if releaseErr := lease.Release(context.WithoutCancel(ctx)); releaseErr != nil {
			s.logError(opHandleSubmission, "lock_release_failed", releaseErr,
				zap.String("group_id", sub.GroupID), zap.String("user_id", sub.UserID))
		}
	}()

	day := s.clock().UTC().Format(dayLayout)
	return s.finish(sub.Category, s.recordAttemptOrSuccess(ctx, sub, day)), nil
}

func (s *Service) finish(category Category, outcome Outcome) Outcome {
	observability.RecordSubmissionOutcome(category.String(), string(outcome.Kind))
	return outcome
}

// recordAttemptOrSuccess implements the ledger state machine for one event.
// The caller holds the (group, user) lock.
func (s *Service) recordAttemptOrSuccess(ctx context.Context, sub Submission, day string) Outcome {
	record, err := s.loadDailyRecord(ctx, sub.GroupID, sub.UserID, day)
	if err != nil {
		s.logError(opHandleSubmission, "record_load_failed", err,
			zap.String("group_id", sub.GroupID), zap.String("user_id", sub.UserID))
		return Outcome{Kind: OutcomeStoreUnavailable}
	}

	if record.Uploaded(sub.Category) {
		return Outcome{Kind: OutcomeAlreadyRecorded}
	}
	if record.Attempts >= s.attemptCap {
		return Outcome{Kind: OutcomeQuotaExceeded}
	}

	started := s.clock()
	verdict, err := s.gateway.Classify(ctx, sub.Category, sub.Image, sub.DisplayName)
	observability.RecordClassification(sub.Category.String(), s.clock().Sub(started), err)
	if err != nil {
		// A gateway fault must not consume the member's quota.
		s.logError(opHandleSubmission, "classification_failed", err,
			zap.String("group_id", sub.GroupID), zap.String("user_id", sub.UserID),
			zap.String("category", sub.Category.String()))
		return Outcome{Kind: OutcomeServiceUnavailable}
	}

	if !verdict.Valid {
		record.Attempts++
		if err := persistDailyRecord(s.db.WithContext(ctx), record); err != nil {
			s.logError(opHandleSubmission, "attempt_persist_failed", err,
				zap.String("group_id", sub.GroupID), zap.String("user_id", sub.UserID))
			return Outcome{Kind: OutcomeStoreUnavailable}
		}
		return Outcome{Kind: OutcomeRejected, Feedback: verdict.Feedback}
	}

	// Flag and lifetime counter commit together: a counter write failing after
	// the flag landed would turn every retry into AlreadyRecorded and lose the
	// credit for good.
	record.MarkUploaded(sub.Category)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := persistDailyRecord(tx, record); err != nil {
			return err
		}
		return s.bumpLifetimeCounter(tx, sub)
	})
	if err != nil {
		s.logError(opHandleSubmission, "record_persist_failed", err,
			zap.String("group_id", sub.GroupID), zap.String("user_id", sub.UserID))
		return Outcome{Kind: OutcomeStoreUnavailable}
	}

	outcome := Outcome{Kind: OutcomeAccepted, Feedback: verdict.Feedback}
	if sub.Category == CategoryMindfulness {
		outcome.CreditedMentions = s.creditMentions(ctx, sub)
	}
	return outcome
}

func (s *Service) loadDailyRecord(ctx context.Context, groupID, userID, day string) (DailyRecord, error) {
	record := DailyRecord{GroupID: groupID, UserID: userID, Day: day}
	err := s.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ? AND day = ?", groupID, userID, day).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DailyRecord{GroupID: groupID, UserID: userID, Day: day}, nil
	}
	if err != nil {
		return DailyRecord{}, err
	}
	return record, nil
}

func persistDailyRecord(db *gorm.DB, record DailyRecord) error {
	return db.
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&record).Error
}

// bumpLifetimeCounter upserts the submitter's aggregate with an atomic add on
// the accepted category and refreshes the stored display name.
func (s *Service) bumpLifetimeCounter(db *gorm.DB, sub Submission) error {
	column := counterColumn(sub.Category)
	seed := UserAggregate{
		GroupID:     sub.GroupID,
		UserID:      sub.UserID,
		DisplayName: sub.DisplayName,
	}
	switch sub.Category {
	case CategoryGym:
		seed.GymCount = 1
	case CategoryShipping:
		seed.ShippingCount = 1
	case CategoryMindfulness:
		seed.MindfulnessCount = 1
	}

	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "group_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			column:         gorm.Expr(fmt.Sprintf("user_aggregates.%s + 1", column)),
			"display_name": sub.DisplayName,
			"updated_at":   s.clock().UTC(),
		}),
	}).Create(&seed).Error
}

// creditMentions grants a mindfulness credit to each registered member named
// in the caption. The increments are commutative atomic adds outside the
// mentioned members' locks, so concurrent credits never lose an increment.
// Names match case-insensitively, the way chat handles resolve; unregistered
// names and self-mentions are skipped.
func (s *Service) creditMentions(ctx context.Context, sub Submission) []string {
	mentions := ExtractMentions(sub.Caption)
	if len(mentions) == 0 {
		return nil
	}

	credited := make([]string, 0, len(mentions))
	for _, name := range mentions {
		result := s.db.WithContext(ctx).Model(&UserAggregate{}).
			Where("group_id = ? AND LOWER(display_name) = LOWER(?) AND user_id <> ?", sub.GroupID, name, sub.UserID).
			UpdateColumn("mindfulness_count", gorm.Expr("mindfulness_count + ?", 1))
		if result.Error != nil {
			s.logError(opHandleSubmission, "mention_credit_failed", result.Error,
				zap.String("group_id", sub.GroupID), zap.String("mention", name))
			continue
		}
		if result.RowsAffected > 0 {
			credited = append(credited, name)
		}
	}

	observability.RecordMentionCredits(len(credited))
	return credited
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("activity service error", attrs...)
}
