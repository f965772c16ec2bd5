package activity

import (
	"context"
	"fmt"
	"strings"
)

// RankingEntry is one leaderboard row.
type RankingEntry struct {
	DisplayName string `gorm:"column:display_name"`
	Count       int64  `gorm:"column:count"`
}

// Leaderboard returns the group's members ordered by the lifetime counter for
// the category, descending, ties broken by display name ascending. Reads are
// lock-free: the board is display-only, never an input to quota decisions.
func (s *Service) Leaderboard(ctx context.Context, groupID string, category Category) ([]RankingEntry, error) {
	if strings.TrimSpace(groupID) == "" {
		return nil, newServiceError(opLeaderboard, "missing_group_id", ErrInvalidSubmission)
	}
	column := counterColumn(category)
	if column == "" {
		return nil, newServiceError(opLeaderboard, "invalid_category", ErrInvalidCategory)
	}

	var entries []RankingEntry
	err := s.db.WithContext(ctx).Model(&UserAggregate{}).
		Select(fmt.Sprintf("display_name, %s AS count", column)).
		Where("group_id = ?", strings.TrimSpace(groupID)).
		Order(fmt.Sprintf("%s DESC, display_name ASC", column)).
		Scan(&entries).Error
	if err != nil {
		return nil, newServiceError(opLeaderboard, "query_failed", err)
	}

	return entries, nil
}
