package activity

import (
	"context"
	"strings"

	"gorm.io/gorm/clause"
)

// Register creates a zeroed aggregate for the member if absent and reports
// whether it was newly created. Registration is the prerequisite for being
// named as a mention-credit recipient; repeating it is a harmless no-op so the
// reply layer can greet newcomers and regulars differently.
func (s *Service) Register(ctx context.Context, groupID, userID, displayName string) (bool, error) {
	if strings.TrimSpace(groupID) == "" || strings.TrimSpace(userID) == "" {
		return false, newServiceError(opRegister, "missing_identifier", ErrInvalidSubmission)
	}
	if strings.TrimSpace(displayName) == "" {
		return false, newServiceError(opRegister, "missing_display_name", ErrInvalidSubmission)
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "group_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(&UserAggregate{
		GroupID:     strings.TrimSpace(groupID),
		UserID:      strings.TrimSpace(userID),
		DisplayName: strings.TrimSpace(displayName),
	})
	if result.Error != nil {
		return false, newServiceError(opRegister, "upsert_failed", result.Error)
	}

	return result.RowsAffected > 0, nil
}
