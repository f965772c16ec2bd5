package activity

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Category enumerates the tracked activity kinds. Exactly one category
// applies per submission; the transport layer derives it from caption markers.
type Category string

const (
	// CategoryGym covers workout photos.
	CategoryGym Category = "gym"
	// CategoryShipping covers work-progress photos.
	CategoryShipping Category = "shipping"
	// CategoryMindfulness covers meditation and mindful-practice photos.
	CategoryMindfulness Category = "mindfulness"
)

// ErrInvalidCategory indicates an unknown category name.
var ErrInvalidCategory = errors.New("activity: invalid category")

// ParseCategory validates raw input and returns a Category.
func ParseCategory(raw string) (Category, error) {
	switch Category(strings.ToLower(strings.TrimSpace(raw))) {
	case CategoryGym:
		return CategoryGym, nil
	case CategoryShipping:
		return CategoryShipping, nil
	case CategoryMindfulness:
		return CategoryMindfulness, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, raw)
	}
}

// String returns the canonical category name.
func (c Category) String() string {
	return string(c)
}

// DailyRecord is the per-(group, user, day) ledger entry. Each uploaded flag
// transitions false to true at most once per day; attempts never exceed the
// configured cap. Mutations happen only while the (group, user) lock is held.
type DailyRecord struct {
	GroupID             string `gorm:"column:group_id;primaryKey;size:190;not null"`
	UserID              string `gorm:"column:user_id;primaryKey;size:190;not null"`
	Day                 string `gorm:"column:day;primaryKey;size:10;not null"`
	GymUploaded         bool   `gorm:"column:gym_uploaded;not null;default:false"`
	ShippingUploaded    bool   `gorm:"column:shipping_uploaded;not null;default:false"`
	MindfulnessUploaded bool   `gorm:"column:mindfulness_uploaded;not null;default:false"`
	Attempts            int    `gorm:"column:attempts;not null;default:0"`
}

// TableName provides the explicit table binding for GORM.
func (DailyRecord) TableName() string {
	return "daily_activity_records"
}

// Uploaded reports the flag for the given category.
func (r DailyRecord) Uploaded(category Category) bool {
	switch category {
	case CategoryGym:
		return r.GymUploaded
	case CategoryShipping:
		return r.ShippingUploaded
	case CategoryMindfulness:
		return r.MindfulnessUploaded
	default:
		return false
	}
}

// MarkUploaded sets the flag for the given category.
func (r *DailyRecord) MarkUploaded(category Category) {
	switch category {
	case CategoryGym:
		r.GymUploaded = true
	case CategoryShipping:
		r.ShippingUploaded = true
	case CategoryMindfulness:
		r.MindfulnessUploaded = true
	}
}

// UserAggregate carries a member's display name and lifetime counters per
// category. Counters are monotonic and only ever bumped with atomic adds.
type UserAggregate struct {
	GroupID          string    `gorm:"column:group_id;primaryKey;size:190;not null"`
	UserID           string    `gorm:"column:user_id;primaryKey;size:190;not null"`
	DisplayName      string    `gorm:"column:display_name;size:320;not null"`
	GymCount         int64     `gorm:"column:gym_count;not null;default:0"`
	ShippingCount    int64     `gorm:"column:shipping_count;not null;default:0"`
	MindfulnessCount int64     `gorm:"column:mindfulness_count;not null;default:0"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (UserAggregate) TableName() string {
	return "user_aggregates"
}

// Count reports the lifetime counter for the given category.
func (a UserAggregate) Count(category Category) int64 {
	switch category {
	case CategoryGym:
		return a.GymCount
	case CategoryShipping:
		return a.ShippingCount
	case CategoryMindfulness:
		return a.MindfulnessCount
	default:
		return 0
	}
}

// counterColumn maps a category to its aggregate counter column.
func counterColumn(category Category) string {
	switch category {
	case CategoryGym:
		return "gym_count"
	case CategoryShipping:
		return "shipping_count"
	case CategoryMindfulness:
		return "mindfulness_count"
	default:
		return ""
	}
}
