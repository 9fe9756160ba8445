package database

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jimdaga/goldstreak/internal/models"
	"github.com/jimdaga/goldstreak/internal/streak"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:embed badges.yaml
var badgeCatalogYAML []byte

// DevUserID is the fixed subject used for development seed data
var DevUserID = uuid.MustParse("00000000-0000-4000-8000-000000000001")

type badgeCatalog struct {
	Badges []models.Badge `yaml:"badges"`
}

// LoadBadgeCatalog parses the embedded badge catalog. Unknown fields are rejected.
func LoadBadgeCatalog() ([]models.Badge, error) {
	return parseBadgeCatalog(badgeCatalogYAML)
}

func parseBadgeCatalog(data []byte) ([]models.Badge, error) {
	var catalog badgeCatalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&catalog); err != nil {
		return nil, fmt.Errorf("parse badge catalog: %w", err)
	}

	seen := make(map[string]bool, len(catalog.Badges))
	for _, b := range catalog.Badges {
		if b.Slug == "" || b.Name == "" {
			return nil, fmt.Errorf("badge catalog: slug and name are required")
		}
		if seen[b.Slug] {
			return nil, fmt.Errorf("badge catalog: duplicate slug %q", b.Slug)
		}
		seen[b.Slug] = true
		if b.Threshold < 1 {
			return nil, fmt.Errorf("badge %s: threshold must be positive", b.Slug)
		}
		if b.Category != models.BadgeCategoryGold && b.Category != models.BadgeCategoryHabit {
			return nil, fmt.Errorf("badge %s: unknown category %q", b.Slug, b.Category)
		}
	}
	return catalog.Badges, nil
}

// SeedBadges upserts the catalog by slug. Safe to run on every start.
func SeedBadges(db *gorm.DB, logger *zap.Logger) error {
	catalog, err := LoadBadgeCatalog()
	if err != nil {
		return err
	}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "description", "threshold", "category"}),
	}).Create(&catalog).Error
	if err != nil {
		return fmt.Errorf("seed badges: %w", err)
	}
	logger.Info("badges_seeded", zap.Int("count", len(catalog)))
	return nil
}

// SeedDevData populates the database with development test data.
// Idempotent: skips if the dev profile already exists.
func SeedDevData(db *gorm.DB, logger *zap.Logger) error {
	var existing models.Profile
	err := db.Where("user_id = ?", DevUserID).First(&existing).Error
	if err == nil {
		logger.Info("seed_data_exists")
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	profile := models.Profile{
		UserID:      DevUserID,
		DisplayName: "Dev User",
		CoreBelief:  "Small steps every day compound into big change.",
		AIVoice:     "Warm, direct and a little playful.",
		Timezone:    "UTC",
	}
	if err := db.Create(&profile).Error; err != nil {
		return err
	}

	goals := []models.Goal{
		{UserID: DevUserID, Title: "Run a half marathon"},
		{UserID: DevUserID, Title: "Read 20 books this year"},
	}
	if err := db.Create(&goals).Error; err != nil {
		return err
	}

	start := streak.Day(time.Now()).AddDate(0, 0, -10)
	routines := []models.Routine{
		{UserID: DevUserID, Name: "Morning run", Recurrence: string(streak.RuleWeekdays), CreatedOn: start},
		{UserID: DevUserID, Name: "Read 20 pages", Recurrence: string(streak.RuleDaily), CreatedOn: start},
	}
	if err := db.Create(&routines).Error; err != nil {
		return err
	}

	var completions []models.DailyCompletion
	for day := start; day.Before(streak.Day(time.Now())); day = day.AddDate(0, 0, 1) {
		for _, r := range routines {
			if r.StreakRoutine().Rule.DueOn(r.CreatedOn, day) {
				completions = append(completions, models.DailyCompletion{RoutineID: r.ID, Date: day, Done: true})
			}
		}
	}
	if len(completions) > 0 {
		if err := db.Create(&completions).Error; err != nil {
			return err
		}
	}

	logger.Info("dev_data_seeded",
		zap.Int("goals", len(goals)),
		zap.Int("routines", len(routines)),
		zap.Int("completions", len(completions)))
	return nil
}
