// Package seed fills the posts table with plausible demo data. It is intended
// for development and testing only.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"postdesk/internal/middleware"
	"postdesk/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const batchSize = 100

var platforms = []string{
	"Instagram", "TikTok", "YouTube", "Facebook", "LinkedIn", "Pinterest", "X", "Twitch",
}

var campaignKinds = []string{
	"Launch", "Giveaway", "Unboxing", "Review", "Tutorial", "Story takeover", "Live session", "Recap",
}

// Seeder generates and stores posts.
type Seeder struct {
	db    *gorm.DB
	faker *gofakeit.Faker
	now   func() time.Time
}

// NewSeeder returns a Seeder bound to db. A zero seed picks a random one; any
// other value makes the generated data reproducible.
func NewSeeder(db *gorm.DB, seed int64) *Seeder {
	return &Seeder{
		db:    db,
		faker: gofakeit.New(seed),
		now:   time.Now,
	}
}

// BuildPost returns an unsaved post with every business field filled. Due
// dates fall between thirty days ago and ninety days ahead.
func (s *Seeder) BuildPost() *models.Post {
	today := s.now().UTC()

	status := models.PostStatusPending
	if s.faker.Bool() {
		status = models.PostStatusCompleted
	}

	brand := s.faker.Company()
	return &models.Post{
		Title:    fmt.Sprintf("%s %s: %s", brand, s.faker.RandomString(campaignKinds), s.faker.HipsterWord()),
		Brand:    brand,
		Platform: s.faker.RandomString(platforms),
		DueDate:  models.DateOf(s.faker.DateRange(today.AddDate(0, 0, -30), today.AddDate(0, 0, 90)).UTC()),
		Payment:  models.NewMoney(decimal.NewFromFloat(s.faker.Price(25, 5000)).Round(models.MoneyScale)),
		Status:   status,
	}
}

// SeedPosts inserts n generated posts and returns them with their ids set.
func (s *Seeder) SeedPosts(ctx context.Context, n int) ([]*models.Post, error) {
	if n <= 0 {
		return nil, nil
	}

	posts := make([]*models.Post, 0, n)
	for range n {
		posts = append(posts, s.BuildPost())
	}

	if err := s.db.WithContext(ctx).CreateInBatches(posts, batchSize).Error; err != nil {
		return nil, fmt.Errorf("insert posts: %w", err)
	}

	middleware.Logger.Info("Seeded posts", slog.Int("count", len(posts)))
	return posts, nil
}

// ClearAll removes every post.
func (s *Seeder) ClearAll(ctx context.Context) error {
	res := s.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&models.Post{})
	if res.Error != nil {
		return fmt.Errorf("clear posts: %w", res.Error)
	}

	middleware.Logger.Info("Cleared posts", slog.Int64("count", res.RowsAffected))
	return nil
}
