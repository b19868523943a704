// internal/insights/insights.go

// Package insights aggregates a user's recent spending and generates cached
// advisory tips through the classifier.
package insights

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"circlepool/internal/cache"
	"circlepool/internal/classifier"
	"circlepool/internal/domain"
	"circlepool/internal/repository"
	"circlepool/internal/util"
)

// OverviewWindow is how far back the spending overview looks.
const OverviewWindow = 6 * 30 * 24 * time.Hour

// CategoryBreakdown is one category's share of total spending.
type CategoryBreakdown struct {
	Category   string          `json:"category"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
}

// MonthlyPoint is one month's productive versus non-productive split.
type MonthlyPoint struct {
	Month         string          `json:"month"` // YYYY-MM
	Productive    decimal.Decimal `json:"productive"`
	NonProductive decimal.Decimal `json:"non_productive"`
}

// Overview summarizes a user's expenses over the window.
type Overview struct {
	TotalSpent         decimal.Decimal     `json:"total_spent"`
	ProductiveSpent    decimal.Decimal     `json:"productive_spent"`
	NonProductiveSpent decimal.Decimal     `json:"non_productive_spent"`
	UnclassifiedSpent  decimal.Decimal     `json:"unclassified_spent"`
	ExpenseCount       int                 `json:"expense_count"`
	Categories         []CategoryBreakdown `json:"categories"`
	Monthly            []MonthlyPoint      `json:"monthly"`
}

// Service computes spending analytics.
type Service interface {
	Overview(ctx context.Context, userID int64) (*Overview, error)
	// Insights returns advisory tips for the user. Results are cached; a
	// rate-limited classifier falls back to the stale cached entry when one
	// exists and fails with the rate-limit error otherwise.
	Insights(ctx context.Context, userID int64) ([]string, error)
}

type service struct {
	dbExecutor  repository.DBExecutor
	expenseRepo repository.ExpenseRepository
	classifier  classifier.Classifier
	cache       *cache.TTLCache[[]string]
	group       singleflight.Group
}

// NewService creates the analytics service. cacheSize and cacheTTL bound the
// per-user insights cache.
func NewService(
	dbExecutor repository.DBExecutor,
	expenseRepo repository.ExpenseRepository,
	cls classifier.Classifier,
	cacheSize int,
	cacheTTL time.Duration,
) Service {
	return &service{
		dbExecutor:  dbExecutor,
		expenseRepo: expenseRepo,
		classifier:  cls,
		cache:       cache.New[[]string](cacheSize, cacheTTL),
	}
}

func (s *service) Overview(ctx context.Context, userID int64) (*Overview, error) {
	since := time.Now().UTC().Add(-OverviewWindow)
	expenses, err := s.expenseRepo.ListByPayerSince(ctx, s.dbExecutor, userID, since)
	if err != nil {
		return nil, fmt.Errorf("overview: failed to list expenses for user %d: %w", userID, err)
	}

	ov := &Overview{ExpenseCount: len(expenses)}
	byCategory := make(map[string]decimal.Decimal)
	byMonth := make(map[string]*MonthlyPoint)

	for _, e := range expenses {
		ov.TotalSpent = ov.TotalSpent.Add(e.Amount)
		switch e.Productivity {
		case domain.ProductivityProductive:
			ov.ProductiveSpent = ov.ProductiveSpent.Add(e.Amount)
		case domain.ProductivityNonProductive:
			ov.NonProductiveSpent = ov.NonProductiveSpent.Add(e.Amount)
		default:
			ov.UnclassifiedSpent = ov.UnclassifiedSpent.Add(e.Amount)
		}

		cat := e.Category
		if cat == "" {
			cat = "Uncategorized"
		}
		byCategory[cat] = byCategory[cat].Add(e.Amount)

		month := e.SpentAt.UTC().Format("2006-01")
		point, ok := byMonth[month]
		if !ok {
			point = &MonthlyPoint{Month: month}
			byMonth[month] = point
		}
		switch e.Productivity {
		case domain.ProductivityProductive:
			point.Productive = point.Productive.Add(e.Amount)
		case domain.ProductivityNonProductive:
			point.NonProductive = point.NonProductive.Add(e.Amount)
		}
	}

	hundred := decimal.NewFromInt(100)
	for cat, amount := range byCategory {
		pct := decimal.Zero
		if ov.TotalSpent.IsPositive() {
			pct = amount.Mul(hundred).DivRound(ov.TotalSpent, 2)
		}
		ov.Categories = append(ov.Categories, CategoryBreakdown{Category: cat, Amount: amount, Percentage: pct})
	}
	sort.Slice(ov.Categories, func(i, j int) bool {
		if !ov.Categories[i].Amount.Equal(ov.Categories[j].Amount) {
			return ov.Categories[i].Amount.GreaterThan(ov.Categories[j].Amount)
		}
		return ov.Categories[i].Category < ov.Categories[j].Category
	})

	for _, point := range byMonth {
		ov.Monthly = append(ov.Monthly, *point)
	}
	sort.Slice(ov.Monthly, func(i, j int) bool { return ov.Monthly[i].Month < ov.Monthly[j].Month })

	return ov, nil
}

func (s *service) Insights(ctx context.Context, userID int64) ([]string, error) {
	// Expired entries are read without evicting them; a rate-limited
	// refresh below falls back to the stale value.
	key := strconv.FormatInt(userID, 10)
	if tips, _, fresh := s.cache.GetStale(key); fresh {
		return tips, nil
	}

	// Concurrent misses for the same user share one classifier call.
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		if tips, _, fresh := s.cache.GetStale(key); fresh {
			return tips, nil
		}
		tips, err := s.generate(ctx, userID, key)
		if err != nil {
			return nil, err
		}
		return tips, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

func (s *service) generate(ctx context.Context, userID int64, key string) ([]string, error) {
	since := time.Now().UTC().Add(-OverviewWindow)
	expenses, err := s.expenseRepo.ListByPayerSince(ctx, s.dbExecutor, userID, since)
	if err != nil {
		return nil, fmt.Errorf("insights: failed to list expenses for user %d: %w", userID, err)
	}
	if len(expenses) == 0 {
		return []string{"No recent expenses to analyze. Record a few expenses to get personalized insights."}, nil
	}

	summaries := make([]string, 0, len(expenses))
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
		summaries = append(summaries, fmt.Sprintf("%s: %s (%s, %s)",
			e.SpentAt.UTC().Format("2006-01-02"), e.Amount.StringFixed(2), e.Category, e.Productivity))
	}

	tips, err := s.classifier.Insights(ctx, summaries, total)
	if err != nil {
		if util.IsError(err, util.ErrRateLimited) {
			// Serve the expired entry without refreshing its TTL so the
			// next miss retries upstream.
			if stale, present, _ := s.cache.GetStale(key); present {
				slog.Warn("Insights rate limited, serving stale cache", "user_id", userID)
				return stale, nil
			}
		}
		return nil, fmt.Errorf("insights: classifier failed for user %d: %w", userID, err)
	}
	s.cache.Set(key, tips)
	return tips, nil
}
