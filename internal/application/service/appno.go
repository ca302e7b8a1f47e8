package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/approval-workflow/internal/application/port"
)

// Application number strategies
const (
	AppNoStrategyDaily  = "daily"
	AppNoStrategyLegacy = "legacy"
)

// AppNoGenerator assigns human-readable application numbers: AP + yyyyMMdd + 6-digit sequence
type AppNoGenerator interface {
	Next(ctx context.Context, at time.Time) (string, error)
}

// NewAppNoGenerator returns the generator for strategy
func NewAppNoGenerator(strategy string, sequences port.SequenceRepository, apps port.ApplicationRepository) (AppNoGenerator, error) {
	switch strategy {
	case AppNoStrategyDaily, "":
		return &dailyAppNoGenerator{sequences: sequences}, nil
	case AppNoStrategyLegacy:
		return &legacyAppNoGenerator{apps: apps}, nil
	default:
		return nil, fmt.Errorf("unknown app_no strategy %q", strategy)
	}
}

func formatAppNo(at time.Time, seq int64) string {
	return fmt.Sprintf("AP%s%06d", at.Format("20060102"), seq)
}

// dailyAppNoGenerator draws from a per-day counter that restarts at 1 every day.
// It must run inside the submitting transaction.
type dailyAppNoGenerator struct {
	sequences port.SequenceRepository
}

func (g *dailyAppNoGenerator) Next(ctx context.Context, at time.Time) (string, error) {
	seq, err := g.sequences.Next(ctx, at.Format("20060102"))
	if err != nil {
		return "", fmt.Errorf("next sequence: %w", err)
	}
	return formatAppNo(at, seq), nil
}

// legacyAppNoGenerator numbers by total application count + 1.
// It never resets and is only unique while submissions are serialized.
type legacyAppNoGenerator struct {
	apps port.ApplicationRepository
}

func (g *legacyAppNoGenerator) Next(ctx context.Context, at time.Time) (string, error) {
	count, err := g.apps.Count(ctx, port.ApplicationFilter{IncludeDeleted: true})
	if err != nil {
		return "", fmt.Errorf("count applications: %w", err)
	}
	return formatAppNo(at, count+1), nil
}
