package service

import (
	"time"

	"ZeroDTE/internal/domain/models"
)

// EventRiskEvaluator decides whether a scheduled macro event blocks trading.
type EventRiskEvaluator interface {
	Evaluate(events []models.RawEvent, now time.Time) models.EventRiskStatus
}

// RegimeClassifier derives regime and directional bias from a snapshot.
type RegimeClassifier interface {
	Classify(snap models.MarketSnapshot, now time.Time) models.Classification
}

// LevelParams carries the per-request trading configuration.
type LevelParams struct {
	Capital         float64
	SigmaMultiplier float64
}

// LevelEngine computes the strike table and the final recommendation.
type LevelEngine interface {
	ComputeLevels(snap models.MarketSnapshot, cls models.Classification, risk models.EventRiskStatus) models.LevelTable
	Recommend(table models.LevelTable, p LevelParams) models.Recommendation
}
