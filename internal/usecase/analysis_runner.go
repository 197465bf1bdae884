package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"ZeroDTE/internal/domain/models"
	domrepo "ZeroDTE/internal/domain/repository"
	domsvc "ZeroDTE/internal/domain/service"
	"ZeroDTE/internal/services/analytics"
	applogger "ZeroDTE/pkg/logger"
)

// Outcomes recorded per run.
const (
	OutcomeOK           = "ok"
	OutcomeRiskBlocked  = "risk_blocked"
	OutcomeConnectivity = "connectivity_failure"
	OutcomeError        = "error"
)

// ErrInvalidParams is returned for a non-positive capital or multiplier.
var ErrInvalidParams = errors.New("invalid analysis parameters")

// RunParams are the per-run trading settings; zero values take the runner's
// defaults.
type RunParams struct {
	Capital float64
	Sigma   float64
}

// AnalysisRunner executes one full decision pass. It holds only
// collaborators; every run builds fresh values.
type AnalysisRunner struct {
	snapshots  *SnapshotBuilder
	calendar   domrepo.EventCalendar
	risk       domsvc.EventRiskEvaluator
	classifier domsvc.RegimeClassifier
	engine     domsvc.LevelEngine
	session    *analytics.Session
	publisher  domrepo.AnalysisPublisher
	metrics    domrepo.Metrics
	defaults   domsvc.LevelParams
	l          *applogger.Logger
	now        func() time.Time
}

// RunnerOption configures AnalysisRunner.
type RunnerOption func(*AnalysisRunner)

// WithPublisher broadcasts each finished analysis.
func WithPublisher(p domrepo.AnalysisPublisher) RunnerOption {
	return func(r *AnalysisRunner) { r.publisher = p }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *AnalysisRunner) { r.now = now }
}

// WithRunnerLogger sets the logger.
func WithRunnerLogger(l *applogger.Logger) RunnerOption {
	return func(r *AnalysisRunner) { r.l = l }
}

// NewAnalysisRunner wires the pipeline. calendar may be nil, in which case no
// event gate applies.
func NewAnalysisRunner(
	snapshots *SnapshotBuilder,
	calendar domrepo.EventCalendar,
	risk domsvc.EventRiskEvaluator,
	classifier domsvc.RegimeClassifier,
	engine domsvc.LevelEngine,
	session *analytics.Session,
	metrics domrepo.Metrics,
	defaults domsvc.LevelParams,
	opts ...RunnerOption,
) *AnalysisRunner {
	r := &AnalysisRunner{
		snapshots:  snapshots,
		calendar:   calendar,
		risk:       risk,
		classifier: classifier,
		engine:     engine,
		session:    session,
		metrics:    metrics,
		defaults:   defaults,
		l:          applogger.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Defaults returns the configured capital and multiplier.
func (r *AnalysisRunner) Defaults() domsvc.LevelParams { return r.defaults }

func (r *AnalysisRunner) params(p RunParams) (domsvc.LevelParams, error) {
	out := r.defaults
	if p.Capital != 0 {
		out.Capital = p.Capital
	}
	if p.Sigma != 0 {
		out.SigmaMultiplier = p.Sigma
	}
	if out.Capital <= 0 || out.SigmaMultiplier <= 0 {
		return out, fmt.Errorf("%w: capital=%v sigma=%v", ErrInvalidParams, out.Capital, out.SigmaMultiplier)
	}
	return out, nil
}

// FetchEvents reads the calendar for the local trading day of at. The
// result carries the error instead of failing.
func (r *AnalysisRunner) FetchEvents(ctx context.Context, at time.Time) models.EventFeedResult {
	if r.calendar == nil {
		return models.EventFeedResult{Events: []models.RawEvent{}}
	}
	events, err := r.calendar.Events(ctx, r.session.Local(at))
	if err != nil {
		return models.EventFeedResult{Err: &models.FetchError{Source: "calendar", Err: err}}
	}
	return models.EventFeedResult{Events: events}
}

// EventRisk evaluates the calendar for at, failing open on feed errors.
func (r *AnalysisRunner) EventRisk(ctx context.Context, at time.Time) (models.EventRiskStatus, error) {
	feed := r.FetchEvents(ctx, at)
	if feed.Err != nil {
		r.metrics.RecordFetchError("calendar", "")
		r.l.Warn("event feed unavailable, gate open", applogger.Error(feed.Err))
		return models.DefaultEventRiskStatus(), feed.Err
	}
	return r.risk.Evaluate(feed.Events, at), nil
}

// Run fetches the event feed and the instrument readings concurrently, then
// evaluates, classifies and places levels.
func (r *AnalysisRunner) Run(ctx context.Context, p RunParams) (*models.Analysis, error) {
	lp, err := r.params(p)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	now := r.now()

	var (
		wg       sync.WaitGroup
		risk     models.EventRiskStatus
		snap     models.MarketSnapshot
		degraded []string
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		risk, _ = r.EventRisk(ctx, now)
	}()
	go func() {
		defer wg.Done()
		snap, degraded = r.snapshots.Build(ctx, now)
	}()
	wg.Wait()

	if err := snap.Validate(); err != nil {
		if errors.Is(err, models.ErrConnectivityFailure) {
			r.metrics.RecordAnalysis(OutcomeConnectivity)
		} else {
			r.metrics.RecordAnalysis(OutcomeError)
		}
		r.l.Error("analysis aborted", applogger.Error(err), applogger.Strings("degraded", degraded))
		return nil, err
	}

	cls := r.classifier.Classify(snap, now)
	snap = snap.WithBreadth(cls.BreadthVotes, cls.HybridBiasBullish)
	table := r.engine.ComputeLevels(snap, cls, risk)
	rec := r.engine.Recommend(table, lp)

	a := &models.Analysis{
		ID:             uuid.NewString(),
		At:             now,
		Capital:        lp.Capital,
		Sigma:          lp.SigmaMultiplier,
		EventRisk:      risk,
		Snapshot:       snap,
		Classification: cls,
		Levels:         table,
		Recommendation: rec,
		Dashboard:      r.dashboard(snap, cls, risk, now, degraded),
	}

	outcome := OutcomeOK
	if rec.RiskBlocked {
		outcome = OutcomeRiskBlocked
	}
	r.metrics.RecordAnalysis(outcome)
	r.metrics.RecordLatency("analysis_run", time.Since(start).Seconds())
	r.l.Info("analysis complete",
		applogger.String("id", a.ID),
		applogger.String("outcome", outcome),
		applogger.Float64("xsp", table.Underlying),
		applogger.String("regime", string(cls.Regime)),
		applogger.Bool("bias_bullish", cls.BiasBullish),
		applogger.Int("degraded", len(degraded)))

	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, a); err != nil {
			r.metrics.RecordError("publish")
			r.l.Error("publish analysis failed", applogger.String("id", a.ID), applogger.Error(err))
		}
	}
	return a, nil
}

func (r *AnalysisRunner) dashboard(snap models.MarketSnapshot, cls models.Classification, risk models.EventRiskStatus, now time.Time, degraded []string) models.Dashboard {
	xsp := snap.Reading(models.XSP)
	skew := snap.Reading(models.SKEW).Last
	return models.Dashboard{
		Price:          xsp.Last,
		BreadthOK:      cls.Confluence,
		VolumeRatio:    analytics.VolumeRatio(snap.Reading(models.SPY)),
		RSI:            xsp.RSI14,
		VIX:            snap.Reading(models.VIX).Last,
		VIX1D:          snap.Reading(models.VIX1D).Last,
		VIXInverted:    analytics.VIXInverted(snap),
		Skew:           skew,
		SkewBand:       analytics.SkewBandOf(skew),
		NewsBlocked:    risk.Blocked,
		EngineMode:     r.session.EngineMode(now),
		DegradedInputs: degraded,
	}
}
