// Package matching computes affinity insights for stored identities: it fetches both
// profiles and the subject's message history, scores the pair, persists the result and
// optionally attaches a narrative summary.
package matching

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/affinity"
	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/cache"
	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/database"
	apperrors "github.com/cactuscomunidadcreativa/rowi-affinity/internal/errors"
	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/monitoring"
	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/resilience"
	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/summary"
)

// ReasonNoProfileData marks an insight that could not be scored.
const ReasonNoProfileData = "no_profile_data"

// Store is the persistence the service reads from and writes to.
type Store interface {
	GetAssessment(ctx context.Context, identity string) (*database.Assessment, error)
	RecentMessages(ctx context.Context, identity string, limit int) ([]string, error)
	SaveResult(ctx context.Context, res *database.StoredResult) error
	GetResult(ctx context.Context, subject, counterpart string, c affinity.Context) (*database.StoredResult, error)
}

// Request asks for the insight of subject towards counterpart.
type Request struct {
	Subject         string `json:"subject" binding:"required"`
	Counterpart     string `json:"counterpart" binding:"required"`
	SubjectName     string `json:"subject_name"`
	CounterpartName string `json:"counterpart_name"`
	Context         string `json:"context"`
	Closeness       string `json:"closeness"`
	// Entitled is decided by the caller; the engine has no notion of plans.
	Entitled bool `json:"entitled"`
}

// Insight is a scored pair, or an explicit "not available" marker.
type Insight struct {
	Available        bool                     `json:"available"`
	Reason           string                   `json:"reason,omitempty"`
	Subject          string                   `json:"subject"`
	Counterpart      string                   `json:"counterpart"`
	Context          affinity.Context         `json:"context"`
	Result           *affinity.Result         `json:"result,omitempty"`
	Bias             *affinity.PreferenceBias `json:"bias,omitempty"`
	Channel          *affinity.Channel        `json:"channel,omitempty"`
	Summary          string                   `json:"summary,omitempty"`
	SummaryGenerated bool                     `json:"summary_generated"`
	Cached           bool                     `json:"cached"`
	ComputedAt       time.Time                `json:"computed_at,omitempty"`
}

// Deps wires the service. Engine and Store are required.
type Deps struct {
	Engine     *affinity.Engine
	Store      Store
	Cache      cache.ResultCache
	BiasCache  *cache.BiasCache
	Learner    affinity.BiasLearner
	Summarizer summary.Summarizer
	Composer   *Composer
	Retry      resilience.RetryConfig
	Metrics    *monitoring.Metrics
	Logger     *monitoring.Logger
}

// Service computes and serves insights. It is safe for concurrent use.
type Service struct {
	engine     *affinity.Engine
	store      Store
	cache      cache.ResultCache
	biasCache  *cache.BiasCache
	learner    affinity.BiasLearner
	summarizer summary.Summarizer
	composer   *Composer
	retry      resilience.RetryConfig
	metrics    *monitoring.Metrics
	logger     *monitoring.Logger
}

// NewService fills optional dependencies with defaults.
func NewService(d Deps) *Service {
	if d.Engine == nil {
		d.Engine = affinity.NewEngine(nil)
	}
	if d.Learner == nil {
		d.Learner = affinity.NewHeuristicLearner()
	}
	if d.Summarizer == nil {
		d.Summarizer = summary.Disabled{}
	}
	if d.Logger == nil {
		d.Logger = monitoring.NewLoggerWithWriter(io.Discard, "error")
	}
	if d.Composer == nil {
		d.Composer = NewComposer(0, d.Metrics, d.Logger)
	}
	if d.Retry.MaxAttempts == 0 {
		d.Retry = resilience.DefaultRetryConfig()
	}
	return &Service{
		engine:     d.Engine,
		store:      d.Store,
		cache:      d.Cache,
		biasCache:  d.BiasCache,
		learner:    d.Learner,
		summarizer: d.Summarizer,
		composer:   d.Composer,
		retry:      d.Retry,
		metrics:    d.Metrics,
		logger:     d.Logger.Component("matching"),
	}
}

// Compute scores the pair fresh, persists the result and returns the insight.
func (s *Service) Compute(ctx context.Context, req Request) (insight *Insight, err error) {
	start := time.Now()
	req.Subject = strings.TrimSpace(req.Subject)
	req.Counterpart = strings.TrimSpace(req.Counterpart)
	if req.Subject == "" || req.Counterpart == "" {
		return nil, apperrors.NewValidationError("subject and counterpart are required", map[string]string{
			"subject":     req.Subject,
			"counterpart": req.Counterpart,
		})
	}
	affCtx := affinity.NormalizeContext(req.Context)

	ctx, span := monitoring.StartSpan(ctx, "matching.Compute",
		monitoring.PairAttributes(req.Subject, req.Counterpart, string(affCtx))...)
	defer func() { monitoring.EndSpan(span, err) }()

	subject, counterpart, bias, err := s.fetch(ctx, req.Subject, req.Counterpart)
	if err != nil {
		return nil, err
	}

	insight = &Insight{
		Subject:     req.Subject,
		Counterpart: req.Counterpart,
		Context:     affCtx,
	}
	if subject == nil || counterpart == nil || !subject.Bundle.HasData() || !counterpart.Bundle.HasData() {
		insight.Reason = ReasonNoProfileData
		s.metrics.IncUnavailable(ReasonNoProfileData)
		s.logger.UnavailableLogger(req.Subject, req.Counterpart, string(affCtx), ReasonNoProfileData)
		return insight, nil
	}

	res := s.score(ctx, subject.Bundle, counterpart.Bundle, affCtx, req.Closeness, bias.Factor)
	channel := affinity.InferChannel(counterpart.Contact)
	insight.Available = true
	insight.Result = &res
	insight.Bias = &bias
	insight.Channel = &channel
	insight.ComputedAt = time.Now().UTC()

	// A result composed after the caller gave up may hold zeroed sub-scores; it is
	// returned but never overwrites a stored one.
	if ctx.Err() == nil {
		s.persist(ctx, req.Subject, req.Counterpart, res, insight.ComputedAt)
	} else {
		s.logger.Warn("Skipping persist of degraded affinity result",
			"subject", req.Subject, "counterpart", req.Counterpart, "context", affCtx, "error", ctx.Err())
	}

	sumReq := summary.NewRequest(req.SubjectName, req.CounterpartName, res)
	sumReq.Channel = channel.Name
	insight.Summary, insight.SummaryGenerated = s.summarize(ctx, sumReq, req.Entitled)

	s.metrics.ObserveScore(string(affCtx), string(res.Band), res.Composite)
	s.logger.ScoreLogger(req.Subject, req.Counterpart, string(affCtx), res.Composite, string(res.Level), time.Since(start), false)
	return insight, nil
}

// fetch loads both assessments and the subject's bias concurrently. A missing
// assessment is reported as nil; a failed history lookup degrades to a neutral bias.
func (s *Service) fetch(ctx context.Context, subjectID, counterpartID string) (subject, counterpart *database.Assessment, bias affinity.PreferenceBias, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		subject, err = s.assessment(gctx, subjectID)
		return err
	})
	g.Go(func() error {
		var err error
		counterpart, err = s.assessment(gctx, counterpartID)
		return err
	})
	g.Go(func() error {
		bias = s.Bias(gctx, subjectID)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, affinity.PreferenceBias{}, err
	}
	return subject, counterpart, bias, nil
}

func (s *Service) assessment(ctx context.Context, identity string) (*database.Assessment, error) {
	var a *database.Assessment
	err := resilience.RetryWithConfig(ctx, s.retry, func(ctx context.Context) error {
		var err error
		a, err = s.store.GetAssessment(ctx, identity)
		return err
	})
	switch {
	case errors.Is(err, database.ErrNotFound):
		return nil, nil
	case err != nil:
		s.metrics.IncSubFetchFailure("assessment")
		return nil, apperrors.NewInternalError("Failed to load assessment", err)
	}
	return a, nil
}

// Bias returns the learned preference bias of identity, neutral when history is
// unavailable.
func (s *Service) Bias(ctx context.Context, identity string) affinity.PreferenceBias {
	if s.biasCache != nil {
		if b, ok := s.biasCache.Get(identity); ok {
			return b
		}
	}

	var history []string
	err := resilience.RetryWithConfig(ctx, s.retry, func(ctx context.Context) error {
		var err error
		history, err = s.store.RecentMessages(ctx, identity, affinity.MaxHistory)
		return err
	})
	if err != nil {
		s.metrics.IncSubFetchFailure("history")
		s.logger.SubFetchLogger("history", err)
		return affinity.NeutralBias()
	}

	b := s.learner.Learn(history)
	if s.biasCache != nil {
		s.biasCache.Put(identity, b)
	}
	return b
}

// ForgetBias drops the cached hint of identity so the next score relearns it.
func (s *Service) ForgetBias(identity string) {
	if s.biasCache != nil {
		s.biasCache.Forget(identity)
	}
}

func (s *Service) score(ctx context.Context, subject, counterpart affinity.Bundle, c affinity.Context, closeness string, bias float64) affinity.Result {
	p := s.engine.Profile(c)

	// The breakdown also feeds the dispersion penalty, so it is computed here and the
	// source only hands back its score. Sources share no variables with this frame.
	growth := affinity.GrowthScore(subject.Competencies, counterpart.Competencies, c)
	subs := s.composer.Compose(ctx, Sources{
		Growth: func(context.Context) (float64, error) {
			return growth.Score, nil
		},
		Collaboration: func(context.Context) (float64, error) {
			synergy := affinity.TalentSynergy(subject.Talents, counterpart.Talents, p.Talents)
			return affinity.CollaborationScore(subject.Style, counterpart.Style,
				subject.Competencies, counterpart.Competencies, synergy).Score, nil
		},
		Understanding: func(context.Context) (float64, error) {
			return affinity.UnderstandingScore(subject.Outcomes, counterpart.Outcomes, c).Score, nil
		},
	})

	adj := affinity.Adjustments{
		Context:        c,
		Bias:           bias,
		Closeness:      affinity.NormalizeCloseness(closeness),
		SharedStrength: affinity.SharedStrength(subject.Talents, counterpart.Talents, p.SharedStrength),
	}
	adj.Dispersion, adj.HasDispersion = affinity.MeanAbsDeviation(growth.SubjectValues, growth.Level)

	return affinity.Aggregate(subs, adj, p)
}

func (s *Service) persist(ctx context.Context, subject, counterpart string, res affinity.Result, at time.Time) {
	if s.cache != nil {
		entry := cache.Entry{Subject: subject, Counterpart: counterpart, Context: res.Context, Result: res, ComputedAt: at}
		if err := s.cache.Set(ctx, entry); err != nil {
			s.logger.Warn("Failed to cache affinity result", "key", entry.Key(), "backend", s.cache.Name(), "error", err)
		}
	}

	stored := database.NewStoredResult(subject, counterpart, res)
	stored.ComputedAt = at
	if err := s.store.SaveResult(ctx, stored); err != nil {
		s.logger.Warn("Failed to persist affinity result",
			"subject", subject, "counterpart", counterpart, "context", res.Context, "error", err)
	}
}

func (s *Service) summarize(ctx context.Context, req summary.Request, entitled bool) (string, bool) {
	if !entitled {
		s.metrics.IncSummary("skipped")
		return summary.FallbackText, false
	}
	text, err := s.summarizer.Summarize(ctx, req)
	if err != nil {
		s.metrics.IncSummary("fallback")
		if !errors.Is(err, summary.ErrDisabled) {
			s.logger.Warn("Summary generation failed", "context", req.Context, "error", err)
		}
		return summary.FallbackText, false
	}
	s.metrics.IncSummary("generated")
	return text, true
}

// Lookup returns the last stored result of the triple, from the cache when possible.
func (s *Service) Lookup(ctx context.Context, subject, counterpart string, c affinity.Context) (insight *Insight, err error) {
	ctx, span := monitoring.StartSpan(ctx, "matching.Lookup",
		monitoring.PairAttributes(subject, counterpart, string(c))...)
	defer func() { monitoring.EndSpan(span, err) }()

	if s.cache != nil {
		entry, err := s.cache.Get(ctx, subject, counterpart, c)
		switch {
		case err == nil:
			s.logger.CacheLogger(s.cache.Name(), "get", entry.Key(), true)
			return storedInsight(subject, counterpart, c, entry.Result, entry.ComputedAt, true), nil
		case !errors.Is(err, cache.ErrMiss):
			s.logger.Warn("Cache lookup failed", "backend", s.cache.Name(), "error", err)
		default:
			s.logger.CacheLogger(s.cache.Name(), "get", cache.Key(subject, counterpart, c), false)
		}
	}

	stored, err := s.store.GetResult(ctx, subject, counterpart, c)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("Affinity result")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("Failed to load affinity result", err)
	}

	if s.cache != nil {
		entry := cache.Entry{
			Subject: subject, Counterpart: counterpart, Context: c,
			Result: stored.Result, ComputedAt: stored.ComputedAt,
		}
		if err := s.cache.Set(ctx, entry); err != nil {
			s.logger.Warn("Failed to cache affinity result", "key", entry.Key(), "backend", s.cache.Name(), "error", err)
		}
	}
	return storedInsight(subject, counterpart, c, stored.Result, stored.ComputedAt, false), nil
}

func storedInsight(subject, counterpart string, c affinity.Context, res affinity.Result, at time.Time, cached bool) *Insight {
	return &Insight{
		Available:   true,
		Subject:     subject,
		Counterpart: counterpart,
		Context:     c,
		Result:      &res,
		Cached:      cached,
		ComputedAt:  at,
	}
}

// Channel infers how to reach identity from its stored contact methods.
func (s *Service) Channel(ctx context.Context, identity string) (affinity.Channel, error) {
	a, err := s.assessment(ctx, identity)
	if err != nil {
		return affinity.Channel{}, err
	}
	if a == nil {
		return affinity.Channel{}, apperrors.NewNotFoundError("Identity")
	}
	return affinity.InferChannel(a.Contact), nil
}
