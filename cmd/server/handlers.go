package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/affinity"
	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/database"
	apperrors "github.com/cactuscomunidadcreativa/rowi-affinity/internal/errors"
	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/matching"
	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/monitoring"
	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/types"
)

func bindError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperrors.NewRequestTooLargeError(tooLarge.Limit)
	}
	return apperrors.NewValidationError("Invalid request body", map[string]string{"body": err.Error()})
}

func (a *app) handleHealth(c *gin.Context) {
	checks, healthy := a.healthChecks(c.Request.Context())
	if !healthy {
		c.JSON(http.StatusServiceUnavailable, types.NewHealthResponse("degraded", version, checks))
		return
	}
	c.JSON(http.StatusOK, types.NewHealthResponse("ok", version, checks))
}

func (a *app) handleContexts(c *gin.Context) {
	profiles := make([]affinity.ContextProfile, 0, len(affinity.Contexts))
	for _, ctx := range affinity.Contexts {
		profiles = append(profiles, a.engine.Profile(ctx))
	}
	c.JSON(http.StatusOK, gin.H{"contexts": profiles})
}

// handleScore scores two inline profiles. Nothing is read from or written to storage.
// Unknown contexts and closeness values fall back to their defaults.
func (a *app) handleScore(c *gin.Context) {
	start := time.Now()

	var req types.ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}
	bias := a.learner.Learn(req.Messages)
	in := affinity.Input{
		Subject:     req.Subject.Bundle(),
		Counterpart: req.Counterpart.Bundle(),
		Context:     req.Context,
		Closeness:   req.Closeness,
		Bias:        bias.Factor,
	}

	_, span := monitoring.StartSpan(c.Request.Context(), "affinity.Score")
	res, details, err := a.engine.ScoreDetailed(in)
	monitoring.EndSpan(span, err)
	if err != nil {
		a.metrics.IncUnavailable(matching.ReasonNoProfileData)
		_ = c.Error(apperrors.NewNotAvailableError(matching.ReasonNoProfileData, err))
		return
	}

	a.metrics.ObserveScore(string(res.Context), string(res.Band), res.Composite)
	a.logger.ScoreLogger("inline", "inline", string(res.Context), res.Composite, string(res.Level), time.Since(start), false)

	resp := types.ScoreResponse{Result: res, Bias: bias}
	if req.Detailed {
		resp.Details = &details
	}
	c.JSON(http.StatusOK, resp)
}

func (a *app) handleCompute(c *gin.Context) {
	var req matching.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}

	insight, err := a.matching.Compute(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if !insight.Available {
		c.JSON(http.StatusUnprocessableEntity, insight)
		return
	}
	a.rankings.Invalidate(insight.Subject)
	c.JSON(http.StatusOK, insight)
}

func (a *app) handleRankings(c *gin.Context) {
	var filter *affinity.Context
	if raw := c.Query("context"); raw != "" {
		ctx, ok := affinity.ParseContext(raw)
		if !ok {
			_ = c.Error(apperrors.NewValidationError("Unknown context", map[string]string{
				"context": raw,
				"allowed": contextList(),
			}))
			return
		}
		filter = &ctx
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			_ = c.Error(apperrors.NewValidationError("Invalid limit", map[string]string{"limit": raw}))
			return
		}
		limit = n
	}

	resp, err := a.rankings.Rankings(c.Request.Context(), c.Param("subject"), filter, limit)
	if err != nil {
		_ = c.Error(apperrors.NewInternalError("Failed to load rankings", err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a *app) handleLookup(c *gin.Context) {
	ctx, ok := affinity.ParseContext(c.Param("context"))
	if !ok {
		_ = c.Error(apperrors.NewValidationError("Unknown context", map[string]string{
			"context": c.Param("context"),
			"allowed": contextList(),
		}))
		return
	}

	insight, err := a.matching.Lookup(c.Request.Context(), c.Param("subject"), c.Param("counterpart"), ctx)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, insight)
}

func (a *app) handleChannel(c *gin.Context) {
	ch, err := a.matching.Channel(c.Request.Context(), c.Param("identity"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

func (a *app) handlePutAssessment(c *gin.Context) {
	var req types.AssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}

	assessment := &database.Assessment{
		Identity: c.Param("identity"),
		Bundle:   req.Bundle(),
		Contact:  req.Contact,
	}
	if err := a.repo.PutAssessment(c.Request.Context(), assessment); err != nil {
		_ = c.Error(apperrors.NewInternalError("Failed to store assessment", err))
		return
	}
	c.JSON(http.StatusOK, assessment)
}

func (a *app) handleAddMessage(c *gin.Context) {
	var req types.MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}

	identity := c.Param("identity")
	msg, err := a.repo.AddMessage(c.Request.Context(), identity, req.Body)
	if err != nil {
		_ = c.Error(apperrors.NewInternalError("Failed to store message", err))
		return
	}
	a.matching.ForgetBias(identity)
	c.JSON(http.StatusCreated, msg)
}

func contextList() string {
	names := make([]string, len(affinity.Contexts))
	for i, ctx := range affinity.Contexts {
		names[i] = string(ctx)
	}
	return strings.Join(names, ",")
}
