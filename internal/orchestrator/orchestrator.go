// Package orchestrator runs the campaign pipeline: it advances a
// campaign through the content, design, quality, and delivery
// specialists, normalizing each stage's raw provider output, validating
// the cross-stage handoff package, and letting the quality gate decide
// whether the campaign advances, retries, or rolls back.
//
// The driver is logically single-threaded per campaign: each Advance
// performs one stage step, suspending only on external collaborator
// calls. Concurrent drivers on the same campaign id are a caller error.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"adcraft/internal/assets"
	"adcraft/internal/campaign"
	"adcraft/internal/extract"
	"adcraft/internal/gate"
	"adcraft/internal/handoff"
	"adcraft/internal/logging"
	"adcraft/internal/provider"
	"adcraft/internal/storage"
)

// Event reports one orchestration step for observers.
type Event struct {
	Type       string              `json:"type"` // stage_started, stage_completed, handoff_rejected, gate_decision, campaign_completed, campaign_failed
	CampaignID string              `json:"campaign_id"`
	Specialist campaign.Specialist `json:"specialist,omitempty"`
	Message    string              `json:"message"`
	Timestamp  time.Time           `json:"timestamp"`
}

// Config wires the orchestrator's collaborators.
type Config struct {
	Registry *campaign.Registry
	Client   provider.TextClient
	Reviewer handoff.Reviewer // nil disables AI-assisted correction
	Router   *gate.Router
	Assets   *assets.Cache
	Store    *storage.PhaseStore // nil disables phase persistence
	Timeout  time.Duration       // per provider call
	Events   chan Event          // nil disables event reporting
}

// Orchestrator advances campaigns through the specialist pipeline.
// It carries no mutable state of its own; per-campaign single-driver
// ordering is the caller's invariant, matching the registry's contract.
type Orchestrator struct {
	registry  *campaign.Registry
	client    provider.TextClient
	validator *handoff.Validator
	router    *gate.Router
	assets    *assets.Cache
	store     *storage.PhaseStore
	extractor *extract.Extractor
	timeout   time.Duration
	events    chan Event
}

// New creates an orchestrator from the config. Registry, Client, and
// Router are required; everything else degrades gracefully when nil.
func New(cfg Config) *Orchestrator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	router := cfg.Router
	if router == nil {
		router = gate.NewRouter(gate.DefaultPolicy())
	}
	return &Orchestrator{
		registry:  cfg.Registry,
		client:    cfg.Client,
		validator: handoff.NewValidator(cfg.Reviewer),
		router:    router,
		assets:    cfg.Assets,
		store:     cfg.Store,
		extractor: extract.NewExtractor(),
		timeout:   timeout,
		events:    cfg.Events,
	}
}

// Advance performs one stage step for the campaign: it invokes the
// current specialist, validates the handoff, and moves the campaign to
// its next state. The returned campaign reflects the post-step state.
func (o *Orchestrator) Advance(ctx context.Context, id string) (campaign.Campaign, error) {
	c, err := o.registry.Get(id)
	if err != nil {
		return campaign.Campaign{}, err
	}
	if c.Terminal() {
		return c, fmt.Errorf("campaign %s is terminal (%s)", id, c.Status)
	}

	o.emit(Event{Type: "stage_started", CampaignID: id, Specialist: c.CurrentSpecialist,
		Message: fmt.Sprintf("running %s specialist", c.CurrentSpecialist)})

	switch c.CurrentSpecialist {
	case campaign.SpecialistContent:
		return o.runContentStage(ctx, c)
	case campaign.SpecialistDesign:
		return o.runDesignStage(ctx, c)
	case campaign.SpecialistQuality:
		return o.runQualityStage(ctx, c)
	case campaign.SpecialistDelivery:
		return o.runDeliveryStage(ctx, c)
	default:
		return campaign.Campaign{}, fmt.Errorf("unknown specialist %q", c.CurrentSpecialist)
	}
}

// Run advances the campaign until it completes or fails. The step
// budget bounds retry loops that never converge.
func (o *Orchestrator) Run(ctx context.Context, id string) (campaign.Campaign, error) {
	const maxSteps = 16

	var (
		c   campaign.Campaign
		err error
	)
	for i := 0; i < maxSteps; i++ {
		c, err = o.Advance(ctx, id)
		if err != nil {
			return c, err
		}
		if c.Terminal() {
			return c, nil
		}
	}
	return c, fmt.Errorf("campaign %s did not terminate within %d steps", id, maxSteps)
}

// RunMany drives several campaigns concurrently. Campaigns are
// independent, so each gets its own logical driver; the first failure
// cancels the rest.
func (o *Orchestrator) RunMany(ctx context.Context, ids []string) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			_, err := o.Run(gctx, id)
			return err
		})
	}
	return g.Wait()
}

// invokeStage calls the text provider for a stage. Timeouts at
// non-quality stages are terminal for the campaign: the stage cannot
// self-correct, so the campaign is marked failed with the reason
// attached. Quality-stage timeouts leave the campaign untouched so a
// later Advance can retry.
func (o *Orchestrator) invokeStage(ctx context.Context, c campaign.Campaign, op, systemPrompt, userPrompt string) (string, error) {
	raw, err := provider.Invoke(ctx, o.client, op, systemPrompt, userPrompt, o.timeout)
	if err == nil {
		return raw, nil
	}

	var timeoutErr *provider.TimeoutError
	if errors.As(err, &timeoutErr) && c.CurrentSpecialist != campaign.SpecialistQuality {
		o.failCampaign(c.ID, fmt.Sprintf("%s stage timed out", c.CurrentSpecialist))
	}
	return "", err
}

// completeHandoff validates the stage's outbound package. Rejection
// halts advancement: the campaign keeps its last valid state with the
// rejection reason attached to the handoff context.
func (o *Orchestrator) completeHandoff(ctx context.Context, c campaign.Campaign, pkg handoff.Package) (handoff.Package, error) {
	validated, err := o.validator.Process(ctx, pkg)
	if err == nil {
		return validated, nil
	}

	var vErr *handoff.ValidationError
	if errors.As(err, &vErr) {
		reason := vErr.Error()
		o.emit(Event{Type: "handoff_rejected", CampaignID: c.ID, Specialist: c.CurrentSpecialist, Message: reason})
		_, _ = o.registry.Update(c.ID, campaign.Patch{
			Handoff: &campaign.HandoffContext{
				From:      pkg.From,
				To:        pkg.To,
				Timestamp: time.Now(),
				Summary:   reason,
			},
		})
	}
	return handoff.Package{}, err
}

// transfer moves the campaign to the next stage with the validated
// package's context attached, and persists the phase payload.
func (o *Orchestrator) transfer(ctx context.Context, c campaign.Campaign, pkg handoff.Package, patch campaign.Patch, payload any) (campaign.Campaign, error) {
	next := pkg.To
	status := campaign.StatusFor(next)
	patch.Status = &status
	patch.CurrentSpecialist = &next
	patch.Handoff = &campaign.HandoffContext{
		From:      pkg.From,
		To:        pkg.To,
		Timestamp: time.Now(),
		Summary:   pkg.Context.Summary,
		NextSteps: pkg.Context.PriorityItems,
	}

	updated, err := o.registry.Update(c.ID, patch)
	if err != nil {
		return campaign.Campaign{}, err
	}

	o.persistPhase(ctx, c.ID, campaign.PhaseName(pkg.From), payload)
	o.emit(Event{Type: "stage_completed", CampaignID: c.ID, Specialist: pkg.From,
		Message: fmt.Sprintf("handed off to %s", pkg.To)})
	return updated, nil
}

// persistPhase writes the phase payload blob. Fire-and-forget: errors
// are logged and reported through the event stream, never retried.
func (o *Orchestrator) persistPhase(ctx context.Context, id, phase string, payload any) {
	if o.store == nil {
		return
	}
	blob, err := json.Marshal(payload)
	if err != nil {
		logging.Get(logging.CategoryDriver).Error("Failed to encode %s phase payload for %s: %v", phase, id, err)
		return
	}
	if err := o.store.WritePhaseBlob(ctx, id, phase, blob); err != nil {
		logging.Get(logging.CategoryDriver).Error("Failed to persist %s phase for %s: %v", phase, id, err)
	}
}

// failCampaign marks the campaign failed with a human-readable reason.
func (o *Orchestrator) failCampaign(id, reason string) {
	status := campaign.StatusFailed
	_, err := o.registry.Update(id, campaign.Patch{
		Status:        &status,
		FailureReason: &reason,
	})
	if err != nil {
		logging.Get(logging.CategoryDriver).Error("Failed to mark campaign %s failed: %v", id, err)
		return
	}
	o.emit(Event{Type: "campaign_failed", CampaignID: id, Message: reason})
}

// emit reports an event without ever blocking the driver.
func (o *Orchestrator) emit(e Event) {
	if o.events == nil {
		return
	}
	e.Timestamp = time.Now()
	select {
	case o.events <- e:
	default:
		logging.Get(logging.CategoryDriver).Warn("Event channel full, dropping %s event for %s", e.Type, e.CampaignID)
	}
}
