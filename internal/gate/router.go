package gate

import (
	"fmt"
	"strings"
	"time"

	"adcraft/internal/campaign"
	"adcraft/internal/logging"
)

// Decision is the quality gate's verdict for a campaign.
type Decision string

const (
	DecisionAdvance  Decision = "/advance"  // Move on to delivery
	DecisionRetry    Decision = "/retry"    // Re-run the quality stage with guidance
	DecisionRollback Decision = "/rollback" // Return to content or design
	DecisionFail     Decision = "/fail"     // Terminal: rollback budget exhausted
)

// Routing is one gate decision plus the context needed to apply it.
type Routing struct {
	Decision Decision            `json:"decision"`
	Target   campaign.Specialist `json:"target,omitempty"` // Set for advance and rollback
	Reason   string              `json:"reason"`
	Guidance []Issue             `json:"guidance,omitempty"` // Issue list attached on retry
}

// Policy holds the configurable gate thresholds. The exact numbers are
// operator policy, not a fixed contract.
type Policy struct {
	AdvanceScore int // Minimum score to advance (default 80)
	RetryScore   int // Minimum score to retry instead of rolling back (default 60)
	MaxRollbacks int // Rollbacks allowed before terminal failure (default 2)
}

// DefaultPolicy returns the stock thresholds.
func DefaultPolicy() Policy {
	return Policy{AdvanceScore: 80, RetryScore: 60, MaxRollbacks: 2}
}

// RollbackLimitError is returned when a campaign needs another rollback
// but has exhausted its budget. It is terminal for the campaign.
type RollbackLimitError struct {
	CampaignID string
	Rollbacks  int
	Max        int
}

func (e *RollbackLimitError) Error() string {
	return fmt.Sprintf("campaign %s exceeded rollback limit: %d of %d used", e.CampaignID, e.Rollbacks, e.Max)
}

// Router makes gate decisions from a quality report and campaign
// history, and applies them through the registry.
type Router struct {
	policy Policy
}

// NewRouter creates a router with the given policy. Zero thresholds are
// replaced by defaults.
func NewRouter(p Policy) *Router {
	d := DefaultPolicy()
	if p.AdvanceScore <= 0 {
		p.AdvanceScore = d.AdvanceScore
	}
	if p.RetryScore <= 0 {
		p.RetryScore = d.RetryScore
	}
	if p.MaxRollbacks <= 0 {
		p.MaxRollbacks = d.MaxRollbacks
	}
	return &Router{policy: p}
}

// Route decides the campaign's next move. Rules are evaluated in order;
// the first match wins:
//
//  1. Any critical issue: rollback to the stage its category indicates,
//     unless the rollback budget is spent, which fails the campaign.
//  2. Score at or above the advance threshold with zero criticals:
//     advance to delivery.
//  3. Score at or above the retry threshold: retry the quality stage
//     with the issue list as corrective guidance.
//  4. Otherwise: rollback to design, subject to the same budget.
func (r *Router) Route(report Report, c campaign.Campaign) Routing {
	report = report.Clamp()
	log := logging.Get(logging.CategoryGate)

	if criticals := report.CriticalIssues(); len(criticals) > 0 {
		target := rollbackTarget(criticals[0].Category)
		reason := fmt.Sprintf("critical %s issue: %s", criticals[0].Category, criticals[0].Description)
		return r.rollbackOrFail(c, target, reason, criticals)
	}

	if report.OverallScore >= r.policy.AdvanceScore {
		log.Info("Campaign %s advancing to delivery (score %d)", c.ID, report.OverallScore)
		return Routing{
			Decision: DecisionAdvance,
			Target:   campaign.SpecialistDelivery,
			Reason:   fmt.Sprintf("quality score %d meets advance threshold %d", report.OverallScore, r.policy.AdvanceScore),
		}
	}

	if report.OverallScore >= r.policy.RetryScore {
		log.Info("Campaign %s retrying quality stage (score %d)", c.ID, report.OverallScore)
		return Routing{
			Decision: DecisionRetry,
			Reason:   fmt.Sprintf("quality score %d below advance threshold %d, retrying with guidance", report.OverallScore, r.policy.AdvanceScore),
			Guidance: report.Issues,
		}
	}

	reason := fmt.Sprintf("quality score %d below retry threshold %d", report.OverallScore, r.policy.RetryScore)
	return r.rollbackOrFail(c, campaign.SpecialistDesign, reason, report.Issues)
}

// rollbackOrFail produces a rollback unless the campaign has already
// used its budget, in which case the decision is terminal failure.
func (r *Router) rollbackOrFail(c campaign.Campaign, target campaign.Specialist, reason string, guidance []Issue) Routing {
	log := logging.Get(logging.CategoryGate)
	if c.Rollbacks >= r.policy.MaxRollbacks {
		log.Warn("Campaign %s rollback budget exhausted (%d/%d)", c.ID, c.Rollbacks, r.policy.MaxRollbacks)
		return Routing{
			Decision: DecisionFail,
			Reason:   fmt.Sprintf("%s; rollback limit %d already reached", reason, r.policy.MaxRollbacks),
		}
	}
	log.Info("Campaign %s rolling back to %s: %s", c.ID, target, reason)
	return Routing{
		Decision: DecisionRollback,
		Target:   target,
		Reason:   reason,
		Guidance: guidance,
	}
}

// rollbackTarget maps an issue category to the stage that owns it.
// Content problems go back to authoring; design, accessibility, and
// compatibility problems go back to design. Unknown categories default
// to design.
func rollbackTarget(category string) campaign.Specialist {
	switch strings.ToLower(strings.TrimPrefix(category, "/")) {
	case "content":
		return campaign.SpecialistContent
	default:
		return campaign.SpecialistDesign
	}
}

// Apply writes the routing decision into the campaign through the
// registry: the handoff context records the justification, and status
// plus current specialist move according to the decision. Apply is the
// only legal path for status regression.
func (r *Router) Apply(reg *campaign.Registry, id string, routing Routing) (campaign.Campaign, error) {
	c, err := reg.Get(id)
	if err != nil {
		return campaign.Campaign{}, err
	}

	handoff := &campaign.HandoffContext{
		From:      campaign.SpecialistQuality,
		Timestamp: time.Now(),
		Summary:   routing.Reason,
	}
	for _, g := range routing.Guidance {
		handoff.NextSteps = append(handoff.NextSteps, g.Description)
	}

	patch := campaign.Patch{Handoff: handoff}

	switch routing.Decision {
	case DecisionAdvance:
		status := campaign.StatusDeliveryPhase
		spec := campaign.SpecialistDelivery
		handoff.To = spec
		patch.Status = &status
		patch.CurrentSpecialist = &spec

	case DecisionRetry:
		// Same stage, guidance attached; status unchanged.
		handoff.To = campaign.SpecialistQuality

	case DecisionRollback:
		status := campaign.StatusFor(routing.Target)
		spec := routing.Target
		rollbacks := c.Rollbacks + 1
		handoff.To = spec
		patch.Status = &status
		patch.CurrentSpecialist = &spec
		patch.Rollbacks = &rollbacks

	case DecisionFail:
		status := campaign.StatusFailed
		handoff.To = campaign.SpecialistQuality
		patch.Status = &status
		patch.FailureReason = &routing.Reason

	default:
		return campaign.Campaign{}, fmt.Errorf("unknown gate decision %q", routing.Decision)
	}

	updated, err := reg.Update(id, patch)
	if err != nil {
		return campaign.Campaign{}, err
	}

	if routing.Decision == DecisionFail {
		return updated, &RollbackLimitError{CampaignID: id, Rollbacks: c.Rollbacks, Max: r.policy.MaxRollbacks}
	}
	return updated, nil
}
