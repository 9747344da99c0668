// Package campaign defines the campaign data model and the in-memory
// registry that tracks every production run through the four specialist
// stages: content authoring, design/asset selection, quality validation,
// and delivery.
//
// A campaign carries one bounded payload per phase (write-once, read by
// all later phases) plus a handoff context record that is overwritten on
// each specialist transfer. Status and current specialist move in lockstep
// under normal flow; only the quality gate may move a campaign backward.
package campaign

import (
	"time"
)

// Specialist identifies one of the four pipeline stages.
type Specialist string

const (
	SpecialistContent  Specialist = "/content"
	SpecialistDesign   Specialist = "/design"
	SpecialistQuality  Specialist = "/quality"
	SpecialistDelivery Specialist = "/delivery"
)

// Status represents the lifecycle phase of a campaign.
type Status string

const (
	StatusContentPhase  Status = "/content_phase"
	StatusDesignPhase   Status = "/design_phase"
	StatusQualityPhase  Status = "/quality_phase"
	StatusDeliveryPhase Status = "/delivery_phase"
	StatusCompleted     Status = "/completed"
	StatusFailed        Status = "/failed"
)

// StatusFor returns the lifecycle status matching a specialist stage.
func StatusFor(s Specialist) Status {
	switch s {
	case SpecialistContent:
		return StatusContentPhase
	case SpecialistDesign:
		return StatusDesignPhase
	case SpecialistQuality:
		return StatusQualityPhase
	case SpecialistDelivery:
		return StatusDeliveryPhase
	default:
		return StatusContentPhase
	}
}

// NextSpecialist returns the stage that normally follows s.
// Delivery is terminal; it returns delivery again.
func NextSpecialist(s Specialist) Specialist {
	switch s {
	case SpecialistContent:
		return SpecialistDesign
	case SpecialistDesign:
		return SpecialistQuality
	case SpecialistQuality:
		return SpecialistDelivery
	default:
		return SpecialistDelivery
	}
}

// PhaseName returns the storage phase key for a specialist stage.
func PhaseName(s Specialist) string {
	switch s {
	case SpecialistContent:
		return "content"
	case SpecialistDesign:
		return "design"
	case SpecialistQuality:
		return "quality"
	case SpecialistDelivery:
		return "delivery"
	default:
		return "unknown"
	}
}

// HandoffContext records the most recent specialist transfer. It is
// overwritten on each transfer, never accumulated.
type HandoffContext struct {
	From           Specialist `json:"from"`
	To             Specialist `json:"to"`
	Timestamp      time.Time  `json:"timestamp"`
	Summary        string     `json:"summary"`
	CompletedTasks []string   `json:"completed_tasks,omitempty"`
	NextSteps      []string   `json:"next_steps,omitempty"`
}

// ContentData is the bounded payload produced by the content phase.
type ContentData struct {
	Headline     string   `json:"headline"`
	Body         string   `json:"body"`
	CallToAction string   `json:"call_to_action,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
	Tone         string   `json:"tone,omitempty"`
}

// DesignData is the bounded payload produced by the design phase.
type DesignData struct {
	Template       string   `json:"template"`
	SelectedAssets []string `json:"selected_assets"`
	ColorPalette   []string `json:"color_palette,omitempty"`
	LayoutNotes    string   `json:"layout_notes,omitempty"`
}

// QualityData is the bounded payload produced by the quality phase.
type QualityData struct {
	OverallScore    int      `json:"overall_score"`
	ComplianceNotes []string `json:"compliance_notes,omitempty"`
	Approved        bool     `json:"approved"`
}

// DeliveryData is the bounded payload produced by the delivery phase.
type DeliveryData struct {
	Artifacts   []string  `json:"artifacts"`
	DeliveredAt time.Time `json:"delivered_at"`
	Channel     string    `json:"channel,omitempty"`
}

// Campaign represents one end-to-end production run.
type Campaign struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Brand string `json:"brand"`

	Status            Status     `json:"status"`
	CurrentSpecialist Specialist `json:"current_specialist"`

	// Phase payloads, written once per phase.
	Content  *ContentData  `json:"content,omitempty"`
	Design   *DesignData   `json:"design,omitempty"`
	Quality  *QualityData  `json:"quality,omitempty"`
	Delivery *DeliveryData `json:"delivery,omitempty"`

	// Most recent transfer record.
	Handoff *HandoffContext `json:"handoff_context,omitempty"`

	// Number of quality-gate rollbacks taken so far.
	Rollbacks int `json:"rollbacks"`

	// FailureReason is set when the campaign reaches /failed.
	FailureReason string `json:"failure_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Patch describes a partial campaign update. Nil fields are left
// untouched. ID and timestamps are never patchable; the registry
// owns both.
type Patch struct {
	Name              *string
	Brand             *string
	Status            *Status
	CurrentSpecialist *Specialist
	Content           *ContentData
	Design            *DesignData
	Quality           *QualityData
	Delivery          *DeliveryData
	Handoff           *HandoffContext
	Rollbacks         *int
	FailureReason     *string
}

// Apply produces a new campaign value from c plus the patch. The
// receiver is not mutated.
func (c Campaign) Apply(p Patch) Campaign {
	next := c
	if p.Name != nil {
		next.Name = *p.Name
	}
	if p.Brand != nil {
		next.Brand = *p.Brand
	}
	if p.Status != nil {
		next.Status = *p.Status
	}
	if p.CurrentSpecialist != nil {
		next.CurrentSpecialist = *p.CurrentSpecialist
	}
	if p.Content != nil {
		next.Content = p.Content
	}
	if p.Design != nil {
		next.Design = p.Design
	}
	if p.Quality != nil {
		next.Quality = p.Quality
	}
	if p.Delivery != nil {
		next.Delivery = p.Delivery
	}
	if p.Handoff != nil {
		next.Handoff = p.Handoff
	}
	if p.Rollbacks != nil {
		next.Rollbacks = *p.Rollbacks
	}
	if p.FailureReason != nil {
		next.FailureReason = *p.FailureReason
	}
	return next
}

// Terminal reports whether the campaign can no longer advance.
func (c Campaign) Terminal() bool {
	return c.Status == StatusCompleted || c.Status == StatusFailed
}
