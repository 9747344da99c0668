// Package handoff defines the payload contract between adjacent
// specialist stages and the validation/correction protocol that every
// package passes through before it crosses a stage boundary.
//
// A package moves through a small state machine:
//
//	candidate -> validating -> valid
//	                        -> correcting -> valid
//	                                      -> rejected
//
// Terminal states are valid and rejected. A rejected package is never
// passed downstream; the caller receives the unresolved error list.
package handoff

import (
	"fmt"
	"strings"

	"adcraft/internal/campaign"
)

// State tracks a package through validation.
type State string

const (
	StateCandidate  State = "/candidate"
	StateValidating State = "/validating"
	StateCorrecting State = "/correcting"
	StateValid      State = "/valid"
	StateRejected   State = "/rejected"
)

// ValidationStatus summarizes a package's data quality.
type ValidationStatus string

const (
	ValidationPassed  ValidationStatus = "/passed"
	ValidationWarning ValidationStatus = "/warning"
	ValidationFailed  ValidationStatus = "/failed"
)

// Metadata carries the quality scores attached to every package.
type Metadata struct {
	DataQuality      int              `json:"data_quality"` // 0-100
	Completeness     int              `json:"completeness"` // 0-100
	ValidationStatus ValidationStatus `json:"validation_status"`
	ErrorCount       int              `json:"error_count"`
	WarningCount     int              `json:"warning_count"`
}

// Context is the free-text transfer summary inside a package.
type Context struct {
	Summary         string   `json:"summary"`
	Recommendations []string `json:"recommendations"`
	PriorityItems   []string `json:"priority_items"`
}

// Deliverable describes one artifact produced by the sending stage.
// KeyOutputs name the files this deliverable depends on; each must be
// declared in the package's specialist data.
type Deliverable struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	KeyOutputs []string `json:"key_outputs,omitempty"`
}

// Package is the payload transferred between two adjacent stages. A
// package is immutable once validated; correction yields a replacement
// value rather than mutating the original.
type Package struct {
	From           campaign.Specialist `json:"from_specialist"`
	To             campaign.Specialist `json:"to_specialist"`
	CampaignID     string              `json:"campaign_id"`
	SpecialistData map[string]any      `json:"specialist_data"`
	Context        Context             `json:"handoff_context"`
	Deliverables   []Deliverable       `json:"deliverables"`
	Quality        Metadata            `json:"quality_metadata"`
}

// ValidationError is the typed rejection for a package that failed
// validation after the correction budget was spent. It is terminal for
// that package.
type ValidationError struct {
	CampaignID string
	From       campaign.Specialist
	To         campaign.Specialist
	Errors     []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("handoff %s -> %s for campaign %s rejected: %s",
		e.From, e.To, e.CampaignID, strings.Join(e.Errors, "; "))
}

// pairSchema declares the required shape for one (from, to) stage pair.
type pairSchema struct {
	requiredKeys   []string // specialist_data keys that must be present
	optionalArrays []string // specialist_data keys corrected to [] when missing
}

// pairKey builds the schema lookup key for a stage pair.
func pairKey(from, to campaign.Specialist) string {
	return string(from) + "->" + string(to)
}

// schemas maps each legal stage pair to its contract. Rollback
// transfers reuse the forward schema of the receiving stage's inbound
// pair, so only forward pairs are declared.
var schemas = map[string]pairSchema{
	pairKey(campaign.SpecialistContent, campaign.SpecialistDesign): {
		requiredKeys:   []string{"headline", "body"},
		optionalArrays: []string{"keywords", "files"},
	},
	pairKey(campaign.SpecialistDesign, campaign.SpecialistQuality): {
		requiredKeys:   []string{"template", "selected_assets"},
		optionalArrays: []string{"color_palette", "files"},
	},
	pairKey(campaign.SpecialistQuality, campaign.SpecialistDelivery): {
		requiredKeys:   []string{"overall_score"},
		optionalArrays: []string{"compliance_notes", "files"},
	},
}
