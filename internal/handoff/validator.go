package handoff

import (
	"context"
	"fmt"
	"strings"

	"adcraft/internal/logging"
)

// Reviewer is the AI-assisted correction collaborator. It receives a
// failing package and the validation errors and returns a fixed package,
// or the input unchanged when it cannot help. The validator invokes it
// at most once per package.
type Reviewer interface {
	ReviewAndFix(ctx context.Context, pkg Package, errs []string) (Package, error)
}

// ValidationResult is the outcome of a structural/semantic check.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// Validator checks candidate packages against the stage-pair contract
// and applies bounded auto-correction on failure.
type Validator struct {
	reviewer Reviewer
}

// NewValidator creates a validator. The reviewer may be nil, in which
// case packages that deterministic correction cannot fix are rejected
// immediately.
func NewValidator(reviewer Reviewer) *Validator {
	return &Validator{reviewer: reviewer}
}

// Validate performs the structural and semantic checks for a package.
// It does not correct anything.
func (v *Validator) Validate(p Package) ValidationResult {
	var errs []string

	schema, ok := schemas[pairKey(p.From, p.To)]
	if !ok {
		return ValidationResult{Errors: []string{
			fmt.Sprintf("no handoff contract for stage pair %s -> %s", p.From, p.To),
		}}
	}

	if p.CampaignID == "" {
		errs = append(errs, "missing campaign_id")
	}
	if p.SpecialistData == nil {
		errs = append(errs, "missing specialist_data")
	}

	for _, key := range schema.requiredKeys {
		if _, present := p.SpecialistData[key]; !present {
			errs = append(errs, fmt.Sprintf("specialist_data missing required key %q", key))
		}
	}

	if p.Quality.DataQuality < 0 || p.Quality.DataQuality > 100 {
		errs = append(errs, fmt.Sprintf("data_quality score %d out of range", p.Quality.DataQuality))
	}
	if p.Quality.Completeness < 0 || p.Quality.Completeness > 100 {
		errs = append(errs, fmt.Sprintf("completeness score %d out of range", p.Quality.Completeness))
	}
	switch p.Quality.ValidationStatus {
	case ValidationPassed, ValidationWarning, ValidationFailed:
	default:
		errs = append(errs, fmt.Sprintf("unknown validation status %q", p.Quality.ValidationStatus))
	}

	// Semantic check: every deliverable key output must reference a file
	// declared by the sending stage.
	declared := declaredFiles(p.SpecialistData)
	for _, d := range p.Deliverables {
		for _, out := range d.KeyOutputs {
			if _, ok := declared[out]; !ok {
				errs = append(errs, fmt.Sprintf("deliverable %q references undeclared file %q", d.Name, out))
			}
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// Process runs a candidate package through the full state machine:
// validate, deterministically correct, revalidate, then at most one
// reviewer attempt. The returned package is the validated (possibly
// corrected) replacement; a *ValidationError means rejection.
func (v *Validator) Process(ctx context.Context, p Package) (Package, error) {
	log := logging.Get(logging.CategoryHandoff)

	result := v.Validate(p)
	if result.Valid {
		log.Debug("Handoff %s -> %s valid on first pass", p.From, p.To)
		return p, nil
	}

	defects := len(result.Errors)
	corrected := correct(p, result.Errors)
	result = v.Validate(corrected)
	if result.Valid {
		log.Info("Handoff %s -> %s corrected deterministically (%d defects)", p.From, p.To, defects)
		return corrected, nil
	}

	if v.reviewer != nil {
		// One reviewer attempt, hard cap.
		reviewed, err := v.reviewer.ReviewAndFix(ctx, corrected, result.Errors)
		if err != nil {
			log.Warn("Reviewer failed for handoff %s -> %s: %v", p.From, p.To, err)
		} else {
			result2 := v.Validate(reviewed)
			if result2.Valid {
				log.Info("Handoff %s -> %s corrected by reviewer", p.From, p.To)
				return reviewed, nil
			}
			result = result2
		}
	}

	log.Warn("Handoff %s -> %s rejected: %s", p.From, p.To, strings.Join(result.Errors, "; "))
	return Package{}, &ValidationError{
		CampaignID: p.CampaignID,
		From:       p.From,
		To:         p.To,
		Errors:     result.Errors,
	}
}

// correct applies the fixed set of known, low-risk deterministic fixes:
// missing optional arrays become empty arrays, out-of-range scores are
// clamped, and an unknown validation status falls back to the nearest
// known value. Anything else is left for the reviewer.
func correct(p Package, errs []string) Package {
	next := p

	if next.SpecialistData == nil {
		next.SpecialistData = map[string]any{}
	} else {
		// Copy before fixing; validated packages are immutable.
		data := make(map[string]any, len(p.SpecialistData))
		for k, val := range p.SpecialistData {
			data[k] = val
		}
		next.SpecialistData = data
	}

	if schema, ok := schemas[pairKey(p.From, p.To)]; ok {
		for _, key := range schema.optionalArrays {
			if _, present := next.SpecialistData[key]; !present {
				next.SpecialistData[key] = []any{}
			}
		}
	}

	if next.Context.Recommendations == nil {
		next.Context.Recommendations = []string{}
	}
	if next.Context.PriorityItems == nil {
		next.Context.PriorityItems = []string{}
	}
	if next.Deliverables == nil {
		next.Deliverables = []Deliverable{}
	}

	next.Quality.DataQuality = clamp(next.Quality.DataQuality)
	next.Quality.Completeness = clamp(next.Quality.Completeness)
	if next.Quality.ErrorCount < 0 {
		next.Quality.ErrorCount = 0
	}
	if next.Quality.WarningCount < 0 {
		next.Quality.WarningCount = 0
	}

	switch next.Quality.ValidationStatus {
	case ValidationPassed, ValidationWarning, ValidationFailed:
	default:
		next.Quality.ValidationStatus = nearestStatus(string(next.Quality.ValidationStatus))
	}

	_ = errs // corrections are shape-driven, not message-driven
	return next
}

// nearestStatus maps a malformed status string onto the closest known
// enum value, defaulting to /warning when nothing matches.
func nearestStatus(raw string) ValidationStatus {
	v := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(raw)), "/")
	switch {
	case strings.HasPrefix(v, "pass"), strings.HasPrefix(v, "ok"), strings.HasPrefix(v, "success"):
		return ValidationPassed
	case strings.HasPrefix(v, "fail"), strings.HasPrefix(v, "error"), strings.HasPrefix(v, "reject"):
		return ValidationFailed
	default:
		return ValidationWarning
	}
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// declaredFiles collects the file names the sending stage declared in
// its specialist data, under either "files" or "selected_assets".
func declaredFiles(data map[string]any) map[string]struct{} {
	out := make(map[string]struct{})
	for _, key := range []string{"files", "selected_assets", "artifacts"} {
		items, ok := data[key].([]any)
		if !ok {
			// Also accept []string, which local construction produces.
			if ss, ok := data[key].([]string); ok {
				for _, s := range ss {
					out[s] = struct{}{}
				}
			}
			continue
		}
		for _, item := range items {
			if s, ok := item.(string); ok {
				out[s] = struct{}{}
			}
		}
	}
	return out
}
