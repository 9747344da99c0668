package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"adcraft/internal/extract"
	"adcraft/internal/handoff"
	"adcraft/internal/logging"
	"adcraft/internal/provider"
)

const reviewerSystemPrompt = `You repair malformed handoff packages between campaign pipeline stages.
You receive a package as JSON plus a list of validation errors. Return the corrected package as a
single JSON object with the same top-level shape: from_specialist, to_specialist, campaign_id,
specialist_data, handoff_context, deliverables, quality_metadata. Fix ONLY what the errors name.
Respond with ONLY the JSON object.`

// LLMReviewer implements handoff.Reviewer using the text provider. The
// validator invokes it at most once per package; the reviewer itself
// makes exactly one provider call.
type LLMReviewer struct {
	client    provider.TextClient
	extractor *extract.Extractor
	timeout   time.Duration
}

// NewLLMReviewer creates a provider-backed package reviewer.
func NewLLMReviewer(client provider.TextClient, timeout time.Duration) *LLMReviewer {
	e := extract.NewExtractor()
	e.RegisterField("handoff_package", []string{
		"from_specialist", "to_specialist", "campaign_id",
		"specialist_data", "handoff_context", "deliverables", "quality_metadata",
	})
	return &LLMReviewer{client: client, extractor: e, timeout: timeout}
}

// ReviewAndFix asks the provider to repair the package. When the
// response cannot be recovered into a package, the input is returned
// unchanged so the validator's rejection path proceeds.
func (r *LLMReviewer) ReviewAndFix(ctx context.Context, pkg handoff.Package, errs []string) (handoff.Package, error) {
	log := logging.Get(logging.CategoryHandoff)

	pkgJSON, err := json.Marshal(pkg)
	if err != nil {
		return pkg, fmt.Errorf("failed to encode package for review: %w", err)
	}
	errsJSON, _ := json.Marshal(errs)

	prompt := fmt.Sprintf("Package:\n%s\n\nValidation errors:\n%s\n\nReturn the corrected package.", pkgJSON, errsJSON)

	raw, err := provider.Invoke(ctx, r.client, "handoff_review", reviewerSystemPrompt, prompt, r.timeout)
	if err != nil {
		return pkg, err
	}

	res, err := r.extractor.Extract("handoff_package", raw)
	if err != nil || res.Provenance == extract.ProvenanceFallback {
		log.Warn("Reviewer output unusable for campaign %s, keeping original package", pkg.CampaignID)
		return pkg, nil
	}

	recordJSON, err := json.Marshal(res.Record)
	if err != nil {
		return pkg, nil
	}
	var fixed handoff.Package
	if err := json.Unmarshal(recordJSON, &fixed); err != nil {
		log.Warn("Reviewer returned malformed package for campaign %s: %v", pkg.CampaignID, err)
		return pkg, nil
	}

	// The reviewer must not reroute the package or move it to another
	// campaign.
	fixed.From = pkg.From
	fixed.To = pkg.To
	fixed.CampaignID = pkg.CampaignID
	return fixed, nil
}
