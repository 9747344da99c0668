package orchestrator

import (
	"context"
	"fmt"
	"time"

	"adcraft/internal/assets"
	"adcraft/internal/campaign"
	"adcraft/internal/extract"
	"adcraft/internal/gate"
	"adcraft/internal/handoff"
)

// runContentStage produces the campaign copy and hands off to design.
func (o *Orchestrator) runContentStage(ctx context.Context, c campaign.Campaign) (campaign.Campaign, error) {
	raw, err := o.invokeStage(ctx, c, "content_stage", contentSystemPrompt, contentPrompt(c))
	if err != nil {
		return campaign.Campaign{}, err
	}

	res, err := o.extractor.Extract("content_draft", raw)
	if err != nil {
		return campaign.Campaign{}, err
	}

	pkg := handoff.Package{
		From:           campaign.SpecialistContent,
		To:             campaign.SpecialistDesign,
		CampaignID:     c.ID,
		SpecialistData: res.Record,
		Context: handoff.Context{
			Summary: fmt.Sprintf("content drafted: %s", recordString(res.Record, "headline")),
		},
		Quality: metadataFor(res),
	}

	validated, err := o.completeHandoff(ctx, c, pkg)
	if err != nil {
		return campaign.Campaign{}, err
	}

	// The phase payload comes from the validated package, so reviewer
	// corrections are what the later stages see.
	content := &campaign.ContentData{
		Headline:     recordString(validated.SpecialistData, "headline"),
		Body:         recordString(validated.SpecialistData, "body"),
		CallToAction: recordString(validated.SpecialistData, "call_to_action"),
		Keywords:     recordStrings(validated.SpecialistData, "keywords"),
		Tone:         recordString(validated.SpecialistData, "tone"),
	}

	return o.transfer(ctx, c, validated, campaign.Patch{Content: content}, content)
}

// runDesignStage resolves candidate assets, asks the provider for a
// template selection over them, and hands off to quality.
func (o *Orchestrator) runDesignStage(ctx context.Context, c campaign.Campaign) (campaign.Campaign, error) {
	assetResult, err := o.resolveAssets(ctx, c)
	if err != nil {
		return campaign.Campaign{}, err
	}

	names := make([]string, 0, len(assetResult.Assets))
	for _, a := range assetResult.Assets {
		names = append(names, a.Name)
	}

	raw, err := o.invokeStage(ctx, c, "design_stage", designSystemPrompt, designPrompt(c, names))
	if err != nil {
		return campaign.Campaign{}, err
	}

	res, err := o.extractor.Extract("design_selection", raw)
	if err != nil {
		return campaign.Campaign{}, err
	}

	selected := recordStrings(res.Record, "selected_assets")
	if len(selected) == 0 && len(names) > 0 {
		// Fallback records carry no selection; take the top-ranked
		// candidates instead of handing quality an empty design.
		limit := len(names)
		if limit > 3 {
			limit = 3
		}
		selected = names[:limit]
		res.Record["selected_assets"] = selected
	}

	pkg := handoff.Package{
		From:           campaign.SpecialistDesign,
		To:             campaign.SpecialistQuality,
		CampaignID:     c.ID,
		SpecialistData: res.Record,
		Context: handoff.Context{
			Summary: fmt.Sprintf("design selected: template %s with %d assets", recordString(res.Record, "template"), len(selected)),
		},
		Quality: metadataFor(res),
	}

	validated, err := o.completeHandoff(ctx, c, pkg)
	if err != nil {
		return campaign.Campaign{}, err
	}

	design := &campaign.DesignData{
		Template:       recordString(validated.SpecialistData, "template"),
		SelectedAssets: recordStrings(validated.SpecialistData, "selected_assets"),
		ColorPalette:   recordStrings(validated.SpecialistData, "color_palette"),
		LayoutNotes:    recordString(validated.SpecialistData, "layout_notes"),
	}

	return o.transfer(ctx, c, validated, campaign.Patch{Design: design}, design)
}

// resolveAssets queries the asset cache for candidates matching the
// campaign's content. Without a cache, the design stage works from the
// provider's own suggestions.
func (o *Orchestrator) resolveAssets(ctx context.Context, c campaign.Campaign) (assets.Result, error) {
	if o.assets == nil {
		return assets.Result{}, nil
	}

	query := assets.Query{
		Tags:         contentTags(c),
		Tone:         contentTone(c),
		CampaignType: c.Brand,
		TargetCount:  5,
	}

	result, err := o.assets.Resolve(ctx, query)
	if err != nil {
		return assets.Result{}, fmt.Errorf("asset resolution failed: %w", err)
	}
	return result, nil
}

// runQualityStage produces a quality report and routes the campaign
// through the gate.
func (o *Orchestrator) runQualityStage(ctx context.Context, c campaign.Campaign) (campaign.Campaign, error) {
	raw, err := o.invokeStage(ctx, c, "quality_stage", qualitySystemPrompt, qualityPrompt(c))
	if err != nil {
		return campaign.Campaign{}, err
	}

	res, err := o.extractor.Extract("quality_report", raw)
	if err != nil {
		return campaign.Campaign{}, err
	}

	// The report itself travels under the quality -> delivery contract;
	// a report missing its required keys is rejected before the gate
	// ever sees it, leaving the campaign at the quality phase.
	pkg := handoff.Package{
		From:           campaign.SpecialistQuality,
		To:             campaign.SpecialistDelivery,
		CampaignID:     c.ID,
		SpecialistData: res.Record,
		Context: handoff.Context{
			Summary: fmt.Sprintf("quality reviewed for %s", c.Brand),
		},
		Quality: metadataFor(res),
	}

	validated, err := o.completeHandoff(ctx, c, pkg)
	if err != nil {
		return campaign.Campaign{}, err
	}

	report := gate.ParseReport(validated.SpecialistData)
	if res.Degraded() {
		// A synthesized or repaired report cannot claim a clean pass.
		report.Recommendations = append(report.Recommendations, "quality report was degraded on extraction; re-run recommended")
	}

	quality := &campaign.QualityData{
		OverallScore: report.OverallScore,
		Approved:     false,
	}
	for _, check := range report.PassedChecks {
		quality.ComplianceNotes = append(quality.ComplianceNotes, check)
	}

	if _, err := o.registry.Update(c.ID, campaign.Patch{Quality: quality}); err != nil {
		return campaign.Campaign{}, err
	}
	o.persistPhase(ctx, c.ID, campaign.PhaseName(campaign.SpecialistQuality), report)

	routing := o.router.Route(report, c)
	o.emit(Event{Type: "gate_decision", CampaignID: c.ID, Specialist: campaign.SpecialistQuality,
		Message: fmt.Sprintf("%s: %s", routing.Decision, routing.Reason)})

	updated, err := o.router.Apply(o.registry, c.ID, routing)
	if err != nil {
		// A rollback-limit failure is terminal but the state update
		// already happened; surface the typed error.
		return updated, err
	}

	if routing.Decision == gate.DecisionAdvance {
		approved := *quality
		approved.Approved = true
		updated, err = o.registry.Update(c.ID, campaign.Patch{Quality: &approved})
		if err != nil {
			return campaign.Campaign{}, err
		}
	}
	return updated, nil
}

// runDeliveryStage assembles the final artifacts and completes the
// campaign.
func (o *Orchestrator) runDeliveryStage(ctx context.Context, c campaign.Campaign) (campaign.Campaign, error) {
	raw, err := o.invokeStage(ctx, c, "delivery_stage", deliverySystemPrompt, deliveryPrompt(c))
	if err != nil {
		return campaign.Campaign{}, err
	}

	res, err := o.extractor.Extract("delivery_manifest", raw)
	if err != nil {
		return campaign.Campaign{}, err
	}

	delivery := &campaign.DeliveryData{
		Artifacts:   recordStrings(res.Record, "artifacts"),
		Channel:     recordString(res.Record, "channel"),
		DeliveredAt: time.Now(),
	}

	status := campaign.StatusCompleted
	updated, err := o.registry.Update(c.ID, campaign.Patch{
		Delivery: delivery,
		Status:   &status,
		Handoff: &campaign.HandoffContext{
			From:      campaign.SpecialistDelivery,
			To:        campaign.SpecialistDelivery,
			Timestamp: time.Now(),
			Summary:   fmt.Sprintf("campaign delivered via %s with %d artifacts", delivery.Channel, len(delivery.Artifacts)),
		},
	})
	if err != nil {
		return campaign.Campaign{}, err
	}

	o.persistPhase(ctx, c.ID, campaign.PhaseName(campaign.SpecialistDelivery), delivery)
	o.emit(Event{Type: "campaign_completed", CampaignID: c.ID, Specialist: campaign.SpecialistDelivery,
		Message: "campaign completed"})
	return updated, nil
}

// metadataFor derives handoff quality metadata from the extraction
// provenance: a degraded extraction is a data-quality warning, never a
// silent pass.
func metadataFor(res extract.Result) handoff.Metadata {
	switch res.Provenance {
	case extract.ProvenanceParsed:
		return handoff.Metadata{
			DataQuality:      95,
			Completeness:     95,
			ValidationStatus: handoff.ValidationPassed,
		}
	case extract.ProvenanceRecovered:
		return handoff.Metadata{
			DataQuality:      70,
			Completeness:     80,
			ValidationStatus: handoff.ValidationWarning,
			WarningCount:     1,
		}
	default:
		return handoff.Metadata{
			DataQuality:      30,
			Completeness:     40,
			ValidationStatus: handoff.ValidationWarning,
			WarningCount:     1,
		}
	}
}

// contentTags derives asset search tags from the content payload.
func contentTags(c campaign.Campaign) []string {
	if c.Content != nil && len(c.Content.Keywords) > 0 {
		return c.Content.Keywords
	}
	return []string{c.Brand}
}

func contentTone(c campaign.Campaign) string {
	if c.Content != nil {
		return c.Content.Tone
	}
	return ""
}

func recordString(record map[string]any, key string) string {
	if s, ok := record[key].(string); ok {
		return s
	}
	return ""
}

func recordStrings(record map[string]any, key string) []string {
	switch v := record[key].(type) {
	case []string:
		return v
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
