package orchestrator

import (
	"fmt"
	"strings"

	"adcraft/internal/campaign"
)

// Stage system prompts. Each instructs the specialist to answer with a
// single JSON object; the extract package handles whatever actually
// comes back.

const contentSystemPrompt = `You are a marketing content specialist. Produce campaign copy as a single JSON object with keys:
"headline" (string), "body" (string), "call_to_action" (string), "keywords" (array of strings), "tone" (string).
Respond with ONLY the JSON object.`

const designSystemPrompt = `You are a campaign design specialist. Select a template and visual assets as a single JSON object with keys:
"template" (string), "selected_assets" (array of asset names), "color_palette" (array of hex strings), "layout_notes" (string).
Choose assets ONLY from the provided list. Respond with ONLY the JSON object.`

const qualitySystemPrompt = `You are a quality validation specialist. Review the campaign and answer with a single JSON object with keys:
"overall_score" (0-100), "category_scores" (object with technical, content, accessibility, performance, compatibility),
"issues" (array of {"severity","category","description","fix_suggestion","auto_fixable"}),
"passed_checks" (array of strings), "recommendations" (array of strings).
Severity is one of critical, high, medium, low. Respond with ONLY the JSON object.`

const deliverySystemPrompt = `You are a campaign delivery specialist. Package the final campaign as a single JSON object with keys:
"artifacts" (array of file names), "channel" (string), "notes" (string).
Respond with ONLY the JSON object.`

// contentPrompt builds the user prompt for the content stage, carrying
// corrective guidance forward after a rollback.
func contentPrompt(c campaign.Campaign) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Campaign: %s\nBrand: %s\n", c.Name, c.Brand)
	writeGuidance(&sb, c)
	sb.WriteString("\nWrite the campaign copy.")
	return sb.String()
}

// designPrompt builds the user prompt for the design stage from the
// content payload and the resolved asset candidates.
func designPrompt(c campaign.Campaign, assetNames []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Campaign: %s\nBrand: %s\n", c.Name, c.Brand)
	if c.Content != nil {
		fmt.Fprintf(&sb, "\nHeadline: %s\nBody: %s\nTone: %s\n", c.Content.Headline, c.Content.Body, c.Content.Tone)
	}
	if len(assetNames) > 0 {
		fmt.Fprintf(&sb, "\nAvailable assets:\n- %s\n", strings.Join(assetNames, "\n- "))
	}
	writeGuidance(&sb, c)
	sb.WriteString("\nSelect the template and assets.")
	return sb.String()
}

// qualityPrompt builds the user prompt for the quality stage from the
// accumulated phase payloads.
func qualityPrompt(c campaign.Campaign) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Campaign: %s\nBrand: %s\n", c.Name, c.Brand)
	if c.Content != nil {
		fmt.Fprintf(&sb, "\nContent headline: %s\nContent body: %s\n", c.Content.Headline, c.Content.Body)
	}
	if c.Design != nil {
		fmt.Fprintf(&sb, "\nTemplate: %s\nAssets: %s\n", c.Design.Template, strings.Join(c.Design.SelectedAssets, ", "))
	}
	writeGuidance(&sb, c)
	sb.WriteString("\nValidate the campaign for quality and compliance.")
	return sb.String()
}

// deliveryPrompt builds the user prompt for the delivery stage.
func deliveryPrompt(c campaign.Campaign) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Campaign: %s\nBrand: %s\n", c.Name, c.Brand)
	if c.Design != nil {
		fmt.Fprintf(&sb, "Template: %s\nAssets: %s\n", c.Design.Template, strings.Join(c.Design.SelectedAssets, ", "))
	}
	sb.WriteString("\nAssemble the delivery manifest.")
	return sb.String()
}

// writeGuidance appends the handoff next steps when the previous
// transfer carried corrective guidance for this stage.
func writeGuidance(sb *strings.Builder, c campaign.Campaign) {
	if c.Handoff == nil || len(c.Handoff.NextSteps) == 0 {
		return
	}
	if c.Handoff.To != c.CurrentSpecialist {
		return
	}
	sb.WriteString("\nCorrective guidance from the previous review:\n")
	for _, step := range c.Handoff.NextSteps {
		fmt.Fprintf(sb, "- %s\n", step)
	}
}
