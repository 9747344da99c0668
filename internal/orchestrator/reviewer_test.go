package orchestrator

import (
	"context"
	"testing"
	"time"

	"adcraft/internal/campaign"
	"adcraft/internal/handoff"
)

func brokenPackage() handoff.Package {
	return handoff.Package{
		From:       campaign.SpecialistContent,
		To:         campaign.SpecialistDesign,
		CampaignID: "c-1",
		SpecialistData: map[string]any{
			"body": "only a body",
		},
	}
}

func TestReviewerReturnsFixedPackage(t *testing.T) {
	client := newStageClient()
	client.respond("review", `{"from_specialist": "/design", "to_specialist": "/quality", "campaign_id": "hijacked", "specialist_data": {"headline": "Fixed", "body": "only a body"}}`)

	r := NewLLMReviewer(client, time.Second)

	fixed, err := r.ReviewAndFix(context.Background(), brokenPackage(), []string{`specialist_data missing required key "headline"`})
	if err != nil {
		t.Fatalf("ReviewAndFix failed: %v", err)
	}

	if fixed.SpecialistData["headline"] != "Fixed" {
		t.Errorf("headline = %v", fixed.SpecialistData["headline"])
	}
	// Routing and identity are pinned no matter what the provider says.
	if fixed.From != campaign.SpecialistContent || fixed.To != campaign.SpecialistDesign {
		t.Errorf("reviewer rerouted the package: %s -> %s", fixed.From, fixed.To)
	}
	if fixed.CampaignID != "c-1" {
		t.Errorf("reviewer moved the package to campaign %q", fixed.CampaignID)
	}
}

func TestReviewerUnusableOutputKeepsOriginal(t *testing.T) {
	client := newStageClient()
	client.respond("review", "I cannot repair this package, sorry.")

	r := NewLLMReviewer(client, time.Second)

	pkg := brokenPackage()
	got, err := r.ReviewAndFix(context.Background(), pkg, []string{"whatever"})
	if err != nil {
		t.Fatalf("ReviewAndFix failed: %v", err)
	}
	if got.SpecialistData["body"] != "only a body" {
		t.Error("unusable reviewer output should leave the package unchanged")
	}
	if _, ok := got.SpecialistData["headline"]; ok {
		t.Error("no repair happened, no keys should appear")
	}
}

func TestReviewerMakesExactlyOneProviderCall(t *testing.T) {
	client := newStageClient()
	client.respond("review", "garbage")

	r := NewLLMReviewer(client, time.Second)
	_, _ = r.ReviewAndFix(context.Background(), brokenPackage(), nil)

	if got := client.callCount("review"); got != 1 {
		t.Errorf("provider called %d times, want 1", got)
	}
}
