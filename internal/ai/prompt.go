package ai

import (
	"fmt"
	"strings"

	"github.com/medsignal/medsignal/pkg/models"
)

// maxPromptChars bounds the user prompt. Oversized profiles are truncated
// rather than rejected, so analysis still runs on very long histories.
const maxPromptChars = 8000

const analysisSystemPrompt = `You are a clinical analysis assistant reviewing a patient's medical profile.
Identify potential drug interactions, medication side effects, and health trends.
You are not a substitute for a clinician: flag findings for review, do not diagnose.
Respond with a single JSON object and nothing else.`

const analysisSchema = `Respond with JSON in exactly this shape:
{
  "drug_interactions": ["..."],
  "side_effects": ["..."],
  "health_trends": ["..."],
  "recommendations": ["..."],
  "confidence": 0.0,
  "severity": "low|medium|high"
}`

// BuildAnalysisRequest produces the cache-miss completion request for a
// profile. Sections are emitted in a fixed order (medications, symptoms,
// conditions, labs) so an identical profile always yields an identical
// prompt, which keeps the profile hash and the prompt in lockstep.
func BuildAnalysisRequest(profile models.MedicalProfile) models.CompletionRequest {
	var b strings.Builder
	b.WriteString("Analyze this medical profile.\n\n")

	if len(profile.Medications) > 0 {
		b.WriteString("Current medications:\n")
		for _, m := range profile.Medications {
			fmt.Fprintf(&b, "- %s", m.Name)
			if m.Dosage != "" {
				fmt.Fprintf(&b, " %s", m.Dosage)
			}
			if !m.StartDate.IsZero() {
				fmt.Fprintf(&b, " (started %s)", m.StartDate.Format("2006-01-02"))
			}
			b.WriteString("\n")
		}
	}
	if len(profile.RecentSymptoms) > 0 {
		b.WriteString("Recent symptoms:\n")
		for _, s := range profile.RecentSymptoms {
			fmt.Fprintf(&b, "- %s", s.Name)
			if s.Severity != "" {
				fmt.Fprintf(&b, " (%s)", s.Severity)
			}
			if !s.ReportedAt.IsZero() {
				fmt.Fprintf(&b, " reported %s", s.ReportedAt.Format("2006-01-02"))
			}
			b.WriteString("\n")
		}
	}
	if len(profile.Conditions) > 0 {
		b.WriteString("Health conditions:\n")
		for _, c := range profile.Conditions {
			fmt.Fprintf(&b, "- %s\n", c.Name)
		}
	}
	if len(profile.LabResults) > 0 {
		b.WriteString("Recent lab results:\n")
		for _, l := range profile.LabResults {
			fmt.Fprintf(&b, "- %s: %g %s", l.TestName, l.Value, l.Unit)
			if !l.Date.IsZero() {
				fmt.Fprintf(&b, " on %s", l.Date.Format("2006-01-02"))
			}
			b.WriteString("\n")
		}
	}

	prompt := b.String()
	if len(prompt) > maxPromptChars {
		prompt = prompt[:maxPromptChars] + "\n[profile truncated]\n"
	}
	prompt += "\n" + analysisSchema

	return models.CompletionRequest{
		System: analysisSystemPrompt,
		Prompt: prompt,
	}
}
