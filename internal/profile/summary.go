package profile

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/medsignal/medsignal/pkg/models"
)

// Summary renders the profile as a structured natural-language text in a
// fixed field order. Identical profiles always produce identical text, so
// the downstream embedding is deterministic.
func Summary(p models.MedicalProfile) string {
	var b strings.Builder

	if len(p.Medications) > 0 {
		b.WriteString("Current medications: ")
		parts := make([]string, 0, len(p.Medications))
		for _, m := range p.Medications {
			s := m.Name
			if m.Dosage != "" {
				s += " " + m.Dosage
			}
			if m.Frequency != "" {
				s += " " + m.Frequency
			}
			parts = append(parts, s)
		}
		b.WriteString(strings.Join(parts, "; "))
		b.WriteString(". ")
	}

	if len(p.RecentSymptoms) > 0 {
		b.WriteString("Recent symptoms: ")
		parts := make([]string, 0, len(p.RecentSymptoms))
		for _, s := range p.RecentSymptoms {
			t := s.Name
			if s.Severity != "" {
				t += " (" + s.Severity + ")"
			}
			parts = append(parts, t)
		}
		b.WriteString(strings.Join(parts, "; "))
		b.WriteString(". ")
	}

	if len(p.Conditions) > 0 {
		b.WriteString("Health conditions: ")
		parts := make([]string, 0, len(p.Conditions))
		for _, c := range p.Conditions {
			parts = append(parts, c.Name)
		}
		b.WriteString(strings.Join(parts, "; "))
		b.WriteString(". ")
	}

	if len(p.LabResults) > 0 {
		b.WriteString("Recent lab results: ")
		parts := make([]string, 0, len(p.LabResults))
		for _, l := range p.LabResults {
			parts = append(parts, fmt.Sprintf("%s %g %s", l.TestName, l.Value, l.Unit))
		}
		b.WriteString(strings.Join(parts, "; "))
		b.WriteString(". ")
	}

	return strings.TrimSpace(b.String())
}

// Hash returns a stable fingerprint of the profile's clinical content,
// used by the audit log and for idempotency checks.
func Hash(p models.MedicalProfile) string {
	sum := sha256.Sum256([]byte(Summary(p)))
	return fmt.Sprintf("%x", sum)
}
