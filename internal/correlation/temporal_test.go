package correlation

import (
	"context"
	"testing"

	"github.com/medsignal/medsignal/pkg/models"
)

func TestTemporal_ClusterAndSequence(t *testing.T) {
	// Day 0 medication start, day 3 symptom, day 20 lab result:
	// one cluster (days 0 and 3) and one sequence (medication to symptom).
	profile := models.MedicalProfile{
		Medications:    []models.MedicationSnapshot{{Name: "Lisinopril", StartDate: day(0)}},
		RecentSymptoms: []models.SymptomSnapshot{{Name: "dry cough", ReportedAt: day(3)}},
		LabResults:     []models.LabSnapshot{{TestName: "glucose", Value: 100, Unit: "mg/dL", Date: day(20)}},
	}

	correlations, err := NewTemporalEngine().Analyze(context.Background(), profile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var clusters, sequences []models.Correlation
	for _, c := range correlations {
		switch c.Type {
		case models.CorrelationTemporalCluster:
			clusters = append(clusters, c)
		case models.CorrelationMedSymptomSeq:
			sequences = append(sequences, c)
		}
	}

	if len(clusters) != 1 {
		t.Fatalf("expected exactly 1 cluster, got %d: %+v", len(clusters), clusters)
	}
	if len(clusters[0].Entities) != 2 {
		t.Errorf("cluster must contain the day-0 and day-3 events, got %v", clusters[0].Entities)
	}
	if clusters[0].Confidence != 0.6 {
		t.Errorf("2-event cluster confidence must be 0.3x2 = 0.6, got %v", clusters[0].Confidence)
	}
	if clusters[0].Severity != models.SeverityLow {
		t.Errorf("2-event cluster must be low severity, got %s", clusters[0].Severity)
	}

	if len(sequences) != 1 {
		t.Fatalf("expected exactly 1 sequence, got %d: %+v", len(sequences), sequences)
	}
	seq := sequences[0]
	if seq.Medication != "Lisinopril" || seq.Symptom != "dry cough" {
		t.Errorf("unexpected sequence pair: %s -> %s", seq.Medication, seq.Symptom)
	}
	if seq.Confidence != 0.7 {
		t.Errorf("sequence confidence must be fixed 0.7, got %v", seq.Confidence)
	}
}

func TestTemporal_ClusterConfidenceCapped(t *testing.T) {
	profile := models.MedicalProfile{}
	for i := 0; i < 5; i++ {
		profile.RecentSymptoms = append(profile.RecentSymptoms,
			models.SymptomSnapshot{Name: "symptom", ReportedAt: day(i)})
	}

	correlations, _ := NewTemporalEngine().Analyze(context.Background(), profile)
	if len(correlations) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(correlations))
	}
	if correlations[0].Confidence != 0.9 {
		t.Errorf("5-event cluster must cap at 0.9, got %v", correlations[0].Confidence)
	}
	if correlations[0].Severity != models.SeverityMedium {
		t.Errorf("3+ event cluster must be medium severity, got %s", correlations[0].Severity)
	}
}

func TestTemporal_DropsUnparseableDates(t *testing.T) {
	profile := models.MedicalProfile{
		Medications: []models.MedicationSnapshot{
			{Name: "undated medication"}, // zero StartDate
			{Name: "dated medication", StartDate: day(0)},
		},
		RecentSymptoms: []models.SymptomSnapshot{
			{Name: "undated symptom"}, // zero ReportedAt
		},
	}

	correlations, _ := NewTemporalEngine().Analyze(context.Background(), profile)
	if len(correlations) != 0 {
		t.Errorf("single dated event cannot cluster or sequence, got %+v", correlations)
	}
}

func TestTemporal_NoSequenceOutsideWindow(t *testing.T) {
	tests := []struct {
		name       string
		symptomDay int
		want       int
	}{
		{"same day is not a sequence", 0, 0},
		{"day 1 is a sequence", 1, 1},
		{"day 30 is a sequence", 30, 1},
		{"day 31 is outside the window", 31, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			profile := models.MedicalProfile{
				Medications:    []models.MedicationSnapshot{{Name: "med", StartDate: day(0)}},
				RecentSymptoms: []models.SymptomSnapshot{{Name: "symptom", ReportedAt: day(tc.symptomDay)}},
			}
			correlations, _ := NewTemporalEngine().Analyze(context.Background(), profile)

			sequences := 0
			for _, c := range correlations {
				if c.Type == models.CorrelationMedSymptomSeq {
					sequences++
				}
			}
			if sequences != tc.want {
				t.Errorf("day %d: expected %d sequences, got %d", tc.symptomDay, tc.want, sequences)
			}
		})
	}
}
