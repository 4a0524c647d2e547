package models

import "github.com/google/uuid"

// ParseMethod identifies which tier of the layered JSON parser produced a
// result. Downstream code can weight structured output above extractions.
type ParseMethod string

const (
	ParseDirect      ParseMethod = "direct_json"
	ParseFencedBlock ParseMethod = "fenced_block"
	ParseBraceScan   ParseMethod = "brace_scan"
	ParseRegex       ParseMethod = "regex_extraction"
	ParseRawFallback ParseMethod = "raw_fallback"
)

// Structured reports whether the method recovered a full JSON document
// (as opposed to a partial extraction or a raw-text fallback).
func (m ParseMethod) Structured() bool {
	return m == ParseDirect || m == ParseFencedBlock || m == ParseBraceScan
}

// AnalysisResult is the typed outcome of one LLM analysis. It is a tagged
// variant: when ParseError is true only RawResponse and Confidence are
// meaningful; when ParseMethod is ParseRegex the lists may be partial.
// No field is mandatory; every consumer must null-check.
type AnalysisResult struct {
	DrugInteractions []string    `json:"drug_interactions,omitempty"`
	SideEffects      []string    `json:"side_effects,omitempty"`
	HealthTrends     []string    `json:"health_trends,omitempty"`
	Recommendations  []string    `json:"recommendations,omitempty"`
	Confidence       float64     `json:"confidence"`
	Severity         Severity    `json:"severity,omitempty"`
	ParseMethod      ParseMethod `json:"parse_method,omitempty"`
	ParseError       bool        `json:"parse_error,omitempty"`
	RawResponse      string      `json:"raw_response,omitempty"`

	// Set only when the result was adapted from a cached situation
	// instead of a fresh LLM call.
	AdaptedFrom     *uuid.UUID `json:"adapted_from,omitempty"`
	SimilarityScore float64    `json:"similarity_score,omitempty"`
}

// HasFindings reports whether the result carries anything worth notifying on.
func (r AnalysisResult) HasFindings() bool {
	return len(r.DrugInteractions) > 0 ||
		len(r.SideEffects) > 0 ||
		len(r.HealthTrends) > 0 ||
		len(r.Recommendations) > 0
}
