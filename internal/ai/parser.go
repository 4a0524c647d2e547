package ai

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/medsignal/medsignal/pkg/models"
)

// Confidence multipliers per parse tier. Extraction tiers carry less
// certainty than a clean JSON document.
var tierFactor = map[models.ParseMethod]float64{
	models.ParseDirect:      1.0,
	models.ParseFencedBlock: 1.0,
	models.ParseBraceScan:   0.9,
	models.ParseRegex:       0.7,
}

const (
	rawFallbackConfidence = 0.3
	defaultConfidence     = 0.5
)

var (
	fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	numberFieldRe = regexp.MustCompile(`"(confidence|onset_days)"\s*:\s*([0-9.]+)`)
	stringFieldRe = regexp.MustCompile(`"(severity|recommendation)"\s*:\s*"([^"]*)"`)
	boolFieldRe   = regexp.MustCompile(`"(associated)"\s*:\s*(true|false)`)
	listFieldRe   = regexp.MustCompile(`"(drug_interactions|side_effects|health_trends|recommendations)"\s*:\s*\[([^\]]*)\]`)
	quotedItemRe  = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)
)

// Parse coerces a raw model response into a generic document. It tries four
// tiers in order: direct JSON, fenced code block, largest balanced brace
// span, and regex key extraction. It never fails: a response all tiers
// reject yields a raw-fallback document with parse_error set.
func Parse(raw string) (map[string]any, models.ParseMethod) {
	trimmed := strings.TrimSpace(raw)

	if doc := tryUnmarshal(trimmed); doc != nil {
		return doc, models.ParseDirect
	}

	if m := fencedBlockRe.FindStringSubmatch(trimmed); m != nil {
		if doc := tryUnmarshal(m[1]); doc != nil {
			return doc, models.ParseFencedBlock
		}
	}

	if span := largestBraceSpan(trimmed); span != "" {
		if doc := tryUnmarshal(span); doc != nil {
			return doc, models.ParseBraceScan
		}
	}

	if doc := regexExtract(trimmed); len(doc) > 0 {
		return doc, models.ParseRegex
	}

	return map[string]any{
		"parse_error":  true,
		"raw_response": raw,
		"confidence":   rawFallbackConfidence,
	}, models.ParseRawFallback
}

// DecodeAnalysis parses a raw model response into a typed AnalysisResult,
// applying the per-tier confidence factor. It never fails: unparseable
// responses come back as a low-confidence raw envelope.
func DecodeAnalysis(raw string) models.AnalysisResult {
	doc, method := Parse(raw)
	if method == models.ParseRawFallback {
		return models.AnalysisResult{
			Confidence:  rawFallbackConfidence,
			ParseMethod: method,
			ParseError:  true,
			RawResponse: raw,
		}
	}

	var result models.AnalysisResult
	// Round-trip through JSON so loosely shaped documents map onto the
	// typed struct without per-key probing. Shape mismatches on single
	// keys degrade to zero values, not failures.
	if encoded, err := json.Marshal(doc); err == nil {
		_ = json.Unmarshal(encoded, &result)
	}

	if _, ok := doc["confidence"]; !ok {
		result.Confidence = defaultConfidence
	}
	result.Confidence = clamp01(result.Confidence * tierFactor[method])
	result.ParseMethod = method
	return result
}

func tryUnmarshal(s string) map[string]any {
	var doc map[string]any
	if err := json.Unmarshal([]byte(s), &doc); err != nil {
		return nil
	}
	return doc
}

// largestBraceSpan returns the longest balanced {...} substring, honoring
// JSON string literals and escapes so braces inside values do not miscount.
func largestBraceSpan(s string) string {
	best := ""
	for i := 0; i < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		depth := 0
		inString := false
		escaped := false
		for j := i; j < len(s); j++ {
			c := s[j]
			switch {
			case escaped:
				escaped = false
			case c == '\\' && inString:
				escaped = true
			case c == '"':
				inString = !inString
			case !inString && c == '{':
				depth++
			case !inString && c == '}':
				depth--
				if depth == 0 {
					if span := s[i : j+1]; len(span) > len(best) {
						best = span
					}
					j = len(s)
				}
			}
		}
	}
	return best
}

// regexExtract pulls known keys out of near-JSON text the brace scan could
// not recover, such as output with an unbalanced or truncated document.
func regexExtract(s string) map[string]any {
	doc := map[string]any{}

	for _, m := range numberFieldRe.FindAllStringSubmatch(s, -1) {
		if v, err := strconv.ParseFloat(m[2], 64); err == nil {
			doc[m[1]] = v
		}
	}
	for _, m := range stringFieldRe.FindAllStringSubmatch(s, -1) {
		doc[m[1]] = m[2]
	}
	for _, m := range boolFieldRe.FindAllStringSubmatch(s, -1) {
		doc[m[1]] = m[2] == "true"
	}
	for _, m := range listFieldRe.FindAllStringSubmatch(s, -1) {
		items := []any{}
		for _, q := range quotedItemRe.FindAllStringSubmatch(m[2], -1) {
			items = append(items, q[1])
		}
		if len(items) > 0 {
			doc[m[1]] = items
		}
	}
	return doc
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
