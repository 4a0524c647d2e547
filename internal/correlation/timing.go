// Package correlation holds the four correlation engines and the
// cross-validator that prioritizes their combined output.
package correlation

import "time"

// Timing score buckets for symptoms falling outside the documented onset
// window, by days elapsed past the window end.
const (
	timingUnknownDates = 0.6
	timingBeforeMed    = 0.1
	timingInsideWindow = 1.0
	timingEarlyOnset   = 0.7
	timingWithin30Days = 0.6
	timingWithin90Days = 0.4
	timingBeyond90Days = 0.2
)

// TimingScore weighs how well a symptom's timing matches the documented
// onset window for a medication. It is a pure function of the two dates and
// the window. Missing or unparseable dates score a flat 0.6 rather than
// being defaulted to the current time, so reduced certainty stays auditable.
// Window bounds are inclusive.
func TimingScore(medStart, symptomDate time.Time, onsetMinDays, onsetMaxDays int) float64 {
	if medStart.IsZero() || symptomDate.IsZero() {
		return timingUnknownDates
	}
	if symptomDate.Before(medStart) {
		return timingBeforeMed
	}

	elapsed := int(symptomDate.Sub(medStart).Hours() / 24)
	switch {
	case elapsed >= onsetMinDays && elapsed <= onsetMaxDays:
		return timingInsideWindow
	case elapsed < onsetMinDays:
		// Started reacting sooner than documented. Plausible but weaker.
		return timingEarlyOnset
	}

	past := elapsed - onsetMaxDays
	switch {
	case past <= 30:
		return timingWithin30Days
	case past <= 90:
		return timingWithin90Days
	}
	return timingBeyond90Days
}
