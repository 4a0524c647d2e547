package correlation

import (
	"strings"

	"github.com/medsignal/medsignal/pkg/models"
)

// Conversion factors to canonical units (US conventional, mg/dL).
const (
	glucoseMmolPerLToMgPerDL    = 18.0
	creatinineUmolPerLtoMgPerDL = 88.4
)

// NormalizeLab converts a lab snapshot to its canonical unit so downstream
// thresholds and prompts are unit-stable. Unknown tests and units pass
// through unchanged.
func NormalizeLab(lab models.LabSnapshot) models.LabSnapshot {
	test := strings.ToLower(lab.TestName)
	unit := canonicalUnitName(lab.Unit)

	switch {
	case strings.Contains(test, "glucose") && unit == "mmol/l":
		lab.Value *= glucoseMmolPerLToMgPerDL
		lab.Unit = "mg/dL"
	case strings.Contains(test, "creatinine") && unit == "umol/l":
		lab.Value /= creatinineUmolPerLtoMgPerDL
		lab.Unit = "mg/dL"
	}
	return lab
}

func canonicalUnitName(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	u = strings.ReplaceAll(u, "µ", "u")
	u = strings.ReplaceAll(u, " ", "")
	return u
}
