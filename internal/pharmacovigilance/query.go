package pharmacovigilance

import (
	"fmt"
	"strings"
)

// QueryBuilder constructs openFDA search expressions.
// All methods are pure functions with no side effects.
// Zero value is ready to use.
type QueryBuilder struct{}

// BuildAdverseEventQuery returns a search expression matching reports that
// name the drug as a suspect medicinal product and the reaction term.
// Combination drug names ("amlodipine+valsartan") expand to an OR group so
// either component matches.
func (b QueryBuilder) BuildAdverseEventQuery(drug, reaction string) string {
	return fmt.Sprintf("%s AND %s",
		b.buildDrugClause(drug),
		b.buildReactionClause(reaction))
}

func (b QueryBuilder) buildDrugClause(drug string) string {
	names := strings.Split(drug, "+")
	clauses := make([]string, 0, len(names))
	for _, n := range names {
		n = sanitizeTerm(n)
		if n == "" {
			continue
		}
		clauses = append(clauses, fmt.Sprintf(`patient.drug.medicinalproduct:%q`, n))
	}
	if len(clauses) == 1 {
		return clauses[0]
	}
	return "(" + strings.Join(clauses, " OR ") + ")"
}

func (b QueryBuilder) buildReactionClause(reaction string) string {
	return fmt.Sprintf(`patient.reaction.reactionmeddrapt:%q`, sanitizeTerm(reaction))
}

// sanitizeTerm strips characters with meaning in the openFDA query syntax
// so free-text entity names cannot change the query structure.
func sanitizeTerm(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		switch r {
		case '"', ':', '(', ')', '[', ']', '+', '&', '|':
			return -1
		}
		return r
	}, s)
}
