package service

import (
	"time"

	"github.com/persona-scanner/internal/models"
	"github.com/persona-scanner/internal/types"
)

// PersonaClassifier assigns a persona label from a portfolio snapshot and
// activity metrics. It is a pure function of its inputs: no clocks, no
// I/O, no randomness.
type PersonaClassifier struct{}

// NewPersonaClassifier creates a persona classifier
func NewPersonaClassifier() *PersonaClassifier {
	return &PersonaClassifier{}
}

// Classify evaluates every rule set against the inputs and returns the
// first full match in priority order, Unclassified when none matches.
// All criteria outcomes are reported, not only the winner's, so a caller
// can see how close the wallet came to the other buckets.
func (c *PersonaClassifier) Classify(snapshot *models.PortfolioSnapshot, activity *models.ActivityMetrics, mode types.DataSourceMode, now time.Time) *models.PersonaResult {
	in := &classifierInput{
		snapshot: snapshot,
		activity: activity,
		now:      now,
	}

	result := &models.PersonaResult{
		Label:        models.PersonaUnclassified,
		TotalMetrics: len(behavioralMetrics),
	}

	matched := false
	for _, ruleSet := range personaRuleSets {
		allPassed := true
		for _, crit := range ruleSet.criteria {
			passed, detail := crit.eval(in)
			result.Criteria = append(result.Criteria, models.CriterionResult{
				Name:    crit.name,
				Persona: ruleSet.label,
				Passed:  passed,
				Detail:  detail,
			})
			if !passed {
				allPassed = false
			}
		}
		if allPassed && !matched {
			result.Label = ruleSet.label
			result.Confidence = 1.0
			matched = true
		}
	}

	for _, metric := range behavioralMetrics {
		passed, detail := metric.eval(in)
		result.Metrics = append(result.Metrics, models.MetricResult{
			Name:   metric.name,
			Passed: passed,
			Detail: detail,
		})
		if passed {
			result.MetricsPassed++
		}
	}
	result.PersonaScore = float64(result.MetricsPassed) / float64(result.TotalMetrics) * 100

	return result
}
