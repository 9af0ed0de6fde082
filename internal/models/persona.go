package models

// Persona labels, in classification priority order. The first rule set whose
// criteria all pass wins; a wallet matching none is Unclassified.
const (
	PersonaOG           = "OG"
	PersonaDeFiChad     = "DeFi Chad"
	PersonaDegen        = "Degen"
	PersonaVirginCT     = "Virgin CT"
	PersonaUnclassified = "Unclassified"
)

// CriterionResult records the outcome of one classification criterion
type CriterionResult struct {
	Name    string `json:"name"`
	Persona string `json:"persona"`
	Passed  bool   `json:"passed"`
	Detail  string `json:"detail,omitempty"`
}

// MetricResult records the outcome of one behavioral metric used for the
// persona score
type MetricResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// PersonaResult is the classification output for one wallet
type PersonaResult struct {
	Label         string            `json:"label"`
	Confidence    float64           `json:"confidence"` // fraction of the winning rule set's criteria that passed
	PersonaScore  float64           `json:"personaScore"`
	MetricsPassed int               `json:"metricsPassed"`
	TotalMetrics  int               `json:"totalMetrics"`
	Criteria      []CriterionResult `json:"criteria"`
	Metrics       []MetricResult    `json:"metrics"`
}
