package models

import (
	"time"

	"github.com/persona-scanner/internal/types"
)

// AnalysisResult is the complete output of one wallet analysis
type AnalysisResult struct {
	Address     string               `json:"address"`
	Chain       types.ChainID        `json:"chain"`
	Portfolio   *PortfolioSnapshot   `json:"portfolio"`
	Activity    *ActivityMetrics     `json:"activity"`
	Persona     *PersonaResult       `json:"persona"`
	DataSources types.DataSourceMode `json:"dataSources"`
	Warnings    []string             `json:"warnings,omitempty"`
	AnalyzedAt  time.Time            `json:"analyzedAt"`
}
