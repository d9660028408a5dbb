package models

// InterventionTemplate is a named message template rendered per tutor.
// Subject and Content use text/template syntax, e.g. {{.TutorName}}.
type InterventionTemplate struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	Type              InterventionType `json:"type"`
	Subject           string           `json:"subject"`
	Content           string           `json:"content"`
	RequiredVariables []string         `json:"required_variables"`
	RecommendedTiming string           `json:"recommended_timing"`
	SuccessMetrics    []string         `json:"success_metrics"`
}
