package synthesizer

// ActionRequest запрос генерации действия под (дата, транзит)
type ActionRequest struct {
	Goal           string `json:"goal"`
	Context        string `json:"context,omitempty"`
	Approach       string `json:"approach,omitempty"`
	Date           string `json:"date"` // формат 2006-01-02
	TransitSummary string `json:"transit_summary"`
}

// ActionResponse сгенерированный контент действия
type ActionResponse struct {
	ActionText    string   `json:"action_text"`
	StrategyText  *string  `json:"strategy_text,omitempty"`
	ResourceLinks []string `json:"resource_links,omitempty"`
}

// AffirmationsRequest запрос пула аффирмаций
type AffirmationsRequest struct {
	Goal  string `json:"goal"`
	Count int    `json:"count"`
}

// AffirmationsResponse пул аффирмаций
type AffirmationsResponse struct {
	Affirmations []string `json:"affirmations"`
}
