package ephemeris

// PositionsRequest запрос позиций планет на момент времени
type PositionsRequest struct {
	Datetime string   `json:"datetime"` // RFC3339, UTC
	Planets  []string `json:"planets"`
}

// PlanetPosition позиция одной планеты
type PlanetPosition struct {
	Planet    string  `json:"planet"`
	Longitude float64 `json:"longitude"` // эклиптическая долгота в градусах
	Latitude  float64 `json:"latitude,omitempty"`
}

// PositionsResponse ответ API позиций
type PositionsResponse struct {
	Positions []PlanetPosition `json:"positions"`
}
