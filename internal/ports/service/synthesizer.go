package service

import (
	"context"
	"time"
)

// SynthesisRequest запрос генерации текста действия под конкретный транзит
type SynthesisRequest struct {
	Goal           string
	Context        string
	Approach       string
	Date           time.Time
	TransitSummary string
}

// SynthesisResult сгенерированный контент действия
type SynthesisResult struct {
	ActionText    string
	StrategyText  *string
	ResourceLinks []string
}

// ISynthesizerService генеративный текстовый сервис.
// Недетерминирован, может падать и таймаутить; его отказ фатален
// для всей генерации таймлайна.
type ISynthesizerService interface {
	SynthesizeAction(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error)
	GenerateAffirmations(ctx context.Context, goal string, count int) ([]string, error)
}
