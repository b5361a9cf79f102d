package pointsController

import "github.com/google/uuid"

// ActionCompletedRequest отметка действия таймлайна выполненным
type ActionCompletedRequest struct {
	TimelineID  uuid.UUID `json:"timeline_id" binding:"required"`
	ActionIndex int       `json:"action_index"`
}

// AffirmationConfirmedRequest подтверждение аффирмации дня
type AffirmationConfirmedRequest struct {
	TimelineID uuid.UUID `json:"timeline_id" binding:"required"`
}
