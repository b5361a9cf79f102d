package timelineController

import (
	"net/http"
	"time"

	"github.com/admin/astro-apps/timeline-api/internal/domain"
	timelineUsecase "github.com/admin/astro-apps/timeline-api/internal/usecases/timeline"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// visibleActionsForLockedTiers сколько действий видит тариф без полного доступа
const visibleActionsForLockedTiers = 3

// Identity владелец запроса, извлечённый из заголовков
type Identity struct {
	OwnerID   string
	OwnerType domain.OwnerType
	UserID    uuid.UUID
	Tier      domain.TierName
}

// identity извлекает владельца: пользователь по X-User-Id либо аноним
// по X-Device-Fingerprint. Без того и другого запрос отклоняется.
func (c *Controller) identity(ctx *gin.Context) (Identity, bool) {
	if raw := ctx.GetHeader("X-User-Id"); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
			return Identity{}, false
		}

		tier := domain.TierName(ctx.GetHeader("X-Subscription-Tier"))
		if tier != domain.TierFree && tier != domain.TierPremium {
			tier = domain.TierFree
		}

		return Identity{
			OwnerID:   userID.String(),
			OwnerType: domain.OwnerTypeUser,
			UserID:    userID,
			Tier:      tier,
		}, true
	}

	if fingerprint := ctx.GetHeader("X-Device-Fingerprint"); fingerprint != "" {
		return Identity{
			OwnerID:   fingerprint,
			OwnerType: domain.OwnerTypeAnonymous,
			Tier:      domain.TierAnonymous,
		}, true
	}

	ctx.JSON(http.StatusUnauthorized, gin.H{"error": "identity is required"})
	return Identity{}, false
}

// requireUser как identity, но только для аутентифицированных пользователей
func (c *Controller) requireUser(ctx *gin.Context) (Identity, bool) {
	identity, ok := c.identity(ctx)
	if !ok {
		return Identity{}, false
	}
	if identity.OwnerType != domain.OwnerTypeUser {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "authenticated user is required"})
		return Identity{}, false
	}
	return identity, true
}

// BirthDataRequest данные рождения
type BirthDataRequest struct {
	Date      string  `json:"date" binding:"required"`
	Time      string  `json:"time"`
	Timezone  string  `json:"timezone"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (r BirthDataRequest) toDomain() domain.BirthData {
	return domain.BirthData{
		Date:      r.Date,
		Time:      r.Time,
		Timezone:  r.Timezone,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
	}
}

// GenerateTimelineRequest запрос генерации таймлайна
type GenerateTimelineRequest struct {
	OutcomeGoal     string            `json:"outcome_goal" binding:"required"`
	Context         string            `json:"context"`
	Approach        string            `json:"approach"`
	TimeframeMonths int               `json:"timeframe_months" binding:"required"`
	Birth           *BirthDataRequest `json:"birth,omitempty"`
}

func (r GenerateTimelineRequest) toUsecase(identity Identity) timelineUsecase.GenerateRequest {
	req := timelineUsecase.GenerateRequest{
		OwnerID:         identity.OwnerID,
		OwnerType:       identity.OwnerType,
		UserID:          identity.UserID,
		Tier:            identity.Tier,
		OutcomeGoal:     r.OutcomeGoal,
		Context:         r.Context,
		Approach:        r.Approach,
		TimeframeMonths: r.TimeframeMonths,
	}
	if r.Birth != nil {
		birth := r.Birth.toDomain()
		req.Birth = &birth
	}
	return req
}

// ProfileResponse натальный профиль в выдаче
type ProfileResponse struct {
	UserID           uuid.UUID               `json:"user_id"`
	BirthInstant     time.Time               `json:"birth_instant"`
	PlanetLongitudes domain.PlanetLongitudes `json:"planet_longitudes"`
	UpdatedAt        time.Time               `json:"updated_at"`
}

func toProfileResponse(profile *domain.NatalProfile) ProfileResponse {
	return ProfileResponse{
		UserID:           profile.UserID,
		BirthInstant:     profile.BirthInstant,
		PlanetLongitudes: profile.PlanetLongitudes,
		UpdatedAt:        profile.UpdatedAt,
	}
}

// ActionSlotResponse действие таймлайна в выдаче
type ActionSlotResponse struct {
	Index          int      `json:"index"`
	Date           string   `json:"date"`
	TransitSummary string   `json:"transit_summary"`
	ActionText     string   `json:"action_text"`
	StrategyText   *string  `json:"strategy_text,omitempty"`
	ResourceLinks  []string `json:"resource_links,omitempty"`
}

// TimelineResponse таймлайн в выдаче. Тарифы без полного доступа видят
// только первые действия, остальные считаются в locked_actions.
type TimelineResponse struct {
	ID              uuid.UUID            `json:"id"`
	OutcomeGoal     string               `json:"outcome_goal"`
	Context         string               `json:"context,omitempty"`
	Approach        string               `json:"approach,omitempty"`
	TimeframeMonths int                  `json:"timeframe_months"`
	Actions         []ActionSlotResponse `json:"actions"`
	LockedActions   int                  `json:"locked_actions"`
	Affirmations    []string             `json:"affirmations"`
	CreatedAt       time.Time            `json:"created_at"`
}

func toTimelineResponse(tl *domain.Timeline, tier domain.TierName) TimelineResponse {
	visible := len(tl.Actions)
	locked := 0
	if t, ok := domain.DefaultTiers()[tier]; ok && !t.CanSeeAllActions && visible > visibleActionsForLockedTiers {
		visible = visibleActionsForLockedTiers
		locked = len(tl.Actions) - visible
	}

	actions := make([]ActionSlotResponse, 0, visible)
	for i := 0; i < visible; i++ {
		slot := tl.Actions[i]
		actions = append(actions, ActionSlotResponse{
			Index:          i,
			Date:           slot.Date.Format("2006-01-02"),
			TransitSummary: slot.TransitSummary,
			ActionText:     slot.ActionText,
			StrategyText:   slot.StrategyText,
			ResourceLinks:  slot.ResourceLinks,
		})
	}

	return TimelineResponse{
		ID:              tl.ID,
		OutcomeGoal:     tl.OutcomeGoal,
		Context:         tl.Context,
		Approach:        tl.Approach,
		TimeframeMonths: tl.TimeframeMonths,
		Actions:         actions,
		LockedActions:   locked,
		Affirmations:    tl.Affirmations,
		CreatedAt:       tl.CreatedAt,
	}
}

// GenerateResponse результат генерации с предупреждением о вырожденности
type GenerateResponse struct {
	Timeline TimelineResponse      `json:"timeline"`
	Warning  *string               `json:"warning,omitempty"`
	Points   *domain.RewardOutcome `json:"points,omitempty"`
}

func toGenerateResponse(result *timelineUsecase.GenerateResult, tier domain.TierName) GenerateResponse {
	resp := GenerateResponse{
		Timeline: toTimelineResponse(result.Timeline, tier),
		Points:   result.Points,
	}
	if result.Warning != nil {
		msg := result.Warning.Message()
		resp.Warning = &msg
	}
	return resp
}
