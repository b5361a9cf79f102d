package timelineController

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/admin/astro-apps/timeline-api/internal/domain"
	timelineUsecase "github.com/admin/astro-apps/timeline-api/internal/usecases/timeline"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Controller HTTP-интерфейс генерации и чтения таймлайнов.
// Аутентификация выполняется выше по стеку: сюда приходят заголовки
// X-User-Id и X-Subscription-Tier для пользователей либо
// X-Device-Fingerprint для анонимов.
type Controller struct {
	TimelineService *timelineUsecase.Service
	Log             *slog.Logger
}

func New(timelineService *timelineUsecase.Service, log *slog.Logger) *Controller {
	return &Controller{
		TimelineService: timelineService,
		Log:             log,
	}
}

func (c *Controller) RegisterRoutes(router *gin.Engine) {
	router.POST("/v1/profile", c.resolveProfile)
	router.GET("/v1/profile", c.getProfile)
	router.POST("/v1/timelines", c.generate)
	router.GET("/v1/timelines", c.list)
	router.GET("/v1/timelines/:id", c.get)
	router.DELETE("/v1/timelines/:id", c.delete)
	router.GET("/v1/timelines/:id/affirmation", c.dailyAffirmation)
}

// resolveProfile создаёт или пересчитывает натальный профиль пользователя
func (c *Controller) resolveProfile(ctx *gin.Context) {
	identity, ok := c.requireUser(ctx)
	if !ok {
		return
	}

	var req BirthDataRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	profile, err := c.TimelineService.ResolveProfile(ctx.Request.Context(), identity.UserID, req.toDomain())
	if err != nil {
		c.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, toProfileResponse(profile))
}

// getProfile возвращает сохранённый профиль пользователя
func (c *Controller) getProfile(ctx *gin.Context) {
	identity, ok := c.requireUser(ctx)
	if !ok {
		return
	}

	profile, err := c.TimelineService.GetProfile(ctx.Request.Context(), identity.UserID)
	if err != nil {
		c.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, toProfileResponse(profile))
}

// generate запускает полный цикл генерации таймлайна
func (c *Controller) generate(ctx *gin.Context) {
	identity, ok := c.identity(ctx)
	if !ok {
		return
	}

	var req GenerateTimelineRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	result, err := c.TimelineService.Generate(ctx.Request.Context(), req.toUsecase(identity))
	if err != nil {
		c.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, toGenerateResponse(result, identity.Tier))
}

// list таймлайны владельца
func (c *Controller) list(ctx *gin.Context) {
	identity, ok := c.identity(ctx)
	if !ok {
		return
	}

	timelines, err := c.TimelineService.ListTimelines(ctx.Request.Context(), identity.OwnerID)
	if err != nil {
		c.respondError(ctx, err)
		return
	}

	items := make([]TimelineResponse, 0, len(timelines))
	for i := range timelines {
		items = append(items, toTimelineResponse(&timelines[i], identity.Tier))
	}
	ctx.JSON(http.StatusOK, gin.H{"timelines": items})
}

// get один таймлайн владельца
func (c *Controller) get(ctx *gin.Context) {
	identity, ok := c.identity(ctx)
	if !ok {
		return
	}

	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid timeline id"})
		return
	}

	tl, err := c.TimelineService.GetTimeline(ctx.Request.Context(), id, identity.OwnerID)
	if err != nil {
		c.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, toTimelineResponse(tl, identity.Tier))
}

// delete удаляет таймлайн по явному запросу владельца
func (c *Controller) delete(ctx *gin.Context) {
	identity, ok := c.identity(ctx)
	if !ok {
		return
	}

	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid timeline id"})
		return
	}

	if err := c.TimelineService.DeleteTimeline(ctx.Request.Context(), id, identity.OwnerID); err != nil {
		c.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"ok": true})
}

// dailyAffirmation аффирмация дня по таймлайну
func (c *Controller) dailyAffirmation(ctx *gin.Context) {
	identity, ok := c.identity(ctx)
	if !ok {
		return
	}

	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid timeline id"})
		return
	}

	affirmation, err := c.TimelineService.DailyAffirmation(ctx.Request.Context(), id, identity.OwnerID)
	if err != nil {
		c.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"affirmation": affirmation})
}

// respondError транслирует доменные ошибки в HTTP-статусы
func (c *Controller) respondError(ctx *gin.Context, err error) {
	var (
		invalidBirth  *domain.InvalidBirthDataError
		noCredits     *domain.InsufficientCreditsError
		badTimeframe  *domain.TimeframeNotAllowedError
		ephemerisDown *domain.EphemerisUnavailableError
		synthFailed   *domain.ActionSynthesisFailedError
		casExceeded   *domain.ConcurrentModificationError
	)

	switch {
	case errors.As(err, &invalidBirth):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": invalidBirth.Error()})
	case errors.As(err, &badTimeframe):
		ctx.JSON(http.StatusForbidden, gin.H{"error": badTimeframe.Error()})
	case errors.As(err, &noCredits):
		ctx.JSON(http.StatusPaymentRequired, gin.H{"error": noCredits.Error()})
	case errors.Is(err, domain.ErrTimelineNotFound), errors.Is(err, domain.ErrProfileNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &casExceeded):
		ctx.JSON(http.StatusConflict, gin.H{"error": casExceeded.Error()})
	case errors.As(err, &ephemerisDown), errors.As(err, &synthFailed):
		ctx.JSON(http.StatusBadGateway, gin.H{"error": "upstream service unavailable, credit was not consumed"})
	case domain.IsBusinessError(err):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.Log.Error("unhandled error in timeline controller", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
