package pointsController

import (
	"log/slog"
	"net/http"

	"github.com/admin/astro-apps/timeline-api/internal/domain"
	pointsUsecase "github.com/admin/astro-apps/timeline-api/internal/usecases/points"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Controller HTTP-интерфейс баллов и уровней.
// Все операции требуют аутентифицированного пользователя: анонимы
// в системе лояльности не участвуют.
type Controller struct {
	PointsService *pointsUsecase.Service
	Log           *slog.Logger
}

func New(pointsService *pointsUsecase.Service, log *slog.Logger) *Controller {
	return &Controller{
		PointsService: pointsService,
		Log:           log,
	}
}

func (c *Controller) RegisterRoutes(router *gin.Engine) {
	router.POST("/v1/rewards/action", c.actionCompleted)
	router.POST("/v1/rewards/affirmation", c.affirmationConfirmed)
	router.POST("/v1/rewards/login", c.dailyLogin)
	router.GET("/v1/points/status", c.status)
	router.GET("/v1/points/levels", c.levels)
}

// actionCompleted пользователь отметил действие таймлайна выполненным
func (c *Controller) actionCompleted(ctx *gin.Context) {
	userID, ok := c.userID(ctx)
	if !ok {
		return
	}

	var req ActionCompletedRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	event := domain.NewActionCompleted(userID, req.TimelineID, req.ActionIndex, c.PointsService.Now())
	c.process(ctx, event)
}

// affirmationConfirmed пользователь подтвердил аффирмацию дня
func (c *Controller) affirmationConfirmed(ctx *gin.Context) {
	userID, ok := c.userID(ctx)
	if !ok {
		return
	}

	var req AffirmationConfirmedRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	now := c.PointsService.Now()
	event := domain.NewAffirmationConfirmed(userID, req.TimelineID, now.Format("2006-01-02"), now)
	c.process(ctx, event)
}

// dailyLogin ежедневный вход; дедуп по дню делает повторные вызовы безопасными
func (c *Controller) dailyLogin(ctx *gin.Context) {
	userID, ok := c.userID(ctx)
	if !ok {
		return
	}

	now := c.PointsService.Now()
	event := domain.NewDailyLogin(userID, now.Format("2006-01-02"), now)
	c.process(ctx, event)
}

// status текущее состояние баллов и уровня пользователя
func (c *Controller) status(ctx *gin.Context) {
	userID, ok := c.userID(ctx)
	if !ok {
		return
	}

	status, err := c.PointsService.GetStatus(ctx.Request.Context(), userID)
	if err != nil {
		c.Log.Error("failed to get points status", "error", err, "user_id", userID)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	ctx.JSON(http.StatusOK, status)
}

// levels статическая таблица уровней
func (c *Controller) levels(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"levels": c.PointsService.Levels()})
}

// process общий путь обработки reward-события
func (c *Controller) process(ctx *gin.Context, event domain.RewardEvent) {
	outcome, err := c.PointsService.Process(ctx.Request.Context(), event)
	if err != nil {
		if domain.IsBusinessError(err) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.Log.Error("failed to process reward event",
			"error", err,
			"event_type", event.Type)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	ctx.JSON(http.StatusOK, outcome)
}

// userID извлекает пользователя из заголовка X-User-Id
func (c *Controller) userID(ctx *gin.Context) (uuid.UUID, bool) {
	raw := ctx.GetHeader("X-User-Id")
	if raw == "" {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "authenticated user is required"})
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(raw)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return uuid.Nil, false
	}
	return userID, true
}
