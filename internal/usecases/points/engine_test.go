package points

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/admin/astro-apps/timeline-api/internal/domain"
	"github.com/admin/astro-apps/timeline-api/internal/ports/persistence"
	"github.com/google/uuid"
)

// stubPointsRepo леджер и состояние уровня в памяти; транзакция фиктивная,
// атомарность тут не проверяется
type stubPointsRepo struct {
	entries map[string]domain.PointsLedgerEntry
	states  map[uuid.UUID]*domain.UserLevelState
}

func newStubPointsRepo() *stubPointsRepo {
	return &stubPointsRepo{
		entries: make(map[string]domain.PointsLedgerEntry),
		states:  make(map[uuid.UUID]*domain.UserLevelState),
	}
}

func (s *stubPointsRepo) WithTransaction(ctx context.Context, fn func(context.Context, persistence.Transaction) error) error {
	return fn(ctx, nil)
}

func (s *stubPointsRepo) InsertEntryTx(_ context.Context, _ persistence.Transaction, entry *domain.PointsLedgerEntry) (bool, error) {
	if _, ok := s.entries[entry.DedupeKey]; ok {
		return false, nil
	}
	s.entries[entry.DedupeKey] = *entry
	return true, nil
}

func (s *stubPointsRepo) GetLevelStateForUpdateTx(_ context.Context, _ persistence.Transaction, userID uuid.UUID) (*domain.UserLevelState, error) {
	if state, ok := s.states[userID]; ok {
		copied := *state
		return &copied, nil
	}
	return &domain.UserLevelState{UserID: userID, CurrentLevel: 1}, nil
}

func (s *stubPointsRepo) UpsertLevelStateTx(_ context.Context, _ persistence.Transaction, state *domain.UserLevelState) error {
	copied := *state
	s.states[state.UserID] = &copied
	return nil
}

func (s *stubPointsRepo) SumPointsTx(_ context.Context, _ persistence.Transaction, userID uuid.UUID) (int, error) {
	return s.SumPoints(context.Background(), userID)
}

func (s *stubPointsRepo) CountActionEntriesTx(_ context.Context, _ persistence.Transaction, userID uuid.UUID, timelineID uuid.UUID) (int, error) {
	prefix := userID.String() + ":" + string(domain.RewardActionCompleted) + ":" + timelineID.String() + ":"
	count := 0
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			count++
		}
	}
	return count, nil
}

func (s *stubPointsRepo) GetLevelState(_ context.Context, userID uuid.UUID) (*domain.UserLevelState, error) {
	if state, ok := s.states[userID]; ok {
		copied := *state
		return &copied, nil
	}
	return &domain.UserLevelState{UserID: userID, CurrentLevel: 1}, nil
}

func (s *stubPointsRepo) ListEntries(_ context.Context, userID uuid.UUID, limit int) ([]domain.PointsLedgerEntry, error) {
	var out []domain.PointsLedgerEntry
	for _, entry := range s.entries {
		if entry.UserID == userID && len(out) < limit {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (s *stubPointsRepo) ListUserIDs(_ context.Context) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(s.states))
	for id := range s.states {
		out = append(out, id)
	}
	return out, nil
}

func (s *stubPointsRepo) SumPoints(_ context.Context, userID uuid.UUID) (int, error) {
	sum := 0
	for _, entry := range s.entries {
		if entry.UserID == userID {
			sum += entry.Points
		}
	}
	return sum, nil
}

type stubTimelineGetter struct {
	timelines map[uuid.UUID]*domain.Timeline
}

func newStubTimelineGetter() *stubTimelineGetter {
	return &stubTimelineGetter{timelines: make(map[uuid.UUID]*domain.Timeline)}
}

func (s *stubTimelineGetter) Create(_ context.Context, tl *domain.Timeline) error {
	s.timelines[tl.ID] = tl
	return nil
}

func (s *stubTimelineGetter) GetByID(_ context.Context, id uuid.UUID) (*domain.Timeline, error) {
	tl, ok := s.timelines[id]
	if !ok {
		return nil, domain.ErrTimelineNotFound
	}
	return tl, nil
}

func (s *stubTimelineGetter) ListByOwner(_ context.Context, _ string) ([]domain.Timeline, error) {
	return nil, nil
}

func (s *stubTimelineGetter) CountByOwner(_ context.Context, _ string) (int64, error) {
	return int64(len(s.timelines)), nil
}

func (s *stubTimelineGetter) Delete(_ context.Context, id uuid.UUID, _ string) error {
	delete(s.timelines, id)
	return nil
}

type captureProducer struct {
	levelUps []domain.LevelUp
}

func (c *captureProducer) PublishLevelUp(_ context.Context, _ uuid.UUID, levelUp domain.LevelUp) error {
	c.levelUps = append(c.levelUps, levelUp)
	return nil
}

func (c *captureProducer) PublishTimelineGenerated(_ context.Context, _ uuid.UUID, _ string, _ int) error {
	return nil
}

func (c *captureProducer) Send(_ context.Context, _ string, _ []byte) error { return nil }
func (c *captureProducer) Close() error                                     { return nil }

func newTestEngine() (*Service, *stubPointsRepo, *stubTimelineGetter, *captureProducer) {
	repo := newStubPointsRepo()
	timelines := newStubTimelineGetter()
	producer := &captureProducer{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := New(repo, timelines, producer, log)
	svc.WithClock(func() time.Time { return time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC) })
	return svc, repo, timelines, producer
}

func seedTimeline(t *testing.T, timelines *stubTimelineGetter, actionCount int) uuid.UUID {
	t.Helper()
	tl := &domain.Timeline{
		ID:      uuid.New(),
		OwnerID: "owner",
		Actions: make(domain.ActionSlots, actionCount),
	}
	if err := timelines.Create(context.Background(), tl); err != nil {
		t.Fatalf("seed timeline: %v", err)
	}
	return tl.ID
}

func TestProcessActionCompleted(t *testing.T) {
	svc, repo, timelines, _ := newTestEngine()
	userID := uuid.New()
	timelineID := seedTimeline(t, timelines, 5)

	event := domain.NewActionCompleted(userID, timelineID, 0, svc.Now())
	outcome, err := svc.Process(context.Background(), event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if outcome.PointsAwarded != 10 {
		t.Errorf("awarded = %d, want 10", outcome.PointsAwarded)
	}
	if outcome.LifetimePoints != 10 {
		t.Errorf("lifetime = %d, want 10", outcome.LifetimePoints)
	}
	if outcome.AlreadyRecorded {
		t.Error("first delivery must not be marked as duplicate")
	}
	if repo.states[userID].ActionsCompleted != 1 {
		t.Errorf("actions completed = %d, want 1", repo.states[userID].ActionsCompleted)
	}
}

func TestProcessDuplicateDelivery(t *testing.T) {
	svc, _, timelines, _ := newTestEngine()
	userID := uuid.New()
	timelineID := seedTimeline(t, timelines, 5)
	ctx := context.Background()

	event := domain.NewActionCompleted(userID, timelineID, 2, svc.Now())
	if _, err := svc.Process(ctx, event); err != nil {
		t.Fatalf("first delivery: %v", err)
	}

	outcome, err := svc.Process(ctx, event)
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if !outcome.AlreadyRecorded {
		t.Error("redelivery must be marked as duplicate")
	}
	if outcome.PointsAwarded != 0 {
		t.Errorf("awarded on redelivery = %d, want 0", outcome.PointsAwarded)
	}
	if outcome.LifetimePoints != 10 {
		t.Errorf("lifetime = %d, want 10 (unchanged)", outcome.LifetimePoints)
	}
}

func TestProcessRejectsInvalidEvent(t *testing.T) {
	svc, repo, _, _ := newTestEngine()

	_, err := svc.Process(context.Background(), domain.RewardEvent{
		UserID:     uuid.New(),
		Type:       domain.RewardEventType("jackpot"),
		OccurredAt: svc.Now(),
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if len(repo.entries) != 0 {
		t.Error("no ledger entry expected for invalid event")
	}
}

func TestProcessTimelineFinishedCascade(t *testing.T) {
	svc, _, timelines, _ := newTestEngine()
	userID := uuid.New()
	timelineID := seedTimeline(t, timelines, 2)
	ctx := context.Background()

	first, err := svc.Process(ctx, domain.NewActionCompleted(userID, timelineID, 0, svc.Now()))
	if err != nil {
		t.Fatalf("first action: %v", err)
	}
	if first.PointsAwarded != 10 {
		t.Errorf("first action awarded = %d, want 10 (no finish bonus yet)", first.PointsAwarded)
	}

	last, err := svc.Process(ctx, domain.NewActionCompleted(userID, timelineID, 1, svc.Now()))
	if err != nil {
		t.Fatalf("last action: %v", err)
	}
	if last.PointsAwarded != 60 {
		t.Errorf("last action awarded = %d, want 60 (10 action + 50 finish)", last.PointsAwarded)
	}
	if last.LifetimePoints != 70 {
		t.Errorf("lifetime = %d, want 70", last.LifetimePoints)
	}
}

func TestProcessFinishBonusAwardedOnce(t *testing.T) {
	svc, repo, timelines, _ := newTestEngine()
	userID := uuid.New()
	timelineID := seedTimeline(t, timelines, 1)
	ctx := context.Background()

	// гонка двух последних действий: бонус завершения уже в леджере
	finish := domain.NewTimelineFinished(userID, timelineID, svc.Now())
	repo.entries[finish.DedupeKey()] = domain.PointsLedgerEntry{
		ID:        uuid.New(),
		UserID:    userID,
		EventType: finish.Type,
		Points:    finish.Type.Points(),
		DedupeKey: finish.DedupeKey(),
	}

	outcome, err := svc.Process(ctx, domain.NewActionCompleted(userID, timelineID, 0, svc.Now()))
	if err != nil {
		t.Fatalf("last action: %v", err)
	}
	if outcome.PointsAwarded != 10 {
		t.Errorf("awarded = %d, want 10 (finish bonus already granted)", outcome.PointsAwarded)
	}
}

func TestProcessRejectsOutOfRangeActionIndex(t *testing.T) {
	svc, repo, timelines, _ := newTestEngine()
	userID := uuid.New()
	timelineID := seedTimeline(t, timelines, 2)
	ctx := context.Background()

	// выдуманные индексы не должны чеканить баллы на двухдейственном таймлайне
	for index := 100; index < 110; index++ {
		_, err := svc.Process(ctx, domain.NewActionCompleted(userID, timelineID, index, svc.Now()))
		if err == nil {
			t.Fatalf("index %d accepted on a 2-action timeline", index)
		}
		if !domain.IsBusinessError(err) {
			t.Fatalf("index %d: error type = %T, want business error", index, err)
		}
	}

	if len(repo.entries) != 0 {
		t.Errorf("ledger has %d entries, want 0", len(repo.entries))
	}
	if state, ok := repo.states[userID]; ok && state.LifetimePoints != 0 {
		t.Errorf("lifetime = %d, want 0", state.LifetimePoints)
	}
}

func TestProcessRejectsForeignTimeline(t *testing.T) {
	svc, repo, timelines, _ := newTestEngine()
	owner := uuid.New()
	intruder := uuid.New()
	ctx := context.Background()

	tl := &domain.Timeline{
		ID:        uuid.New(),
		OwnerID:   owner.String(),
		OwnerType: domain.OwnerTypeUser,
		Actions:   make(domain.ActionSlots, 3),
	}
	if err := timelines.Create(ctx, tl); err != nil {
		t.Fatalf("seed timeline: %v", err)
	}

	_, err := svc.Process(ctx, domain.NewActionCompleted(intruder, tl.ID, 0, svc.Now()))
	if err == nil || !domain.IsBusinessError(err) {
		t.Fatalf("error = %v, want business error for foreign timeline", err)
	}
	if len(repo.entries) != 0 {
		t.Error("no ledger entry expected for foreign timeline")
	}

	if _, err := svc.Process(ctx, domain.NewActionCompleted(owner, tl.ID, 0, svc.Now())); err != nil {
		t.Fatalf("owner completing own action: %v", err)
	}
}

func TestProcessDeletedTimelineStillAwardsAction(t *testing.T) {
	svc, _, timelines, _ := newTestEngine()
	userID := uuid.New()
	timelineID := seedTimeline(t, timelines, 1)
	ctx := context.Background()

	if err := timelines.Delete(ctx, timelineID, "owner"); err != nil {
		t.Fatalf("delete timeline: %v", err)
	}

	outcome, err := svc.Process(ctx, domain.NewActionCompleted(userID, timelineID, 0, svc.Now()))
	if err != nil {
		t.Fatalf("action on deleted timeline: %v", err)
	}
	if outcome.PointsAwarded != 10 {
		t.Errorf("awarded = %d, want 10 without finish bonus", outcome.PointsAwarded)
	}
}

func TestProcessLoginStreak(t *testing.T) {
	svc, _, _, _ := newTestEngine()
	userID := uuid.New()
	ctx := context.Background()

	start := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	var last *domain.RewardOutcome
	for i := 0; i < 7; i++ {
		day := start.AddDate(0, 0, i)
		outcome, err := svc.Process(ctx, domain.NewDailyLogin(userID, day.Format("2006-01-02"), day))
		if err != nil {
			t.Fatalf("login day %d: %v", i+1, err)
		}
		last = outcome
	}

	if last.StreakLength != 7 {
		t.Errorf("streak = %d, want 7", last.StreakLength)
	}
	if last.PointsAwarded != 30 {
		t.Errorf("day 7 awarded = %d, want 30 (5 login + 25 streak bonus)", last.PointsAwarded)
	}
	if last.LifetimePoints != 60 {
		t.Errorf("lifetime = %d, want 60 (7x5 + 25)", last.LifetimePoints)
	}
}

func TestProcessSameDayActivityKeepsStreak(t *testing.T) {
	svc, repo, timelines, _ := newTestEngine()
	userID := uuid.New()
	timelineID := seedTimeline(t, timelines, 5)
	ctx := context.Background()

	day := time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)
	dayKey := day.Format("2006-01-02")

	if _, err := svc.Process(ctx, domain.NewDailyLogin(userID, dayKey, day)); err != nil {
		t.Fatalf("login: %v", err)
	}
	outcome, err := svc.Process(ctx, domain.NewAffirmationConfirmed(userID, timelineID, dayKey, day))
	if err != nil {
		t.Fatalf("affirmation: %v", err)
	}

	if outcome.StreakLength != 1 {
		t.Errorf("streak = %d, want 1 (second activity same day)", outcome.StreakLength)
	}
	if outcome.PointsAwarded != 5 {
		t.Errorf("awarded = %d, want 5 (affirmation only, no streak bonus)", outcome.PointsAwarded)
	}
	if repo.states[userID].LastActivityDay != dayKey {
		t.Errorf("last activity day = %s, want %s", repo.states[userID].LastActivityDay, dayKey)
	}
}

func TestProcessStreakResetsAfterGap(t *testing.T) {
	svc, _, _, _ := newTestEngine()
	userID := uuid.New()
	ctx := context.Background()

	days := []string{"2026-04-01", "2026-04-02", "2026-04-03"}
	for _, dayKey := range days {
		day, _ := time.Parse("2006-01-02", dayKey)
		if _, err := svc.Process(ctx, domain.NewDailyLogin(userID, dayKey, day)); err != nil {
			t.Fatalf("login %s: %v", dayKey, err)
		}
	}

	// пропуск 4 апреля рвёт серию
	gap := time.Date(2026, 4, 5, 8, 0, 0, 0, time.UTC)
	outcome, err := svc.Process(ctx, domain.NewDailyLogin(userID, gap.Format("2006-01-02"), gap))
	if err != nil {
		t.Fatalf("login after gap: %v", err)
	}
	if outcome.StreakLength != 1 {
		t.Errorf("streak = %d, want 1 after a missed day", outcome.StreakLength)
	}
}

func TestProcessMilestoneAtTenActions(t *testing.T) {
	svc, _, timelines, _ := newTestEngine()
	userID := uuid.New()
	timelineID := seedTimeline(t, timelines, 50)
	ctx := context.Background()

	var last *domain.RewardOutcome
	for i := 0; i < 10; i++ {
		outcome, err := svc.Process(ctx, domain.NewActionCompleted(userID, timelineID, i, svc.Now()))
		if err != nil {
			t.Fatalf("action %d: %v", i, err)
		}
		last = outcome
	}

	if last.PointsAwarded != 40 {
		t.Errorf("10th action awarded = %d, want 40 (10 action + 30 milestone)", last.PointsAwarded)
	}
	if last.LifetimePoints != 130 {
		t.Errorf("lifetime = %d, want 130 (10x10 + 30)", last.LifetimePoints)
	}
}

func TestProcessLevelUpPublished(t *testing.T) {
	svc, repo, timelines, producer := newTestEngine()
	userID := uuid.New()
	timelineID := seedTimeline(t, timelines, 50)
	ctx := context.Background()

	// 10+10+10: порог 25 пересекается на третьем действии
	var outcome *domain.RewardOutcome
	for i := 0; i < 3; i++ {
		var err error
		outcome, err = svc.Process(ctx, domain.NewActionCompleted(userID, timelineID, i, svc.Now()))
		if err != nil {
			t.Fatalf("action %d: %v", i, err)
		}
	}

	if outcome.LevelUp == nil {
		t.Fatal("expected level up on crossing 25 lifetime points")
	}
	if outcome.LevelUp.PreviousLevel != 1 || outcome.LevelUp.NewLevel != 2 {
		t.Errorf("level up = %+v, want 1 -> 2", outcome.LevelUp)
	}
	if outcome.LevelUp.LevelName != "Orbital Apprentice" {
		t.Errorf("level name = %s, want Orbital Apprentice", outcome.LevelUp.LevelName)
	}

	if len(producer.levelUps) != 1 {
		t.Fatalf("published %d level ups, want 1", len(producer.levelUps))
	}
	if producer.levelUps[0].NewLevel != 2 {
		t.Errorf("published level = %d, want 2", producer.levelUps[0].NewLevel)
	}
	if repo.states[userID].CurrentLevel != 2 {
		t.Errorf("stored level = %d, want 2", repo.states[userID].CurrentLevel)
	}
}

func TestProcessFirstGeneration(t *testing.T) {
	svc, _, _, producer := newTestEngine()
	userID := uuid.New()

	outcome, err := svc.Process(context.Background(), domain.NewFirstGeneration(userID, uuid.New(), svc.Now()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.PointsAwarded != 25 {
		t.Errorf("awarded = %d, want 25", outcome.PointsAwarded)
	}
	// ровно на пороге второго уровня
	if outcome.LevelUp == nil || outcome.LevelUp.NewLevel != 2 {
		t.Fatalf("level up = %+v, want new level 2 at exactly 25 points", outcome.LevelUp)
	}
	if len(producer.levelUps) != 1 {
		t.Errorf("published %d level ups, want 1", len(producer.levelUps))
	}
}

func TestGetStatusProgress(t *testing.T) {
	svc, _, timelines, _ := newTestEngine()
	userID := uuid.New()
	timelineID := seedTimeline(t, timelines, 50)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := svc.Process(ctx, domain.NewActionCompleted(userID, timelineID, i, svc.Now())); err != nil {
			t.Fatalf("action %d: %v", i, err)
		}
	}

	status, err := svc.GetStatus(ctx, userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if status.LifetimePoints != 50 {
		t.Errorf("lifetime = %d, want 50", status.LifetimePoints)
	}
	if status.Level.Level != 2 {
		t.Errorf("level = %d, want 2", status.Level.Level)
	}
	if status.NextLevel == nil || status.NextLevel.Level != 3 {
		t.Fatalf("next level = %+v, want level 3", status.NextLevel)
	}
	// 50 из диапазона 25..75 это ровно половина
	if status.ProgressPercent != 50 {
		t.Errorf("progress = %d%%, want 50%%", status.ProgressPercent)
	}
	if len(status.RecentEntries) != 5 {
		t.Errorf("recent entries = %d, want 5", len(status.RecentEntries))
	}
}
