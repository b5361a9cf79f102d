package timeline

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"log/slog"

	"github.com/admin/astro-apps/timeline-api/internal/domain"
	"github.com/admin/astro-apps/timeline-api/internal/pkg/retry"
	"github.com/admin/astro-apps/timeline-api/internal/ports/service"
	"github.com/google/uuid"
)

type stubEphemeris struct {
	positions func(instant time.Time) (map[domain.Planet]float64, error)
	calls     int
}

func (s *stubEphemeris) GetLongitudes(_ context.Context, _ []domain.Planet, instant time.Time) (map[domain.Planet]float64, error) {
	s.calls++
	return s.positions(instant)
}

func (s *stubEphemeris) GetLongitude(ctx context.Context, planet domain.Planet, instant time.Time) (float64, error) {
	positions, err := s.GetLongitudes(ctx, nil, instant)
	if err != nil {
		return 0, err
	}
	return positions[planet], nil
}

type stubSynthesizer struct {
	failActions      bool
	failAffirmations bool
	actionCalls      int
}

func (s *stubSynthesizer) SynthesizeAction(_ context.Context, req service.SynthesisRequest) (*service.SynthesisResult, error) {
	s.actionCalls++
	if s.failActions {
		return nil, fmt.Errorf("synthesizer overloaded")
	}
	return &service.SynthesisResult{
		ActionText: fmt.Sprintf("do the thing on %s", req.Date.Format("2006-01-02")),
	}, nil
}

func (s *stubSynthesizer) GenerateAffirmations(_ context.Context, goal string, count int) ([]string, error) {
	if s.failAffirmations {
		return nil, fmt.Errorf("synthesizer overloaded")
	}
	out := make([]string, count)
	for i := range out {
		out[i] = fmt.Sprintf("%s affirmation %d", goal, i)
	}
	return out, nil
}

type stubNatalRepo struct {
	profiles map[uuid.UUID]*domain.NatalProfile
}

func newStubNatalRepo() *stubNatalRepo {
	return &stubNatalRepo{profiles: make(map[uuid.UUID]*domain.NatalProfile)}
}

func (s *stubNatalRepo) Upsert(_ context.Context, profile *domain.NatalProfile) error {
	s.profiles[profile.UserID] = profile
	return nil
}

func (s *stubNatalRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*domain.NatalProfile, error) {
	profile, ok := s.profiles[userID]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	return profile, nil
}

type stubTimelineRepo struct {
	timelines map[uuid.UUID]*domain.Timeline
	createErr error
}

func newStubTimelineRepo() *stubTimelineRepo {
	return &stubTimelineRepo{timelines: make(map[uuid.UUID]*domain.Timeline)}
}

func (s *stubTimelineRepo) Create(_ context.Context, tl *domain.Timeline) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.timelines[tl.ID] = tl
	return nil
}

func (s *stubTimelineRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Timeline, error) {
	tl, ok := s.timelines[id]
	if !ok {
		return nil, domain.ErrTimelineNotFound
	}
	return tl, nil
}

func (s *stubTimelineRepo) ListByOwner(_ context.Context, ownerID string) ([]domain.Timeline, error) {
	var out []domain.Timeline
	for _, tl := range s.timelines {
		if tl.OwnerID == ownerID {
			out = append(out, *tl)
		}
	}
	return out, nil
}

func (s *stubTimelineRepo) CountByOwner(_ context.Context, ownerID string) (int64, error) {
	var count int64
	for _, tl := range s.timelines {
		if tl.OwnerID == ownerID {
			count++
		}
	}
	return count, nil
}

func (s *stubTimelineRepo) Delete(_ context.Context, id uuid.UUID, ownerID string) error {
	tl, ok := s.timelines[id]
	if !ok || tl.OwnerID != ownerID {
		return domain.ErrTimelineNotFound
	}
	delete(s.timelines, id)
	return nil
}

type stubCreditRepo struct {
	balances map[string]*domain.CreditBalance
	// casFailures сколько ближайших UpdateCAS вернут 0 затронутых строк
	casFailures int
	casCalls    int
}

func newStubCreditRepo() *stubCreditRepo {
	return &stubCreditRepo{balances: make(map[string]*domain.CreditBalance)}
}

func (s *stubCreditRepo) Get(_ context.Context, ownerID string) (*domain.CreditBalance, error) {
	balance, ok := s.balances[ownerID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *balance
	return &copied, nil
}

func (s *stubCreditRepo) Insert(_ context.Context, balance *domain.CreditBalance) error {
	if _, ok := s.balances[balance.OwnerID]; ok {
		return fmt.Errorf("duplicate key")
	}
	copied := *balance
	s.balances[balance.OwnerID] = &copied
	return nil
}

func (s *stubCreditRepo) UpdateCAS(_ context.Context, balance *domain.CreditBalance, expectedVersion int64) (int64, error) {
	s.casCalls++
	if s.casFailures > 0 {
		s.casFailures--
		return 0, nil
	}

	current, ok := s.balances[balance.OwnerID]
	if !ok || current.Version != expectedVersion {
		return 0, nil
	}

	copied := *balance
	copied.Version = expectedVersion + 1
	s.balances[balance.OwnerID] = &copied
	return 1, nil
}

func (s *stubCreditRepo) DeleteStaleAnonymous(_ context.Context, before time.Time) (int64, error) {
	var deleted int64
	for owner, balance := range s.balances {
		if balance.OwnerType == domain.OwnerTypeAnonymous && balance.UpdatedAt.Before(before) {
			delete(s.balances, owner)
			deleted++
		}
	}
	return deleted, nil
}

func newTestService(eph *stubEphemeris, synth *stubSynthesizer, natal *stubNatalRepo, timelines *stubTimelineRepo, credits *stubCreditRepo) *Service {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := New(natal, timelines, credits, eph, synth, nil, nil, nil, nil, log)
	svc.RetryPolicy = retry.Policy{MaxAttempts: 1}
	return svc
}
