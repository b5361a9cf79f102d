package timeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/admin/astro-apps/timeline-api/internal/domain"
	"github.com/google/uuid"
)

// scanFriendlyPositions Марс медленно идёт по кругу: в месячном окне
// хватает дат под все аспекты к натальному Солнцу в 0
func scanFriendlyPositions(instant time.Time) (map[domain.Planet]float64, error) {
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	days := instant.Sub(base).Hours() / 24
	return map[domain.Planet]float64{
		domain.PlanetSun:  domain.NormalizeLongitude(days),
		domain.PlanetMars: domain.NormalizeLongitude(days * 4),
	}, nil
}

func anonymousRequest() GenerateRequest {
	return GenerateRequest{
		OwnerID:         "fp-abc123",
		OwnerType:       domain.OwnerTypeAnonymous,
		Tier:            domain.TierAnonymous,
		OutcomeGoal:     "switch careers",
		Context:         "ten years in accounting",
		Approach:        "steady",
		TimeframeMonths: 1,
		Birth: &domain.BirthData{
			Date:      "1991-02-03",
			Time:      "04:05",
			Timezone:  "UTC",
			Latitude:  40.7,
			Longitude: -74.0,
		},
	}
}

func newAssemblerFixture() (*Service, *stubTimelineRepo, *stubCreditRepo, *stubSynthesizer) {
	eph := &stubEphemeris{positions: scanFriendlyPositions}
	synth := &stubSynthesizer{}
	timelines := newStubTimelineRepo()
	credits := newStubCreditRepo()
	svc := newTestService(eph, synth, newStubNatalRepo(), timelines, credits)
	svc.WithClock(func() time.Time { return time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC) })
	return svc, timelines, credits, synth
}

func TestGenerateAnonymousHappyPath(t *testing.T) {
	svc, timelines, credits, _ := newAssemblerFixture()

	result, err := svc.Generate(context.Background(), anonymousRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tl := result.Timeline
	if tl == nil {
		t.Fatal("no timeline in result")
	}
	if len(timelines.timelines) != 1 {
		t.Fatalf("stored %d timelines, want 1", len(timelines.timelines))
	}
	if tl.CreditsUsed != 1 {
		t.Errorf("credits used = %d, want 1", tl.CreditsUsed)
	}
	if credits.balances["fp-abc123"].Remaining != 0 {
		t.Errorf("anonymous remaining = %d, want 0", credits.balances["fp-abc123"].Remaining)
	}

	wantActions := 4 // месяц по четыре действия
	if len(tl.Actions) != wantActions && result.Warning == nil {
		t.Errorf("actions = %d without warning, want %d", len(tl.Actions), wantActions)
	}
	for i := 1; i < len(tl.Actions); i++ {
		if !tl.Actions[i-1].Date.Before(tl.Actions[i].Date) {
			t.Error("actions must be chronological")
		}
	}
	for _, a := range tl.Actions {
		if a.ActionText == "" || a.TransitSummary == "" {
			t.Errorf("incomplete action slot: %+v", a)
		}
	}
	if len(tl.Affirmations) == 0 || len(tl.Affirmations) > domain.MaxStoredAffirmations {
		t.Errorf("affirmations = %d, want 1..%d", len(tl.Affirmations), domain.MaxStoredAffirmations)
	}
}

func TestGenerateSecondAnonymousRunsOutOfCredits(t *testing.T) {
	svc, _, _, _ := newAssemblerFixture()
	ctx := context.Background()

	if _, err := svc.Generate(ctx, anonymousRequest()); err != nil {
		t.Fatalf("first generation: %v", err)
	}

	_, err := svc.Generate(ctx, anonymousRequest())
	var insufficient *domain.InsufficientCreditsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("error type = %T, want *InsufficientCreditsError", err)
	}
}

func TestGenerateSynthesisFailureRefundsCredit(t *testing.T) {
	svc, timelines, credits, synth := newAssemblerFixture()
	synth.failActions = true

	_, err := svc.Generate(context.Background(), anonymousRequest())
	var synthErr *domain.ActionSynthesisFailedError
	if !errors.As(err, &synthErr) {
		t.Fatalf("error type = %T, want *ActionSynthesisFailedError", err)
	}

	if len(timelines.timelines) != 0 {
		t.Error("no timeline must be stored on synthesis failure")
	}
	if credits.balances["fp-abc123"].Remaining != 1 {
		t.Errorf("remaining = %d, want 1 (debit compensated)", credits.balances["fp-abc123"].Remaining)
	}
}

func TestGenerateValidationBeforeDebit(t *testing.T) {
	svc, _, credits, _ := newAssemblerFixture()

	req := anonymousRequest()
	req.Birth.Date = "not a date"

	_, err := svc.Generate(context.Background(), req)
	var invalid *domain.InvalidBirthDataError
	if !errors.As(err, &invalid) {
		t.Fatalf("error type = %T, want *InvalidBirthDataError", err)
	}
	if len(credits.balances) != 0 {
		t.Error("no credit must be touched before validation passes")
	}
	if credits.casCalls != 0 {
		t.Error("no debit attempt expected on invalid input")
	}
}

func TestGenerateTimeframeDeniedBeforeDebit(t *testing.T) {
	svc, _, credits, _ := newAssemblerFixture()

	req := anonymousRequest()
	req.TimeframeMonths = 12

	_, err := svc.Generate(context.Background(), req)
	var notAllowed *domain.TimeframeNotAllowedError
	if !errors.As(err, &notAllowed) {
		t.Fatalf("error type = %T, want *TimeframeNotAllowedError", err)
	}
	if len(credits.balances) != 0 {
		t.Error("no credit must be touched when timeframe is denied")
	}
}

func TestGenerateUserReusesStoredProfile(t *testing.T) {
	svc, timelines, _, _ := newAssemblerFixture()
	ctx := context.Background()

	userID := uuid.New()
	profile, err := svc.ResolveProfile(ctx, userID, *anonymousRequest().Birth)
	if err != nil {
		t.Fatalf("resolve profile: %v", err)
	}
	if len(profile.PlanetLongitudes) == 0 {
		t.Fatal("profile has no positions")
	}

	req := anonymousRequest()
	req.OwnerID = userID.String()
	req.OwnerType = domain.OwnerTypeUser
	req.UserID = userID
	req.Tier = domain.TierFree
	req.Birth = nil // профиль уже сохранён

	result, err := svc.Generate(ctx, req)
	if err != nil {
		t.Fatalf("generate with stored profile: %v", err)
	}
	if result.Timeline.OwnerType != domain.OwnerTypeUser {
		t.Errorf("owner type = %s, want user", result.Timeline.OwnerType)
	}
	if len(timelines.timelines) != 1 {
		t.Fatalf("stored %d timelines, want 1", len(timelines.timelines))
	}
}

func TestGenerateExhaustedCreditsSkipOracle(t *testing.T) {
	svc, _, credits, _ := newAssemblerFixture()
	ctx := context.Background()

	credits.balances["fp-abc123"] = &domain.CreditBalance{
		OwnerID:   "fp-abc123",
		OwnerType: domain.OwnerTypeAnonymous,
		Tier:      domain.TierAnonymous,
		Remaining: 0,
		PeriodKey: "2026-04",
		Version:   1,
	}

	_, err := svc.Generate(ctx, anonymousRequest())
	var insufficient *domain.InsufficientCreditsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("error type = %T, want *InsufficientCreditsError", err)
	}
	if svc.Ephemeris.(*stubEphemeris).calls != 0 {
		t.Error("oracle must not be called for a credit-exhausted request")
	}
}

func TestGenerateMissingProfileRefunds(t *testing.T) {
	svc, _, credits, _ := newAssemblerFixture()
	ctx := context.Background()

	req := anonymousRequest()
	req.OwnerID = uuid.New().String()
	req.OwnerType = domain.OwnerTypeUser
	req.UserID = uuid.New()
	req.Tier = domain.TierFree
	req.Birth = nil // профиль никогда не сохранялся

	_, err := svc.Generate(ctx, req)
	if !errors.Is(err, domain.ErrProfileNotFound) {
		t.Fatalf("error = %v, want ErrProfileNotFound", err)
	}
	if credits.balances[req.OwnerID].Remaining != 3 {
		t.Errorf("remaining = %d, want 3 (debit compensated)", credits.balances[req.OwnerID].Remaining)
	}
}

func TestGenerateEphemerisFailureRefunds(t *testing.T) {
	eph := &stubEphemeris{}
	synth := &stubSynthesizer{}
	timelines := newStubTimelineRepo()
	credits := newStubCreditRepo()
	svc := newTestService(eph, synth, newStubNatalRepo(), timelines, credits)
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return now })

	// натальный расчёт (прошлое) работает, сканирование (будущее) падает
	eph.positions = func(instant time.Time) (map[domain.Planet]float64, error) {
		if instant.After(now) {
			return nil, errors.New("oracle down")
		}
		return map[domain.Planet]float64{domain.PlanetSun: 0}, nil
	}

	_, err := svc.Generate(context.Background(), anonymousRequest())
	var unavailable *domain.EphemerisUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("error type = %T, want *EphemerisUnavailableError", err)
	}

	if credits.balances["fp-abc123"].Remaining != 1 {
		t.Errorf("remaining = %d, want 1 (debit compensated)", credits.balances["fp-abc123"].Remaining)
	}
	if len(timelines.timelines) != 0 {
		t.Error("no timeline must be stored on scan failure")
	}
}

func TestDailyAffirmationUsesClock(t *testing.T) {
	svc, _, _, _ := newAssemblerFixture()
	ctx := context.Background()

	result, err := svc.Generate(ctx, anonymousRequest())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	first, err := svc.DailyAffirmation(ctx, result.Timeline.ID, "fp-abc123")
	if err != nil {
		t.Fatalf("daily affirmation: %v", err)
	}

	svc.WithClock(func() time.Time { return time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC) })
	second, err := svc.DailyAffirmation(ctx, result.Timeline.ID, "fp-abc123")
	if err != nil {
		t.Fatalf("daily affirmation next day: %v", err)
	}

	if len(result.Timeline.Affirmations) > 1 && first == second {
		t.Error("affirmation must rotate day to day")
	}
}
