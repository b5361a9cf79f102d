package timeline

import (
	"testing"
	"time"

	"github.com/admin/astro-apps/timeline-api/internal/domain"
)

func eventOn(day time.Time, aspect domain.AspectType, exactness float64) domain.TransitEvent {
	return domain.TransitEvent{
		Date:       day,
		Transiting: domain.PlanetMars,
		Natal:      domain.PlanetSun,
		Aspect:     aspect,
		Exactness:  exactness,
	}
}

func TestRankAndSelectPrefersFavorable(t *testing.T) {
	svc := newTestService(&stubEphemeris{}, &stubSynthesizer{}, newStubNatalRepo(), newStubTimelineRepo(), newStubCreditRepo())

	start := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 29)

	// trine с нулевой точностью благоприятнее square с той же точностью
	events := []domain.TransitEvent{
		eventOn(start.AddDate(0, 0, 5), domain.AspectSquare, 0),
		eventOn(start.AddDate(0, 0, 20), domain.AspectTrine, 0),
	}

	selected, warning := svc.rankAndSelect(events, start, end, 1)
	if warning != nil {
		t.Fatalf("unexpected warning: %+v", warning)
	}
	if len(selected) != 1 {
		t.Fatalf("got %d selected, want 1", len(selected))
	}
	if selected[0].Aspect != domain.AspectTrine {
		t.Errorf("selected %s, want trine", selected[0].Aspect)
	}
}

func TestRankAndSelectOneCandidatePerDay(t *testing.T) {
	svc := newTestService(&stubEphemeris{}, &stubSynthesizer{}, newStubNatalRepo(), newStubTimelineRepo(), newStubCreditRepo())

	start := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 9)
	day := start.AddDate(0, 0, 3)

	// три транзита в один день дают одну дату в выдаче
	events := []domain.TransitEvent{
		eventOn(day, domain.AspectSquare, 1),
		eventOn(day, domain.AspectTrine, 0.5),
		eventOn(day, domain.AspectConjunction, 4),
	}

	selected, warning := svc.rankAndSelect(events, start, end, 3)
	if len(selected) != 1 {
		t.Fatalf("got %d selected dates, want 1", len(selected))
	}
	if warning == nil || warning.Requested != 3 || warning.Selected != 1 {
		t.Fatalf("warning = %+v, want requested 3 selected 1", warning)
	}
}

func TestRankAndSelectSpacing(t *testing.T) {
	svc := newTestService(&stubEphemeris{}, &stubSynthesizer{}, newStubNatalRepo(), newStubTimelineRepo(), newStubCreditRepo())

	start := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 29) // 30 дней, target 2 -> spacing 10

	// лучшие даты соседние, но отбор должен разнести их по окну
	events := []domain.TransitEvent{
		eventOn(start.AddDate(0, 0, 10), domain.AspectTrine, 0),
		eventOn(start.AddDate(0, 0, 11), domain.AspectTrine, 0.1),
		eventOn(start.AddDate(0, 0, 25), domain.AspectTrine, 3),
	}

	selected, warning := svc.rankAndSelect(events, start, end, 2)
	if warning != nil {
		t.Fatalf("unexpected warning: %+v", warning)
	}
	if len(selected) != 2 {
		t.Fatalf("got %d selected, want 2", len(selected))
	}

	gap := selected[1].Date.Sub(selected[0].Date).Hours() / 24
	if gap < 10 {
		t.Errorf("selected dates %v and %v are %v days apart, want >= 10",
			selected[0].Date.Format("2006-01-02"),
			selected[1].Date.Format("2006-01-02"), gap)
	}
}

func TestRankAndSelectRelaxesSpacingOnce(t *testing.T) {
	svc := newTestService(&stubEphemeris{}, &stubSynthesizer{}, newStubNatalRepo(), newStubTimelineRepo(), newStubCreditRepo())

	start := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 29)

	// все кандидаты в первой неделе: полный интервал набрать 3 даты не даст,
	// ослабленный вдвое должен
	events := []domain.TransitEvent{
		eventOn(start, domain.AspectTrine, 0),
		eventOn(start.AddDate(0, 0, 5), domain.AspectTrine, 1),
		eventOn(start.AddDate(0, 0, 10), domain.AspectTrine, 2),
	}

	selected, warning := svc.rankAndSelect(events, start, end, 3)
	if len(selected) != 3 {
		t.Fatalf("got %d selected, want 3 after relaxed spacing (warning %+v)", len(selected), warning)
	}
	if warning != nil {
		t.Fatalf("unexpected warning: %+v", warning)
	}
}

func TestRankAndSelectChronologicalOutput(t *testing.T) {
	svc := newTestService(&stubEphemeris{}, &stubSynthesizer{}, newStubNatalRepo(), newStubTimelineRepo(), newStubCreditRepo())

	start := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 29)

	events := []domain.TransitEvent{
		eventOn(start.AddDate(0, 0, 25), domain.AspectTrine, 0),
		eventOn(start.AddDate(0, 0, 2), domain.AspectSquare, 5),
	}

	selected, _ := svc.rankAndSelect(events, start, end, 2)
	if len(selected) != 2 {
		t.Fatalf("got %d selected, want 2", len(selected))
	}
	if !selected[0].Date.Before(selected[1].Date) {
		t.Error("selected dates must be chronological regardless of score order")
	}
}

func TestRankAndSelectEmptyScan(t *testing.T) {
	svc := newTestService(&stubEphemeris{}, &stubSynthesizer{}, newStubNatalRepo(), newStubTimelineRepo(), newStubCreditRepo())

	start := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	selected, warning := svc.rankAndSelect(nil, start, start.AddDate(0, 0, 29), 4)
	if len(selected) != 0 {
		t.Fatalf("got %d selected from empty scan", len(selected))
	}
	if warning == nil || warning.Selected != 0 || warning.Requested != 4 {
		t.Fatalf("warning = %+v, want requested 4 selected 0", warning)
	}
}
