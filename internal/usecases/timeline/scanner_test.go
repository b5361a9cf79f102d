package timeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/admin/astro-apps/timeline-api/internal/domain"
)

// marsByDay транзитный Марс по дням сканирования, остальные планеты
// стоят вне любых орбисов
func marsByDay(longitudes map[string]float64) func(time.Time) (map[domain.Planet]float64, error) {
	return func(instant time.Time) (map[domain.Planet]float64, error) {
		key := instant.Format("2006-01-02")
		lon, ok := longitudes[key]
		if !ok {
			lon = 40 // вне орбисов от натального Солнца в 0
		}
		return map[domain.Planet]float64{domain.PlanetMars: lon}, nil
	}
}

func TestScanTransitsDetectsAspects(t *testing.T) {
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 4)

	eph := &stubEphemeris{positions: marsByDay(map[string]float64{
		"2026-04-01": 3,   // conjunction, exactness 3
		"2026-04-02": 40,  // вне аспектов
		"2026-04-03": 88,  // square, exactness 2
		"2026-04-04": 120, // trine, exactness 0
		"2026-04-05": 64,  // sextile, exactness 4
	})}

	svc := newTestService(eph, &stubSynthesizer{}, newStubNatalRepo(), newStubTimelineRepo(), newStubCreditRepo())
	natal := domain.PlanetLongitudes{domain.PlanetSun: 0}

	events, err := svc.scanTransits(context.Background(), natal, start, end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []struct {
		day       string
		aspect    domain.AspectType
		exactness float64
	}{
		{day: "2026-04-01", aspect: domain.AspectConjunction, exactness: 3},
		{day: "2026-04-03", aspect: domain.AspectSquare, exactness: 2},
		{day: "2026-04-04", aspect: domain.AspectTrine, exactness: 0},
		{day: "2026-04-05", aspect: domain.AspectSextile, exactness: 4},
	}

	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(events), len(want), events)
	}
	for i, w := range want {
		e := events[i]
		if e.Date.Format("2006-01-02") != w.day || e.Aspect != w.aspect {
			t.Errorf("event %d = %s %s, want %s %s", i, e.Date.Format("2006-01-02"), e.Aspect, w.day, w.aspect)
		}
		if e.Exactness != w.exactness {
			t.Errorf("event %d exactness = %v, want %v", i, e.Exactness, w.exactness)
		}
		if e.Transiting != domain.PlanetMars || e.Natal != domain.PlanetSun {
			t.Errorf("event %d pair = %s/%s, want Mars/Sun", i, e.Transiting, e.Natal)
		}
	}
}

func TestScanTransitsOrbBoundary(t *testing.T) {
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	eph := &stubEphemeris{positions: marsByDay(map[string]float64{
		"2026-04-01": 8,   // ровно на границе орбиса соединения
		"2026-04-02": 8.5, // за границей
	})}

	svc := newTestService(eph, &stubSynthesizer{}, newStubNatalRepo(), newStubTimelineRepo(), newStubCreditRepo())
	natal := domain.PlanetLongitudes{domain.PlanetSun: 0}

	events, err := svc.scanTransits(context.Background(), natal, start, start.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(events) != 1 {
		t.Fatalf("got %d events, want exactly the boundary match: %+v", len(events), events)
	}
	if events[0].Exactness != 8 {
		t.Errorf("boundary exactness = %v, want 8", events[0].Exactness)
	}
}

func TestScanTransitsEphemerisFailure(t *testing.T) {
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	eph := &stubEphemeris{positions: func(time.Time) (map[domain.Planet]float64, error) {
		return nil, fmt.Errorf("oracle down")
	}}

	svc := newTestService(eph, &stubSynthesizer{}, newStubNatalRepo(), newStubTimelineRepo(), newStubCreditRepo())
	natal := domain.PlanetLongitudes{domain.PlanetSun: 0}

	_, err := svc.scanTransits(context.Background(), natal, start, start.AddDate(0, 0, 2))
	if err == nil {
		t.Fatal("expected error")
	}

	var unavailable *domain.EphemerisUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("error type = %T, want *EphemerisUnavailableError", err)
	}
}

func TestScanTransitsOrdersByExactnessWithinDay(t *testing.T) {
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	// Марс в 3: соединение с натальным Солнцем (отклонение 3) и с натальным
	// Меркурием (отклонение 1); канонический порядок планет дал бы обратный
	eph := &stubEphemeris{positions: marsByDay(map[string]float64{
		"2026-04-01": 3,
	})}

	svc := newTestService(eph, &stubSynthesizer{}, newStubNatalRepo(), newStubTimelineRepo(), newStubCreditRepo())
	natal := domain.PlanetLongitudes{domain.PlanetSun: 0, domain.PlanetMercury: 4}

	events, err := svc.scanTransits(context.Background(), natal, start, start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(events), events)
	}
	if events[0].Exactness != 1 || events[1].Exactness != 3 {
		t.Errorf("same-day order = %v, %v, want exactness ascending 1, 3",
			events[0].Exactness, events[1].Exactness)
	}
}

func TestScanTransitsWraparound(t *testing.T) {
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	// натальное Солнце в 355: Марс в 3 это соединение через ноль
	eph := &stubEphemeris{positions: marsByDay(map[string]float64{
		"2026-04-01": 3,
	})}

	svc := newTestService(eph, &stubSynthesizer{}, newStubNatalRepo(), newStubTimelineRepo(), newStubCreditRepo())
	natal := domain.PlanetLongitudes{domain.PlanetSun: 355}

	events, err := svc.scanTransits(context.Background(), natal, start, start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Aspect != domain.AspectConjunction {
		t.Fatalf("expected a wraparound conjunction, got %+v", events)
	}
	if events[0].Exactness != 8 {
		t.Errorf("exactness = %v, want 8", events[0].Exactness)
	}
}
