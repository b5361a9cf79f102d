package timeline

import (
	"sort"
	"time"

	"github.com/admin/astro-apps/timeline-api/internal/domain"
)

// dateCandidate лучший транзит дня с его итоговым скором
type dateCandidate struct {
	event domain.TransitEvent
	score float64
}

// rankAndSelect выбирает целевое число благоприятных дат из результатов
// сканирования. Скор даты = точность лучшего транзита + вес типа аспекта,
// меньше = благоприятнее. Отбор жадный с минимальным интервалом между
// датами, чтобы действия не сбивались в кучу в начале окна; если дат
// не хватило, интервал один раз ослабляется вдвое.
func (s *Service) rankAndSelect(events []domain.TransitEvent, start, end time.Time, target int) ([]domain.TransitEvent, *domain.DegenerateTimelineWarning) {
	if target <= 0 || len(events) == 0 {
		if target > 0 {
			return nil, &domain.DegenerateTimelineWarning{Requested: target, Selected: 0}
		}
		return nil, nil
	}

	weights := s.Cfg.AspectWeights()

	// один кандидат на дату: лучший (минимальный) скор среди транзитов дня
	bestByDay := make(map[string]dateCandidate)
	for _, e := range events {
		score := e.Exactness + weights[e.Aspect]
		key := e.Date.Format("2006-01-02")
		if cur, ok := bestByDay[key]; !ok || score < cur.score {
			bestByDay[key] = dateCandidate{event: e, score: score}
		}
	}

	candidates := make([]dateCandidate, 0, len(bestByDay))
	for _, c := range bestByDay {
		candidates = append(candidates, c)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score < candidates[j].score
		}
		return candidates[i].event.Date.Before(candidates[j].event.Date)
	})

	totalDays := int(end.Sub(start).Hours()/24) + 1
	spacing := totalDays * 2 / (target * 3)
	if spacing < 1 {
		spacing = 1
	}

	selected := greedyPick(candidates, target, spacing)
	if len(selected) < target && spacing > 1 {
		selected = greedyPick(candidates, target, spacing/2)
	}

	sort.Slice(selected, func(i, j int) bool {
		return selected[i].Date.Before(selected[j].Date)
	})

	if len(selected) < target {
		return selected, &domain.DegenerateTimelineWarning{Requested: target, Selected: len(selected)}
	}
	return selected, nil
}

// greedyPick набирает даты в порядке убывания благоприятности, пропуская те,
// что ближе spacing дней к уже выбранной
func greedyPick(candidates []dateCandidate, target, spacing int) []domain.TransitEvent {
	var picked []domain.TransitEvent
	for _, c := range candidates {
		if len(picked) == target {
			break
		}
		tooClose := false
		for _, p := range picked {
			gap := c.event.Date.Sub(p.Date).Hours() / 24
			if gap < 0 {
				gap = -gap
			}
			if int(gap) < spacing {
				tooClose = true
				break
			}
		}
		if !tooClose {
			picked = append(picked, c.event)
		}
	}
	return picked
}
