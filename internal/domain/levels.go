package domain

// AchievementLevel уровень достижений с порогом по пожизненным баллам
type AchievementLevel struct {
	Level           int    `json:"level"`
	Name            string `json:"name"`
	PointsThreshold int    `json:"points_threshold"`
}

// achievementLevels статическая таблица из 12 уровней,
// пороги строго возрастают, уровень 1 всегда с порога 0
var achievementLevels = []AchievementLevel{
	{Level: 1, Name: "Stargazer", PointsThreshold: 0},
	{Level: 2, Name: "Orbital Apprentice", PointsThreshold: 25},
	{Level: 3, Name: "Lunar Adept", PointsThreshold: 75},
	{Level: 4, Name: "Solar Navigator", PointsThreshold: 150},
	{Level: 5, Name: "Transit Tracker", PointsThreshold: 300},
	{Level: 6, Name: "Aspect Weaver", PointsThreshold: 500},
	{Level: 7, Name: "Retrograde Tamer", PointsThreshold: 800},
	{Level: 8, Name: "Zodiac Strategist", PointsThreshold: 1200},
	{Level: 9, Name: "Celestial Architect", PointsThreshold: 1800},
	{Level: 10, Name: "Ecliptic Master", PointsThreshold: 2600},
	{Level: 11, Name: "Galactic Sage", PointsThreshold: 3600},
	{Level: 12, Name: "Cosmic Luminary", PointsThreshold: 5000},
}

// AchievementLevels возвращает копию таблицы уровней
func AchievementLevels() []AchievementLevel {
	out := make([]AchievementLevel, len(achievementLevels))
	copy(out, achievementLevels)
	return out
}

// LevelForPoints высший уровень, порог которого не превышает lifetimePoints
func LevelForPoints(lifetimePoints int) AchievementLevel {
	current := achievementLevels[0]
	for _, lvl := range achievementLevels {
		if lvl.PointsThreshold <= lifetimePoints {
			current = lvl
		}
	}
	return current
}

// LevelByNumber уровень по номеру; ok=false, если такого уровня нет
func LevelByNumber(level int) (AchievementLevel, bool) {
	for _, lvl := range achievementLevels {
		if lvl.Level == level {
			return lvl, true
		}
	}
	return AchievementLevel{}, false
}

// ProgressPercent процент прогресса от текущего уровня к следующему.
// На максимальном уровне всегда 100.
func ProgressPercent(lifetimePoints int) int {
	current := LevelForPoints(lifetimePoints)
	next, ok := LevelByNumber(current.Level + 1)
	if !ok {
		return 100
	}

	span := next.PointsThreshold - current.PointsThreshold
	if span <= 0 {
		return 100
	}

	progress := (lifetimePoints - current.PointsThreshold) * 100 / span
	if progress > 100 {
		progress = 100
	}
	return progress
}
