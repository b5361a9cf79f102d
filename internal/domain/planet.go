package domain

import "math"

// Planet планета из фиксированного набора натальной карты
type Planet string

const (
	PlanetSun     Planet = "Sun"
	PlanetMoon    Planet = "Moon"
	PlanetMercury Planet = "Mercury"
	PlanetVenus   Planet = "Venus"
	PlanetMars    Planet = "Mars"
	PlanetJupiter Planet = "Jupiter"
	PlanetSaturn  Planet = "Saturn"
	PlanetUranus  Planet = "Uranus"
	PlanetNeptune Planet = "Neptune"
	PlanetPluto   Planet = "Pluto"
)

// AllPlanets возвращает все десять планет в каноническом порядке
func AllPlanets() []Planet {
	return []Planet{
		PlanetSun,
		PlanetMoon,
		PlanetMercury,
		PlanetVenus,
		PlanetMars,
		PlanetJupiter,
		PlanetSaturn,
		PlanetUranus,
		PlanetNeptune,
		PlanetPluto,
	}
}

func (p Planet) IsValid() bool {
	switch p {
	case PlanetSun, PlanetMoon, PlanetMercury, PlanetVenus, PlanetMars,
		PlanetJupiter, PlanetSaturn, PlanetUranus, PlanetNeptune, PlanetPluto:
		return true
	}
	return false
}

// AspectType тип аспекта между транзитной и натальной планетой
type AspectType string

const (
	AspectConjunction AspectType = "conjunction"
	AspectSextile     AspectType = "sextile"
	AspectSquare      AspectType = "square"
	AspectTrine       AspectType = "trine"
)

// AspectSpec точный угол аспекта и допустимый орбис
type AspectSpec struct {
	Type  AspectType
	Angle float64
	Orb   float64
}

// AspectSpecs возвращает поддерживаемые аспекты с орбисами
func AspectSpecs() []AspectSpec {
	return []AspectSpec{
		{Type: AspectConjunction, Angle: 0, Orb: 8},
		{Type: AspectSextile, Angle: 60, Orb: 6},
		{Type: AspectSquare, Angle: 90, Orb: 8},
		{Type: AspectTrine, Angle: 120, Orb: 8},
	}
}

// AngularSeparation абсолютная круговая разница двух эклиптических долгот,
// нормализованная в [0, 180]
func AngularSeparation(a, b float64) float64 {
	diff := math.Mod(math.Abs(a-b), 360)
	if diff > 180 {
		diff = 360 - diff
	}
	return diff
}

// NormalizeLongitude приводит долготу к диапазону [0, 360)
func NormalizeLongitude(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}
