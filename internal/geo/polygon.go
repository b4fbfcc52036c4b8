package geo

import (
	"math"

	"github.com/shenikar/tourist_safety_system/internal/models"
)

// bbox - быстрый фильтр перед точным судом точка-в-полигоне
type bbox struct {
	minLat, minLon, maxLat, maxLon float64
}

func boundsOf(ring []models.LatLng) bbox {
	b := bbox{minLat: 90, minLon: 180, maxLat: -90, maxLon: -180}
	for _, p := range ring {
		b.minLat = math.Min(b.minLat, p.Latitude)
		b.maxLat = math.Max(b.maxLat, p.Latitude)
		b.minLon = math.Min(b.minLon, p.Longitude)
		b.maxLon = math.Max(b.maxLon, p.Longitude)
	}
	return b
}

func (b bbox) contains(pt models.LatLng) bool {
	return pt.Latitude >= b.minLat && pt.Latitude <= b.maxLat &&
		pt.Longitude >= b.minLon && pt.Longitude <= b.maxLon
}

// pointInRing - судим методом трассировки луча (even-odd).
// Алгоритм чувствителен к численным ошибкам на самой границе,
// поэтому совместно с ним используется DistanceToBoundary.
func pointInRing(pt models.LatLng, ring []models.LatLng) bool {
	n := len(ring)
	if n < 3 {
		return false
	}
	inside := false
	x := pt.Longitude
	y := pt.Latitude
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i].Longitude, ring[i].Latitude
		xj, yj := ring[j].Longitude, ring[j].Latitude
		intersect := ((yi > y) != (yj > y)) && (x < (xj-xi)*(y-yi)/(yj-yi+1e-12)+xi)
		if intersect {
			inside = !inside
		}
	}
	return inside
}

// ringAreaSqMeters - площадь кольца по формуле шнурования на локальной
// эквидистантной проекции. Для зон городского масштаба погрешность мала,
// а нужна площадь только для выбора наиболее специфичной зоны.
func ringAreaSqMeters(ring []models.LatLng) float64 {
	n := len(ring)
	if n < 3 {
		return 0
	}
	refLat := ring[0].Latitude * math.Pi / 180
	mPerDegLat := math.Pi * earthRadiusMeters / 180
	mPerDegLon := mPerDegLat * math.Cos(refLat)

	var sum float64
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi := ring[i].Longitude * mPerDegLon
		yi := ring[i].Latitude * mPerDegLat
		xj := ring[j].Longitude * mPerDegLon
		yj := ring[j].Latitude * mPerDegLat
		sum += xj*yi - xi*yj
	}
	return math.Abs(sum) / 2
}

// distanceToSegmentMeters - расстояние от точки до отрезка границы, в метрах
func distanceToSegmentMeters(pt, a, b models.LatLng) float64 {
	refLat := pt.Latitude * math.Pi / 180
	mPerDegLat := math.Pi * earthRadiusMeters / 180
	mPerDegLon := mPerDegLat * math.Cos(refLat)

	px := pt.Longitude * mPerDegLon
	py := pt.Latitude * mPerDegLat
	ax := a.Longitude * mPerDegLon
	ay := a.Latitude * mPerDegLat
	bx := b.Longitude * mPerDegLon
	by := b.Latitude * mPerDegLat

	dx := bx - ax
	dy := by - ay
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return math.Hypot(px-ax, py-ay)
	}
	t := ((px-ax)*dx + (py-ay)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(px-(ax+t*dx), py-(ay+t*dy))
}

// distanceToBoundaryMeters - минимальное расстояние от точки до границы кольца
func distanceToBoundaryMeters(pt models.LatLng, ring []models.LatLng) float64 {
	n := len(ring)
	if n < 2 {
		return math.Inf(1)
	}
	min := math.Inf(1)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		if d := distanceToSegmentMeters(pt, ring[j], ring[i]); d < min {
			min = d
		}
	}
	return min
}
