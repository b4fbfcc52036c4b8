package geo

import (
	"math"

	"github.com/shenikar/tourist_safety_system/internal/models"
)

const earthRadiusMeters = 6371000.0

// HaversineMeters возвращает расстояние по большому кругу между двумя точками, в метрах
func HaversineMeters(a, b models.LatLng) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

// ValidCoordinates проверяет, что точка лежит в допустимых диапазонах WGS84
func ValidCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
