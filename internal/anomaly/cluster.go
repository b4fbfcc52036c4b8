package anomaly

import (
	"sync"
	"time"

	"github.com/shenikar/tourist_safety_system/internal/geo"
	"github.com/shenikar/tourist_safety_system/internal/models"
)

// triggerCluster - разделяемый между субъектами индекс недавних ручных тревог.
// Единственное кросс-субъектное состояние детектора; защищён собственным
// мьютексом, область - короткое окно по времени и радиусу, не глобальная блокировка.
type triggerCluster struct {
	mu           sync.Mutex
	radiusMeters float64
	window       time.Duration
	minSubjects  int
	triggers     []models.AreaHazardContributor
	alerted      bool // кластер уже отработал; сбрасывается по опустению окна
}

func newTriggerCluster(radiusMeters float64, window time.Duration, minSubjects int) *triggerCluster {
	return &triggerCluster{
		radiusMeters: radiusMeters,
		window:       window,
		minSubjects:  minSubjects,
	}
}

// add регистрирует тревогу и возвращает участников кластера, если вокруг
// новой тревоги набралось minSubjects различных субъектов в окне.
// Повторная тревога того же субъекта заменяет его предыдущую запись.
func (c *triggerCluster) add(subjectID string, loc models.LatLng, at time.Time) ([]models.AreaHazardContributor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := at.Add(-c.window)
	kept := c.triggers[:0]
	for _, t := range c.triggers {
		if t.RaisedAt.After(cutoff) && t.SubjectID != subjectID {
			kept = append(kept, t)
		}
	}
	c.triggers = kept
	if len(c.triggers) == 0 {
		c.alerted = false
	}
	c.triggers = append(c.triggers, models.AreaHazardContributor{
		SubjectID: subjectID,
		Location:  loc,
		RaisedAt:  at,
	})

	if c.alerted {
		return nil, false
	}

	var contributors []models.AreaHazardContributor
	for _, t := range c.triggers {
		if geo.HaversineMeters(loc, t.Location) <= c.radiusMeters {
			contributors = append(contributors, t)
		}
	}
	if len(contributors) < c.minSubjects {
		return nil, false
	}

	c.alerted = true
	return contributors, true
}
