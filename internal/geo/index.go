package geo

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shenikar/tourist_safety_system/internal/models"
	"github.com/sirupsen/logrus"
)

// ZoneSource - источник снапшота зон (админская таблица, read-only для ядра)
type ZoneSource interface {
	ListZones(ctx context.Context) ([]*models.Zone, error)
}

// Match - результат запроса к индексу для одной точки
type Match struct {
	Zone *models.Zone
	// BoundaryDistance - расстояние от точки до границы зоны, метры.
	// Нужен эвалюатору для гистерезиса при большом accuracy_radius.
	BoundaryDistance float64
}

type indexedZone struct {
	zone   *models.Zone
	bounds bbox
	area   float64
}

// Index - in-memory индекс полигонов зон с запросами точка-в-полигоне.
// Снапшот заменяется целиком на Refresh, чтение идёт под RLock.
type Index struct {
	mu     sync.RWMutex
	zones  []indexedZone
	source ZoneSource
	logger *logrus.Logger
}

func NewIndex(source ZoneSource, logger *logrus.Logger) *Index {
	return &Index{
		source: source,
		logger: logger,
	}
}

// Refresh перечитывает снапшот зон из источника и атомарно заменяет индекс
func (idx *Index) Refresh(ctx context.Context) error {
	zones, err := idx.source.ListZones(ctx)
	if err != nil {
		return fmt.Errorf("failed to load zone snapshot: %w", err)
	}

	indexed := make([]indexedZone, 0, len(zones))
	for _, z := range zones {
		if len(z.Polygon) < 3 {
			idx.logger.WithField("zone_id", z.ID).Warn("Skipping zone with degenerate polygon")
			continue
		}
		indexed = append(indexed, indexedZone{
			zone:   z,
			bounds: boundsOf(z.Polygon),
			area:   ringAreaSqMeters(z.Polygon),
		})
	}

	idx.mu.Lock()
	idx.zones = indexed
	idx.mu.Unlock()

	idx.logger.WithField("zones", len(indexed)).Info("Zone index refreshed")
	return nil
}

// Locate возвращает наилучшее совпадение для точки или nil, если точка
// вне всех зон. При пересечении зон restricted приоритетнее safe
// (отказобезопасность в сторону осторожности), при равенстве типов
// побеждает зона с наименьшей площадью (наиболее специфичная).
func (idx *Index) Locate(pt models.LatLng) *Match {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var best *indexedZone
	for i := range idx.zones {
		z := &idx.zones[i]
		if !z.bounds.contains(pt) {
			continue
		}
		if !pointInRing(pt, z.zone.Polygon) {
			continue
		}
		if best == nil || zoneLess(z, best) {
			best = z
		}
	}
	if best == nil {
		return nil
	}
	return &Match{
		Zone:             best.zone,
		BoundaryDistance: distanceToBoundaryMeters(pt, best.zone.Polygon),
	}
}

// zoneLess сообщает, что кандидат a предпочтительнее текущего лидера b
func zoneLess(a, b *indexedZone) bool {
	if a.zone.Type != b.zone.Type {
		return a.zone.Type == models.ZoneRestricted
	}
	return a.area < b.area
}

// DistanceToZone возвращает расстояние от точки до границы зоны, в метрах.
// Второе значение false, если зоны нет в текущем снапшоте.
func (idx *Index) DistanceToZone(id uuid.UUID, pt models.LatLng) (float64, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	for i := range idx.zones {
		if idx.zones[i].zone.ID == id {
			return distanceToBoundaryMeters(pt, idx.zones[i].zone.Polygon), true
		}
	}
	return 0, false
}

// Snapshot возвращает копию списка зон текущего снапшота
func (idx *Index) Snapshot() []*models.Zone {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]*models.Zone, len(idx.zones))
	for i := range idx.zones {
		out[i] = idx.zones[i].zone
	}
	return out
}
