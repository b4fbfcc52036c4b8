package orchestrator

import (
	"time"

	"github.com/shenikar/tourist_safety_system/internal/config"
	"github.com/shenikar/tourist_safety_system/internal/models"
)

// requiredClasses - детерминированное отображение (источник, вид аномалии,
// серьёзность) в классы реагирующих. Ручная тревога всегда включает личные
// контакты субъекта отдельным классом; любая critical-серьёзность добавляет
// общий полицейский класс; медицински окрашенные аномалии включают скорую.
func requiredClasses(origin models.IncidentOrigin, ev *models.AnomalyEvent) []models.ResponderClass {
	set := make(map[models.ResponderClass]struct{})

	if origin == models.OriginManualPanic {
		set[models.ResponderContacts] = struct{}{}
		set[models.ResponderPolice] = struct{}{}
		set[models.ResponderTouristPolice] = struct{}{}
	}

	if ev != nil {
		switch ev.Kind {
		case models.AnomalyHighSpeed:
			set[models.ResponderPolice] = struct{}{}
		case models.AnomalyInactivity:
			set[models.ResponderAmbulance] = struct{}{}
		case models.AnomalyRepeatedViolation:
			set[models.ResponderTouristPolice] = struct{}{}
		case models.AnomalyAreaHazard:
			set[models.ResponderPolice] = struct{}{}
			set[models.ResponderAmbulance] = struct{}{}
		}
		if ev.Severity == models.SeverityCritical {
			set[models.ResponderPolice] = struct{}{}
		}
	}

	// Стабильный порядок классов для воспроизводимости рассылки
	order := []models.ResponderClass{
		models.ResponderContacts,
		models.ResponderPolice,
		models.ResponderAmbulance,
		models.ResponderTouristPolice,
		models.ResponderGeneral,
	}
	out := make([]models.ResponderClass, 0, len(set))
	for _, c := range order {
		if _, ok := set[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// retryDelay - экспоненциальный бэкофф: base * factor^(attempt-1), с потолком
func retryDelay(cfg *config.Config, attemptNumber int) time.Duration {
	delay := cfg.RetryBaseDelay
	for i := 1; i < attemptNumber; i++ {
		delay *= time.Duration(cfg.RetryFactor)
		if delay >= cfg.RetryMaxDelay {
			return cfg.RetryMaxDelay
		}
	}
	if delay > cfg.RetryMaxDelay {
		return cfg.RetryMaxDelay
	}
	return delay
}
