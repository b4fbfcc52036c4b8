package models

import "errors"

// Таксономия ошибок ядра. Каждый отклонённый вызов возвращает типизированную
// ошибку немедленно; молчаливых отказов нет.
var (
	// ErrInvalidLocation - координаты вне [-90,90]/[-180,180]
	ErrInvalidLocation = errors.New("invalid location")
	// ErrUnknownSubject - субъект не найден в каталоге
	ErrUnknownSubject = errors.New("unknown subject")
	// ErrUnknownIncident - инцидент не существует
	ErrUnknownIncident = errors.New("unknown incident")
	// ErrInvalidSignature - подпись реагирующего не прошла проверку
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrAlreadyArrived - обновление позиции после подтверждения прибытия
	ErrAlreadyArrived = errors.New("responder already arrived")
	// ErrAlreadyResolved - операция над уже завершённым инцидентом
	ErrAlreadyResolved = errors.New("incident already resolved")
	// ErrTransportFailure - транспортный коллаборатор сообщил об отказе доставки
	ErrTransportFailure = errors.New("transport failure")
	// ErrChainIntegrity - цепочка верификаций повреждена, доверие к последующим записям утрачено
	ErrChainIntegrity = errors.New("verification chain integrity violation")
)
