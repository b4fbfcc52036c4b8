package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/tourist_safety_system/internal/metrics"
	"github.com/shenikar/tourist_safety_system/internal/models"
	"github.com/sirupsen/logrus"
)

// GenesisHash - фиксированный prior_hash первой записи цепочки реагирующего
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Store - append-only хранилище записей верификации. Записи никогда не
// мутируются и не удаляются.
type Store interface {
	LastRecord(ctx context.Context, responderID string) (*models.VerificationRecord, error)
	Append(ctx context.Context, rec *models.VerificationRecord) error
	ListChain(ctx context.Context, responderID string) ([]*models.VerificationRecord, error)
}

// SignatureVerifier - внешний коллаборатор проверки подписи реагирующего
type SignatureVerifier interface {
	ValidateSignature(responderID string, signature, payload []byte) bool
}

// IncidentChecker проверяет существование инцидента перед верификацией
type IncidentChecker interface {
	IncidentExists(ctx context.Context, id uuid.UUID) bool
}

// Service - леджер верификации личности реагирующих: локально проверяемая
// хэш-цепочка, один писатель на цепочку. Это защита от случайной порчи и
// доказуемый аудиторский след, не распределённый консенсус.
type Service struct {
	store    Store
	verifier SignatureVerifier
	checker  IncidentChecker
	logger   *logrus.Logger
}

func NewService(store Store, verifier SignatureVerifier, checker IncidentChecker, logger *logrus.Logger) *Service {
	return &Service{
		store:    store,
		verifier: verifier,
		checker:  checker,
		logger:   logger,
	}
}

// recordHash = H(prior_hash ‖ incident_id ‖ responder_id ‖ verified_at)
func recordHash(prior string, incidentID uuid.UUID, responderID string, verifiedAt time.Time) string {
	h := sha256.New()
	h.Write([]byte(prior))
	h.Write([]byte(incidentID.String()))
	h.Write([]byte(responderID))
	h.Write([]byte(verifiedAt.UTC().Format(time.RFC3339Nano)))
	return hex.EncodeToString(h.Sum(nil))
}

// VerificationPayload - данные, которые реагирующий подписывает своим ключом
func VerificationPayload(incidentID uuid.UUID, responderID string) []byte {
	return []byte(incidentID.String() + ":" + responderID)
}

// Verify аутентифицирует доступ реагирующего к инциденту и дописывает запись
// в его цепочку. Отказ подписи или неизвестный инцидент ничего не дописывают.
func (s *Service) Verify(ctx context.Context, incidentID uuid.UUID, responderID string, signature []byte) (*models.VerificationRecord, error) {
	log := s.logger.WithFields(logrus.Fields{
		"incident_id":  incidentID,
		"responder_id": responderID,
	})

	if !s.checker.IncidentExists(ctx, incidentID) {
		metrics.LedgerVerificationsTotal.WithLabelValues("unknown_incident").Inc()
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownIncident, incidentID)
	}

	if !s.verifier.ValidateSignature(responderID, signature, VerificationPayload(incidentID, responderID)) {
		metrics.LedgerVerificationsTotal.WithLabelValues("invalid_signature").Inc()
		log.Warn("Responder signature validation failed")
		return nil, fmt.Errorf("%w: responder %s", models.ErrInvalidSignature, responderID)
	}

	last, err := s.store.LastRecord(ctx, responderID)
	if err != nil {
		return nil, fmt.Errorf("failed to read responder chain head: %w", err)
	}
	prior := GenesisHash
	if last != nil {
		prior = last.RecordHash
	}

	// Postgres хранит timestamptz с микросекундной точностью; округляем,
	// чтобы пересчёт хэша после чтения из бд совпадал
	verifiedAt := time.Now().UTC().Truncate(time.Microsecond)
	rec := &models.VerificationRecord{
		IncidentID:  incidentID,
		ResponderID: responderID,
		VerifiedAt:  verifiedAt,
		PriorHash:   prior,
		RecordHash:  recordHash(prior, incidentID, responderID, verifiedAt),
	}

	if err := s.store.Append(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to append verification record: %w", err)
	}
	metrics.LedgerVerificationsTotal.WithLabelValues("verified").Inc()
	log.Info("Responder verified")
	return rec, nil
}

// Chain возвращает полную цепочку записей реагирующего
func (s *Service) Chain(ctx context.Context, responderID string) ([]*models.VerificationRecord, error) {
	return s.store.ListChain(ctx, responderID)
}

// VerifyChain пересчитывает хэш-цепочку реагирующего от начала до конца.
// Разрыв цепочки обесценивает доверие ко всем последующим записям;
// диагностика только для чтения, авторемонта нет.
func (s *Service) VerifyChain(ctx context.Context, responderID string) (bool, error) {
	chain, err := s.store.ListChain(ctx, responderID)
	if err != nil {
		return false, fmt.Errorf("failed to list responder chain: %w", err)
	}

	prior := GenesisHash
	for i, rec := range chain {
		if rec.PriorHash != prior {
			s.logger.WithFields(logrus.Fields{
				"responder_id": responderID,
				"position":     i,
			}).Error("Verification chain broken: prior hash mismatch")
			return false, nil
		}
		if recordHash(rec.PriorHash, rec.IncidentID, rec.ResponderID, rec.VerifiedAt) != rec.RecordHash {
			s.logger.WithFields(logrus.Fields{
				"responder_id": responderID,
				"position":     i,
			}).Error("Verification chain broken: record hash mismatch")
			return false, nil
		}
		prior = rec.RecordHash
	}
	return true, nil
}
