package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shenikar/tourist_safety_system/internal/models"
	"github.com/sirupsen/logrus"
)

// LedgerVerifier определяет контракт леджера верификации реагирующих
type LedgerVerifier interface {
	Verify(ctx context.Context, incidentID uuid.UUID, responderID string, signature []byte) (*models.VerificationRecord, error)
	VerifyChain(ctx context.Context, responderID string) (bool, error)
	Chain(ctx context.Context, responderID string) ([]*models.VerificationRecord, error)
}

// LedgerService определяет контракт для верификации реагирующих и аудита цепочек
type LedgerService interface {
	VerifyResponder(ctx context.Context, incidentID uuid.UUID, responderID string, signature []byte) (*models.VerificationRecord, error)
	ResponderChain(ctx context.Context, responderID string) ([]*models.VerificationRecord, bool, error)
}

type ledgerService struct {
	ledger LedgerVerifier
	logger *logrus.Logger
}

func NewLedgerService(ledger LedgerVerifier, logger *logrus.Logger) LedgerService {
	return &ledgerService{
		ledger: ledger,
		logger: logger,
	}
}

// VerifyResponder проверяет подпись реагирующего и дописывает запись в его цепочку
func (s *ledgerService) VerifyResponder(ctx context.Context, incidentID uuid.UUID, responderID string, signature []byte) (*models.VerificationRecord, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":      "ledger",
		"method":       "VerifyResponder",
		"incident_id":  incidentID,
		"responder_id": responderID,
	})

	rec, err := s.ledger.Verify(ctx, incidentID, responderID, signature)
	if err != nil {
		if errors.Is(err, models.ErrUnknownIncident) || errors.Is(err, models.ErrInvalidSignature) {
			log.WithError(err).Warn("Responder verification rejected")
			return nil, err
		}
		log.WithError(err).Error("Failed to verify responder")
		return nil, fmt.Errorf("service: could not verify responder: %w", err)
	}
	return rec, nil
}

// ResponderChain возвращает цепочку записей реагирующего вместе с результатом
// проверки её целостности
func (s *ledgerService) ResponderChain(ctx context.Context, responderID string) ([]*models.VerificationRecord, bool, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":      "ledger",
		"method":       "ResponderChain",
		"responder_id": responderID,
	})

	chain, err := s.ledger.Chain(ctx, responderID)
	if err != nil {
		log.WithError(err).Error("Failed to list responder chain")
		return nil, false, fmt.Errorf("service: could not list responder chain: %w", err)
	}
	valid, err := s.ledger.VerifyChain(ctx, responderID)
	if err != nil {
		log.WithError(err).Error("Failed to verify responder chain")
		return nil, false, fmt.Errorf("service: could not verify responder chain: %w", err)
	}
	return chain, valid, nil
}
