package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shenikar/tourist_safety_system/internal/models"
)

// LedgerRepository - append-only хранилище записей верификации.
// Порядок цепочки задаётся bigserial id, записи не обновляются и не удаляются.
type LedgerRepository struct {
	db *pgxpool.Pool
}

func NewLedgerRepository(db *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// LastRecord возвращает голову цепочки реагирующего или nil, если цепочка пуста
func (r *LedgerRepository) LastRecord(ctx context.Context, responderID string) (*models.VerificationRecord, error) {
	query := `
		SELECT incident_id, responder_id, verified_at, prior_hash, record_hash
		FROM verification_records
		WHERE responder_id = $1
		ORDER BY id DESC
		LIMIT 1;
	`
	rec := &models.VerificationRecord{}
	err := r.db.QueryRow(ctx, query, responderID).Scan(
		&rec.IncidentID,
		&rec.ResponderID,
		&rec.VerifiedAt,
		&rec.PriorHash,
		&rec.RecordHash,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get responder chain head: %w", err)
	}
	return rec, nil
}

// Append дописывает запись верификации в конец цепочки
func (r *LedgerRepository) Append(ctx context.Context, rec *models.VerificationRecord) error {
	query := `
		INSERT INTO verification_records (incident_id, responder_id, verified_at, prior_hash, record_hash)
		VALUES ($1, $2, $3, $4, $5);
	`
	_, err := r.db.Exec(ctx, query,
		rec.IncidentID,
		rec.ResponderID,
		rec.VerifiedAt,
		rec.PriorHash,
		rec.RecordHash,
	)
	if err != nil {
		return fmt.Errorf("failed to append verification record: %w", err)
	}
	return nil
}

// ListChain возвращает полную цепочку реагирующего от первой записи к последней
func (r *LedgerRepository) ListChain(ctx context.Context, responderID string) ([]*models.VerificationRecord, error) {
	query := `
		SELECT incident_id, responder_id, verified_at, prior_hash, record_hash
		FROM verification_records
		WHERE responder_id = $1
		ORDER BY id;
	`
	rows, err := r.db.Query(ctx, query, responderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list responder chain: %w", err)
	}
	defer rows.Close()

	chain := make([]*models.VerificationRecord, 0)
	for rows.Next() {
		rec := &models.VerificationRecord{}
		err := rows.Scan(
			&rec.IncidentID,
			&rec.ResponderID,
			&rec.VerifiedAt,
			&rec.PriorHash,
			&rec.RecordHash,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan verification record row: %w", err)
		}
		chain = append(chain, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error verification records iteration: %w", err)
	}
	return chain, nil
}
