package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shenikar/tourist_safety_system/internal/models"
)

// SubjectRepository читает каталог субъектов (референсная реализация
// внешнего каталога)
type SubjectRepository struct {
	db *pgxpool.Pool
}

func NewSubjectRepository(db *pgxpool.Pool) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// GetSubject возвращает субъекта по его идентификатору
func (r *SubjectRepository) GetSubject(ctx context.Context, subjectID string) (*models.Subject, error) {
	query := `
		SELECT id, emergency_contacts, tracking_opt_in
		FROM subjects
		WHERE id = $1;
	`
	subject := &models.Subject{}
	err := r.db.QueryRow(ctx, query, subjectID).Scan(
		&subject.ID,
		&subject.EmergencyContacts,
		&subject.TrackingOptIn,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("subject with id %s not found", subjectID)
		}
		return nil, fmt.Errorf("failed to get subject by id: %w", err)
	}
	return subject, nil
}
