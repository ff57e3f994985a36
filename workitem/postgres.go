package workitem

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ Store = &PostgresStore{}

// PostgresStore persists work items in Postgres. Schema creation is the
// migration runner's job, not this store's.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const workItemColumns = "id, patient_id, encounter_id, practice_id, service_request_id, procedure_code, status, created_at, updated_at"

func (s *PostgresStore) Create(ctx context.Context, item *WorkItem) error {
	item.ID = uuid.NewString()
	if item.Status == "" {
		item.Status = StatusPending
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO work_items (id, patient_id, encounter_id, practice_id, service_request_id, procedure_code, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		 RETURNING created_at, updated_at`,
		item.ID, item.PatientID, item.EncounterID, item.PracticeID, item.ServiceRequestID, item.ProcedureCode, item.Status)
	if err := row.Scan(&item.CreatedAt, &item.UpdatedAt); err != nil {
		return fmt.Errorf("insert work item: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*WorkItem, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+workItemColumns+" FROM work_items WHERE id = $1", id)
	return scanWorkItem(row)
}

func (s *PostgresStore) List(ctx context.Context, status *Status) ([]WorkItem, error) {
	query := "SELECT " + workItemColumns + " FROM work_items"
	var args []any
	if status != nil {
		query += " WHERE status = $1"
		args = append(args, *status)
	}
	query += " ORDER BY created_at DESC"
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list work items: %w", err)
	}
	defer rows.Close()
	var result []WorkItem
	for rows.Next() {
		item, err := scanWorkItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *item)
	}
	return result, rows.Err()
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status Status) (*WorkItem, error) {
	row := s.pool.QueryRow(ctx,
		"UPDATE work_items SET status = $2, updated_at = now() WHERE id = $1 RETURNING "+workItemColumns,
		id, status)
	return scanWorkItem(row)
}

func (s *PostgresStore) UpdateResult(ctx context.Context, id string, status Status, procedureCode string, serviceRequestID string) (*WorkItem, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE work_items SET status = $2,
		        procedure_code = CASE WHEN $3 = '' THEN procedure_code ELSE $3 END,
		        service_request_id = CASE WHEN $4 = '' THEN service_request_id ELSE $4 END,
		        updated_at = now()
		 WHERE id = $1 RETURNING `+workItemColumns,
		id, status, procedureCode, serviceRequestID)
	return scanWorkItem(row)
}

func scanWorkItem(row pgx.Row) (*WorkItem, error) {
	var item WorkItem
	err := row.Scan(&item.ID, &item.PatientID, &item.EncounterID, &item.PracticeID,
		&item.ServiceRequestID, &item.ProcedureCode, &item.Status, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan work item: %w", err)
	}
	return &item, nil
}
