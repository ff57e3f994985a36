package parequest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ Store = &PostgresStore{}

// paRequestLockID scopes the advisory lock serializing id allocation.
const paRequestLockID = 4217

// PostgresStore persists authorization requests in Postgres. Id allocation
// takes a transaction-scoped advisory lock before reading the current
// maximum suffix, so concurrent creations across connections never allocate
// the same id.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const paRequestColumns = `id, patient, procedure_code, procedure_name, diagnosis_code, diagnosis_name, provider_id,
	status, clinical_summary, confidence, criteria, review_time_seconds, created_at, updated_at, ready_at, submitted_at`

func (s *PostgresStore) Create(ctx context.Context, request *Request) error {
	if request.Status == "" {
		request.Status = StatusDraft
	}
	patientJSON, criteriaJSON, err := marshalRequestBlobs(request)
	if err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", paRequestLockID); err != nil {
			return fmt.Errorf("acquire id allocation lock: %w", err)
		}
		var maxSuffix int
		row := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX((substring(id FROM 4))::int), 0) FROM pa_requests WHERE id LIKE 'PA-%'`)
		if err := row.Scan(&maxSuffix); err != nil {
			return fmt.Errorf("read max request id: %w", err)
		}
		request.ID = fmt.Sprintf("PA-%d", maxSuffix+1)
		row = tx.QueryRow(ctx,
			`INSERT INTO pa_requests (id, patient, procedure_code, procedure_name, diagnosis_code, diagnosis_name, provider_id,
			                          status, clinical_summary, confidence, criteria, review_time_seconds, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
			 RETURNING created_at, updated_at`,
			request.ID, patientJSON, request.ProcedureCode, request.ProcedureName, request.DiagnosisCode, request.DiagnosisName,
			request.ProviderID, request.Status, request.ClinicalSummary, request.Confidence, criteriaJSON, request.ReviewTimeSeconds)
		if err := row.Scan(&request.CreatedAt, &request.UpdatedAt); err != nil {
			return fmt.Errorf("insert request: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Request, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+paRequestColumns+" FROM pa_requests WHERE id = $1", id)
	return scanRequest(row)
}

func (s *PostgresStore) List(ctx context.Context) ([]Request, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+paRequestColumns+" FROM pa_requests ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()
	var result []Request
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *request)
	}
	return result, rows.Err()
}

func (s *PostgresStore) ApplyAnalysis(ctx context.Context, id string, result AnalysisResult) (*Request, error) {
	criteriaJSON, err := json.Marshal(result.Criteria)
	if err != nil {
		return nil, fmt.Errorf("marshal criteria: %w", err)
	}
	row := s.pool.QueryRow(ctx,
		`UPDATE pa_requests SET clinical_summary = $2, confidence = $3, criteria = $4,
		        status = $5, ready_at = now(), updated_at = now()
		 WHERE id = $1 RETURNING `+paRequestColumns,
		id, result.ClinicalSummary, result.Confidence, criteriaJSON, StatusReady)
	return scanRequest(row)
}

func (s *PostgresStore) Update(ctx context.Context, id string, fields UpdateFields) (*Request, error) {
	var patientJSON []byte
	if fields.Patient != nil {
		var err error
		patientJSON, err = json.Marshal(fields.Patient)
		if err != nil {
			return nil, fmt.Errorf("marshal patient: %w", err)
		}
	}
	row := s.pool.QueryRow(ctx,
		`UPDATE pa_requests SET
		        patient = COALESCE($2::jsonb, patient),
		        diagnosis_code = COALESCE($3::text, diagnosis_code),
		        diagnosis_name = COALESCE($4::text, diagnosis_name),
		        provider_id = COALESCE($5::text, provider_id),
		        status = COALESCE($6::text, status),
		        clinical_summary = COALESCE($7::text, clinical_summary),
		        updated_at = now()
		 WHERE id = $1 RETURNING `+paRequestColumns,
		id, patientJSON, fields.DiagnosisCode, fields.DiagnosisName, fields.ProviderID, fields.Status, fields.ClinicalSummary)
	return scanRequest(row)
}

func (s *PostgresStore) Submit(ctx context.Context, id string, addReviewTimeSeconds int) (*Request, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE pa_requests SET status = $2, submitted_at = now(),
		        review_time_seconds = review_time_seconds + $3, updated_at = now()
		 WHERE id = $1 RETURNING `+paRequestColumns,
		id, StatusWaitingForInsurance, addReviewTimeSeconds)
	return scanRequest(row)
}

func (s *PostgresStore) AddReviewTime(ctx context.Context, id string, seconds int) (*Request, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE pa_requests SET review_time_seconds = review_time_seconds + $2, updated_at = now()
		 WHERE id = $1 RETURNING `+paRequestColumns,
		id, seconds)
	return scanRequest(row)
}

func (s *PostgresStore) Delete(ctx context.Context, id string) (bool, error) {
	commandTag, err := s.pool.Exec(ctx, "DELETE FROM pa_requests WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("delete request: %w", err)
	}
	return commandTag.RowsAffected() > 0, nil
}

func (s *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	rows, err := s.pool.Query(ctx, "SELECT status, COUNT(*) FROM pa_requests GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("request stats: %w", err)
	}
	defer rows.Close()
	stats := &Stats{}
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}
		stats.Total += count
		switch status {
		case StatusDraft:
			stats.Draft = count
		case StatusReady:
			stats.Ready = count
		case StatusWaitingForInsurance:
			stats.WaitingForInsurance = count
		case StatusSubmitted:
			stats.Submitted = count
		case StatusApproved:
			stats.Approved = count
		case StatusDenied:
			stats.Denied = count
		}
	}
	return stats, rows.Err()
}

func (s *PostgresStore) RecentActivity(ctx context.Context, limit int) ([]Activity, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, patient, status, updated_at FROM pa_requests ORDER BY updated_at DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}
	defer rows.Close()
	var activity []Activity
	for rows.Next() {
		var entry Activity
		var patientJSON []byte
		var status Status
		if err := rows.Scan(&entry.RequestID, &patientJSON, &status, &entry.At); err != nil {
			return nil, fmt.Errorf("scan activity row: %w", err)
		}
		var patient PatientSnapshot
		if err := json.Unmarshal(patientJSON, &patient); err != nil {
			return nil, fmt.Errorf("unmarshal patient: %w", err)
		}
		entry.PatientName = patient.Name
		entry.Action, entry.Label = activityForStatus(status)
		activity = append(activity, entry)
	}
	return activity, rows.Err()
}

func marshalRequestBlobs(request *Request) ([]byte, []byte, error) {
	patientJSON, err := json.Marshal(request.Patient)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal patient: %w", err)
	}
	criteria := request.Criteria
	if criteria == nil {
		criteria = []Criterion{}
	}
	criteriaJSON, err := json.Marshal(criteria)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal criteria: %w", err)
	}
	return patientJSON, criteriaJSON, nil
}

func scanRequest(row pgx.Row) (*Request, error) {
	var request Request
	var patientJSON, criteriaJSON []byte
	err := row.Scan(&request.ID, &patientJSON, &request.ProcedureCode, &request.ProcedureName,
		&request.DiagnosisCode, &request.DiagnosisName, &request.ProviderID, &request.Status,
		&request.ClinicalSummary, &request.Confidence, &criteriaJSON, &request.ReviewTimeSeconds,
		&request.CreatedAt, &request.UpdatedAt, &request.ReadyAt, &request.SubmittedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan request: %w", err)
	}
	if err := json.Unmarshal(patientJSON, &request.Patient); err != nil {
		return nil, fmt.Errorf("unmarshal patient: %w", err)
	}
	if err := json.Unmarshal(criteriaJSON, &request.Criteria); err != nil {
		return nil, fmt.Errorf("unmarshal criteria: %w", err)
	}
	return &request, nil
}
