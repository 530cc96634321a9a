package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/akylbek/hotel-pos/settlement-engine/internal/interfaces"
	"github.com/akylbek/hotel-pos/settlement-engine/internal/models"
	"github.com/akylbek/hotel-pos/settlement-engine/internal/tender"
)

const uniqueViolation = "23505"

const obligationColumns = `id, kind, department, total_due, amount_settled, tenders, debt_outstanding,
	debtor_name, state, fulfilled, fulfilled_by_event, lines, version, created_at, updated_at`

type ObligationRepository struct {
	db *sql.DB
}

var _ interfaces.ObligationRepository = (*ObligationRepository)(nil)

func NewObligationRepository(db *sql.DB) *ObligationRepository {
	return &ObligationRepository{db: db}
}

func (r *ObligationRepository) InitDB(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS obligations (
			id VARCHAR(255) PRIMARY KEY,
			kind VARCHAR(32) NOT NULL,
			department VARCHAR(64) NOT NULL DEFAULT '',
			total_due NUMERIC(18,4) NOT NULL CHECK (total_due >= 0),
			amount_settled NUMERIC(18,4) NOT NULL DEFAULT 0 CHECK (amount_settled >= 0 AND amount_settled <= total_due),
			tenders TEXT NOT NULL DEFAULT '',
			debt_outstanding NUMERIC(18,4) NOT NULL DEFAULT 0,
			debtor_name VARCHAR(255),
			state VARCHAR(32) NOT NULL,
			fulfilled BOOLEAN NOT NULL DEFAULT FALSE,
			fulfilled_by_event VARCHAR(255) NOT NULL DEFAULT '',
			lines JSONB NOT NULL DEFAULT '[]',
			version BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_obligations_created_at ON obligations(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_obligations_state ON obligations(state)`,
		`CREATE TABLE IF NOT EXISTS settlement_events (
			obligation_id VARCHAR(255) NOT NULL REFERENCES obligations(id),
			event_id VARCHAR(255) NOT NULL,
			tenders TEXT NOT NULL,
			debtor_name VARCHAR(255),
			actor VARCHAR(255) NOT NULL DEFAULT '',
			from_state VARCHAR(32) NOT NULL,
			to_state VARCHAR(32) NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (obligation_id, event_id)
		)`,
	}

	for _, query := range queries {
		if _, err := r.db.ExecContext(ctx, query); err != nil {
			return err
		}
	}

	return nil
}

func (r *ObligationRepository) Create(ctx context.Context, obl models.Obligation) error {
	lines, err := json.Marshal(nonNilLines(obl.Lines))
	if err != nil {
		return fmt.Errorf("encode lines: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO obligations (id, kind, department, total_due, amount_settled, tenders, debt_outstanding,
			debtor_name, state, fulfilled, fulfilled_by_event, lines, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO NOTHING
	`, obl.ID, obl.Kind, obl.Department, obl.TotalDue, obl.AmountSettled, tender.Encode(obl.Tenders),
		obl.DebtOutstanding, obl.DebtorName, obl.State, obl.Fulfilled, obl.FulfilledByEvent, string(lines),
		obl.Version, obl.CreatedAt, obl.UpdatedAt)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", models.ErrObligationExists, obl.ID)
	}
	return nil
}

func (r *ObligationRepository) GetByID(ctx context.Context, id string) (models.Obligation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+obligationColumns+` FROM obligations WHERE id = $1`, id)
	obl, err := scanObligation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Obligation{}, fmt.Errorf("%w: %s", models.ErrObligationNotFound, id)
	}
	return obl, err
}

func (r *ObligationRepository) GetEvent(ctx context.Context, obligationID, eventID string) (models.EventRecord, bool, error) {
	rec := models.EventRecord{ObligationID: obligationID, EventID: eventID}
	var debtor sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT tenders, debtor_name, actor, from_state, to_state, applied_at
		FROM settlement_events WHERE obligation_id = $1 AND event_id = $2
	`, obligationID, eventID).Scan(&rec.Tenders, &debtor, &rec.Actor, &rec.FromState, &rec.ToState, &rec.AppliedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.EventRecord{}, false, nil
	}
	if err != nil {
		return models.EventRecord{}, false, err
	}
	rec.DebtorName = debtor.String
	return rec, true, nil
}

func (r *ObligationRepository) Commit(ctx context.Context, obl models.Obligation, expectedVersion int64, rec models.EventRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE obligations
		SET amount_settled = $1, tenders = $2, debt_outstanding = $3, debtor_name = NULLIF($4, ''),
			state = $5, fulfilled = $6, fulfilled_by_event = $7, version = $8, updated_at = $9
		WHERE id = $10 AND version = $11
	`, obl.AmountSettled, tender.Encode(obl.Tenders), obl.DebtOutstanding, obl.DebtorName,
		obl.State, obl.Fulfilled, obl.FulfilledByEvent, obl.Version, obl.UpdatedAt,
		obl.ID, expectedVersion)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s at version %d", models.ErrConcurrentModification, obl.ID, expectedVersion)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO settlement_events (obligation_id, event_id, tenders, debtor_name, actor, from_state, to_state, applied_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)
	`, rec.ObligationID, rec.EventID, rec.Tenders, rec.DebtorName, rec.Actor, rec.FromState, rec.ToState, rec.AppliedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: event %s already recorded", models.ErrConcurrentModification, rec.EventID)
		}
		return err
	}

	return tx.Commit()
}

func (r *ObligationRepository) ListCreatedBetween(ctx context.Context, from, to time.Time) ([]models.Obligation, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+obligationColumns+`
		FROM obligations WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at, id`, from, to)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	result := make([]models.Obligation, 0)
	for rows.Next() {
		obl, err := scanObligation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, obl)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObligation(row rowScanner) (models.Obligation, error) {
	var (
		obl     models.Obligation
		tenders string
		debtor  sql.NullString
		lines   []byte
	)
	err := row.Scan(&obl.ID, &obl.Kind, &obl.Department, &obl.TotalDue, &obl.AmountSettled, &tenders,
		&obl.DebtOutstanding, &debtor, &obl.State, &obl.Fulfilled, &obl.FulfilledByEvent, &lines,
		&obl.Version, &obl.CreatedAt, &obl.UpdatedAt)
	if err != nil {
		return models.Obligation{}, err
	}

	obl.Tenders, err = tender.Decode(tenders)
	if err != nil {
		return models.Obligation{}, fmt.Errorf("obligation %s: %w", obl.ID, err)
	}
	obl.DebtorName = debtor.String
	if len(lines) > 0 {
		if err := json.Unmarshal(lines, &obl.Lines); err != nil {
			return models.Obligation{}, fmt.Errorf("obligation %s: decode lines: %w", obl.ID, err)
		}
	}
	return obl, nil
}

func nonNilLines(lines []models.LineItem) []models.LineItem {
	if lines == nil {
		return []models.LineItem{}
	}
	return lines
}
