// Package store records finished assessments in PostgreSQL for audit. The
// pipeline only ever writes; nothing here feeds back into a decision.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/riskgate/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DBPool abstracts pgxpool.Pool so tests can use pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS assessments (
    id UUID PRIMARY KEY,
    company TEXT NOT NULL,
    software TEXT NOT NULL,
    decision TEXT NOT NULL,
    criticality TEXT NOT NULL,
    vulnerability_count INTEGER NOT NULL,
    decision_reasoning TEXT NOT NULL,
    output JSONB NOT NULL,
    assessed_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS assessment_traces (
    assessment_id UUID NOT NULL REFERENCES assessments(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    step TEXT NOT NULL,
    tool TEXT NOT NULL,
    elapsed_seconds DOUBLE PRECISION NOT NULL,
    fields JSONB NOT NULL,
    PRIMARY KEY (assessment_id, seq)
);`

const insertAssessmentSQL = `
INSERT INTO assessments (id, company, software, decision, criticality, vulnerability_count, decision_reasoning, output, assessed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO NOTHING;`

const insertTraceSQL = `
INSERT INTO assessment_traces (assessment_id, seq, step, tool, elapsed_seconds, fields)
VALUES ($1, $2, $3, $4, $5, $6);`

// Store is the PostgreSQL audit recorder.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("store requires a database pool")
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// EnsureSchema creates the audit tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create audit schema: %w", err)
	}
	return nil
}

// SaveAssessment writes the output and its traces in one transaction.
func (s *Store) SaveAssessment(ctx context.Context, out *schemas.AssessmentOutput) error {
	if out == nil {
		return fmt.Errorf("cannot save a nil assessment")
	}
	id, err := uuid.Parse(out.RunID)
	if err != nil {
		return fmt.Errorf("assessment run id %q is not a UUID: %w", out.RunID, err)
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to encode assessment: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := s.insert(ctx, tx, id, out, payload); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug("Assessment recorded", zap.String("run_id", out.RunID), zap.Int("traces", len(out.Traces)))
	return nil
}

func (s *Store) insert(ctx context.Context, tx pgx.Tx, id uuid.UUID, out *schemas.AssessmentOutput, payload []byte) error {
	_, err := tx.Exec(ctx, insertAssessmentSQL,
		id, out.CompanyName, out.SoftwareName,
		string(out.Decision), string(out.CriticalityLevel),
		len(out.Vulnerabilities), out.DecisionReasoning,
		payload, out.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert assessment: %w", err)
	}

	for i, tr := range out.Traces {
		fields := tr.Fields
		if fields == nil {
			fields = map[string]any{}
		}
		encoded, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("failed to encode trace %d (%s): %w", i, tr.Step, err)
		}
		if _, err := tx.Exec(ctx, insertTraceSQL, id, i, tr.Step, tr.Tool, tr.ElapsedTime.Seconds(), encoded); err != nil {
			return fmt.Errorf("failed to insert trace %d (%s): %w", i, tr.Step, err)
		}
	}
	return nil
}
