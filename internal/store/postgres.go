package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/filings-cli/internal/db"
	"github.com/sells-group/filings-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Column order is fixed: the insert statements and the canned queries both
// depend on it.
const postgresMigration = `
CREATE TABLE IF NOT EXISTS ai_risk_filings (
	company_name             TEXT,
	ticker                   TEXT,
	filing_type              TEXT,
	filing_date              TEXT,
	fiscal_year              TEXT,
	fiscal_quarter           TEXT,
	ai_risk_mentioned        BOOLEAN,
	ai_risk_mentions         TEXT,
	num_ai_risk_mentions     INTEGER,
	ai_strategy_mentioned    BOOLEAN,
	ai_investment_mentioned  BOOLEAN,
	ai_competition_mentioned BOOLEAN,
	regulatory_ai_risk       BOOLEAN
);

CREATE TABLE IF NOT EXISTS ai_risks (
	company_name       TEXT,
	ticker             TEXT,
	fiscal_year        TEXT,
	fiscal_quarter     TEXT,
	source_file        TEXT,
	risk_category      TEXT,
	risk_description   TEXT,
	severity_indicator TEXT,
	citation           TEXT
);

CREATE TABLE IF NOT EXISTS ingest_runs (
	id            TEXT PRIMARY KEY,
	status        TEXT NOT NULL DEFAULT 'running',
	num_documents INTEGER NOT NULL DEFAULT 0,
	num_persisted INTEGER NOT NULL DEFAULT 0,
	num_failed    INTEGER NOT NULL DEFAULT 0,
	started_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at   TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_ai_risks_company ON ai_risks(company_name);
CREATE INDEX IF NOT EXISTS idx_ai_risks_category ON ai_risks(risk_category);
CREATE INDEX IF NOT EXISTS idx_ai_risk_filings_fiscal ON ai_risk_filings(fiscal_year, fiscal_quarter);
`

const insertFilingSQL = `INSERT INTO ai_risk_filings (
	company_name, ticker, filing_type, filing_date, fiscal_year, fiscal_quarter,
	ai_risk_mentioned, ai_risk_mentions, num_ai_risk_mentions,
	ai_strategy_mentioned, ai_investment_mentioned, ai_competition_mentioned,
	regulatory_ai_risk
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

const insertMentionSQL = `INSERT INTO ai_risks (
	company_name, ticker, fiscal_year, fiscal_quarter, source_file,
	risk_category, risk_description, severity_indicator, citation
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// InsertFiling writes the summary row and its mention rows atomically.
func (s *PostgresStore) InsertFiling(ctx context.Context, filing model.Filing, sourceFile string) error {
	mentionsJSON, err := filing.MentionsJSON()
	if err != nil {
		return eris.Wrap(err, "postgres: marshal mentions")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin insert filing")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, insertFilingSQL,
		filing.CompanyName,
		filing.Ticker,
		filing.FilingType,
		filing.FilingDate,
		filing.FiscalYear,
		nullIfEmpty(filing.FiscalQuarter),
		filing.AIRiskMentioned,
		textOrNull(mentionsJSON),
		filing.NumAIRiskMentions,
		filing.AIStrategyMentioned,
		filing.AIInvestmentMentioned,
		filing.AICompetitionMentioned,
		filing.RegulatoryAIRisk,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert filing %s", sourceFile)
	}

	for _, m := range filing.AIRiskMentions {
		_, err = tx.Exec(ctx, insertMentionSQL,
			filing.CompanyName,
			filing.Ticker,
			filing.FiscalYear,
			nullIfEmpty(filing.FiscalQuarter),
			sourceFile,
			m.RiskCategory,
			m.RiskDescription,
			nullIfEmpty(m.SeverityIndicator),
			m.Citation,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert mention for %s", sourceFile)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit insert filing")
}

// RunNamedQuery executes a canned query and returns rows as maps keyed by
// column name.
func (s *PostgresStore) RunNamedQuery(ctx context.Context, name string) ([]map[string]any, error) {
	sql, err := LookupQuery(name)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: run query %s", name)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	out := []map[string]any{}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: read query %s row", name)
		}
		m := make(map[string]any, len(fields))
		for i, fd := range fields {
			m[fd.Name] = vals[i]
		}
		out = append(out, m)
	}
	return out, eris.Wrapf(rows.Err(), "postgres: iterate query %s", name)
}

func (s *PostgresStore) CreateIngestRun(ctx context.Context, run model.IngestRun) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ingest_runs (id, status, num_documents, started_at) VALUES ($1, $2, $3, $4)`,
		run.ID, string(run.Status), run.NumDocuments, run.StartedAt,
	)
	return eris.Wrap(err, "postgres: create ingest run")
}

func (s *PostgresStore) CompleteIngestRun(ctx context.Context, id string, persisted, failed int, status model.IngestRunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE ingest_runs SET status = $1, num_persisted = $2, num_failed = $3, finished_at = now() WHERE id = $4`,
		string(status), persisted, failed, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete ingest run %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("ingest run not found: %s", id)
	}
	return nil
}

// nullIfEmpty maps empty optional strings to SQL NULL.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// textOrNull maps a nil byte slice to SQL NULL, anything else to text.
func textOrNull(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
