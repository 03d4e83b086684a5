package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/filings-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Intended for local
// runs against a file or :memory: database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
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
	started_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at   DATETIME
);

CREATE INDEX IF NOT EXISTS idx_ai_risks_company ON ai_risks(company_name);
CREATE INDEX IF NOT EXISTS idx_ai_risks_category ON ai_risks(risk_category);
CREATE INDEX IF NOT EXISTS idx_ai_risk_filings_fiscal ON ai_risk_filings(fiscal_year, fiscal_quarter);
`

const sqliteInsertFilingSQL = `INSERT INTO ai_risk_filings (
	company_name, ticker, filing_type, filing_date, fiscal_year, fiscal_quarter,
	ai_risk_mentioned, ai_risk_mentions, num_ai_risk_mentions,
	ai_strategy_mentioned, ai_investment_mentioned, ai_competition_mentioned,
	regulatory_ai_risk
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const sqliteInsertMentionSQL = `INSERT INTO ai_risks (
	company_name, ticker, fiscal_year, fiscal_quarter, source_file,
	risk_category, risk_description, severity_indicator, citation
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertFiling(ctx context.Context, filing model.Filing, sourceFile string) error {
	mentionsJSON, err := filing.MentionsJSON()
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal mentions")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin insert filing")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, sqliteInsertFilingSQL,
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
		return eris.Wrapf(err, "sqlite: insert filing %s", sourceFile)
	}

	for _, m := range filing.AIRiskMentions {
		_, err = tx.ExecContext(ctx, sqliteInsertMentionSQL,
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
			return eris.Wrapf(err, "sqlite: insert mention for %s", sourceFile)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit insert filing")
}

func (s *SQLiteStore) RunNamedQuery(ctx context.Context, name string) ([]map[string]any, error) {
	query, err := LookupQuery(name)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: run query %s", name)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query %s columns", name)
	}

	out := []map[string]any{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan query %s row", name)
		}
		m := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := vals[i].([]byte); ok {
				m[col] = string(b)
			} else {
				m[col] = vals[i]
			}
		}
		out = append(out, m)
	}
	return out, eris.Wrapf(rows.Err(), "sqlite: iterate query %s", name)
}

func (s *SQLiteStore) CreateIngestRun(ctx context.Context, run model.IngestRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingest_runs (id, status, num_documents, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, string(run.Status), run.NumDocuments, run.StartedAt,
	)
	return eris.Wrap(err, "sqlite: create ingest run")
}

func (s *SQLiteStore) CompleteIngestRun(ctx context.Context, id string, persisted, failed int, status model.IngestRunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE ingest_runs SET status = ?, num_persisted = ?, num_failed = ?, finished_at = ? WHERE id = ?`,
		string(status), persisted, failed, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete ingest run %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("ingest run not found: %s", id)
	}
	return nil
}
