package store

import "github.com/rotisserie/eris"

// Named analytical queries over the two warehouse tables. The SQL is kept
// to the portable subset both backends accept (window functions included;
// SQLite has supported them since 3.25).
const (
	QueryRiskDistribution = "risk-distribution"
	QueryOperationalRisks = "operational-risks"
	QueryRiskEvolution    = "risk-evolution"
	QueryRiskTimeline     = "risk-timeline"
	QueryRiskProfiles     = "risk-profiles"
	QueryCompanySummary   = "company-summary"
)

// queryNames lists selectors in presentation order.
var queryNames = []string{
	QueryRiskDistribution,
	QueryOperationalRisks,
	QueryRiskEvolution,
	QueryRiskTimeline,
	QueryRiskProfiles,
	QueryCompanySummary,
}

var namedQueries = map[string]string{
	QueryRiskDistribution: `
		SELECT
			risk_category,
			COUNT(*) as total_mentions,
			COUNT(DISTINCT company_name) as companies_mentioning
		FROM ai_risks
		WHERE risk_category IS NOT NULL
		GROUP BY risk_category
		ORDER BY total_mentions DESC`,

	QueryOperationalRisks: `
		WITH ranked_risks AS (
			SELECT
				company_name,
				ticker,
				risk_description,
				citation,
				LENGTH(risk_description) as description_length,
				ROW_NUMBER() OVER (PARTITION BY company_name ORDER BY LENGTH(risk_description) DESC) as rn
			FROM ai_risks
			WHERE risk_category = 'Operational'
		)
		SELECT
			company_name,
			ticker,
			risk_description,
			citation,
			description_length
		FROM ranked_risks
		WHERE rn = 1
		ORDER BY company_name`,

	QueryRiskEvolution: `
		SELECT
			company_name,
			ticker,
			fiscal_year,
			fiscal_quarter,
			risk_category,
			risk_description,
			citation
		FROM ai_risks
		WHERE fiscal_year = '2025'
		ORDER BY company_name, fiscal_quarter`,

	QueryRiskTimeline: `
		SELECT
			fiscal_year,
			fiscal_quarter,
			COUNT(DISTINCT company_name) as num_companies,
			SUM(num_ai_risk_mentions) as total_risk_mentions,
			AVG(num_ai_risk_mentions) as avg_risk_mentions_per_filing,
			SUM(CASE WHEN regulatory_ai_risk THEN 1 ELSE 0 END) as filings_with_regulatory_risk
		FROM ai_risk_filings
		GROUP BY fiscal_year, fiscal_quarter
		ORDER BY fiscal_year, fiscal_quarter`,

	QueryRiskProfiles: `
		SELECT
			company_name,
			ticker,
			risk_category,
			COUNT(*) as frequency
		FROM ai_risks
		WHERE risk_category IS NOT NULL
		GROUP BY company_name, ticker, risk_category
		ORDER BY company_name, frequency DESC`,

	QueryCompanySummary: `
		SELECT
			company_name,
			ticker,
			COUNT(*) as total_filings,
			AVG(num_ai_risk_mentions) as avg_risk_mentions,
			SUM(CASE WHEN regulatory_ai_risk THEN 1 ELSE 0 END) as filings_with_regulatory_risk,
			SUM(CASE WHEN ai_competition_mentioned THEN 1 ELSE 0 END) as filings_mentioning_competition,
			SUM(CASE WHEN ai_investment_mentioned THEN 1 ELSE 0 END) as filings_mentioning_investment
		FROM ai_risk_filings
		GROUP BY company_name, ticker
		ORDER BY avg_risk_mentions DESC`,
}

// QueryNames returns the available query selectors in presentation order.
func QueryNames() []string {
	out := make([]string, len(queryNames))
	copy(out, queryNames)
	return out
}

// LookupQuery resolves a selector to its SQL.
func LookupQuery(name string) (string, error) {
	sql, ok := namedQueries[name]
	if !ok {
		return "", eris.Errorf("store: unknown query %q", name)
	}
	return sql, nil
}
