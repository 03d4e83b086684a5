// Package model holds the extraction target schema and the normalization
// helpers that turn raw Document AI payloads into warehouse-ready records.
package model

import "encoding/json"

// ExtractionSchemaName is the schema name declared on extract requests.
const ExtractionSchemaName = "AIRiskExtraction"

// RiskMention is one AI-related risk mention found in a filing.
type RiskMention struct {
	RiskCategory      string `json:"risk_category"`
	RiskDescription   string `json:"risk_description"`
	SeverityIndicator string `json:"severity_indicator,omitempty"`
	Citation          string `json:"citation"`
}

// Filing is the complete AI-risk record extracted from one filing. Missing
// fields in the service payload decode to Go zero values, which is exactly
// the defaulting the warehouse columns expect (false, 0, empty string).
type Filing struct {
	CompanyName            string        `json:"company_name"`
	Ticker                 string        `json:"ticker"`
	FilingType             string        `json:"filing_type"`
	FilingDate             string        `json:"filing_date"`
	FiscalYear             string        `json:"fiscal_year"`
	FiscalQuarter          string        `json:"fiscal_quarter,omitempty"`
	AIRiskMentioned        bool          `json:"ai_risk_mentioned"`
	AIRiskMentions         []RiskMention `json:"ai_risk_mentions"`
	NumAIRiskMentions      int           `json:"num_ai_risk_mentions"`
	AIStrategyMentioned    bool          `json:"ai_strategy_mentioned"`
	AIInvestmentMentioned  bool          `json:"ai_investment_mentioned"`
	AICompetitionMentioned bool          `json:"ai_competition_mentioned"`
	RegulatoryAIRisk       bool          `json:"regulatory_ai_risk"`
}

// ExtractionSchema is the fixed JSON Schema sent with every extract request.
// The shape mirrors Filing exactly; the service fills what it can find and
// the decode side defaults the rest.
var ExtractionSchema = json.RawMessage(`{
  "title": "AIRiskExtraction",
  "type": "object",
  "properties": {
    "company_name": {"type": "string"},
    "ticker": {"type": "string"},
    "filing_type": {"type": "string"},
    "filing_date": {"type": "string"},
    "fiscal_year": {"type": "string"},
    "fiscal_quarter": {"type": "string"},
    "ai_risk_mentioned": {"type": "boolean"},
    "ai_risk_mentions": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "risk_category": {
            "type": "string",
            "description": "Category: Operational, Regulatory, Competitive, Ethical, Security, Liability"
          },
          "risk_description": {"type": "string", "description": "Description of the AI risk"},
          "severity_indicator": {"type": "string", "description": "Severity level if mentioned"},
          "citation": {"type": "string", "description": "Page reference"}
        },
        "required": ["risk_category", "risk_description", "citation"]
      }
    },
    "num_ai_risk_mentions": {"type": "integer"},
    "ai_strategy_mentioned": {"type": "boolean"},
    "ai_investment_mentioned": {"type": "boolean"},
    "ai_competition_mentioned": {"type": "boolean"},
    "regulatory_ai_risk": {"type": "boolean"}
  },
  "required": [
    "company_name", "ticker", "filing_type", "filing_date", "fiscal_year",
    "ai_risk_mentioned", "num_ai_risk_mentions", "ai_strategy_mentioned",
    "ai_investment_mentioned", "ai_competition_mentioned", "regulatory_ai_risk"
  ]
}`)
