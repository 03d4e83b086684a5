package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/filings-cli/internal/model"
	"github.com/sells-group/filings-cli/pkg/docai"
)

// fakeDocAI is an in-memory Document AI service. Classification handles are
// "classify-<locator>", extraction handles "extract-<locator>"; parse
// results are looked up by handle.
type fakeDocAI struct {
	mu           sync.Mutex
	classifyErr  map[string]error
	extractErr   map[string]error
	parses       map[string]*docai.ParseResult
	extractCalls []docai.ExtractRequest
}

func newFakeDocAI() *fakeDocAI {
	return &fakeDocAI{
		classifyErr: map[string]error{},
		extractErr:  map[string]error{},
		parses:      map[string]*docai.ParseResult{},
	}
}

func (f *fakeDocAI) Classify(ctx context.Context, req docai.ClassifyRequest) (*docai.ClassifyResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.classifyErr[req.FileURL]; err != nil {
		return nil, err
	}
	return &docai.ClassifyResponse{ParseID: "classify-" + req.FileURL}, nil
}

func (f *fakeDocAI) Extract(ctx context.Context, req docai.ExtractRequest) (*docai.ExtractResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extractCalls = append(f.extractCalls, req)
	if err := f.extractErr[req.FileURL]; err != nil {
		return nil, err
	}
	return &docai.ExtractResponse{ParseID: "extract-" + req.FileURL}, nil
}

func (f *fakeDocAI) GetParse(ctx context.Context, id string) (*docai.ParseResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result, ok := f.parses[id]
	if !ok {
		return nil, eris.Errorf("unknown parse %s", id)
	}
	return result, nil
}

func (f *fakeDocAI) extractRequests() []docai.ExtractRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]docai.ExtractRequest{}, f.extractCalls...)
}

type insertedFiling struct {
	Filing     model.Filing
	SourceFile string
}

// fakeStore records writes in memory.
type fakeStore struct {
	mu          sync.Mutex
	migrations  int
	inserts     []insertedFiling
	insertErr   map[string]error
	runs        []model.IngestRun
	completions []model.IngestRunStatus
}

func newFakeStore() *fakeStore {
	return &fakeStore{insertErr: map[string]error{}}
}

func (s *fakeStore) InsertFiling(ctx context.Context, filing model.Filing, sourceFile string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.insertErr[sourceFile]; err != nil {
		return err
	}
	s.inserts = append(s.inserts, insertedFiling{Filing: filing, SourceFile: sourceFile})
	return nil
}

func (s *fakeStore) RunNamedQuery(ctx context.Context, name string) ([]map[string]any, error) {
	return nil, nil
}

func (s *fakeStore) CreateIngestRun(ctx context.Context, run model.IngestRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

func (s *fakeStore) CompleteIngestRun(ctx context.Context, id string, persisted, failed int, status model.IngestRunStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completions = append(s.completions, status)
	return nil
}

func (s *fakeStore) Migrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.migrations++
	return nil
}

func (s *fakeStore) Ping(ctx context.Context) error { return nil }
func (s *fakeStore) Close() error                   { return nil }

func (s *fakeStore) inserted() []insertedFiling {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]insertedFiling{}, s.inserts...)
}

func newTestPipeline(client docai.Client, st *fakeStore) *Pipeline {
	return New(client, st, DefaultPageClasses(), 4,
		docai.WithPollInterval(time.Millisecond),
		docai.WithPollCap(time.Millisecond),
	)
}

func classifiedResult(pages ...int) *docai.ParseResult {
	return &docai.ParseResult{
		Status: docai.StatusSuccessful,
		PageClasses: []docai.PageClass{
			{PageClass: "risk_factors", PageNumbers: pages},
		},
	}
}

func extractionResult(t *testing.T, payload any) *docai.ParseResult {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return &docai.ParseResult{
		Status: docai.StatusSuccessful,
		StructuredData: []docai.StructuredData{
			{SchemaName: model.ExtractionSchemaName, Data: data},
		},
	}
}

func TestClassifyAll_OmitsFailedLocators(t *testing.T) {
	t.Parallel()

	client := newFakeDocAI()
	client.classifyErr["doc-bad"] = eris.New("service unavailable")
	p := newTestPipeline(client, newFakeStore())

	handles := p.ClassifyAll(context.Background(), []string{"doc-A", "doc-bad", "doc-B"})

	assert.Len(t, handles, 2)
	assert.Equal(t, "classify-doc-A", handles["doc-A"])
	assert.Equal(t, "classify-doc-B", handles["doc-B"])
	assert.NotContains(t, handles, "doc-bad")
}

func TestExtractAll_RequestsTargetPages(t *testing.T) {
	t.Parallel()

	client := newFakeDocAI()
	client.parses["classify-doc-A"] = classifiedResult(1, 2, 5)
	p := newTestPipeline(client, newFakeStore())

	outcomes := p.ExtractAll(context.Background(), []ClassifiedDoc{{Locator: "doc-A", ParseID: "classify-doc-A"}})

	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Skipped)
	assert.Equal(t, "extract-doc-A", outcomes[0].ExtractionID)

	reqs := client.extractRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "doc-A", reqs[0].FileURL)
	assert.Equal(t, "1,2,5", reqs[0].PageRange)
	require.Len(t, reqs[0].ExtractionOptions, 1)
	assert.Equal(t, model.ExtractionSchemaName, reqs[0].ExtractionOptions[0].SchemaName)
}

func TestExtractAll_NoTargetPages_SkipsWithoutRequest(t *testing.T) {
	t.Parallel()

	client := newFakeDocAI()
	client.parses["classify-doc-B"] = &docai.ParseResult{
		Status: docai.StatusSuccessful,
		PageClasses: []docai.PageClass{
			{PageClass: "financials", PageNumbers: []int{3, 4}},
		},
	}
	p := newTestPipeline(client, newFakeStore())

	outcomes := p.ExtractAll(context.Background(), []ClassifiedDoc{{Locator: "doc-B", ParseID: "classify-doc-B"}})

	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Skipped)
	assert.Empty(t, client.extractRequests(), "no extraction request for a document without target pages")
}

func TestExtractAll_FailuresBecomeSkippedOutcomes(t *testing.T) {
	t.Parallel()

	client := newFakeDocAI()
	client.parses["classify-doc-A"] = &docai.ParseResult{Status: docai.StatusFailure}
	client.parses["classify-doc-B"] = classifiedResult(7)
	client.extractErr["doc-B"] = eris.New("quota exceeded")
	client.parses["classify-doc-C"] = classifiedResult(3)
	p := newTestPipeline(client, newFakeStore())

	outcomes := p.ExtractAll(context.Background(), []ClassifiedDoc{
		{Locator: "doc-A", ParseID: "classify-doc-A"},
		{Locator: "doc-B", ParseID: "classify-doc-B"},
		{Locator: "doc-C", ParseID: "classify-doc-C"},
	})

	require.Len(t, outcomes, 3)
	assert.True(t, outcomes[0].Skipped, "failed classification job")
	assert.True(t, outcomes[1].Skipped, "failed extract request")
	assert.False(t, outcomes[2].Skipped, "siblings unaffected")
}

func TestPersistAll_SkippedOutcomeWritesNothing(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	p := newTestPipeline(newFakeDocAI(), st)

	persisted, failed := p.PersistAll(context.Background(), []ExtractionOutcome{
		skippedOutcome("doc-B", "no risk_factors pages"),
	})

	assert.Zero(t, persisted)
	assert.Zero(t, failed)
	assert.Empty(t, st.inserted())
}

func TestPersistAll_EmptyStructuredData_NoWrite(t *testing.T) {
	t.Parallel()

	client := newFakeDocAI()
	client.parses["extract-doc-A"] = &docai.ParseResult{Status: docai.StatusSuccessful}
	st := newFakeStore()
	p := newTestPipeline(client, st)

	persisted, failed := p.PersistAll(context.Background(), []ExtractionOutcome{
		{Locator: "doc-A", ExtractionID: "extract-doc-A"},
	})

	assert.Zero(t, persisted)
	assert.Zero(t, failed)
	assert.Empty(t, st.inserted())
}

func TestPersistAll_MentionFanOut(t *testing.T) {
	t.Parallel()

	client := newFakeDocAI()
	client.parses["extract-doc-A"] = extractionResult(t, map[string]any{
		"company_name":         "Confluent",
		"ticker":               "CFLT",
		"filing_type":          "10-K",
		"filing_date":          "2025-02-15",
		"fiscal_year":          "2025",
		"ai_risk_mentioned":    true,
		"num_ai_risk_mentions": 2,
		"ai_risk_mentions": []map[string]any{
			{"risk_category": "operational", "risk_description": "Outages", "citation": "p. 1"},
			{"risk_category": "security", "risk_description": "Prompt injection", "citation": "p. 2"},
		},
	})
	st := newFakeStore()
	p := newTestPipeline(client, st)

	persisted, failed := p.PersistAll(context.Background(), []ExtractionOutcome{
		{Locator: "https://filings.example.com/doc-A", ExtractionID: "extract-doc-A"},
	})

	assert.Equal(t, 1, persisted)
	assert.Zero(t, failed)

	inserts := st.inserted()
	require.Len(t, inserts, 1)
	assert.Equal(t, "doc-A", inserts[0].SourceFile)
	require.Len(t, inserts[0].Filing.AIRiskMentions, 2)
	assert.Equal(t, "Operational", inserts[0].Filing.AIRiskMentions[0].RiskCategory, "categories are canonicalized")
	assert.Equal(t, "Security", inserts[0].Filing.AIRiskMentions[1].RiskCategory)
}

func TestPersistAll_StoreErrorFailsOnlyThatItem(t *testing.T) {
	t.Parallel()

	client := newFakeDocAI()
	client.parses["extract-doc-A"] = extractionResult(t, map[string]any{"company_name": "A Corp", "ticker": "A"})
	client.parses["extract-doc-B"] = extractionResult(t, map[string]any{"company_name": "B Corp", "ticker": "B"})
	st := newFakeStore()
	st.insertErr["doc-A"] = eris.New("connection reset")
	p := newTestPipeline(client, st)

	persisted, failed := p.PersistAll(context.Background(), []ExtractionOutcome{
		{Locator: "doc-A", ExtractionID: "extract-doc-A"},
		{Locator: "doc-B", ExtractionID: "extract-doc-B"},
	})

	assert.Equal(t, 1, persisted)
	assert.Equal(t, 1, failed)
	inserts := st.inserted()
	require.Len(t, inserts, 1)
	assert.Equal(t, "doc-B", inserts[0].SourceFile)
}

func TestRun_EndToEnd(t *testing.T) {
	t.Parallel()

	client := newFakeDocAI()
	// doc-A: risk pages, full extraction with two mentions.
	client.parses["classify-doc-A"] = classifiedResult(1, 2, 5)
	client.parses["extract-doc-A"] = extractionResult(t, map[string]any{
		"company_name":         "Confluent",
		"ticker":               "CFLT",
		"filing_type":          "10-K",
		"filing_date":          "2025-02-15",
		"fiscal_year":          "2025",
		"ai_risk_mentioned":    true,
		"num_ai_risk_mentions": 2,
		"ai_risk_mentions": []map[string]any{
			{"risk_category": "Operational", "risk_description": "Outages", "citation": "p. 1"},
			{"risk_category": "Regulatory", "risk_description": "AI rules", "citation": "p. 5"},
		},
	})
	// doc-B: classifies fine but has no risk pages.
	client.parses["classify-doc-B"] = &docai.ParseResult{Status: docai.StatusSuccessful}
	// doc-C: classification request itself fails.
	client.classifyErr["doc-C"] = eris.New("unsupported document")

	st := newFakeStore()
	p := newTestPipeline(client, st)

	report, err := p.Run(context.Background(), []string{"doc-A", "doc-B", "doc-C"})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Documents)
	assert.Equal(t, 2, report.Classified)
	assert.Equal(t, 1, report.Extracted)
	assert.Equal(t, 1, report.Persisted)
	assert.Zero(t, report.Failed)
	assert.NotEmpty(t, report.RunID)

	assert.Equal(t, 1, st.migrations)
	require.Len(t, st.runs, 1)
	assert.Equal(t, 3, st.runs[0].NumDocuments)
	require.Len(t, st.completions, 1)
	assert.Equal(t, model.IngestRunComplete, st.completions[0])

	inserts := st.inserted()
	require.Len(t, inserts, 1)
	assert.Equal(t, "doc-A", inserts[0].SourceFile)
	assert.Len(t, inserts[0].Filing.AIRiskMentions, 2)

	// doc-A got exactly one extract request, at the right page range.
	reqs := client.extractRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "1,2,5", reqs[0].PageRange)
}

func TestRun_NoLocators(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	p := newTestPipeline(newFakeDocAI(), st)

	report, err := p.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, report.Documents)
	assert.Zero(t, st.migrations, "nothing touched for an empty batch")
}
