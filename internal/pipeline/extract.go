package pipeline

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/filings-cli/internal/model"
	"github.com/sells-group/filings-cli/pkg/docai"
)

// ExtractionOutcome is the per-document result of the extraction stage.
// Skipped marks the explicit absence: classification failed, no relevant
// pages existed, or the extract request failed. Downstream code must check
// Skipped before touching ExtractionID.
type ExtractionOutcome struct {
	Locator      string
	ExtractionID string
	Skipped      bool
	Reason       string
}

func skippedOutcome(locator, reason string) ExtractionOutcome {
	return ExtractionOutcome{Locator: locator, Skipped: true, Reason: reason}
}

// ExtractAll runs the extraction stage over all classified documents in
// parallel. Each item is independent; a failure becomes a skipped outcome
// and never affects its siblings.
func (p *Pipeline) ExtractAll(ctx context.Context, docs []ClassifiedDoc) []ExtractionOutcome {
	outcomes := make([]ExtractionOutcome, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	if p.concurrency > 0 {
		g.SetLimit(p.concurrency)
	}

	for i, doc := range docs {
		g.Go(func() error {
			outcomes[i] = p.extractOne(gctx, doc)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (p *Pipeline) extractOne(ctx context.Context, doc ClassifiedDoc) ExtractionOutcome {
	log := zap.L().With(zap.String("locator", doc.Locator))

	result, err := docai.WaitForCompletion(ctx, p.docai, doc.ParseID, p.pollOpts...)
	if err != nil {
		log.Warn("classification did not complete", zap.Error(err))
		return skippedOutcome(doc.Locator, "classification failed")
	}

	var pages []int
	for _, pc := range result.PageClasses {
		if pc.PageClass == p.targetClass {
			pages = append(pages, pc.PageNumbers...)
		}
	}
	if len(pages) == 0 {
		// A legitimate result, not an error: this filing simply has no
		// pages of the target class.
		log.Info("no target pages found", zap.String("page_class", p.targetClass))
		return skippedOutcome(doc.Locator, "no "+p.targetClass+" pages")
	}

	pageRange := joinPages(pages)
	log.Debug("requesting extraction", zap.String("pages", pageRange))

	resp, err := p.docai.Extract(ctx, docai.ExtractRequest{
		FileURL:   doc.Locator,
		PageRange: pageRange,
		ExtractionOptions: []docai.StructuredExtractionOptions{{
			SchemaName: model.ExtractionSchemaName,
			JSONSchema: model.ExtractionSchema,
		}},
	})
	if err != nil {
		log.Warn("extraction request failed", zap.Error(err))
		return skippedOutcome(doc.Locator, "extraction request failed")
	}

	return ExtractionOutcome{Locator: doc.Locator, ExtractionID: resp.ParseID}
}

func joinPages(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}
