package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/filings-cli/internal/model"
	"github.com/sells-group/filings-cli/pkg/docai"
)

// PersistAll reconciles the extraction outcomes into the warehouse in
// parallel. Skipped outcomes write nothing. A warehouse failure fails only
// its own item: it is logged and counted while siblings complete normally.
// There is no retry.
func (p *Pipeline) PersistAll(ctx context.Context, outcomes []ExtractionOutcome) (persisted, failed int) {
	g, gctx := errgroup.WithContext(ctx)
	if p.concurrency > 0 {
		g.SetLimit(p.concurrency)
	}

	var ok, bad atomic.Int64
	for _, outcome := range outcomes {
		g.Go(func() error {
			wrote, err := p.persistOne(gctx, outcome)
			if err != nil {
				bad.Add(1)
				zap.L().Error("persist failed",
					zap.String("locator", outcome.Locator),
					zap.Error(err),
				)
				return nil
			}
			if wrote {
				ok.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	return int(ok.Load()), int(bad.Load())
}

// persistOne normalizes one extraction outcome and writes its rows. The
// bool reports whether anything was written; absence of data is a clean
// no-op, not an error.
func (p *Pipeline) persistOne(ctx context.Context, outcome ExtractionOutcome) (bool, error) {
	if outcome.Skipped || outcome.ExtractionID == "" {
		zap.L().Debug("skipping absent outcome",
			zap.String("locator", outcome.Locator),
			zap.String("reason", outcome.Reason),
		)
		return false, nil
	}

	result, err := docai.WaitForCompletion(ctx, p.docai, outcome.ExtractionID, p.pollOpts...)
	if err != nil {
		return false, eris.Wrap(err, "await extraction")
	}

	if len(result.StructuredData) == 0 {
		zap.L().Info("extraction returned no structured data",
			zap.String("locator", outcome.Locator),
		)
		return false, nil
	}

	filing := model.DecodeStructuredData(result.StructuredData[0].Data)
	filing.Canonicalize()

	sourceFile := model.SourceFile(outcome.Locator)
	if err := p.store.InsertFiling(ctx, filing, sourceFile); err != nil {
		return false, eris.Wrap(err, "insert filing")
	}

	zap.L().Info("filing persisted",
		zap.String("locator", outcome.Locator),
		zap.String("source_file", sourceFile),
		zap.Int("mentions", len(filing.AIRiskMentions)),
	)
	return true, nil
}
