package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/filings-cli/pkg/docai"
)

// ClassifiedDoc pairs a document locator with its classification job handle.
type ClassifiedDoc struct {
	Locator string
	ParseID string
}

// ClassifyAll requests page classification for every locator and collects
// the successes into a locator -> parse ID map. A failed classification is
// logged and omitted; the batch itself never fails.
func (p *Pipeline) ClassifyAll(ctx context.Context, locators []string) map[string]string {
	handles := make(map[string]string, len(locators))

	for _, locator := range locators {
		resp, err := p.docai.Classify(ctx, docai.ClassifyRequest{
			FileURL:             locator,
			PageClassifications: p.classes,
		})
		if err != nil {
			zap.L().Warn("classification request failed",
				zap.String("locator", locator),
				zap.Error(err),
			)
			continue
		}
		handles[locator] = resp.ParseID
		zap.L().Debug("classification submitted",
			zap.String("locator", locator),
			zap.String("parse_id", resp.ParseID),
		)
	}

	return handles
}
