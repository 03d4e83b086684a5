package model

import (
	"bytes"
	"encoding/json"
	"net/url"
	"path"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// DecodeStructuredData turns a raw structured-data payload into a Filing.
// The service is not consistent about shape: sometimes the payload is a
// single object, sometimes a list of objects. A single object is used
// directly, the first element of a non-empty list is used, and anything
// else (empty list, malformed JSON, null) yields the zero Filing. This
// never fails: shape anomalies are benign and handled by defaulting.
func DecodeStructuredData(raw json.RawMessage) Filing {
	var f Filing

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return f
	}

	switch trimmed[0] {
	case '{':
		if err := json.Unmarshal(trimmed, &f); err != nil {
			return Filing{}
		}
	case '[':
		var list []Filing
		if err := json.Unmarshal(trimmed, &list); err != nil || len(list) == 0 {
			return Filing{}
		}
		f = list[0]
	}

	return f
}

// Canonicalize normalizes category casing on every mention so the
// per-category analytics queries group cleanly ("operational" and
// "OPERATIONAL" both become "Operational").
func (f *Filing) Canonicalize() {
	for i, m := range f.AIRiskMentions {
		if m.RiskCategory != "" {
			f.AIRiskMentions[i].RiskCategory = titleCaser.String(m.RiskCategory)
		}
	}
}

// MentionsJSON serializes the mention list for the text column on the
// summary table. Returns nil (SQL NULL) when there are no mentions.
func (f *Filing) MentionsJSON() ([]byte, error) {
	if len(f.AIRiskMentions) == 0 {
		return nil, nil
	}
	return json.Marshal(f.AIRiskMentions)
}

// SourceFile derives the source file name from a document locator: the
// final path segment of the URL, or of the raw string when it is not a URL.
func SourceFile(locator string) string {
	if u, err := url.Parse(locator); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return path.Base(locator)
}
