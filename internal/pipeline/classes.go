package pipeline

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/filings-cli/pkg/docai"
)

// DefaultPageClasses returns the built-in page-class set: a single
// "risk_factors" class. The first class is always the extraction target.
func DefaultPageClasses() []docai.PageClassConfig {
	return []docai.PageClassConfig{{
		Name:        "risk_factors",
		Description: "Pages that contain risk factors related to AI.",
	}}
}

type pageClassFile struct {
	PageClasses []struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
	} `yaml:"page_classes"`
}

// LoadPageClasses reads page-class definitions from a yaml file. An empty
// path returns the defaults.
func LoadPageClasses(path string) ([]docai.PageClassConfig, error) {
	if path == "" {
		return DefaultPageClasses(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: read page classes %s", path)
	}

	var f pageClassFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "pipeline: parse page classes %s", path)
	}
	if len(f.PageClasses) == 0 {
		return nil, eris.Errorf("pipeline: no page classes defined in %s", path)
	}

	classes := make([]docai.PageClassConfig, len(f.PageClasses))
	for i, pc := range f.PageClasses {
		if pc.Name == "" {
			return nil, eris.Errorf("pipeline: page class %d in %s has no name", i, path)
		}
		classes[i] = docai.PageClassConfig{Name: pc.Name, Description: pc.Description}
	}
	return classes, nil
}
