package template

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zephis-org/zephis-core/pkg/logger"
)

// LoadDir reads every *.json template in a directory. Invalid templates fail
// the whole load so a bad deploy is caught at startup rather than at proving
// time.
func LoadDir(dir string) ([]*Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading template directory %s: %w", dir, err)
	}

	loaderLogger := logger.Default()
	var templates []*Template

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", path, err)
		}

		var tmpl Template
		if err := json.Unmarshal(content, &tmpl); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", path, err)
		}
		if err := tmpl.Validate(); err != nil {
			return nil, fmt.Errorf("template %s: %w", path, err)
		}

		loaderLogger.Infof("Loaded template %s from %s", tmpl.Key(), entry.Name())
		templates = append(templates, &tmpl)
	}

	return templates, nil
}
