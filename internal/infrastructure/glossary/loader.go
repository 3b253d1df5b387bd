// Package glossary loads the domain vocabulary used by query analysis and
// domain scoring from a YAML file.
package glossary

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/docqa-retrieval/internal/core/domain"
)

// Load reads a glossary file of the form:
//
//	installation:
//	  - install
//	  - setup
//	security:
//	  - certificate
//
// An empty or missing path falls back to the built-in glossary; a file that
// exists but cannot be parsed is an error, so a typo in a deployed glossary
// does not silently vanish.
func Load(path string) (domain.Glossary, error) {
	if path == "" {
		return domain.DefaultGlossary(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.DefaultGlossary(), nil
		}
		return nil, fmt.Errorf("read glossary: %w", err)
	}

	var parsed map[string][]string
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse glossary: %w", err)
	}

	out := make(domain.Glossary, len(parsed))
	for category, terms := range parsed {
		category = strings.ToLower(strings.TrimSpace(category))
		if category == "" {
			continue
		}
		cleaned := make([]string, 0, len(terms))
		for _, t := range terms {
			t = strings.ToLower(strings.TrimSpace(t))
			if t != "" {
				cleaned = append(cleaned, t)
			}
		}
		if len(cleaned) > 0 {
			out[category] = cleaned
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("glossary %s has no categories", path)
	}
	return out, nil
}
