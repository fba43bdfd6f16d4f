// Package scenario implements the FHOPS scenario ingestion and validator
// (C1): it turns a YAML/JSON document plus CSV tables into an immutable,
// fully cross-checked domain.Scenario, or a Violations error set
// enumerating every problem found (§4.1 — the validator is strict and
// total, never fail-fast).
package scenario

import (
	"fmt"
	"io/fs"

	yaml "go.yaml.in/yaml/v2"

	"github.com/fhops/fhops/internal/costing"
	"github.com/fhops/fhops/internal/domain"
)

// Load reads the top-level scenario document at docPath within fsys,
// follows its table references, and validates the result. provider
// supplies the default operating-cost fallback (§4.1); pass
// costing.Bundled{} for the bundled registry.
func Load(fsys fs.FS, docPath string, provider costing.Provider) (*domain.Scenario, error) {
	raw, err := parseDocument(fsys, docPath)
	if err != nil {
		return nil, fmt.Errorf("parse scenario document %s: %w", docPath, err)
	}
	return build(fsys, raw, provider)
}

func parseDocument(fsys fs.FS, docPath string) (document, error) {
	f, err := fsys.Open(docPath)
	if err != nil {
		return document{}, err
	}
	defer f.Close()

	var doc document
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&doc); err != nil {
		return document{}, err
	}
	return doc, nil
}
