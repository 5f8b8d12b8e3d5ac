// Package annotation maps normalized variants to candidate gene/disease
// associations using a curated chromosome lookup table.
package annotation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Association holds the curated genes and disease names for one
// chromosome. The first gene is primary; the first disease name
// determines the risk tier.
type Association struct {
	Genes    []string `yaml:"genes"`
	Diseases []string `yaml:"diseases"`
}

// GeneTable is a read-only chromosome→association lookup, constructed
// once and injected into the Annotator.
type GeneTable struct {
	byChromosome map[string]Association
}

// NewGeneTable builds a table from an explicit association map. Entries
// without genes or diseases are rejected.
func NewGeneTable(entries map[string]Association) (*GeneTable, error) {
	byChrom := make(map[string]Association, len(entries))
	for chrom, assoc := range entries {
		if len(assoc.Genes) == 0 {
			return nil, fmt.Errorf("gene table entry %q: at least one gene is required", chrom)
		}
		if len(assoc.Diseases) == 0 {
			return nil, fmt.Errorf("gene table entry %q: at least one disease is required", chrom)
		}
		byChrom[chrom] = assoc
	}
	return &GeneTable{byChromosome: byChrom}, nil
}

// LoadGeneTable reads a YAML association map from disk.
func LoadGeneTable(path string) (*GeneTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading gene table: %w", err)
	}

	var entries map[string]Association
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing gene table: %w", err)
	}

	table, err := NewGeneTable(entries)
	if err != nil {
		return nil, fmt.Errorf("validating gene table: %w", err)
	}
	return table, nil
}

// DefaultGeneTable returns the built-in curated table covering the key
// disease genes. Used when no external table is configured.
func DefaultGeneTable() *GeneTable {
	table, err := NewGeneTable(map[string]Association{
		"17": {
			Genes:    []string{"BRCA1", "TP53"},
			Diseases: []string{"Breast Cancer", "Ovarian Cancer", "Li-Fraumeni Syndrome"},
		},
		"13": {
			Genes:    []string{"BRCA2"},
			Diseases: []string{"Breast Cancer", "Ovarian Cancer"},
		},
		"19": {
			Genes:    []string{"APOE"},
			Diseases: []string{"Alzheimer Disease"},
		},
	})
	if err != nil {
		// The built-in table is statically valid.
		panic(err)
	}
	return table
}

// Lookup returns the association for a chromosome identifier.
func (t *GeneTable) Lookup(chromosome string) (Association, bool) {
	assoc, ok := t.byChromosome[chromosome]
	return assoc, ok
}

// Size returns the number of chromosome entries.
func (t *GeneTable) Size() int {
	return len(t.byChromosome)
}
