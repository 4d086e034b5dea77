package ice

import (
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Bracket describes one household-income band. UpperUSD of 0 means open-ended.
type Bracket struct {
	Label    string `yaml:"label"`
	LowerUSD int    `yaml:"lower_usd"`
	UpperUSD int    `yaml:"upper_usd"`
}

// Schema is the ordered set of income brackets the calculator operates on.
// The low/high split is structural (first four vs last four); the schema
// only documents the dollar cut-points for export headers and reports.
type Schema struct {
	Brackets []Bracket `yaml:"brackets"`
}

// DefaultSchema returns the canonical ACS extreme brackets: the bottom four
// bands below $25k and the top four bands from $100k up.
func DefaultSchema() Schema {
	return Schema{Brackets: []Bracket{
		{Label: "under_10k", LowerUSD: 0, UpperUSD: 9_999},
		{Label: "10k_15k", LowerUSD: 10_000, UpperUSD: 14_999},
		{Label: "15k_20k", LowerUSD: 15_000, UpperUSD: 19_999},
		{Label: "20k_25k", LowerUSD: 20_000, UpperUSD: 24_999},
		{Label: "100k_125k", LowerUSD: 100_000, UpperUSD: 124_999},
		{Label: "125k_150k", LowerUSD: 125_000, UpperUSD: 149_999},
		{Label: "150k_200k", LowerUSD: 150_000, UpperUSD: 199_999},
		{Label: "200k_up", LowerUSD: 200_000, UpperUSD: 0},
	}}
}

// LoadSchema reads a bracket schema from a YAML file and validates its shape.
func LoadSchema(path string) (Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, eris.Wrapf(err, "ice: read bracket schema %s", path)
	}

	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Schema{}, eris.Wrap(err, "ice: parse bracket schema")
	}
	if err := s.Validate(); err != nil {
		return Schema{}, err
	}
	return s, nil
}

// Validate checks the structural contract: exactly NumBrackets bands,
// ordered by lower bound, labels present.
func (s Schema) Validate() error {
	if len(s.Brackets) != NumBrackets {
		return eris.Errorf("ice: bracket schema has %d brackets, want %d", len(s.Brackets), NumBrackets)
	}
	for i, b := range s.Brackets {
		if b.Label == "" {
			return eris.Errorf("ice: bracket %d has no label", i)
		}
		if i > 0 && b.LowerUSD <= s.Brackets[i-1].LowerUSD {
			return eris.Errorf("ice: bracket %q out of order", b.Label)
		}
	}
	return nil
}

// Labels returns the bracket labels in order.
func (s Schema) Labels() []string {
	labels := make([]string, len(s.Brackets))
	for i, b := range s.Brackets {
		labels[i] = b.Label
	}
	return labels
}

// bracketName labels a bracket index using the default schema.
func bracketName(i int) string {
	def := DefaultSchema().Brackets
	if i >= 0 && i < len(def) {
		return def[i].Label
	}
	return strconv.Itoa(i)
}
