// Copyright 2025 Tradeledger Authors
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tradeledger/core/pkg/oracle"
)

// OracleSeedDocument is the structured document a rate-fix oracle loads
// its initial table from at startup.
type OracleSeedDocument struct {
	Fixes []OracleSeedEntry `yaml:"fixes"`
}

// OracleSeedEntry is one published fix: an index, a tenor, the date it
// was published, and its value in hundred-thousandths of a percentage
// point.
type OracleSeedEntry struct {
	Index string `yaml:"index"`
	Tenor string `yaml:"tenor"`
	Date  string `yaml:"date"` // RFC 3339 date, e.g. "2026-03-14"
	Rate  int64  `yaml:"rate"`
}

// LoadOracleSeedFile reads and parses an oracle seed document from path.
func LoadOracleSeedFile(path string) (*OracleSeedDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read oracle seed file %s: %w", path, err)
	}
	var doc OracleSeedDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: parse oracle seed file %s: %w", path, err)
	}
	return &doc, nil
}

// ApplyTo seeds every fix in the document into o.
func (doc *OracleSeedDocument) ApplyTo(o *oracle.Oracle) error {
	for _, entry := range doc.Fixes {
		date, err := time.Parse("2006-01-02", entry.Date)
		if err != nil {
			return fmt.Errorf("config: oracle seed entry %s/%s: invalid date %q: %w", entry.Index, entry.Tenor, entry.Date, err)
		}
		o.Seed(entry.Index, entry.Tenor, date, oracle.Rate(entry.Rate))
	}
	return nil
}
