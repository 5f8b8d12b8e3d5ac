// Package vcf parses textual variant-call records into normalized
// RawVariantRecord values consumed by the analysis pipeline.
package vcf

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/AshishSingh1503/HelixMind/internal/domain"
)

// minFields is the minimum number of columns a data line must carry
// (CHROM, POS, ID, REF, ALT). Shorter lines are discarded.
const minFields = 5

// maxLineSize bounds a single VCF line. Structural variant records can
// carry long ALT strings, so this is generous.
const maxLineSize = 1024 * 1024

// qualMissing is the VCF sentinel for an unavailable quality value.
const qualMissing = "."

// Extractor turns a VCF byte stream into normalized variant records.
// Malformed lines never abort a run: they are skipped and counted.
type Extractor struct {
	log *logrus.Logger
}

// NewExtractor creates a new extractor.
func NewExtractor(logger *logrus.Logger) *Extractor {
	return &Extractor{log: logger}
}

// Extract reads all records from r, skipping header and comment lines.
// Lines with fewer than five fields or an unparseable position are
// skipped with a warning; only I/O failures are returned as errors.
func (e *Extractor) Extract(r io.Reader) ([]domain.RawVariantRecord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	var (
		records   []domain.RawVariantRecord
		lineNo    int
		malformed int
	)

	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n")

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		rec, err := parseDataLine(line)
		if err != nil {
			malformed++
			e.log.WithFields(logrus.Fields{
				"line":  lineNo,
				"error": err,
			}).Warn("Skipping malformed VCF record")
			continue
		}

		records = append(records, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading VCF stream: %w", err)
	}

	e.log.WithFields(logrus.Fields{
		"records":   len(records),
		"malformed": malformed,
	}).Info("VCF extraction finished")

	return records, nil
}

// parseDataLine tokenizes one non-header line. Tabs are the canonical
// separator; whitespace-delimited files are accepted as a fallback.
func parseDataLine(line string) (domain.RawVariantRecord, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < minFields {
		fields = strings.Fields(line)
	}
	if len(fields) < minFields {
		return domain.RawVariantRecord{}, fmt.Errorf("expected at least %d fields, got %d", minFields, len(fields))
	}

	pos, err := strconv.Atoi(fields[1])
	if err != nil {
		return domain.RawVariantRecord{}, fmt.Errorf("parsing position %q: %w", fields[1], err)
	}
	if pos < 1 {
		return domain.RawVariantRecord{}, fmt.Errorf("position must be >= 1, got %d", pos)
	}

	rec := domain.RawVariantRecord{
		Chromosome: strings.TrimPrefix(fields[0], "chr"),
		Position:   pos,
		Reference:  fields[3],
		Alternate:  fields[4],
	}

	if len(fields) > 5 && fields[5] != qualMissing && fields[5] != "" {
		qual, err := strconv.ParseFloat(fields[5], 64)
		if err != nil {
			return domain.RawVariantRecord{}, fmt.Errorf("parsing quality %q: %w", fields[5], err)
		}
		if qual < 0 {
			return domain.RawVariantRecord{}, fmt.Errorf("quality must be non-negative, got %g", qual)
		}
		rec.Quality = &qual
	}

	rec.Genotype = extractGenotype(fields)

	return rec, nil
}

// extractGenotype pulls the GT subfield from the first sample column,
// when a FORMAT column declares one.
func extractGenotype(fields []string) string {
	// FORMAT is column 9, the first sample column 10.
	if len(fields) < 10 {
		return ""
	}

	keys := strings.Split(fields[8], ":")
	values := strings.Split(fields[9], ":")
	for i, key := range keys {
		if key == "GT" && i < len(values) {
			return values[i]
		}
	}
	return ""
}
