// Package baseline persists fingerprints of accepted findings so repeat
// scans only surface new exposure.
package baseline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nokodsec/pbanalyzer/internal/models"
)

const (
	// DefaultPath is used when --update-baseline is enabled without an explicit --baseline path.
	DefaultPath = ".pbanalyzer-baseline.json"
	fileVersion = 1
)

// Set stores baseline fingerprints.
type Set map[string]struct{}

// File is the persisted baseline JSON payload.
type File struct {
	Version      int      `json:"version"`
	Fingerprints []string `json:"fingerprints"`
}

// Load reads a baseline file. Missing files return an empty set.
func Load(path string) (Set, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, errors.New("baseline path is empty")
	}

	data, err := os.ReadFile(trimmed)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Set{}, nil
		}
		return nil, fmt.Errorf("read baseline file: %w", err)
	}

	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse baseline file: %w", err)
	}
	if file.Version != 0 && file.Version != fileVersion {
		return nil, fmt.Errorf("unsupported baseline version: %d", file.Version)
	}

	set := Set{}
	for _, fingerprint := range file.Fingerprints {
		if fingerprint == "" {
			continue
		}
		set[fingerprint] = struct{}{}
	}

	return set, nil
}

// Save writes a baseline file with sorted, unique fingerprints.
func Save(path string, set Set) error {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return errors.New("baseline path is empty")
	}

	dir := filepath.Dir(trimmed)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create baseline directory: %w", err)
		}
	}

	payload := File{
		Version:      fileVersion,
		Fingerprints: Sorted(set),
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal baseline file: %w", err)
	}

	if err := os.WriteFile(trimmed, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write baseline file: %w", err)
	}

	return nil
}

// AddAll inserts fingerprints into the target set.
func AddAll(target Set, fingerprints []string) {
	for _, fingerprint := range fingerprints {
		if fingerprint == "" {
			continue
		}
		target[fingerprint] = struct{}{}
	}
}

// Sorted returns sorted fingerprints from a set.
func Sorted(set Set) []string {
	fingerprints := make([]string, 0, len(set))
	for fingerprint := range set {
		fingerprints = append(fingerprints, fingerprint)
	}
	sort.Strings(fingerprints)
	return fingerprints
}

// CollectFingerprints extracts fingerprints for all current findings in the
// report: one per recorded report row, one per column ever seen unused.
func CollectFingerprints(report *models.Report) []string {
	set := Set{}
	if report == nil {
		return []string{}
	}

	for _, row := range report.Rows {
		set[FingerprintRow(row)] = struct{}{}
	}
	for _, column := range report.Columns {
		if column.Unused {
			set[FingerprintColumn(column.ColumnRef)] = struct{}{}
		}
	}

	return Sorted(set)
}

// SuppressKnown removes report rows already present in the baseline set.
func SuppressKnown(report *models.Report, known Set) (suppressed int, remaining int) {
	if report == nil {
		return 0, 0
	}
	if len(known) == 0 {
		return 0, len(report.Rows)
	}

	kept := report.Rows[:0]
	for _, row := range report.Rows {
		if _, ok := known[FingerprintRow(row)]; ok {
			suppressed++
			continue
		}
		kept = append(kept, row)
	}
	report.Rows = kept

	return suppressed, len(report.Rows)
}

// FingerprintRow returns a stable fingerprint for one report's findings.
func FingerprintRow(row models.ResultRow) string {
	return hash("report", row.Target.ID, row.UnusedSummary)
}

// FingerprintColumn returns a stable fingerprint for an unused column.
func FingerprintColumn(ref models.ColumnRef) string {
	return hash("column", ref.Table, ref.Column)
}

func hash(parts ...string) string {
	h := sha256.New()
	for _, part := range parts {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
