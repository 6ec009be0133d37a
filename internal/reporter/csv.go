package reporter

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/nokodsec/pbanalyzer/internal/models"
)

// SharedHeaders is the column layout for the organization-wide shared scan.
var SharedHeaders = []string{"Report Id", "Report Name", "Shared by", "Number of hidden columns", "Unused columns"}

// AnalysisHeaders are appended to the input file's header in embed mode.
var AnalysisHeaders = []string{"Number of hidden columns", "Unused columns"}

// CSVWriter appends one row per report that had unused columns. It
// implements the scanner's row sink, so findings land on disk as the scan
// progresses rather than at the end.
type CSVWriter struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	writer *csv.Writer
	embed  bool
}

func newCSVWriter(path string, header []string, embed bool) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write header to %s: %w", path, err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write header to %s: %w", path, err)
	}

	return &CSVWriter{path: path, file: file, writer: writer, embed: embed}, nil
}

// NewSharedCSV creates the findings file for the shared-reports scan.
func NewSharedCSV(path string) (*CSVWriter, error) {
	return newCSVWriter(path, SharedHeaders, false)
}

// NewEmbedCSV creates the findings file for the embed-links scan. The input
// header is echoed with the analysis columns appended.
func NewEmbedCSV(path string, inputHeader []string) (*CSVWriter, error) {
	header := append(append([]string{}, inputHeader...), AnalysisHeaders...)
	return newCSVWriter(path, header, true)
}

// AppendRow writes one result row and flushes it to disk.
func (w *CSVWriter) AppendRow(row models.ResultRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var record []string
	if w.embed {
		record = append(append([]string{}, row.Target.SourceRow...),
			strconv.Itoa(row.HiddenColumns), row.UnusedSummary)
	} else {
		record = []string{
			row.Target.ID,
			row.Target.Name,
			row.Target.SharedBy,
			strconv.Itoa(row.HiddenColumns),
			row.UnusedSummary,
		}
	}

	if err := w.writer.Write(record); err != nil {
		return fmt.Errorf("failed to append result row: %w", err)
	}
	w.writer.Flush()
	return w.writer.Error()
}

// Path returns the location of the findings file.
func (w *CSVWriter) Path() string {
	return w.path
}

// Close flushes pending rows and closes the file.
func (w *CSVWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}
