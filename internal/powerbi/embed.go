package powerbi

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/nokodsec/pbanalyzer/internal/models"
)

// embedURLColumn is the position of the embed link in the portal's report
// export CSV.
const embedURLColumn = 4

// LoadEmbedTargets reads the report export CSV produced by the Power BI
// portal and builds one target per row. It returns the targets along with
// the input header row, which the CSV writer echoes into the output file.
func LoadEmbedTargets(path string) ([]models.ReportTarget, []string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "failed to open input file %q", path)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, nil, eris.Wrapf(err, "failed to read header from %q", path)
	}

	var targets []models.ReportTarget
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, eris.Wrapf(err, "failed to read %q", path)
		}
		line++

		if len(row) <= embedURLColumn {
			return nil, nil, eris.Errorf("row %d of %q has %d columns, expected at least %d", line, path, len(row), embedURLColumn+1)
		}

		embedURL := strings.TrimSpace(row[embedURLColumn])
		resourceKey, err := ResourceKeyFromEmbedURL(embedURL)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "row %d of %q", line, path)
		}

		targets = append(targets, models.ReportTarget{
			ID:          strings.TrimSpace(row[0]),
			Name:        strings.TrimSpace(row[1]),
			EmbedURL:    embedURL,
			ResourceKey: resourceKey,
			SourceRow:   append([]string(nil), row[:len(row)-1]...),
		})
	}

	if len(targets) == 0 {
		return nil, nil, eris.Errorf("no reports found in %q", path)
	}

	return targets, header, nil
}
