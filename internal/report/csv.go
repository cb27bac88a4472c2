package report

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"montecarloBot/internal/montecarlo"
)

// CSVHeader returns the column names for a run of numDays simulated days.
func CSVHeader(numDays int) []string {
	h := make([]string, 0, 4+numDays)
	h = append(h, "Simulation", "Mean_Price", "5th_Percentile", "95th_Percentile")
	for d := 1; d <= numDays; d++ {
		h = append(h, "Day_"+strconv.Itoa(d))
	}
	return h
}

// WriteCSV writes the summary rows side by side with the transposed ensemble.
// Row i carries day i+1's statistics and simulation i+1's path; the file has
// max(days, simulations) rows and cells without a value are left blank. The
// Simulation column is the day index of the summary half, so it is blank on
// rows past the last day.
func WriteCSV(w io.Writer, t montecarlo.SummaryTable) error {
	if t.Ensemble == nil {
		return errors.New("summary has no ensemble")
	}
	days, sims := t.Ensemble.Dims()
	if len(t.Rows) != days {
		return fmt.Errorf("summary has %d rows for %d days", len(t.Rows), days)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader(days)); err != nil {
		return err
	}
	record := make([]string, 4+days)
	for i := 0; i < max(days, sims); i++ {
		clear(record)
		if i < days {
			r := t.Rows[i]
			record[0] = strconv.Itoa(r.Day)
			record[1], record[2], record[3] = format(r.MeanPrice), format(r.P5), format(r.P95)
		}
		if i < sims {
			for d := 0; d < days; d++ {
				record[4+d] = format(t.Ensemble.At(d, i))
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVBytes renders the table in memory, for chat attachments.
func CSVBytes(t montecarlo.SummaryTable) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteCSVFile writes the table to path, creating parent directories. The file
// is only put in place once fully written.
func WriteCSVFile(path string, t montecarlo.SummaryTable) error {
	b, err := CSVBytes(t)
	if err != nil {
		return err
	}
	return WriteFile(path, b)
}

// WriteFile puts b at path through a temporary sibling and a rename, so a
// reader never sees a half written file.
func WriteFile(path string, b []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func format(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
