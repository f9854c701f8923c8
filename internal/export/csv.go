// Package export serializes the record store: CSV for analysis and the raw
// 64-byte wire form for binary record files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/hil-labs/wireship/internal/domain"
)

// WriteCSV writes the header row and one row per frame, in store order.
func WriteCSV(w io.Writer, frames []domain.Frame) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(domain.CSVHeader()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, f := range frames {
		if err := cw.Write(f.CSVRow()); err != nil {
			return fmt.Errorf("write row seq=%d: %w", f.Seq, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVFile writes the frames to a CSV file at path, creating or truncating it.
func CSVFile(path string, frames []domain.Frame) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteCSV(f, frames); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
