// Package csv reads and writes the delimited files of a conversion run.
package csv

import (
	"bufio"
	stdcsv "encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pdok/wkb2geojson/processing"
)

const (
	DefaultDelimiter = ','
	DefaultQuote     = '\''

	recordDelimiter = '\n'
	byteOrderMark   = "\ufeff"
)

// SourceCSV reads records from a delimited file with a header row.
type SourceCSV struct {
	Path      string
	Delimiter rune
}

func (source SourceCSV) ReadRecords(records chan<- processing.Record) error {
	f, err := os.Open(source.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	return ReadRecords(f, source.delimiter(), records)
}

func (source SourceCSV) delimiter() rune {
	if source.Delimiter == 0 {
		return DefaultDelimiter
	}
	return source.Delimiter
}

// ReadRecords sends every data row of r as a record keyed by the header names.
// Short rows lack the trailing fields, cells beyond the header are dropped.
// Stray quotes are kept as part of the value, fields are not validated.
func ReadRecords(r io.Reader, delimiter rune, records chan<- processing.Record) error {
	reader := stdcsv.NewReader(r)
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not read header: %w", err)
	}
	header[0] = strings.TrimPrefix(header[0], byteOrderMark)

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		record := processing.NewRecord()
		for i, name := range header {
			if i < len(row) {
				record.Set(name, row[i])
			}
		}
		records <- record
	}
}

// TargetCSV writes the results to a delimited file, every non-empty field quoted.
// The file is created or truncated.
type TargetCSV struct {
	Path      string
	Delimiter rune
	Quote     rune
}

func (target TargetCSV) WriteResults(results []processing.Result, columns processing.Columns) error {
	f, err := os.Create(target.Path)
	if err != nil {
		return &processing.SinkWriteError{Path: target.Path, Err: err}
	}

	w := NewWriter(f)
	if target.Delimiter != 0 {
		w.Comma = target.Delimiter
	}
	if target.Quote != 0 {
		w.Quote = target.Quote
	}
	err = w.WriteResults(results, columns)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return &processing.SinkWriteError{Path: target.Path, Err: err}
	}
	return nil
}

// Writer writes delimited records with a configurable quote character.
// encoding/csv only knows double quotes and quotes on demand.
type Writer struct {
	Comma rune
	Quote rune
	w     *bufio.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{
		Comma: DefaultDelimiter,
		Quote: DefaultQuote,
		w:     bufio.NewWriter(w),
	}
}

// WriteResults writes the header and one line per result, then flushes.
func (w *Writer) WriteResults(results []processing.Result, columns processing.Columns) error {
	if err := w.Write(columns.Header()); err != nil {
		return err
	}
	for _, result := range results {
		if err := w.Write(columns.Values(result.Record())); err != nil {
			return err
		}
	}
	return w.Flush()
}

// Write writes one record. Empty fields are left unquoted, quote characters inside a field are doubled.
func (w *Writer) Write(fields []string) error {
	quote := string(w.Quote)
	for i, field := range fields {
		if i > 0 {
			if _, err := w.w.WriteRune(w.Comma); err != nil {
				return err
			}
		}
		if field == "" {
			continue
		}
		if _, err := w.w.WriteString(quote + strings.ReplaceAll(field, quote, quote+quote) + quote); err != nil {
			return err
		}
	}
	return w.w.WriteByte(recordDelimiter)
}

func (w *Writer) Flush() error {
	return w.w.Flush()
}
