// Package processing converts rows with a hex WKB geometry into rows with a GeoJSON Feature.
// It takes care of the logistics around reading from a Source and writing to a Target,
// the geometry decoding itself is done by wkbhex and the encoding by feature.
package processing

import (
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/go-spatial/geom"

	"github.com/pdok/wkb2geojson/feature"
	"github.com/pdok/wkb2geojson/geomhelp"
	"github.com/pdok/wkb2geojson/wkbhex"
)

const (
	ReportGeoJSON = "geojson"
	ReportWKT     = "wkt"

	reportIndent = "  "
	snippetWidth = 40
)

// SinkWriteError is returned when the converted rows cannot be written.
type SinkWriteError struct {
	Path string
	Err  error
}

func (e *SinkWriteError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("could not write output: %v", e.Err)
	}
	return fmt.Sprintf("could not write output to %s: %v", e.Path, e.Err)
}

func (e *SinkWriteError) Unwrap() error {
	return e.Err
}

// Result is the outcome of converting one row: either Converted or PassedThrough.
type Result interface {
	// Record is the row as it should be written
	Record() Record
	isResult()
}

// Converted holds a row whose geometry field now contains a serialized Feature.
type Converted struct {
	Output   Record
	Geometry geom.Geometry
	SRID     int
}

func (c Converted) Record() Record { return c.Output }
func (Converted) isResult()        {}

// PassedThrough holds an input row that could not be converted, unchanged.
type PassedThrough struct {
	Input Record
	Err   error
}

func (p PassedThrough) Record() Record { return p.Input }
func (PassedThrough) isResult()        {}

// ConvertRow replaces the hex WKB in the geometry column by a GeoJSON Feature carrying
// the id, name and price as properties. Rows that fail to decode are passed through as they are.
func ConvertRow(record Record, columns Columns) Result {
	result, err := convertRow(record, columns)
	if err != nil {
		log.Printf("error processing row with id %s: %v (%s: %q)",
			record.Value(columns.ID), err, columns.Geometry, geomhelp.Snippet(record.Value(columns.Geometry), snippetWidth))
		return PassedThrough{Input: record, Err: err}
	}
	return result
}

func convertRow(record Record, columns Columns) (Converted, error) {
	wkbHex, ok := record.Get(columns.Geometry)
	if !ok {
		return Converted{}, &wkbhex.DecodeError{
			Err: fmt.Errorf("missing column %s, row has %s", columns.Geometry, strings.Join(record.Names(), ", ")),
		}
	}
	g, err := wkbhex.Decode(wkbHex)
	if err != nil {
		return Converted{}, err
	}

	properties := feature.NewProperties()
	for _, name := range columns.Properties() {
		if v, ok := record.Get(name); ok {
			properties.Set(name, v)
		}
	}
	serialized, err := feature.New(g.Geometry, properties).String()
	if err != nil {
		return Converted{}, &wkbhex.DecodeError{Err: err}
	}

	output := NewRecord()
	output.Set(columns.Geometry, serialized)
	for pair := properties.Oldest(); pair != nil; pair = pair.Next() {
		output.Set(pair.Key, pair.Value)
	}
	return Converted{Output: output, Geometry: g.Geometry, SRID: g.SRID}, nil
}

// Accumulator collects the row results of one pipeline run, in input order.
type Accumulator struct {
	results       []Result
	converted     uint64
	passedThrough uint64
}

func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

func (a *Accumulator) Add(r Result) {
	switch r.(type) {
	case Converted:
		a.converted++
	case PassedThrough:
		a.passedThrough++
	}
	a.results = append(a.results, r)
}

func (a *Accumulator) Len() int {
	return len(a.results)
}

func (a *Accumulator) Converted() uint64 {
	return a.converted
}

func (a *Accumulator) PassedThrough() uint64 {
	return a.passedThrough
}

// Results returns a copy of the results collected so far.
func (a *Accumulator) Results() []Result {
	results := make([]Result, len(a.results))
	copy(results, a.results)
	return results
}

// readRecordsFromSource runs the source and closes the channel when it is done
func readRecordsFromSource(source Source, records chan<- Record, done chan<- error) {
	defer close(records)
	done <- source.ReadRecords(records)
}

// RunPipeline reads all records from the source, converts them into the accumulator and,
// once the source is exhausted, writes the accumulated results to the target in one go.
// A failing write is returned as a *SinkWriteError.
func RunPipeline(source Source, target Target, acc *Accumulator, columns Columns) error {
	records := make(chan Record)
	done := make(chan error, 1)
	go readRecordsFromSource(source, records, done)

	for record := range records {
		acc.Add(ConvertRow(record, columns))
	}
	if err := <-done; err != nil {
		return fmt.Errorf("could not read source: %w", err)
	}

	log.Printf("    total rows: %d", acc.Len())
	log.Printf("     converted: %d", acc.Converted())
	log.Printf("  passed as is: %d", acc.PassedThrough())

	err := target.WriteResults(acc.Results(), columns)
	if err != nil {
		var sinkErr *SinkWriteError
		if errors.As(err, &sinkErr) {
			return err
		}
		return &SinkWriteError{Err: err}
	}
	return nil
}

// Report writes a single hex WKB geometry to w, as pretty printed GeoJSON or as WKT.
func Report(w io.Writer, wkbHex string, format string) error {
	g, err := wkbhex.Decode(wkbHex)
	if err != nil {
		return err
	}

	var out []byte
	switch format {
	case ReportGeoJSON, "":
		out, err = feature.MarshalGeometry(g.Geometry, reportIndent)
	case ReportWKT:
		var s string
		s, err = geomhelp.WktEncode(g.Geometry, 0)
		out = []byte(s)
	default:
		return fmt.Errorf("unknown report format: %s", format)
	}
	if err != nil {
		return &wkbhex.DecodeError{Err: err}
	}

	if _, err = w.Write(append(out, '\n')); err != nil {
		return &SinkWriteError{Err: err}
	}
	return nil
}
