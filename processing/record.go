package processing

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/pdok/wkb2geojson/mapslicehelp"
)

// Record is one row of tabular input: field names mapped to values, in column order.
type Record struct {
	*orderedmap.OrderedMap[string, string]
}

func NewRecord() Record {
	return Record{orderedmap.New[string, string]()}
}

// NewRecordFromPairs builds a record from alternating names and values.
func NewRecordFromPairs(nameValues ...string) Record {
	r := NewRecord()
	for i := 0; i+1 < len(nameValues); i += 2 {
		r.Set(nameValues[i], nameValues[i+1])
	}
	return r
}

// Value returns the value of a field, or "" when the record lacks it.
func (r Record) Value(name string) string {
	v, _ := r.Get(name)
	return v
}

func (r Record) Names() []string {
	return mapslicehelp.OrderedMapKeys(r.OrderedMap)
}

// Columns names the four fields a conversion works with.
type Columns struct {
	Geometry string
	ID       string
	Name     string
	Price    string
}

func DefaultColumns() Columns {
	return Columns{
		Geometry: "the_geom",
		ID:       "cartodb_id",
		Name:     "name",
		Price:    "benchmark_price",
	}
}

// Header is the fixed output column order.
func (c Columns) Header() []string {
	return []string{c.Geometry, c.ID, c.Name, c.Price}
}

// Properties are the passthrough fields, in the order they appear in a Feature.
func (c Columns) Properties() []string {
	return []string{c.ID, c.Name, c.Price}
}

// Values returns the record's values in header order. Missing fields are empty.
func (c Columns) Values(r Record) []string {
	header := c.Header()
	values := make([]string, len(header))
	for i, name := range header {
		values[i] = r.Value(name)
	}
	return values
}
