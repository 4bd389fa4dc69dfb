// Package feature wraps decoded geometries in GeoJSON Features.
package feature

import (
	"encoding/json"
	"math"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/geojson"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const TypeFeature = "Feature"

// Properties keeps the property keys in insertion order when serialized.
type Properties = orderedmap.OrderedMap[string, string]

func NewProperties() *Properties {
	return orderedmap.New[string, string]()
}

// Feature is a GeoJSON Feature with string properties.
// Keys are serialized in the order type, properties, geometry.
type Feature struct {
	Type       string      `json:"type"`
	Properties *Properties `json:"properties"`
	Geometry   Geometry    `json:"geometry"`
}

func New(g geom.Geometry, properties *Properties) *Feature {
	if properties == nil {
		properties = NewProperties()
	}
	return &Feature{
		Type:       TypeFeature,
		Properties: properties,
		Geometry:   Geometry{Geometry: g},
	}
}

// String returns the compact JSON encoding of the feature.
func (f *Feature) String() (string, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// MarshalGeometry encodes a bare GeoJSON geometry. A non-empty indent pretty prints it.
func MarshalGeometry(g geom.Geometry, indent string) ([]byte, error) {
	gj := Geometry{Geometry: g}
	if indent == "" {
		return json.Marshal(gj)
	}
	return json.MarshalIndent(gj, "", indent)
}

// Geometry encodes like geojson.Geometry, except that empty points are written with empty
// coordinates. WKB has no empty point, PostGIS writes POINT EMPTY as NaN NaN.
type Geometry struct {
	geom.Geometry
}

const (
	typePoint              = "Point"
	typeMultiPoint         = "MultiPoint"
	typeGeometryCollection = "GeometryCollection"
)

type emptyCoordinates struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

type multiPointCoordinates struct {
	Type        string       `json:"type"`
	Coordinates [][2]float64 `json:"coordinates"`
}

type collection struct {
	Type       string     `json:"type"`
	Geometries []Geometry `json:"geometries"`
}

func (g Geometry) MarshalJSON() ([]byte, error) {
	switch gg := g.Geometry.(type) {
	case geom.Pointer:
		if isEmptyPoint(gg.XY()) {
			return json.Marshal(emptyCoordinates{Type: typePoint, Coordinates: []float64{}})
		}
	case geom.MultiPointer:
		points := make([][2]float64, 0, len(gg.Points()))
		for _, pt := range gg.Points() {
			if !isEmptyPoint(pt) {
				points = append(points, pt)
			}
		}
		return json.Marshal(multiPointCoordinates{Type: typeMultiPoint, Coordinates: points})
	case geom.Collectioner:
		geometries := make([]Geometry, 0, len(gg.Geometries()))
		for _, member := range gg.Geometries() {
			geometries = append(geometries, Geometry{Geometry: member})
		}
		return json.Marshal(collection{Type: typeGeometryCollection, Geometries: geometries})
	}
	return json.Marshal(geojson.Geometry{Geometry: g.Geometry})
}

func isEmptyPoint(xy [2]float64) bool {
	return math.IsNaN(xy[0]) && math.IsNaN(xy[1])
}
