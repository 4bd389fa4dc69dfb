// Package config holds the settings of a conversion run.
// Settings come from built-in defaults, an optional JSON file and command line flags, in that order.
package config

import (
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/perimeterx/marshmallow"

	"github.com/pdok/wkb2geojson/processing"
)

const (
	FormatCSV  = "csv"
	FormatGPKG = "gpkg"

	targetSuffix = "_geojson"
)

type Config struct {
	Source       string `json:"source" validate:"required"`
	Target       string `json:"target"`
	TargetFormat string `json:"targetFormat" default:"csv" validate:"oneof=csv gpkg"`

	GeometryColumn string `json:"geometryColumn" default:"the_geom" validate:"required"`
	IDColumn       string `json:"idColumn" default:"cartodb_id" validate:"required"`
	NameColumn     string `json:"nameColumn" default:"name" validate:"required"`
	PriceColumn    string `json:"priceColumn" default:"benchmark_price" validate:"required"`

	// Delimiter is used for both reading and writing, Quote only for writing
	Delimiter string `json:"delimiter" default:"," validate:"len=1"`
	Quote     string `json:"quote" default:"'" validate:"len=1,nefield=Delimiter"`

	// GeoPackage target only
	Table    string `json:"table" default:"features" validate:"required"`
	SRID     int    `json:"srid" default:"4326"`
	PageSize int    `json:"pagesize" default:"1000" validate:"min=1"`

	Overwrite bool `json:"overwrite"`
	// BestEffort logs a failed write instead of exiting with an error
	BestEffort bool `json:"bestEffort"`
}

// New returns a config with all defaults applied.
func New() (Config, error) {
	var c Config
	err := defaults.Set(&c)
	return c, err
}

// Load reads a JSON config file on top of the defaults.
// Unknown keys are an error, a misspelled key would otherwise be silently ignored.
func Load(file string) (Config, error) {
	c, err := New()
	if err != nil {
		return c, err
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return c, fmt.Errorf("could not read config file: %w", err)
	}
	unknown, err := marshmallow.Unmarshal(data, &c, marshmallow.WithExcludeKnownFieldsFromMap(true))
	if err != nil {
		return c, fmt.Errorf("could not parse config file %s: %w", file, err)
	}
	if len(unknown) > 0 {
		keys := make([]string, 0, len(unknown))
		for k := range unknown {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return c, fmt.Errorf("unknown keys in config file %s: %s", file, strings.Join(keys, ", "))
	}
	return c, nil
}

// Validate checks the config and fills in the target path when it is missing.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return err
	}
	if strings.ContainsAny(c.Delimiter, "\r\n") || strings.ContainsAny(c.Quote, "\r\n") {
		return fmt.Errorf("delimiter and quote cannot be line breaks")
	}

	seen := make(map[string]struct{}, 4)
	for _, name := range c.Columns().Header() {
		if _, dup := seen[name]; dup {
			return fmt.Errorf("column %q is configured more than once", name)
		}
		seen[name] = struct{}{}
	}

	if c.Target == "" {
		c.Target = DefaultTarget(c.Source, c.TargetFormat)
	}
	if c.Target == c.Source {
		return fmt.Errorf("target cannot be the same file as the source: %s", c.Source)
	}
	return nil
}

func (c *Config) Columns() processing.Columns {
	return processing.Columns{
		Geometry: c.GeometryColumn,
		ID:       c.IDColumn,
		Name:     c.NameColumn,
		Price:    c.PriceColumn,
	}
}

func (c *Config) DelimiterRune() rune {
	return []rune(c.Delimiter)[0]
}

func (c *Config) QuoteRune() rune {
	return []rune(c.Quote)[0]
}

// DefaultTarget injects a suffix into the source file name, e.g. report.csv -> report_geojson.csv
func DefaultTarget(source string, format string) string {
	dir, file := path.Split(source)
	ext := path.Ext(file)
	name := file[:len(file)-len(ext)]
	if format == FormatGPKG {
		ext = ".gpkg"
	} else if ext == "" {
		ext = ".csv"
	}
	return path.Join(dir, name+targetSuffix+ext)
}
