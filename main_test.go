package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdok/wkb2geojson/processing"
)

const testCSV = "cartodb_id,name,benchmark_price,the_geom\n" +
	"1,Park A,100,0101000000000000000000F03F0000000000000040\n" +
	"2,Park B,200,not-hex\n"

func setup(t *testing.T) (dir string, source string) {
	t.Helper()
	log.SetOutput(io.Discard)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	dir = t.TempDir()
	source = filepath.Join(dir, "report.csv")
	require.NoError(t, os.WriteFile(source, []byte(testCSV), 0o600))
	return dir, source
}

func TestConvertDefaultTarget(t *testing.T) {
	dir, source := setup(t)

	err := newApp().Run([]string{"wkb2geojson", "convert", "--source", source})
	require.NoError(t, err)

	out, err := os.ReadFile(filepath.Join(dir, "report_geojson.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "'the_geom','cartodb_id','name','benchmark_price'\n")
	assert.Contains(t, string(out), "'not-hex','2','Park B','200'\n")
}

func TestConvertFlagsOverrideConfig(t *testing.T) {
	dir, source := setup(t)
	target := filepath.Join(dir, "out.csv")
	cfgFile := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(cfgFile, []byte(`{"quote": "\"", "delimiter": ";"}`), 0o600))

	// the source is comma separated, so the delimiter from the config file has to be overridden
	err := newApp().Run([]string{"wkb2geojson", "convert", "-c", cfgFile, "-s", source, "-t", target, "-d", ","})
	require.NoError(t, err)

	out, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"the_geom","cartodb_id","name","benchmark_price"`+"\n")
}

func TestConvertSinkWriteError(t *testing.T) {
	dir, source := setup(t)
	target := filepath.Join(dir, "missing", "out.csv")

	err := newApp().Run([]string{"wkb2geojson", "convert", "-s", source, "-t", target})
	var sinkErr *processing.SinkWriteError
	require.ErrorAs(t, err, &sinkErr)

	err = newApp().Run([]string{"wkb2geojson", "convert", "-s", source, "-t", target, "--bestEffort"})
	require.NoError(t, err)
}

func TestConvertInvalidConfig(t *testing.T) {
	_, source := setup(t)
	err := newApp().Run([]string{"wkb2geojson", "convert", "-s", source, "--quote", "''"})
	require.Error(t, err)

	err = newApp().Run([]string{"wkb2geojson", "convert", "-s", filepath.Join(t.TempDir(), "nope.csv")})
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestShow(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "sample", args: nil, want: "MultiPolygon"},
		{name: "point", args: []string{"0101000000000000000000F03F0000000000000040"}, want: "Point"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			app := newApp()
			app.Writer = &buf
			require.NoError(t, app.Run(append([]string{"wkb2geojson", "show"}, tt.args...)))

			var parsed struct {
				Type string `json:"type"`
			}
			require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
			assert.Equal(t, tt.want, parsed.Type)
		})
	}
}

func TestShowWKT(t *testing.T) {
	var buf bytes.Buffer
	app := newApp()
	app.Writer = &buf
	require.NoError(t, app.Run([]string{"wkb2geojson", "show", "-f", "wkt", "0101000000000000000000F03F0000000000000040"}))
	assert.Regexp(t, `^POINT ?\(1 2\)\n$`, buf.String())
}

func TestShowInvalid(t *testing.T) {
	app := newApp()
	app.Writer = io.Discard
	require.Error(t, app.Run([]string{"wkb2geojson", "show", "not-hex"}))
}
