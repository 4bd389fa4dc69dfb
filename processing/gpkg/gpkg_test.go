package gpkg

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/gpkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdok/wkb2geojson/processing"
)

func TestCreateSQL(t *testing.T) {
	assert.Equal(t,
		`CREATE TABLE IF NOT EXISTS "features"("fid" INTEGER PRIMARY KEY AUTOINCREMENT, "cartodb_id" TEXT, "name" TEXT, "benchmark_price" TEXT, "feature" TEXT, "the_geom" GEOMETRY);`,
		createSQL("features", processing.DefaultColumns()))
}

func TestInsertSQL(t *testing.T) {
	assert.Equal(t,
		`INSERT INTO "features"("cartodb_id","name","benchmark_price","feature","the_geom") VALUES(?,?,?,?,?)`,
		insertSQL("features", processing.DefaultColumns()))
}

func TestCheckReservedColumns(t *testing.T) {
	var tests = []struct {
		columns processing.Columns
		wantErr bool
	}{
		0: {columns: processing.DefaultColumns(), wantErr: false},
		1: {columns: processing.Columns{Geometry: "the_geom", ID: "fid", Name: "name", Price: "price"}, wantErr: true},
		2: {columns: processing.Columns{Geometry: "the_geom", ID: "id", Name: "Feature", Price: "price"}, wantErr: true},
		3: {columns: processing.Columns{Geometry: "feature", ID: "id", Name: "name", Price: "price"}, wantErr: true},
	}
	for k, test := range tests {
		err := checkReservedColumns(test.columns)
		if (err != nil) != test.wantErr {
			t.Errorf("test: %d, expected error: %v \ngot: %v", k, test.wantErr, err)
		}
	}
}

func TestWriteResultsReservedColumn(t *testing.T) {
	target := TargetGeopackage{Path: filepath.Join(t.TempDir(), "reserved.gpkg"), Table: "features", SRID: 4326}
	if err := target.Init(false); err != nil {
		skipWithoutSpatialite(t, err)
		require.NoError(t, err)
	}
	defer target.Close()

	columns := processing.Columns{Geometry: "the_geom", ID: "cartodb_id", Name: "feature", Price: "price"}
	err := target.WriteResults(nil, columns)
	var sinkErr *processing.SinkWriteError
	require.ErrorAs(t, err, &sinkErr)
	assert.Contains(t, err.Error(), `column "feature" is reserved`)
}

// skipWithoutSpatialite skips when the GeoPackage driver cannot load its sqlite extension
func skipWithoutSpatialite(t *testing.T, err error) {
	t.Helper()
	if strings.Contains(err.Error(), "spatialite") {
		t.Skipf("GeoPackage support unavailable: %v", err)
	}
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `"a""b"`, quote(`a"b`))
}

func TestWriteResults(t *testing.T) {
	log.SetOutput(io.Discard)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	columns := processing.DefaultColumns()
	results := []processing.Result{
		processing.ConvertRow(processing.NewRecordFromPairs(
			"cartodb_id", "1", "name", "A", "benchmark_price", "10", "the_geom", "0101000000000000000000F03F0000000000000040"), columns),
		processing.ConvertRow(processing.NewRecordFromPairs(
			"cartodb_id", "2", "name", "B", "benchmark_price", "20", "the_geom", "not-hex"), columns),
		processing.ConvertRow(processing.NewRecordFromPairs(
			"cartodb_id", "3", "name", "C", "the_geom", "0101000020E61000000000000000A05EC00000000000A04640"), columns),
	}
	require.IsType(t, processing.PassedThrough{}, results[1])

	path := filepath.Join(t.TempDir(), "out.gpkg")
	target := TargetGeopackage{Path: path, Table: "features", SRID: 4326, PageSize: 2}
	if err := target.Init(false); err != nil {
		skipWithoutSpatialite(t, err)
		require.NoError(t, err)
	}
	err := target.WriteResults(results, columns)
	if err != nil {
		skipWithoutSpatialite(t, err)
	}
	require.NoError(t, err)
	target.Close()

	h, err := gpkg.Open(path)
	require.NoError(t, err)
	defer h.Close()

	var total, withGeometry int
	require.NoError(t, h.QueryRow(`SELECT count(*), count("the_geom") FROM "features"`).Scan(&total, &withGeometry))
	assert.Equal(t, 3, total)
	assert.Equal(t, 2, withGeometry)

	var price *string
	require.NoError(t, h.QueryRow(`SELECT "benchmark_price" FROM "features" WHERE "cartodb_id" = '3'`).Scan(&price))
	assert.Nil(t, price)

	var b []byte
	require.NoError(t, h.QueryRow(`SELECT "the_geom" FROM "features" WHERE "cartodb_id" = '1'`).Scan(&b))
	sb, err := gpkg.DecodeGeometry(b)
	require.NoError(t, err)
	pt, ok := sb.Geometry.(geom.Pointer)
	require.True(t, ok)
	assert.Equal(t, [2]float64{1, 2}, pt.XY())
}

func TestInitRefusesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exists.gpkg")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	target := TargetGeopackage{Path: path, Table: "features", SRID: 4326}
	require.Error(t, target.Init(false))
}

func TestWriteResultsWithoutInit(t *testing.T) {
	target := TargetGeopackage{Path: "never.gpkg"}
	err := target.WriteResults(nil, processing.DefaultColumns())
	var sinkErr *processing.SinkWriteError
	require.ErrorAs(t, err, &sinkErr)
}
