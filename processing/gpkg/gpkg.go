// Package gpkg writes converted rows into a GeoPackage feature table.
package gpkg

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"syscall"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/gpkg"

	"github.com/pdok/wkb2geojson/processing"
)

const (
	// column holding the serialized GeoJSON Feature next to the native geometry
	featureColumn = "feature"
	fidColumn     = "fid"

	defaultPageSize = 1000
	wgs84SRID       = 4326
)

// TargetGeopackage stores every row result in one table: the passthrough fields as text,
// the decoded geometry natively and the Feature as text. Rows that could not be converted
// keep their fields and get a NULL geometry.
type TargetGeopackage struct {
	Path     string
	Table    string
	SRID     int
	PageSize int
	handle   *gpkg.Handle
}

// Init opens (or creates) the GeoPackage. An existing file is only replaced when overwrite is set.
func (target *TargetGeopackage) Init(overwrite bool) error {
	if overwrite {
		err := os.Remove(target.Path)
		var pathError *os.PathError
		if err != nil && !(errors.As(err, &pathError) && errors.Is(pathError.Err, syscall.ENOENT)) {
			return fmt.Errorf("could not remove target file: %w", err)
		}
	} else if _, err := os.Stat(target.Path); err == nil {
		return fmt.Errorf("target GeoPackage %s already exists, use overwrite to replace it", target.Path)
	}

	handle, err := gpkg.Open(target.Path)
	if err != nil {
		return fmt.Errorf("error opening GeoPackage: %w", err)
	}
	target.handle = handle
	if target.PageSize < 1 {
		target.PageSize = defaultPageSize
	}
	return nil
}

func (target *TargetGeopackage) Close() {
	if target.handle != nil {
		target.handle.Close()
	}
}

func (target *TargetGeopackage) WriteResults(results []processing.Result, columns processing.Columns) error {
	if target.handle == nil {
		return &processing.SinkWriteError{Path: target.Path, Err: errors.New("GeoPackage is not initialized")}
	}
	if err := target.createTable(columns); err != nil {
		return &processing.SinkWriteError{Path: target.Path, Err: err}
	}

	var ext *geom.Extent
	for start := 0; start < len(results); start += target.PageSize {
		end := start + target.PageSize
		if end > len(results) {
			end = len(results)
		}
		var err error
		ext, err = target.writePage(results[start:end], columns, ext)
		if err != nil {
			return &processing.SinkWriteError{Path: target.Path, Err: err}
		}
	}

	if ext != nil {
		if err := target.handle.UpdateGeometryExtent(target.Table, ext); err != nil {
			return &processing.SinkWriteError{Path: target.Path, Err: fmt.Errorf("failed to update extent: %w", err)}
		}
	}
	return nil
}

// createTable creates the feature table with the necessary gpkg_ information
func (target *TargetGeopackage) createTable(columns processing.Columns) error {
	if err := checkReservedColumns(columns); err != nil {
		return err
	}
	if target.SRID != wgs84SRID && target.SRID > 0 {
		err := target.handle.UpdateSRS(gpkg.SpatialReferenceSystem{
			Name:                   fmt.Sprintf("EPSG:%d", target.SRID),
			ID:                     target.SRID,
			Organization:           "EPSG",
			OrganizationCoordsysID: target.SRID,
			Definition:             "undefined",
		})
		if err != nil {
			return err
		}
	}

	if _, err := target.handle.Exec(createSQL(target.Table, columns)); err != nil {
		return fmt.Errorf("error building table in target GeoPackage: %w", err)
	}

	err := target.handle.AddGeometryTable(gpkg.TableDescription{
		Name:          target.Table,
		ShortName:     target.Table,
		Description:   target.Table,
		GeometryField: columns.Geometry,
		GeometryType:  gpkg.Geometry,
		SRS:           int32(target.SRID),
		//
		Z: gpkg.Prohibited,
		M: gpkg.Prohibited,
	})
	if err != nil {
		return fmt.Errorf("error adding geometry table in target GeoPackage: %w", err)
	}
	return nil
}

// writePage writes one transaction worth of rows and grows the extent with their geometries
func (target *TargetGeopackage) writePage(results []processing.Result, columns processing.Columns, ext *geom.Extent) (*geom.Extent, error) {
	tx, err := target.handle.Begin()
	if err != nil {
		return ext, fmt.Errorf("could not start a transaction: %w", err)
	}

	stmt, err := tx.Prepare(insertSQL(target.Table, columns))
	if err != nil {
		_ = tx.Rollback()
		return ext, fmt.Errorf("could not prepare a statement: %w", err)
	}
	defer stmt.Close()

	for _, result := range results {
		record := result.Record()
		data := make([]interface{}, 0, 5)
		for _, name := range columns.Properties() {
			data = append(data, nullable(record, name))
		}

		switch r := result.(type) {
		case processing.Converted:
			if r.SRID != 0 && r.SRID != target.SRID {
				log.Printf("row with id %s has SRID %d, stored as %d", record.Value(columns.ID), r.SRID, target.SRID)
			}
			sb, err := gpkg.NewBinary(int32(target.SRID), r.Geometry)
			if err != nil {
				_ = tx.Rollback()
				return ext, fmt.Errorf("could not create a binary geometry: %w", err)
			}
			data = append(data, record.Value(columns.Geometry), sb)

			if ext == nil {
				ext, err = geom.NewExtentFromGeometry(r.Geometry)
				if err != nil {
					ext = nil
					log.Println("Failed to create new extent:", err)
				}
			} else if err = ext.AddGeometry(r.Geometry); err != nil {
				log.Println("Failed to extend extent:", err)
			}
		default:
			data = append(data, nil, nil)
		}

		if _, err = stmt.Exec(data...); err != nil {
			_ = tx.Rollback()
			return ext, fmt.Errorf("could not insert row with id %s: %w", record.Value(columns.ID), err)
		}
	}
	return ext, tx.Commit()
}

// checkReservedColumns refuses configured columns that clash with the columns this target adds
func checkReservedColumns(columns processing.Columns) error {
	for _, name := range columns.Header() {
		if strings.EqualFold(name, featureColumn) || strings.EqualFold(name, fidColumn) {
			return fmt.Errorf("column %q is reserved in a target GeoPackage, configure another column name", name)
		}
	}
	return nil
}

func nullable(record processing.Record, name string) interface{} {
	if v, ok := record.Get(name); ok {
		return v
	}
	return nil
}

func quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

// createSQL creates the CREATE statement for the feature table
func createSQL(table string, columns processing.Columns) string {
	columnparts := []string{quote(fidColumn) + ` INTEGER PRIMARY KEY AUTOINCREMENT`}
	for _, name := range columns.Properties() {
		columnparts = append(columnparts, quote(name)+` TEXT`)
	}
	columnparts = append(columnparts, quote(featureColumn)+` TEXT`, quote(columns.Geometry)+` GEOMETRY`)
	return `CREATE TABLE IF NOT EXISTS ` + quote(table) + `(` + strings.Join(columnparts, `, `) + `);`
}

// insertSQL builds the INSERT statement, the geometry goes last
func insertSQL(table string, columns processing.Columns) string {
	var csql, vsql []string
	for _, name := range columns.Properties() {
		csql = append(csql, quote(name))
		vsql = append(vsql, `?`)
	}
	csql = append(csql, quote(featureColumn), quote(columns.Geometry))
	vsql = append(vsql, `?`, `?`)
	return `INSERT INTO ` + quote(table) + `(` + strings.Join(csql, `,`) + `) VALUES(` + strings.Join(vsql, `,`) + `)`
}
