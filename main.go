package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/carlmjohnson/versioninfo"
	"github.com/iancoleman/strcase"
	"github.com/urfave/cli/v2"

	"github.com/pdok/wkb2geojson/config"
	"github.com/pdok/wkb2geojson/processing"
	"github.com/pdok/wkb2geojson/processing/csv"
	"github.com/pdok/wkb2geojson/processing/gpkg"
)

const CONFIG string = `config`
const SOURCE string = `source`
const TARGET string = `target`
const TARGETFORMAT string = `targetFormat`
const GEOMETRYCOLUMN string = `geometryColumn`
const IDCOLUMN string = `idColumn`
const NAMECOLUMN string = `nameColumn`
const PRICECOLUMN string = `priceColumn`
const DELIMITER string = `delimiter`
const QUOTE string = `quote`
const TABLE string = `table`
const SRID string = `srid`
const PAGESIZE string = `pagesize`
const OVERWRITE string = `overwrite`
const BESTEFFORT string = `bestEffort`
const FORMAT string = `format`

// MultiPolygon in EPSG:4326, shown when no geometry is given to the show command
const sampleWKB string = `0106000020E610000001000000010300000001000000040000000AD7A3703DBA5EC085EB51B81EA548409A99999999B95EC085EB51B81EA548409A99999999B95EC06666666666A648400AD7A3703DBA5EC085EB51B81EA54840`

func main() {
	err := newApp().Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

//nolint:funlen
func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "wkb2geojson"
	app.Usage = "Converts hex encoded WKB geometries to GeoJSON"
	app.Version = versioninfo.Short()

	app.Commands = []*cli.Command{
		{
			Name:  "convert",
			Usage: "Replace the WKB geometry column of a CSV file by GeoJSON Features",
			Flags: []cli.Flag{
				stringFlag(CONFIG, "c", "JSON config file, flags override its values"),
				stringFlag(SOURCE, "s", "Source CSV"),
				stringFlag(TARGET, "t", "Target file. Defaults to the source with a _geojson suffix, e.g. report_geojson.csv"),
				stringFlag(TARGETFORMAT, "f", "Target format: csv or gpkg (default: csv)"),
				stringFlag(GEOMETRYCOLUMN, "", "Column with the hex WKB geometry (default: the_geom)"),
				stringFlag(IDCOLUMN, "", "Column with the identifier (default: cartodb_id)"),
				stringFlag(NAMECOLUMN, "", "Column with the name (default: name)"),
				stringFlag(PRICECOLUMN, "", "Column with the price (default: benchmark_price)"),
				stringFlag(DELIMITER, "d", "Field delimiter of source and target (default: ,)"),
				stringFlag(QUOTE, "q", "Quote character of the target CSV (default: ')"),
				stringFlag(TABLE, "", "Table name in a target GPKG (default: features)"),
				&cli.IntFlag{
					Name:    SRID,
					Usage:   "SRS id of the geometries in a target GPKG (default: 4326)",
					EnvVars: []string{strcase.ToScreamingSnake(SRID)},
				},
				&cli.IntFlag{
					Name:    PAGESIZE,
					Aliases: []string{"p"},
					Usage:   "Page Size, how many rows are written per transaction to a target GPKG (default: 1000)",
					EnvVars: []string{strcase.ToScreamingSnake(PAGESIZE)},
				},
				&cli.BoolFlag{
					Name:    OVERWRITE,
					Aliases: []string{"o"},
					Usage:   "Overwrite a target GPKG if it exists",
					EnvVars: []string{strcase.ToScreamingSnake(OVERWRITE)},
				},
				&cli.BoolFlag{
					Name:    BESTEFFORT,
					Usage:   "Log a failure to write the target and exit successfully anyway",
					EnvVars: []string{strcase.ToScreamingSnake(BESTEFFORT)},
				},
			},
			Action: convert,
		},
		{
			Name:      "show",
			Usage:     "Print a single hex WKB geometry",
			ArgsUsage: "[hex WKB]",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    FORMAT,
					Aliases: []string{"f"},
					Usage:   "Output format: geojson or wkt",
					Value:   processing.ReportGeoJSON,
					EnvVars: []string{strcase.ToScreamingSnake(FORMAT)},
				},
			},
			Action: func(c *cli.Context) error {
				wkbHex := c.Args().First()
				if wkbHex == "" {
					wkbHex = sampleWKB
				}
				return processing.Report(c.App.Writer, wkbHex, c.String(FORMAT))
			},
		},
	}
	return app
}

func stringFlag(name string, alias string, usage string) *cli.StringFlag {
	flag := &cli.StringFlag{
		Name:    name,
		Usage:   usage,
		EnvVars: []string{strcase.ToScreamingSnake(name)},
	}
	if alias != "" {
		flag.Aliases = []string{alias}
	}
	return flag
}

func convert(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err = cfg.Validate(); err != nil {
		return err
	}

	_, err = os.Stat(cfg.Source)
	if os.IsNotExist(err) {
		return fmt.Errorf("error opening source CSV: %w", err)
	}
	source := csv.SourceCSV{Path: cfg.Source, Delimiter: cfg.DelimiterRune()}

	target, closeTarget, err := initTarget(cfg)
	if err != nil {
		return err
	}
	defer closeTarget()

	log.Println("=== start converting ===")
	log.Printf("  %s -> %s", cfg.Source, cfg.Target)
	err = processing.RunPipeline(source, target, processing.NewAccumulator(), cfg.Columns())
	var sinkErr *processing.SinkWriteError
	if errors.As(err, &sinkErr) && cfg.BestEffort {
		log.Printf("Error writing output: %v", err)
		return nil
	}
	if err != nil {
		return err
	}
	log.Printf("Conversion complete! Output saved to: %s", cfg.Target)
	log.Println("=== done converting ===")
	return nil
}

// loadConfig starts from the defaults or the config file and applies the flags that were set
//
//nolint:cyclop
func loadConfig(c *cli.Context) (config.Config, error) {
	var cfg config.Config
	var err error
	if c.IsSet(CONFIG) {
		cfg, err = config.Load(c.String(CONFIG))
	} else {
		cfg, err = config.New()
	}
	if err != nil {
		return cfg, err
	}

	stringFlags := map[string]*string{
		SOURCE:         &cfg.Source,
		TARGET:         &cfg.Target,
		TARGETFORMAT:   &cfg.TargetFormat,
		GEOMETRYCOLUMN: &cfg.GeometryColumn,
		IDCOLUMN:       &cfg.IDColumn,
		NAMECOLUMN:     &cfg.NameColumn,
		PRICECOLUMN:    &cfg.PriceColumn,
		DELIMITER:      &cfg.Delimiter,
		QUOTE:          &cfg.Quote,
		TABLE:          &cfg.Table,
	}
	for name, value := range stringFlags {
		if c.IsSet(name) {
			*value = c.String(name)
		}
	}
	if c.IsSet(SRID) {
		cfg.SRID = c.Int(SRID)
	}
	if c.IsSet(PAGESIZE) {
		cfg.PageSize = c.Int(PAGESIZE)
	}
	if c.IsSet(OVERWRITE) {
		cfg.Overwrite = c.Bool(OVERWRITE)
	}
	if c.IsSet(BESTEFFORT) {
		cfg.BestEffort = c.Bool(BESTEFFORT)
	}
	return cfg, nil
}

func initTarget(cfg config.Config) (processing.Target, func(), error) {
	switch cfg.TargetFormat {
	case config.FormatGPKG:
		target := &gpkg.TargetGeopackage{
			Path:     cfg.Target,
			Table:    cfg.Table,
			SRID:     cfg.SRID,
			PageSize: cfg.PageSize,
		}
		if err := target.Init(cfg.Overwrite); err != nil {
			return nil, nil, err
		}
		return target, target.Close, nil
	default:
		target := csv.TargetCSV{
			Path:      cfg.Target,
			Delimiter: cfg.DelimiterRune(),
			Quote:     cfg.QuoteRune(),
		}
		return target, func() {}, nil
	}
}
