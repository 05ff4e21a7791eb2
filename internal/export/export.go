// Package export writes station snapshots as GeoJSON, XLSX or ESRI Shapefile.
package export

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gbfs-cli/internal/model"
)

// Format is an output file format.
type Format string

const (
	FormatGeoJSON   Format = "geojson"
	FormatXLSX      Format = "xlsx"
	FormatShapefile Format = "shp"
)

// ParseFormat accepts a format name or a file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "geojson", "json":
		return FormatGeoJSON, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	case "shp", "shapefile":
		return FormatShapefile, nil
	}
	return "", eris.Errorf("export: unknown format %q", s)
}

// FormatForPath guesses a format from path's extension.
func FormatForPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// WriteFile writes stations to path in format f.
func WriteFile(f Format, path string, meta model.SystemMeta, stations []model.Station) error {
	switch f {
	case FormatGeoJSON:
		out, err := os.Create(path)
		if err != nil {
			return eris.Wrapf(err, "export: create %s", path)
		}
		if err := GeoJSON(out, meta, stations); err != nil {
			out.Close() //nolint:errcheck
			return err
		}
		return eris.Wrapf(out.Close(), "export: close %s", path)
	case FormatXLSX:
		return XLSX(path, meta, stations)
	case FormatShapefile:
		return Shapefile(path, stations)
	}
	return eris.Errorf("export: unknown format %q", f)
}

// Write streams stations to w. Only GeoJSON can be streamed.
func Write(f Format, w io.Writer, meta model.SystemMeta, stations []model.Station) error {
	if f != FormatGeoJSON {
		return eris.Errorf("export: format %q needs a file path", f)
	}
	return GeoJSON(w, meta, stations)
}
