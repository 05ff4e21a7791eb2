package export

import (
	"os"
	"strings"
	"unicode/utf8"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"

	"github.com/sells-group/gbfs-cli/internal/model"
)

// wgs84 is the .prj content for EPSG:4326.
const wgs84 = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

// Attribute columns. dBase names are limited to 10 characters.
var shpFields = []shp.Field{
	shp.StringField("uid", 64),
	shp.StringField("name", 254),
	shp.NumberField("bikes", 10),
	shp.NumberField("free", 10),
	shp.FloatField("lat", 12, 7),
	shp.FloatField("lng", 12, 7),
	shp.StringField("address", 254),
}

// Shapefile writes stations as a POINT shapefile at path (with .shx, .dbf and
// .prj siblings). A missing .shp extension is added.
func Shapefile(path string, stations []model.Station) error {
	if !strings.HasSuffix(strings.ToLower(path), ".shp") {
		path += ".shp"
	}
	base := path[:len(path)-len(".shp")]

	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		return eris.Wrapf(err, "export: create shapefile %s", path)
	}
	if err := w.SetFields(shpFields); err != nil {
		w.Close()
		return eris.Wrap(err, "export: set shapefile fields")
	}

	for _, st := range stations {
		row := int(w.Write(&shp.Point{X: st.Longitude, Y: st.Latitude}))
		for i, v := range []any{
			truncate(st.ID(), 64),
			truncate(st.Name, 254),
			st.Bikes,
			st.Free,
			st.Latitude,
			st.Longitude,
			truncate(cellText(st.Extra.Address), 254),
		} {
			if err := w.WriteAttribute(row, i, v); err != nil {
				w.Close()
				return eris.Wrapf(err, "export: write attribute %d of station %s", i, st.ID())
			}
		}
	}
	w.Close()

	// go-shp names the attribute table "<base>dbf", without the dot.
	if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
		return eris.Wrapf(err, "export: rename attribute table for %s", path)
	}

	prj := base + ".prj"
	if err := os.WriteFile(prj, []byte(wgs84), 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", prj)
	}
	return nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
