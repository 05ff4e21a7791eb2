package export

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/gbfs-cli/internal/model"
)

// XLSXHeader is the first row of an XLSX export.
var XLSXHeader = []string{"uid", "name", "bikes", "free", "latitude", "longitude", "address", "renting", "returning", "last_updated"}

// XLSX writes stations to a workbook at path, one sheet named after the
// system tag.
func XLSX(path string, meta model.SystemMeta, stations []model.Station) error {
	f := xlsx.NewFile()
	name := meta.Tag
	if name == "" {
		name = "stations"
	}
	if len(name) > 31 {
		name = name[:31]
	}
	sheet, err := f.AddSheet(name)
	if err != nil {
		return eris.Wrapf(err, "export: add sheet %q", name)
	}

	header := sheet.AddRow()
	for _, h := range XLSXHeader {
		header.AddCell().SetString(h)
	}

	for _, st := range stations {
		row := sheet.AddRow()
		row.AddCell().SetString(st.ID())
		row.AddCell().SetString(st.Name)
		row.AddCell().SetInt(st.Bikes)
		row.AddCell().SetInt(st.Free)
		row.AddCell().SetFloat(st.Latitude)
		row.AddCell().SetFloat(st.Longitude)
		for _, v := range []any{st.Extra.Address, st.Extra.Renting, st.Extra.Returning, st.Extra.LastUpdated} {
			row.AddCell().SetString(cellText(v))
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func cellText(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
