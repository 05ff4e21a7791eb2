package export

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/gbfs-cli/internal/model"
)

// FeatureCollection converts stations to GeoJSON point features with
// [lng, lat] coordinates.
func FeatureCollection(meta model.SystemMeta, stations []model.Station) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(stations))}
	if len(stations) == 0 {
		return fc
	}

	bounds := geom.NewBounds(geom.XY)
	for _, st := range stations {
		p := geom.NewPointFlat(geom.XY, []float64{st.Longitude, st.Latitude})
		bounds.Extend(p)
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       st.ID(),
			Geometry: p,
			Properties: map[string]any{
				"system":       meta.Tag,
				"name":         st.Name,
				"bikes":        st.Bikes,
				"free":         st.Free,
				"address":      st.Extra.Address,
				"uid":          st.Extra.UID,
				"renting":      st.Extra.Renting,
				"returning":    st.Extra.Returning,
				"last_updated": st.Extra.LastUpdated,
			},
		})
	}
	fc.BBox = bounds
	return fc
}

// GeoJSON writes stations as a FeatureCollection.
func GeoJSON(w io.Writer, meta model.SystemMeta, stations []model.Station) error {
	data, err := json.Marshal(FeatureCollection(meta, stations))
	if err != nil {
		return eris.Wrap(err, "export: encode geojson")
	}
	if _, err := w.Write(data); err != nil {
		return eris.Wrap(err, "export: write geojson")
	}
	return nil
}
