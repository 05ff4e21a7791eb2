package gbfs

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gbfs-cli/internal/model"
)

// NewStation builds a station from a merged record. ok is false, with a nil
// error, for a station that is planned but not installed yet; callers skip
// it. A missing or unusable required field returns ErrMissingField or
// ErrInvalidField.
func NewStation(rec Record) (st model.Station, ok bool, err error) {
	installed, err := requireField(rec, "is_installed")
	if err != nil {
		return st, false, err
	}
	if !truthy(installed) {
		return st, false, nil
	}

	for _, f := range []struct {
		name string
		set  func(any) error
	}{
		{"name", func(v any) error { st.Name = toString(v); return nil }},
		{"num_bikes_available", func(v any) (err error) { st.Bikes, err = toCount(v); return err }},
		{"num_docks_available", func(v any) (err error) { st.Free, err = toCount(v); return err }},
		{"lat", func(v any) (err error) { st.Latitude, err = toCoord(v, 90); return err }},
		{"lon", func(v any) (err error) { st.Longitude, err = toCoord(v, 180); return err }},
		{"station_id", func(v any) error { st.Extra.UID = v; return nil }},
		{"is_renting", func(v any) error { st.Extra.Renting = v; return nil }},
		{"is_returning", func(v any) error { st.Extra.Returning = v; return nil }},
		{"last_reported", func(v any) error { st.Extra.LastUpdated = v; return nil }},
	} {
		v, err := requireField(rec, f.name)
		if err != nil {
			return model.Station{}, false, err
		}
		if err := f.set(v); err != nil {
			return model.Station{}, false, eris.Wrapf(ErrInvalidField, "field %q: %v", f.name, err)
		}
	}

	// address is optional and may be null.
	st.Extra.Address = rec["address"]
	return st, true, nil
}

func requireField(rec Record, field string) (any, error) {
	v, ok := rec[field]
	if !ok {
		return nil, eris.Wrapf(ErrMissingField, "field %q", field)
	}
	return v, nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		return s != "" && s != "0" && s != "false"
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case float64:
		return t != 0
	case int:
		return t != 0
	}
	return true
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func toFloat(v any) (float64, error) {
	var f float64
	var err error
	switch t := v.(type) {
	case json.Number:
		f, err = t.Float64()
	case float64:
		f = t
	case int:
		f = float64(t)
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(t), 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to a number", v)
	}
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%v is not finite", f)
	}
	return f, nil
}

func toCount(v any) (int, error) {
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%v is not an integer", f)
	}
	if f < 0 {
		return 0, fmt.Errorf("%v is negative", f)
	}
	if f > math.MaxInt32 {
		return 0, fmt.Errorf("%v is too large", f)
	}
	return int(f), nil
}

func toCoord(v any, limit float64) (float64, error) {
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	if f < -limit || f > limit {
		return 0, fmt.Errorf("%v outside [-%v, %v]", f, limit, limit)
	}
	return f, nil
}
