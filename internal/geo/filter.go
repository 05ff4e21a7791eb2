package geo

import (
	"iter"
	"slices"
)

// KeyFunc extracts a position from an item. ok is false when the item has
// none.
type KeyFunc[T any] func(T) (lat, lng float64, ok bool)

// Coordinates is the default KeyFunc. It accepts HasCoordinates values and
// [2]float64 or []float64 (lat, lng) arrays.
func Coordinates[T any](v T) (float64, float64, bool) {
	switch t := any(v).(type) {
	case HasCoordinates:
		lat, lng := t.Coordinates()
		return lat, lng, true
	case [2]float64:
		return t[0], t[1], true
	case []float64:
		if len(t) >= 2 {
			return t[0], t[1], true
		}
	}
	return 0, 0, false
}

// FilterBounds yields the items of seq that fall inside any of bounds. Bounds
// are validated up front. With no bounds nothing is yielded. The result is
// lazy: items are pulled from seq only as the caller ranges, and stopping
// early stops the source.
func FilterBounds[T any](seq iter.Seq[T], key KeyFunc[T], bounds ...[]Pair) (iter.Seq[T], error) {
	if key == nil {
		key = Coordinates[T]
	}
	built := make([]Bound, 0, len(bounds))
	for _, pts := range bounds {
		b, err := NewBound(pts)
		if err != nil {
			return nil, err
		}
		built = append(built, b)
	}

	return func(yield func(T) bool) {
		if len(built) == 0 {
			return
		}
		for v := range seq {
			lat, lng, ok := key(v)
			if !ok || !containedByAny(built, lat, lng) {
				continue
			}
			if !yield(v) {
				return
			}
		}
	}, nil
}

func containedByAny(bounds []Bound, lat, lng float64) bool {
	for _, b := range bounds {
		if b.Contains(lat, lng) {
			return true
		}
	}
	return false
}

// Slice adapts a slice to a sequence.
func Slice[T any](s []T) iter.Seq[T] { return slices.Values(s) }

// Collect drains a sequence into a slice.
func Collect[T any](seq iter.Seq[T]) []T { return slices.Collect(seq) }
