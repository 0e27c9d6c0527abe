package geometry

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ============================================================
// GeoJSON Summary
// ============================================================

var ErrEmptyGeometry = errors.New("geometry has no features")

// ClassProperties свойства, из которых берется класс объекта, по приоритету.
var ClassProperties = []string{"class", "label", "category", "name"}

const unclassified = "unclassified"

type ClassCount struct {
	Name  string
	Count int
}

// Summary краткая сводка по polygons_output.geojson.
type Summary struct {
	Features int
	Classes  []ClassCount
	Bound    orb.Bound
}

// Parse разбирает FeatureCollection.
func Parse(data []byte) (*geojson.FeatureCollection, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse geojson: %w", err)
	}
	return fc, nil
}

// Summarize считает объекты и их классы.
func Summarize(data []byte) (*Summary, error) {
	fc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return summarize(fc), nil
}

func summarize(fc *geojson.FeatureCollection) *Summary {
	counts := make(map[string]int)
	s := &Summary{}
	first := true

	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		s.Features++
		counts[ClassOf(f)]++

		b := f.Geometry.Bound()
		if first {
			s.Bound = b
			first = false
		} else {
			s.Bound = s.Bound.Union(b)
		}
	}

	for name, n := range counts {
		s.Classes = append(s.Classes, ClassCount{Name: name, Count: n})
	}
	sort.Slice(s.Classes, func(i, j int) bool {
		if s.Classes[i].Count != s.Classes[j].Count {
			return s.Classes[i].Count > s.Classes[j].Count
		}
		return s.Classes[i].Name < s.Classes[j].Name
	})
	return s
}

// ClassOf первое непустое строковое свойство из ClassProperties.
func ClassOf(f *geojson.Feature) string {
	for _, key := range ClassProperties {
		v, ok := f.Properties[key]
		if !ok {
			continue
		}
		var name string
		switch val := v.(type) {
		case string:
			name = val
		case float64:
			name = formatFloat(val)
		default:
			continue
		}
		if name = strings.TrimSpace(name); name != "" {
			return name
		}
	}
	return unclassified
}
