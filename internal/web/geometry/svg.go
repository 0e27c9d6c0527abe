package geometry

import (
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ============================================================
// SVG Preview
// ============================================================

const (
	previewSize = 480
	padding     = 0.02
)

var palette = []string{
	"#2563eb", "#16a34a", "#dc2626", "#d97706", "#7c3aed",
	"#0891b2", "#db2777", "#65a30d", "#475569", "#ea580c",
}

// RenderSVG рисует объекты коллекции в SVG для предпросмотра.
// Координаты берутся как есть: ось Y направлена вниз, как у исходного изображения.
func RenderSVG(data []byte) (string, error) {
	fc, err := Parse(data)
	if err != nil {
		return "", err
	}
	return Render(fc)
}

func Render(fc *geojson.FeatureCollection) (string, error) {
	summary := summarize(fc)
	if summary.Features == 0 {
		return "", ErrEmptyGeometry
	}

	colors := make(map[string]string, len(summary.Classes))
	for i, c := range summary.Classes {
		colors[c.Name] = palette[i%len(palette)]
	}

	b := summary.Bound
	width := b.Max[0] - b.Min[0]
	height := b.Max[1] - b.Min[1]
	if width <= 0 {
		width = 1
	}
	if height <= 0 {
		height = 1
	}
	pad := math.Max(width, height) * padding
	minX, minY := b.Min[0]-pad, b.Min[1]-pad
	width += 2 * pad
	height += 2 * pad
	stroke := math.Max(width, height) / previewSize

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" class="geometry-preview" viewBox="%s %s %s %s" preserveAspectRatio="xMidYMid meet">`,
		formatFloat(minX), formatFloat(minY), formatFloat(width), formatFloat(height)))
	builder.WriteString("\n")

	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		class := ClassOf(f)
		elem := renderGeometry(f.Geometry, colors[class], stroke)
		if elem == "" {
			continue
		}
		builder.WriteString(fmt.Sprintf(`  <g data-class="%s"><title>%s</title>%s</g>`,
			html.EscapeString(class), html.EscapeString(class), elem))
		builder.WriteString("\n")
	}

	builder.WriteString(`</svg>`)
	return builder.String(), nil
}

func renderGeometry(g orb.Geometry, color string, stroke float64) string {
	switch geom := g.(type) {
	case orb.Polygon:
		return pathElement(polygonPath(geom), color, stroke, true)
	case orb.MultiPolygon:
		var d strings.Builder
		for _, p := range geom {
			d.WriteString(polygonPath(p))
		}
		return pathElement(d.String(), color, stroke, true)
	case orb.Ring:
		return pathElement(ringPath(geom), color, stroke, true)
	case orb.LineString:
		return pathElement(linePath(geom), color, stroke, false)
	case orb.MultiLineString:
		var d strings.Builder
		for _, ls := range geom {
			d.WriteString(linePath(ls))
		}
		return pathElement(d.String(), color, stroke, false)
	case orb.Point:
		return circleElement(geom, color, stroke)
	case orb.MultiPoint:
		var out strings.Builder
		for _, p := range geom {
			out.WriteString(circleElement(p, color, stroke))
		}
		return out.String()
	case orb.Collection:
		var out strings.Builder
		for _, inner := range geom {
			out.WriteString(renderGeometry(inner, color, stroke))
		}
		return out.String()
	}
	return ""
}

func pathElement(d, color string, stroke float64, closed bool) string {
	if d == "" {
		return ""
	}
	fill := "none"
	if closed {
		fill = color
	}
	return fmt.Sprintf(`<path d="%s" fill="%s" fill-opacity="0.35" fill-rule="evenodd" stroke="%s" stroke-width="%s"/>`,
		strings.TrimSpace(d), fill, color, formatFloat(stroke))
}

func circleElement(p orb.Point, color string, stroke float64) string {
	return fmt.Sprintf(`<circle cx="%s" cy="%s" r="%s" fill="%s"/>`,
		formatFloat(p[0]), formatFloat(p[1]), formatFloat(stroke*3), color)
}

func polygonPath(p orb.Polygon) string {
	var d strings.Builder
	for _, ring := range p {
		d.WriteString(ringPath(ring))
	}
	return d.String()
}

func ringPath(r orb.Ring) string {
	if len(r) < 3 {
		return ""
	}
	return pointsPath(r) + "Z "
}

func linePath(ls orb.LineString) string {
	if len(ls) < 2 {
		return ""
	}
	return pointsPath(ls)
}

func pointsPath(points []orb.Point) string {
	var d strings.Builder
	for i, p := range points {
		if i == 0 {
			d.WriteString("M")
		} else {
			d.WriteString("L")
		}
		d.WriteString(formatPoint(p))
		d.WriteString(" ")
	}
	return d.String()
}

func formatFloat(val float64) string {
	return strconv.FormatFloat(val, 'f', -1, 64)
}

func formatPoint(p orb.Point) string {
	return formatFloat(p[0]) + " " + formatFloat(p[1])
}
