package archive

import (
	"path/filepath"
	"strings"
)

// ============================================================
// Known Entries
// ============================================================

type Category string

const (
	CategorySegmentation Category = "segmentation"
	CategoryVector       Category = "vector"
	CategoryModel        Category = "model"
)

type Entry struct {
	Name     string
	Label    string
	Category Category
}

// Key имя файла без расширения, ключ артефакта.
func (e Entry) Key() string {
	return Stem(e.Name)
}

// Порядок важен: извлечение идет строго в этом порядке.
var (
	SegmentationEntries = []Entry{
		{Name: "wall_detection_annotated.jpg", Label: "Wall Detection", Category: CategorySegmentation},
		{Name: "room_detection_annotated.jpg", Label: "Room Detection", Category: CategorySegmentation},
		{Name: "object_detection_annotated.jpg", Label: "Object Detection", Category: CategorySegmentation},
		{Name: "composite_overlay.jpg", Label: "Composite Overlay", Category: CategorySegmentation},
	}
	VectorEntries = []Entry{
		{Name: "polygons_output.geojson", Label: "Vector polygons data", Category: CategoryVector},
	}
	ModelEntries = []Entry{
		{Name: "floorplan_scene_final.glb", Label: "3D floorplan model (GLB)", Category: CategoryModel},
	}
)

// KnownEntries все известные записи: сегментация, вектор, 3D.
func KnownEntries() []Entry {
	out := make([]Entry, 0, len(SegmentationEntries)+len(VectorEntries)+len(ModelEntries))
	out = append(out, SegmentationEntries...)
	out = append(out, VectorEntries...)
	out = append(out, ModelEntries...)
	return out
}

// KnownNames имена известных записей в порядке KnownEntries.
func KnownNames() []string {
	entries := KnownEntries()
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

// LookupEntry ищет известную запись по ключу (без расширения).
func LookupEntry(key string) (Entry, bool) {
	for _, e := range KnownEntries() {
		if e.Key() == key {
			return e, true
		}
	}
	return Entry{}, false
}

// Stem отрезает расширение: "polygons_output.geojson" -> "polygons_output".
func Stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// ContentType по расширению записи.
func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".geojson":
		return "application/geo+json"
	case ".glb":
		return "model/gltf-binary"
	case ".zip":
		return "application/zip"
	}
	return "application/octet-stream"
}
