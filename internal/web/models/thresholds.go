package models

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ============================================================
// Threshold Set
// ============================================================

// DefaultThreshold значение порога для каждой категории по умолчанию.
const DefaultThreshold = 0.5

var ErrInvalidThreshold = errors.New("invalid threshold value")

type ThresholdCategory struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// ThresholdCategories фиксированный список категорий, которые понимает backend.
var ThresholdCategories = []ThresholdCategory{
	{Key: "bedroom", Label: "Bedroom"},
	{Key: "dining_room", Label: "Dining Room"},
	{Key: "kitchen", Label: "Kitchen"},
	{Key: "living_room", Label: "Living Room"},
	{Key: "toilet", Label: "Toilet"},
	{Key: "bed", Label: "Bed"},
	{Key: "sofa", Label: "Sofa"},
	{Key: "wardrobe", Label: "Wardrobe"},
	{Key: "commode", Label: "Commode"},
	{Key: "door", Label: "Door"},
	{Key: "wall", Label: "Wall"},
}

// Thresholds категория -> порог в [0,1]; после Normalize содержит все категории.
type Thresholds map[string]float64

// DefaultThresholds возвращает набор с 0.5 для всех категорий.
func DefaultThresholds() Thresholds {
	t := make(Thresholds, len(ThresholdCategories))
	for _, cat := range ThresholdCategories {
		t[cat.Key] = DefaultThreshold
	}
	return t
}

// IsThresholdCategory сообщает, известна ли категория.
func IsThresholdCategory(key string) bool {
	for _, cat := range ThresholdCategories {
		if cat.Key == key {
			return true
		}
	}
	return false
}

// Normalize дополняет недостающие категории и зажимает значения в [0,1].
func (t Thresholds) Normalize() Thresholds {
	out := DefaultThresholds()
	for key, value := range t {
		if !IsThresholdCategory(key) {
			continue
		}
		out[key] = clamp(value)
	}
	return out
}

// Set обновляет одну категорию. Значение зажимается в [0,1].
func (t Thresholds) Set(key string, value float64) error {
	if !IsThresholdCategory(key) {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidThreshold, key)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%w: %s is not a finite number", ErrInvalidThreshold, key)
	}
	t[key] = clamp(value)
	return nil
}

// Apply разбирает строковые значения (форма, multipart) поверх текущего набора.
// Пустые значения оставляют категорию как есть, значения вне [0,1] зажимаются.
func (t Thresholds) Apply(lookup func(key string) string) (Thresholds, error) {
	return t.apply(lookup, false)
}

// ApplyStrict как Apply, но значение вне [0,1] считается ошибкой.
func (t Thresholds) ApplyStrict(lookup func(key string) string) (Thresholds, error) {
	return t.apply(lookup, true)
}

func (t Thresholds) apply(lookup func(key string) string, strict bool) (Thresholds, error) {
	out := t.Normalize()
	for _, cat := range ThresholdCategories {
		raw := strings.TrimSpace(lookup(cat.Key))
		if raw == "" {
			continue
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return t, fmt.Errorf("%w: %s=%q", ErrInvalidThreshold, cat.Key, raw)
		}
		if strict && (value < 0 || value > 1) {
			return t, fmt.Errorf("%w: %s=%s is outside [0,1]", ErrInvalidThreshold, cat.Key, raw)
		}
		if err := out.Set(cat.Key, value); err != nil {
			return t, err
		}
	}
	return out, nil
}

type ThresholdField struct {
	Key   string
	Label string
	Value string
}

// Fields возвращает категории в фиксированном порядке с сериализованными значениями.
func (t Thresholds) Fields() []ThresholdField {
	n := t.Normalize()
	fields := make([]ThresholdField, 0, len(ThresholdCategories))
	for _, cat := range ThresholdCategories {
		fields = append(fields, ThresholdField{
			Key:   cat.Key,
			Label: cat.Label,
			Value: FormatThreshold(n[cat.Key]),
		})
	}
	return fields
}

// FormatThreshold кратчайшая десятичная запись: 0 -> "0", 1 -> "1", 0.8 -> "0.8".
func FormatThreshold(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// clamp -0 тоже становится 0.
func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return DefaultThreshold
	}
	if v <= 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
