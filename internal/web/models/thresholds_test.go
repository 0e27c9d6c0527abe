package models

import (
	"errors"
	"math"
	"testing"
)

func TestDefaultThresholds(t *testing.T) {
	d := DefaultThresholds()
	if len(d) != 11 {
		t.Fatalf("categories = %d, want 11", len(d))
	}
	for _, cat := range ThresholdCategories {
		if d[cat.Key] != 0.5 {
			t.Errorf("%s = %v, want 0.5", cat.Key, d[cat.Key])
		}
	}
}

func TestThresholdsSet(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   float64
		want    float64
		wantErr bool
	}{
		{name: "in range", key: "bedroom", value: 0.8, want: 0.8},
		{name: "clamp high", key: "wall", value: 1.7, want: 1},
		{name: "clamp low", key: "door", value: -0.2, want: 0},
		{name: "unknown", key: "garage", value: 0.3, wantErr: true},
		{name: "nan", key: "sofa", value: math.NaN(), wantErr: true},
		{name: "inf", key: "sofa", value: math.Inf(1), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := DefaultThresholds()
			err := th.Set(tt.key, tt.value)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidThreshold) {
					t.Fatalf("err = %v, want ErrInvalidThreshold", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			if th[tt.key] != tt.want {
				t.Errorf("%s = %v, want %v", tt.key, th[tt.key], tt.want)
			}
		})
	}
}

func TestThresholdsApply(t *testing.T) {
	base := DefaultThresholds()
	base["kitchen"] = 0.3

	form := map[string]string{"bedroom": "0.8", "wall": " 0 ", "door": ""}
	got, err := base.Apply(func(key string) string { return form[key] })
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if got["bedroom"] != 0.8 || got["wall"] != 0 || got["door"] != 0.5 || got["kitchen"] != 0.3 {
		t.Errorf("Apply = %v", got)
	}
	if base["bedroom"] != 0.5 {
		t.Error("Apply must not modify the receiver")
	}

	bad := map[string]string{"bedroom": "high"}
	kept, err := base.Apply(func(key string) string { return bad[key] })
	if !errors.Is(err, ErrInvalidThreshold) {
		t.Fatalf("err = %v, want ErrInvalidThreshold", err)
	}
	if kept["kitchen"] != 0.3 {
		t.Errorf("invalid input should keep the current set, got %v", kept)
	}
}

func TestThresholdsNormalize(t *testing.T) {
	got := Thresholds{"bedroom": 2, "garage": 0.1}.Normalize()
	if len(got) != len(ThresholdCategories) {
		t.Fatalf("len = %d", len(got))
	}
	if got["bedroom"] != 1 {
		t.Errorf("bedroom = %v, want 1", got["bedroom"])
	}
	if _, ok := got["garage"]; ok {
		t.Error("unknown category should be dropped")
	}
}

func TestThresholdFieldsOrderAndFormat(t *testing.T) {
	th := DefaultThresholds()
	th["bedroom"] = 0.8
	th["wall"] = 0
	th["door"] = 1

	fields := th.Fields()
	if len(fields) != len(ThresholdCategories) {
		t.Fatalf("fields = %d", len(fields))
	}
	for i, f := range fields {
		if f.Key != ThresholdCategories[i].Key {
			t.Errorf("field %d = %s, want %s", i, f.Key, ThresholdCategories[i].Key)
		}
	}

	want := map[string]string{"bedroom": "0.8", "wall": "0", "door": "1", "sofa": "0.5"}
	for _, f := range fields {
		if w, ok := want[f.Key]; ok && f.Value != w {
			t.Errorf("%s = %q, want %q", f.Key, f.Value, w)
		}
	}
}

func TestThresholdsNegativeZero(t *testing.T) {
	form := map[string]string{"bedroom": "-0", "wall": "-0.0"}
	got, err := DefaultThresholds().Apply(func(key string) string { return form[key] })
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	for _, key := range []string{"bedroom", "wall"} {
		if math.Signbit(got[key]) {
			t.Errorf("%s kept the sign of -0", key)
		}
		if s := FormatThreshold(got[key]); s != "0" {
			t.Errorf("%s serialized as %q, want \"0\"", key, s)
		}
	}

	th := DefaultThresholds()
	if err := th.Set("door", math.Copysign(0, -1)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if FormatThreshold(th["door"]) != "0" {
		t.Errorf("door = %q", FormatThreshold(th["door"]))
	}
}

func TestThresholdsApplyStrict(t *testing.T) {
	tests := []struct {
		name    string
		form    map[string]string
		wantErr bool
	}{
		{name: "bounds", form: map[string]string{"bedroom": "0", "wall": "1"}},
		{name: "negative zero", form: map[string]string{"bedroom": "-0"}},
		{name: "above one", form: map[string]string{"bedroom": "1.5"}, wantErr: true},
		{name: "below zero", form: map[string]string{"door": "-0.1"}, wantErr: true},
		{name: "not a number", form: map[string]string{"door": "x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DefaultThresholds().ApplyStrict(func(key string) string { return tt.form[key] })
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidThreshold) {
					t.Fatalf("err = %v, want ErrInvalidThreshold", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyStrict failed: %v", err)
			}
			for key, raw := range tt.form {
				want := raw
				if raw == "-0" {
					want = "0"
				}
				if s := FormatThreshold(got[key]); s != want {
					t.Errorf("%s = %q, want %q", key, s, want)
				}
			}
		})
	}
}
