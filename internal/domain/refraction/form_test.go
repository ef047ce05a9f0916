package refraction

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/eyescreen/screening/internal/domain/assessment"
)

func TestForm_RightEyeRoundTrip(t *testing.T) {
	raw := `{"registration_id":42,"right_eye":{"a":"-1.00","b":"-0.50","c":"90","d":"6/6"},"left_eye":{"a":"","b":"","c":"","d":""},"reading_addition":"","pupillary_distance":"","result":"pass","notes":""}`
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f := NewForm()
	f.Load(&rec)

	if f.RightSphere != "-1.00" || f.RightCylinder != "-0.50" || f.RightAxis != "90" || f.RightAcuity != "6/6" {
		t.Errorf("unexpected right eye fields: %q %q %q %q", f.RightSphere, f.RightCylinder, f.RightAxis, f.RightAcuity)
	}

	built := f.Build(42)
	want := Eye{Sphere: "-1.00", Cylinder: "-0.50", Axis: "90", Acuity: "6/6"}
	if built.RightEye != want {
		t.Errorf("expected right eye %+v, got %+v", want, built.RightEye)
	}
	if !reflect.DeepEqual(built, rec) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", built, rec)
	}

	out, err := json.Marshal(built.RightEye)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != `{"a":"-1.00","b":"-0.50","c":"90","d":"6/6"}` {
		t.Errorf("unexpected wire shape: %s", out)
	}
}

func TestFormatDioptre(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.00"},
		{-1, "-1.00"},
		{0.25, "+0.25"},
		{-20, "-20.00"},
		{2.75, "+2.75"},
	}
	for _, tt := range tests {
		if got := FormatDioptre(tt.in); got != tt.want {
			t.Errorf("FormatDioptre(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestOptionSets(t *testing.T) {
	tests := []struct {
		name        string
		opts        []assessment.Option
		n           int
		first, last string
	}{
		{"sphere", SphereOptions, 161, "-20.00", "+20.00"},
		{"cylinder", CylinderOptions, 25, "-6.00", "0.00"},
		{"axis", AxisOptions, 180, "1", "180"},
		{"addition", ReadingAdditionOptions, 9, "+1.00", "+3.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if len(tt.opts) != tt.n {
				t.Fatalf("expected %d options, got %d", tt.n, len(tt.opts))
			}
			if tt.opts[0].Value != tt.first || tt.opts[len(tt.opts)-1].Value != tt.last {
				t.Errorf("expected range %s..%s, got %s..%s", tt.first, tt.last, tt.opts[0].Value, tt.opts[len(tt.opts)-1].Value)
			}
		})
	}
	if !assessment.Contains(SphereOptions, "-1.00") || !assessment.Contains(CylinderOptions, "-0.50") {
		t.Error("expected common powers to be listed")
	}
}

func TestRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rec     Record
		wantKey string
	}{
		{"empty", Record{}, ""},
		{"valid eye", Record{RightEye: Eye{Sphere: "+1.25", Cylinder: "-0.75", Axis: "180", Acuity: "6/9"}, PupillaryDistance: "62"}, ""},
		{"positive cylinder", Record{LeftEye: Eye{Cylinder: "+0.50"}}, "left_eye.b"},
		{"axis zero", Record{RightEye: Eye{Axis: "0"}}, "right_eye.c"},
		{"unsigned sphere", Record{RightEye: Eye{Sphere: "1.00"}}, "right_eye.a"},
		{"pd not a number", Record{PupillaryDistance: "wide"}, "pupillary_distance"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := tt.rec.Validate()
			if tt.wantKey == "" {
				if !errs.Empty() {
					t.Errorf("expected no errors, got %v", errs)
				}
				return
			}
			if _, ok := errs[tt.wantKey]; !ok {
				t.Errorf("expected error on %s, got %v", tt.wantKey, errs)
			}
		})
	}
}
