package casesubmission

import (
	"reflect"
	"testing"
)

func TestForm_RoundTrip(t *testing.T) {
	rec := &Record{
		RegistrationID: 9,
		OverallResult:  "urgent_refer",
		Referral:       Referral{Destination: "specialist", Reason: "suspected glaucoma"},
		Spectacles:     Spectacles{Prescribed: "yes", LensType: "bifocal"},
		Remarks:        "follow up in 2 weeks",
	}
	f := NewForm()
	f.Load(rec)
	if got := f.Build(9); !reflect.DeepEqual(got, *rec) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, *rec)
	}
}

func TestForm_DefaultOverallResult(t *testing.T) {
	got := NewForm().Build(1)
	if got.OverallResult != "pass" {
		t.Errorf("expected overall_result pass, got %q", got.OverallResult)
	}
	if got.Referral != (Referral{}) {
		t.Errorf("expected empty referral, got %+v", got.Referral)
	}
}

func TestRecord_AttendanceStatus(t *testing.T) {
	tests := []struct {
		result, destination, want string
	}{
		{"pass", "", "pass"},
		{"pass", "specialist", "pass"},
		{"refer", "optometrist", "referred_optometrist"},
		{"refer", "", "referred_optometrist"},
		{"urgent_refer", "specialist", "referred_specialist"},
	}
	for _, tt := range tests {
		r := &Record{OverallResult: tt.result, Referral: Referral{Destination: tt.destination}}
		if got := r.AttendanceStatus(); got != tt.want {
			t.Errorf("AttendanceStatus(%s, %s) = %s, want %s", tt.result, tt.destination, got, tt.want)
		}
	}
}

func TestRecord_Validate(t *testing.T) {
	r := &Record{OverallResult: "fail", Spectacles: Spectacles{LensType: "trifocal"}}
	errs := r.Validate()
	for _, k := range []string{"overall_result", "spectacles.lens_type"} {
		if _, ok := errs[k]; !ok {
			t.Errorf("expected error on %s, got %v", k, errs)
		}
	}
}
