package casesubmission

import "github.com/eyescreen/screening/internal/domain/assessment"

var (
	DestinationOptions = assessment.Options("optometrist", "specialist")
	LensTypeOptions    = assessment.Options("single_vision_distance", "single_vision_near", "bifocal", "progressive")
)

type Referral struct {
	Destination string `json:"destination"`
	Reason      string `json:"reason"`
}

type Spectacles struct {
	Prescribed string `json:"prescribed"`
	LensType   string `json:"lens_type"`
}

// Record closes the screening of one registration.
type Record struct {
	RegistrationID int64      `json:"registration_id"`
	OverallResult  string     `json:"overall_result"`
	Referral       Referral   `json:"referral"`
	Spectacles     Spectacles `json:"spectacles"`
	Remarks        string     `json:"remarks"`
}

func (r *Record) Validate() assessment.ValidationErrors {
	v := assessment.ValidationErrors{}
	v.Option("overall_result", r.OverallResult, assessment.TriResult)
	v.Option("referral.destination", r.Referral.Destination, DestinationOptions)
	v.Text("referral.reason", r.Referral.Reason)
	v.Option("spectacles.prescribed", r.Spectacles.Prescribed, assessment.YesNo)
	v.Option("spectacles.lens_type", r.Spectacles.LensType, LensTypeOptions)
	v.Text("remarks", r.Remarks)
	return v
}

// AttendanceStatus maps the outcome onto the registration's attendance
// status. A referral without a destination goes to an optometrist.
func (r *Record) AttendanceStatus() string {
	switch r.OverallResult {
	case assessment.ResultRefer, assessment.ResultUrgentRefer:
		if r.Referral.Destination == "specialist" {
			return "referred_specialist"
		}
		return "referred_optometrist"
	default:
		return "pass"
	}
}
