package casesubmission

import "github.com/eyescreen/screening/internal/domain/assessment"

type Form struct {
	OverallResult        string
	ReferralDestination  string
	ReferralReason       string
	SpectaclesPrescribed string
	LensType             string
	Remarks              string
}

var _ assessment.Form[Record] = (*Form)(nil)

func NewForm() *Form {
	f := &Form{}
	f.Load(nil)
	return f
}

func (f *Form) Kind() assessment.Kind { return assessment.KindCaseSubmission }

func (f *Form) Load(rec *Record) {
	if rec == nil {
		rec = &Record{}
	}
	*f = Form{
		OverallResult:        assessment.DefaultResult(rec.OverallResult),
		ReferralDestination:  rec.Referral.Destination,
		ReferralReason:       rec.Referral.Reason,
		SpectaclesPrescribed: rec.Spectacles.Prescribed,
		LensType:             rec.Spectacles.LensType,
		Remarks:              rec.Remarks,
	}
}

func (f *Form) Build(registrationID int64) Record {
	return Record{
		RegistrationID: registrationID,
		OverallResult:  f.OverallResult,
		Referral:       Referral{Destination: f.ReferralDestination, Reason: f.ReferralReason},
		Spectacles:     Spectacles{Prescribed: f.SpectaclesPrescribed, LensType: f.LensType},
		Remarks:        f.Remarks,
	}
}

func (f *Form) Steps() []assessment.Step {
	return []assessment.Step{
		{
			Title: "Outcome & Referral",
			Fields: []assessment.Field{
				{Key: "overall_result", Label: "Overall result", Kind: assessment.Select, Options: assessment.TriResult, Value: &f.OverallResult},
				{Key: "referral.destination", Label: "Refer to", Kind: assessment.Select, Options: DestinationOptions, Value: &f.ReferralDestination},
				{Key: "referral.reason", Label: "Referral reason", Kind: assessment.Text, Value: &f.ReferralReason},
			},
		},
		{
			Title: "Spectacles & Remarks",
			Fields: []assessment.Field{
				{Key: "spectacles.prescribed", Label: "Spectacles prescribed", Kind: assessment.Select, Options: assessment.YesNo, Value: &f.SpectaclesPrescribed},
				{Key: "spectacles.lens_type", Label: "Lens type", Kind: assessment.Select, Options: LensTypeOptions, Value: &f.LensType},
				{Key: "remarks", Label: "Remarks", Kind: assessment.Text, Value: &f.Remarks},
			},
		},
	}
}
