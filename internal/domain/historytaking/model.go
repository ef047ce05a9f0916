package historytaking

import "github.com/eyescreen/screening/internal/domain/assessment"

type ChiefComplaint struct {
	BlurredVisionDistance string `json:"blurred_vision_distance"`
	BlurredVisionNear     string `json:"blurred_vision_near"`
	EyePain               string `json:"eye_pain"`
	Redness               string `json:"redness"`
	Itchiness             string `json:"itchiness"`
	Others                string `json:"others"`
}

type OcularHistory struct {
	WearsSpectacles    string `json:"wears_spectacles"`
	PreviousEyeSurgery string `json:"previous_eye_surgery"`
	EyeInjury          string `json:"eye_injury"`
	Details            string `json:"details"`
}

type MedicalHistory struct {
	Diabetes     string `json:"diabetes"`
	Hypertension string `json:"hypertension"`
	Asthma       string `json:"asthma"`
	Allergies    string `json:"allergies"`
	Medications  string `json:"medications"`
}

type FamilyHistory struct {
	Glaucoma string `json:"glaucoma"`
	Cataract string `json:"cataract"`
	Squint   string `json:"squint"`
	Others   string `json:"others"`
}

// Record is the history-taking assessment of one registration.
type Record struct {
	RegistrationID int64          `json:"registration_id"`
	ChiefComplaint ChiefComplaint `json:"chief_complaint"`
	OcularHistory  OcularHistory  `json:"ocular_history"`
	MedicalHistory MedicalHistory `json:"medical_history"`
	FamilyHistory  FamilyHistory  `json:"family_history"`
}

func (r *Record) Validate() assessment.ValidationErrors {
	v := assessment.ValidationErrors{}
	yn := assessment.YesNo

	cc := r.ChiefComplaint
	v.Option("chief_complaint.blurred_vision_distance", cc.BlurredVisionDistance, yn)
	v.Option("chief_complaint.blurred_vision_near", cc.BlurredVisionNear, yn)
	v.Option("chief_complaint.eye_pain", cc.EyePain, yn)
	v.Option("chief_complaint.redness", cc.Redness, yn)
	v.Option("chief_complaint.itchiness", cc.Itchiness, yn)
	v.Text("chief_complaint.others", cc.Others)

	oh := r.OcularHistory
	v.Option("ocular_history.wears_spectacles", oh.WearsSpectacles, yn)
	v.Option("ocular_history.previous_eye_surgery", oh.PreviousEyeSurgery, yn)
	v.Option("ocular_history.eye_injury", oh.EyeInjury, yn)
	v.Text("ocular_history.details", oh.Details)

	mh := r.MedicalHistory
	v.Option("medical_history.diabetes", mh.Diabetes, yn)
	v.Option("medical_history.hypertension", mh.Hypertension, yn)
	v.Option("medical_history.asthma", mh.Asthma, yn)
	v.Text("medical_history.allergies", mh.Allergies)
	v.Text("medical_history.medications", mh.Medications)

	fh := r.FamilyHistory
	v.Option("family_history.glaucoma", fh.Glaucoma, yn)
	v.Option("family_history.cataract", fh.Cataract, yn)
	v.Option("family_history.squint", fh.Squint, yn)
	v.Text("family_history.others", fh.Others)
	return v
}
