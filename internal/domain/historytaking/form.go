package historytaking

import "github.com/eyescreen/screening/internal/domain/assessment"

// Form holds the flat editable values of a history-taking record.
type Form struct {
	BlurredVisionDistance string
	BlurredVisionNear     string
	EyePain               string
	Redness               string
	Itchiness             string
	ComplaintOthers       string

	WearsSpectacles    string
	PreviousEyeSurgery string
	EyeInjury          string
	OcularDetails      string

	Diabetes     string
	Hypertension string
	Asthma       string
	Allergies    string
	Medications  string

	FamilyGlaucoma string
	FamilyCataract string
	FamilySquint   string
	FamilyOthers   string
}

var _ assessment.Form[Record] = (*Form)(nil)

func NewForm() *Form { return &Form{} }

func (f *Form) Kind() assessment.Kind { return assessment.KindHistoryTaking }

func (f *Form) Load(rec *Record) {
	if rec == nil {
		*f = Form{}
		return
	}
	cc, oh, mh, fh := rec.ChiefComplaint, rec.OcularHistory, rec.MedicalHistory, rec.FamilyHistory
	*f = Form{
		BlurredVisionDistance: cc.BlurredVisionDistance,
		BlurredVisionNear:     cc.BlurredVisionNear,
		EyePain:               cc.EyePain,
		Redness:               cc.Redness,
		Itchiness:             cc.Itchiness,
		ComplaintOthers:       cc.Others,
		WearsSpectacles:       oh.WearsSpectacles,
		PreviousEyeSurgery:    oh.PreviousEyeSurgery,
		EyeInjury:             oh.EyeInjury,
		OcularDetails:         oh.Details,
		Diabetes:              mh.Diabetes,
		Hypertension:          mh.Hypertension,
		Asthma:                mh.Asthma,
		Allergies:             mh.Allergies,
		Medications:           mh.Medications,
		FamilyGlaucoma:        fh.Glaucoma,
		FamilyCataract:        fh.Cataract,
		FamilySquint:          fh.Squint,
		FamilyOthers:          fh.Others,
	}
}

func (f *Form) Build(registrationID int64) Record {
	return Record{
		RegistrationID: registrationID,
		ChiefComplaint: ChiefComplaint{
			BlurredVisionDistance: f.BlurredVisionDistance,
			BlurredVisionNear:     f.BlurredVisionNear,
			EyePain:               f.EyePain,
			Redness:               f.Redness,
			Itchiness:             f.Itchiness,
			Others:                f.ComplaintOthers,
		},
		OcularHistory: OcularHistory{
			WearsSpectacles:    f.WearsSpectacles,
			PreviousEyeSurgery: f.PreviousEyeSurgery,
			EyeInjury:          f.EyeInjury,
			Details:            f.OcularDetails,
		},
		MedicalHistory: MedicalHistory{
			Diabetes:     f.Diabetes,
			Hypertension: f.Hypertension,
			Asthma:       f.Asthma,
			Allergies:    f.Allergies,
			Medications:  f.Medications,
		},
		FamilyHistory: FamilyHistory{
			Glaucoma: f.FamilyGlaucoma,
			Cataract: f.FamilyCataract,
			Squint:   f.FamilySquint,
			Others:   f.FamilyOthers,
		},
	}
}

func yesNo(key, label string, v *string) assessment.Field {
	return assessment.Field{Key: key, Label: label, Kind: assessment.Select, Options: assessment.YesNo, Value: v}
}

func text(key, label string, v *string) assessment.Field {
	return assessment.Field{Key: key, Label: label, Kind: assessment.Text, Value: v}
}

func (f *Form) Steps() []assessment.Step {
	return []assessment.Step{
		{
			Title: "Chief Complaint",
			Fields: []assessment.Field{
				yesNo("chief_complaint.blurred_vision_distance", "Blurred vision (distance)", &f.BlurredVisionDistance),
				yesNo("chief_complaint.blurred_vision_near", "Blurred vision (near)", &f.BlurredVisionNear),
				yesNo("chief_complaint.eye_pain", "Eye pain", &f.EyePain),
				yesNo("chief_complaint.redness", "Redness", &f.Redness),
				yesNo("chief_complaint.itchiness", "Itchiness", &f.Itchiness),
				text("chief_complaint.others", "Other complaints", &f.ComplaintOthers),
			},
		},
		{
			Title: "Ocular History",
			Fields: []assessment.Field{
				yesNo("ocular_history.wears_spectacles", "Wears spectacles", &f.WearsSpectacles),
				yesNo("ocular_history.previous_eye_surgery", "Previous eye surgery", &f.PreviousEyeSurgery),
				yesNo("ocular_history.eye_injury", "Eye injury", &f.EyeInjury),
				text("ocular_history.details", "Details", &f.OcularDetails),
			},
		},
		{
			Title: "Medical & Family History",
			Fields: []assessment.Field{
				yesNo("medical_history.diabetes", "Diabetes", &f.Diabetes),
				yesNo("medical_history.hypertension", "Hypertension", &f.Hypertension),
				yesNo("medical_history.asthma", "Asthma", &f.Asthma),
				text("medical_history.allergies", "Allergies", &f.Allergies),
				text("medical_history.medications", "Current medications", &f.Medications),
				yesNo("family_history.glaucoma", "Family history of glaucoma", &f.FamilyGlaucoma),
				yesNo("family_history.cataract", "Family history of cataract", &f.FamilyCataract),
				yesNo("family_history.squint", "Family history of squint", &f.FamilySquint),
				text("family_history.others", "Other family history", &f.FamilyOthers),
			},
		},
	}
}
