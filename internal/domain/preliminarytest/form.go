package preliminarytest

import "github.com/eyescreen/screening/internal/domain/assessment"

type Form struct {
	PupilRight       string
	PupilLeft        string
	CoverDistance    string
	CoverNear        string
	OcularMotility   string
	ColorVisionRight string
	ColorVisionLeft  string
	Stereopsis       string
	Result           string
	Remarks          string
}

var _ assessment.Form[Record] = (*Form)(nil)

func NewForm() *Form {
	f := &Form{}
	f.Load(nil)
	return f
}

func (f *Form) Kind() assessment.Kind { return assessment.KindPreliminaryTest }

func (f *Form) Load(rec *Record) {
	if rec == nil {
		rec = &Record{}
	}
	*f = Form{
		PupilRight:       rec.PupilReflex.RightEye,
		PupilLeft:        rec.PupilReflex.LeftEye,
		CoverDistance:    rec.CoverTest.Distance,
		CoverNear:        rec.CoverTest.Near,
		OcularMotility:   rec.OcularMotility,
		ColorVisionRight: rec.ColorVision.RightEye,
		ColorVisionLeft:  rec.ColorVision.LeftEye,
		Stereopsis:       rec.Stereopsis,
		Result:           assessment.DefaultResult(rec.Result),
		Remarks:          rec.Remarks,
	}
}

func (f *Form) Build(registrationID int64) Record {
	return Record{
		RegistrationID: registrationID,
		PupilReflex:    PerEye{RightEye: f.PupilRight, LeftEye: f.PupilLeft},
		CoverTest:      CoverTest{Distance: f.CoverDistance, Near: f.CoverNear},
		OcularMotility: f.OcularMotility,
		ColorVision:    PerEye{RightEye: f.ColorVisionRight, LeftEye: f.ColorVisionLeft},
		Stereopsis:     f.Stereopsis,
		Result:         f.Result,
		Remarks:        f.Remarks,
	}
}

func sel(key, label string, opts []assessment.Option, v *string) assessment.Field {
	return assessment.Field{Key: key, Label: label, Kind: assessment.Select, Options: opts, Value: v}
}

func (f *Form) Steps() []assessment.Step {
	return []assessment.Step{
		{
			Title: "Pupils & Cover Test",
			Fields: []assessment.Field{
				sel("pupil_reflex.right_eye", "Pupil reflex (right eye)", PupilReflexOptions, &f.PupilRight),
				sel("pupil_reflex.left_eye", "Pupil reflex (left eye)", PupilReflexOptions, &f.PupilLeft),
				sel("cover_test.distance", "Cover test (distance)", CoverTestOptions, &f.CoverDistance),
				sel("cover_test.near", "Cover test (near)", CoverTestOptions, &f.CoverNear),
			},
		},
		{
			Title: "Motility, Colour & Stereopsis",
			Fields: []assessment.Field{
				sel("ocular_motility", "Ocular motility", OcularMotilityOptions, &f.OcularMotility),
				sel("color_vision.right_eye", "Colour vision (right eye)", ColorVisionOptions, &f.ColorVisionRight),
				sel("color_vision.left_eye", "Colour vision (left eye)", ColorVisionOptions, &f.ColorVisionLeft),
				sel("stereopsis", "Stereopsis", StereopsisOptions, &f.Stereopsis),
			},
		},
		{
			Title: "Result",
			Fields: []assessment.Field{
				sel("result", "Result", assessment.BiResult, &f.Result),
				{Key: "remarks", Label: "Remarks", Kind: assessment.Text, Value: &f.Remarks},
			},
		},
	}
}
