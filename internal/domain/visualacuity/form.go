package visualacuity

import "github.com/eyescreen/screening/internal/domain/assessment"

type Form struct {
	UnaidedRight string
	UnaidedLeft  string
	PinholeRight string
	PinholeLeft  string
	AidedRight   string
	AidedLeft    string
	NearBothEyes string
	Result       string
}

var _ assessment.Form[Record] = (*Form)(nil)

func NewForm() *Form {
	f := &Form{}
	f.Load(nil)
	return f
}

func (f *Form) Kind() assessment.Kind { return assessment.KindVisualAcuity }

func (f *Form) Load(rec *Record) {
	if rec == nil {
		rec = &Record{}
	}
	*f = Form{
		UnaidedRight: rec.DistanceUnaided.RightEye,
		UnaidedLeft:  rec.DistanceUnaided.LeftEye,
		PinholeRight: rec.DistancePinhole.RightEye,
		PinholeLeft:  rec.DistancePinhole.LeftEye,
		AidedRight:   rec.DistanceAided.RightEye,
		AidedLeft:    rec.DistanceAided.LeftEye,
		NearBothEyes: rec.Near.BothEyes,
		Result:       assessment.DefaultResult(rec.Result),
	}
}

func (f *Form) Build(registrationID int64) Record {
	return Record{
		RegistrationID:  registrationID,
		DistanceUnaided: PerEye{RightEye: f.UnaidedRight, LeftEye: f.UnaidedLeft},
		DistancePinhole: PerEye{RightEye: f.PinholeRight, LeftEye: f.PinholeLeft},
		DistanceAided:   PerEye{RightEye: f.AidedRight, LeftEye: f.AidedLeft},
		Near:            Near{BothEyes: f.NearBothEyes},
		Result:          f.Result,
	}
}

func snellen(key, label string, v *string) assessment.Field {
	return assessment.Field{Key: key, Label: label, Kind: assessment.Select, Options: assessment.Snellen, Value: v}
}

func (f *Form) Steps() []assessment.Step {
	return []assessment.Step{
		{
			Title: "Distance Vision (Unaided)",
			Fields: []assessment.Field{
				snellen("distance_unaided.right_eye", "Right eye", &f.UnaidedRight),
				snellen("distance_unaided.left_eye", "Left eye", &f.UnaidedLeft),
			},
		},
		{
			Title: "Pinhole & Aided",
			Fields: []assessment.Field{
				snellen("distance_pinhole.right_eye", "Pinhole (right eye)", &f.PinholeRight),
				snellen("distance_pinhole.left_eye", "Pinhole (left eye)", &f.PinholeLeft),
				snellen("distance_aided.right_eye", "Aided (right eye)", &f.AidedRight),
				snellen("distance_aided.left_eye", "Aided (left eye)", &f.AidedLeft),
			},
		},
		{
			Title: "Near Vision & Result",
			Fields: []assessment.Field{
				{Key: "near.both_eyes", Label: "Near vision (both eyes)", Kind: assessment.Select, Options: NearOptions, Value: &f.NearBothEyes},
				{Key: "result", Label: "Result", Kind: assessment.Select, Options: assessment.BiResult, Value: &f.Result},
			},
		},
	}
}
