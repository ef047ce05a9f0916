package refraction

import "github.com/eyescreen/screening/internal/domain/assessment"

type Form struct {
	RightSphere   string
	RightCylinder string
	RightAxis     string
	RightAcuity   string

	LeftSphere   string
	LeftCylinder string
	LeftAxis     string
	LeftAcuity   string

	ReadingAddition   string
	PupillaryDistance string
	Result            string
	Notes             string
}

var _ assessment.Form[Record] = (*Form)(nil)

func NewForm() *Form {
	f := &Form{}
	f.Load(nil)
	return f
}

func (f *Form) Kind() assessment.Kind { return assessment.KindRefraction }

func (f *Form) Load(rec *Record) {
	if rec == nil {
		rec = &Record{}
	}
	*f = Form{
		RightSphere:       rec.RightEye.Sphere,
		RightCylinder:     rec.RightEye.Cylinder,
		RightAxis:         rec.RightEye.Axis,
		RightAcuity:       rec.RightEye.Acuity,
		LeftSphere:        rec.LeftEye.Sphere,
		LeftCylinder:      rec.LeftEye.Cylinder,
		LeftAxis:          rec.LeftEye.Axis,
		LeftAcuity:        rec.LeftEye.Acuity,
		ReadingAddition:   rec.ReadingAddition,
		PupillaryDistance: rec.PupillaryDistance,
		Result:            assessment.DefaultResult(rec.Result),
		Notes:             rec.Notes,
	}
}

func (f *Form) Build(registrationID int64) Record {
	return Record{
		RegistrationID:    registrationID,
		RightEye:          Eye{Sphere: f.RightSphere, Cylinder: f.RightCylinder, Axis: f.RightAxis, Acuity: f.RightAcuity},
		LeftEye:           Eye{Sphere: f.LeftSphere, Cylinder: f.LeftCylinder, Axis: f.LeftAxis, Acuity: f.LeftAcuity},
		ReadingAddition:   f.ReadingAddition,
		PupillaryDistance: f.PupillaryDistance,
		Result:            f.Result,
		Notes:             f.Notes,
	}
}

func eyeFields(prefix string, sphere, cyl, axis, va *string) []assessment.Field {
	return []assessment.Field{
		{Key: prefix + ".a", Label: "Sphere", Kind: assessment.Select, Options: SphereOptions, Value: sphere},
		{Key: prefix + ".b", Label: "Cylinder", Kind: assessment.Select, Options: CylinderOptions, Value: cyl},
		{Key: prefix + ".c", Label: "Axis", Kind: assessment.Select, Options: AxisOptions, Value: axis},
		{Key: prefix + ".d", Label: "Visual acuity", Kind: assessment.Select, Options: assessment.Snellen, Value: va},
	}
}

func (f *Form) Steps() []assessment.Step {
	return []assessment.Step{
		{Title: "Right Eye", Fields: eyeFields("right_eye", &f.RightSphere, &f.RightCylinder, &f.RightAxis, &f.RightAcuity)},
		{Title: "Left Eye", Fields: eyeFields("left_eye", &f.LeftSphere, &f.LeftCylinder, &f.LeftAxis, &f.LeftAcuity)},
		{
			Title: "Addition & Result",
			Fields: []assessment.Field{
				{Key: "reading_addition", Label: "Reading addition", Kind: assessment.Select, Options: ReadingAdditionOptions, Value: &f.ReadingAddition},
				{Key: "pupillary_distance", Label: "Pupillary distance (mm)", Kind: assessment.Text, Value: &f.PupillaryDistance},
				{Key: "result", Label: "Result", Kind: assessment.Select, Options: assessment.BiResult, Value: &f.Result},
				{Key: "notes", Label: "Notes", Kind: assessment.Text, Value: &f.Notes},
			},
		},
	}
}
