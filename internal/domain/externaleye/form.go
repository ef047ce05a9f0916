package externaleye

import "github.com/eyescreen/screening/internal/domain/assessment"

// Form holds the external eye fields plus the two captured image paths.
// The images are uploaded separately and never enter the record.
type Form struct {
	RightImage string
	LeftImage  string

	Right         Eye
	Left          Eye
	OperatorNotes string
	Result        string
}

var _ assessment.Form[Record] = (*Form)(nil)

func NewForm() *Form {
	f := &Form{}
	f.Load(nil)
	return f
}

func (f *Form) Kind() assessment.Kind { return assessment.KindExternalEye }

// Load replaces the record fields and keeps any captured images.
func (f *Form) Load(rec *Record) {
	if rec == nil {
		rec = &Record{}
	}
	f.Right = rec.RightEye
	f.Left = rec.LeftEye
	f.OperatorNotes = rec.OperatorNotes
	f.Result = assessment.DefaultResult(rec.Result)
}

func (f *Form) Build(registrationID int64) Record {
	return Record{
		RegistrationID: registrationID,
		RightEye:       f.Right,
		LeftEye:        f.Left,
		OperatorNotes:  f.OperatorNotes,
		Result:         f.Result,
	}
}

// Capture is one image waiting to be attached to the registration.
type Capture struct {
	Type string
	Path string
}

// Captures returns the images taken so far, right eye first.
func (f *Form) Captures() []Capture {
	var out []Capture
	if f.RightImage != "" {
		out = append(out, Capture{Type: AttachmentAnteriorRight, Path: f.RightImage})
	}
	if f.LeftImage != "" {
		out = append(out, Capture{Type: AttachmentAnteriorLeft, Path: f.LeftImage})
	}
	return out
}

func eyeFields(prefix string, e *Eye) []assessment.Field {
	sel := func(key, label string, opts []assessment.Option, v *string) assessment.Field {
		return assessment.Field{Key: prefix + "." + key, Label: label, Kind: assessment.Select, Options: opts, Value: v}
	}
	return []assessment.Field{
		sel("eyelid", "Eyelid", EyelidOptions, &e.Eyelid),
		sel("conjunctiva", "Conjunctiva", ConjunctivaOptions, &e.Conjunctiva),
		sel("cornea", "Cornea", CorneaOptions, &e.Cornea),
		sel("anterior_chamber", "Anterior chamber", AnteriorChamberOptions, &e.AnteriorChamber),
		sel("iris", "Iris", IrisOptions, &e.Iris),
		sel("pupil", "Pupil", PupilOptions, &e.Pupil),
		sel("lens", "Lens", LensOptions, &e.Lens),
	}
}

func (f *Form) Steps() []assessment.Step {
	return []assessment.Step{
		{
			Title:  "Capture Right Eye",
			Fields: []assessment.Field{{Key: AttachmentAnteriorRight, Label: "Right eye photograph", Kind: assessment.Image, Value: &f.RightImage}},
		},
		{
			Title:  "Capture Left Eye",
			Fields: []assessment.Field{{Key: AttachmentAnteriorLeft, Label: "Left eye photograph", Kind: assessment.Image, Value: &f.LeftImage}},
		},
		{Title: "Right Eye", Fields: eyeFields("right_eye", &f.Right)},
		{Title: "Left Eye", Fields: eyeFields("left_eye", &f.Left)},
		{
			Title: "Notes & Result",
			Fields: []assessment.Field{
				{Key: "operator_notes", Label: "Operator notes", Kind: assessment.Text, Value: &f.OperatorNotes},
				{Key: "result", Label: "Result", Kind: assessment.Select, Options: assessment.TriResult, Value: &f.Result},
			},
		},
	}
}
