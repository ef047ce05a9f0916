package externaleye

import "github.com/eyescreen/screening/internal/domain/assessment"

var (
	EyelidOptions          = assessment.Options("normal", "ptosis", "swelling", "lesion")
	ConjunctivaOptions     = assessment.Options("normal", "injected", "pterygium", "pinguecula", "discharge")
	CorneaOptions          = assessment.Options("clear", "opacity", "scar", "ulcer")
	AnteriorChamberOptions = assessment.Options("normal", "shallow", "hyphema", "hypopyon")
	IrisOptions            = assessment.Options("normal", "abnormal")
	PupilOptions           = assessment.Options("round_reactive", "irregular", "fixed")
	LensOptions            = assessment.Options("clear", "cataract", "pseudophakia", "aphakia")
)

// Attachment types of the anterior segment photographs.
const (
	AttachmentAnteriorRight = "anterior_right"
	AttachmentAnteriorLeft  = "anterior_left"
)

// AttachmentTypes lists the accepted attachment types.
var AttachmentTypes = []string{AttachmentAnteriorRight, AttachmentAnteriorLeft}

type Eye struct {
	Eyelid          string `json:"eyelid"`
	Conjunctiva     string `json:"conjunctiva"`
	Cornea          string `json:"cornea"`
	AnteriorChamber string `json:"anterior_chamber"`
	Iris            string `json:"iris"`
	Pupil           string `json:"pupil"`
	Lens            string `json:"lens"`
}

type Record struct {
	RegistrationID int64  `json:"registration_id"`
	RightEye       Eye    `json:"right_eye"`
	LeftEye        Eye    `json:"left_eye"`
	OperatorNotes  string `json:"operator_notes"`
	Result         string `json:"result"`
}

func (e Eye) validate(v assessment.ValidationErrors, prefix string) {
	v.Option(prefix+".eyelid", e.Eyelid, EyelidOptions)
	v.Option(prefix+".conjunctiva", e.Conjunctiva, ConjunctivaOptions)
	v.Option(prefix+".cornea", e.Cornea, CorneaOptions)
	v.Option(prefix+".anterior_chamber", e.AnteriorChamber, AnteriorChamberOptions)
	v.Option(prefix+".iris", e.Iris, IrisOptions)
	v.Option(prefix+".pupil", e.Pupil, PupilOptions)
	v.Option(prefix+".lens", e.Lens, LensOptions)
}

func (r *Record) Validate() assessment.ValidationErrors {
	v := assessment.ValidationErrors{}
	r.RightEye.validate(v, "right_eye")
	r.LeftEye.validate(v, "left_eye")
	v.Text("operator_notes", r.OperatorNotes)
	v.Option("result", r.Result, assessment.TriResult)
	return v
}

// ValidAttachmentType reports whether t names one of the photographs.
func ValidAttachmentType(t string) bool {
	return t == AttachmentAnteriorRight || t == AttachmentAnteriorLeft
}
