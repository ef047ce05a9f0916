package preliminarytest

import "github.com/eyescreen/screening/internal/domain/assessment"

var (
	PupilReflexOptions    = assessment.Options("normal", "sluggish", "non_reactive", "rapd")
	CoverTestOptions      = assessment.Options("orthophoria", "esophoria", "exophoria", "esotropia", "exotropia", "hypertropia")
	OcularMotilityOptions = assessment.Options("full", "restricted")
	ColorVisionOptions    = assessment.Options("normal", "deficient", "not_tested")
	StereopsisOptions     = []assessment.Option{
		{Value: "40", Label: "40 arcsec"},
		{Value: "60", Label: "60 arcsec"},
		{Value: "80", Label: "80 arcsec"},
		{Value: "100", Label: "100 arcsec"},
		{Value: "200", Label: "200 arcsec"},
		{Value: "400", Label: "400 arcsec"},
		{Value: "800", Label: "800 arcsec"},
		{Value: "not_tested", Label: "Not tested"},
	}
)

type PerEye struct {
	RightEye string `json:"right_eye"`
	LeftEye  string `json:"left_eye"`
}

type CoverTest struct {
	Distance string `json:"distance"`
	Near     string `json:"near"`
}

type Record struct {
	RegistrationID int64     `json:"registration_id"`
	PupilReflex    PerEye    `json:"pupil_reflex"`
	CoverTest      CoverTest `json:"cover_test"`
	OcularMotility string    `json:"ocular_motility"`
	ColorVision    PerEye    `json:"color_vision"`
	Stereopsis     string    `json:"stereopsis"`
	Result         string    `json:"result"`
	Remarks        string    `json:"remarks"`
}

func (r *Record) Validate() assessment.ValidationErrors {
	v := assessment.ValidationErrors{}
	v.Option("pupil_reflex.right_eye", r.PupilReflex.RightEye, PupilReflexOptions)
	v.Option("pupil_reflex.left_eye", r.PupilReflex.LeftEye, PupilReflexOptions)
	v.Option("cover_test.distance", r.CoverTest.Distance, CoverTestOptions)
	v.Option("cover_test.near", r.CoverTest.Near, CoverTestOptions)
	v.Option("ocular_motility", r.OcularMotility, OcularMotilityOptions)
	v.Option("color_vision.right_eye", r.ColorVision.RightEye, ColorVisionOptions)
	v.Option("color_vision.left_eye", r.ColorVision.LeftEye, ColorVisionOptions)
	v.Option("stereopsis", r.Stereopsis, StereopsisOptions)
	v.Option("result", r.Result, assessment.BiResult)
	v.Text("remarks", r.Remarks)
	return v
}
