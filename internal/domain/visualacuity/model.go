package visualacuity

import "github.com/eyescreen/screening/internal/domain/assessment"

// NearOptions is the N-notation reading chart scale.
var NearOptions = []assessment.Option{
	{Value: "N5", Label: "N5"},
	{Value: "N6", Label: "N6"},
	{Value: "N8", Label: "N8"},
	{Value: "N10", Label: "N10"},
	{Value: "N12", Label: "N12"},
	{Value: "N18", Label: "N18"},
	{Value: "N24", Label: "N24"},
	{Value: "N36", Label: "N36"},
}

type PerEye struct {
	RightEye string `json:"right_eye"`
	LeftEye  string `json:"left_eye"`
}

type Near struct {
	BothEyes string `json:"both_eyes"`
}

type Record struct {
	RegistrationID  int64  `json:"registration_id"`
	DistanceUnaided PerEye `json:"distance_unaided"`
	DistancePinhole PerEye `json:"distance_pinhole"`
	DistanceAided   PerEye `json:"distance_aided"`
	Near            Near   `json:"near"`
	Result          string `json:"result"`
}

func (r *Record) Validate() assessment.ValidationErrors {
	v := assessment.ValidationErrors{}
	for _, d := range []struct {
		key string
		eye PerEye
	}{
		{"distance_unaided", r.DistanceUnaided},
		{"distance_pinhole", r.DistancePinhole},
		{"distance_aided", r.DistanceAided},
	} {
		v.Option(d.key+".right_eye", d.eye.RightEye, assessment.Snellen)
		v.Option(d.key+".left_eye", d.eye.LeftEye, assessment.Snellen)
	}
	v.Option("near.both_eyes", r.Near.BothEyes, NearOptions)
	v.Option("result", r.Result, assessment.BiResult)
	return v
}
