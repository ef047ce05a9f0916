package refraction

import (
	"fmt"
	"strconv"

	"github.com/eyescreen/screening/internal/domain/assessment"
)

var (
	// SphereOptions runs from -20.00 to +20.00 dioptres in quarter steps.
	SphereOptions = dioptres(-80, 80)
	// CylinderOptions are minus-cylinder powers from -6.00 to 0.00.
	CylinderOptions = dioptres(-24, 0)
	// AxisOptions are whole degrees 1..180.
	AxisOptions = axes()
	// ReadingAdditionOptions are near adds from +1.00 to +3.00.
	ReadingAdditionOptions = dioptres(4, 12)
)

// dioptres lists quarter-dioptre powers between lo/4 and hi/4, formatted with
// an explicit sign and two decimals; zero is written plain.
func dioptres(lo, hi int) []assessment.Option {
	out := make([]assessment.Option, 0, hi-lo+1)
	for q := lo; q <= hi; q++ {
		v := FormatDioptre(float64(q) / 4)
		out = append(out, assessment.Option{Value: v, Label: v})
	}
	return out
}

func axes() []assessment.Option {
	out := make([]assessment.Option, 0, 180)
	for deg := 1; deg <= 180; deg++ {
		v := strconv.Itoa(deg)
		out = append(out, assessment.Option{Value: v, Label: v + "°"})
	}
	return out
}

// FormatDioptre renders a lens power the way the option sets spell it.
func FormatDioptre(d float64) string {
	if d == 0 {
		return "0.00"
	}
	return fmt.Sprintf("%+.2f", d)
}

// Eye uses the compact wire keys: a sphere, b cylinder, c axis, d visual acuity.
type Eye struct {
	Sphere   string `json:"a"`
	Cylinder string `json:"b"`
	Axis     string `json:"c"`
	Acuity   string `json:"d"`
}

type Record struct {
	RegistrationID    int64  `json:"registration_id"`
	RightEye          Eye    `json:"right_eye"`
	LeftEye           Eye    `json:"left_eye"`
	ReadingAddition   string `json:"reading_addition"`
	PupillaryDistance string `json:"pupillary_distance"`
	Result            string `json:"result"`
	Notes             string `json:"notes"`
}

func (e Eye) validate(v assessment.ValidationErrors, prefix string) {
	v.Option(prefix+".a", e.Sphere, SphereOptions)
	v.Option(prefix+".b", e.Cylinder, CylinderOptions)
	v.Option(prefix+".c", e.Axis, AxisOptions)
	v.Option(prefix+".d", e.Acuity, assessment.Snellen)
}

func (r *Record) Validate() assessment.ValidationErrors {
	v := assessment.ValidationErrors{}
	r.RightEye.validate(v, "right_eye")
	r.LeftEye.validate(v, "left_eye")
	v.Option("reading_addition", r.ReadingAddition, ReadingAdditionOptions)
	if r.PupillaryDistance != "" {
		if mm, err := strconv.ParseFloat(r.PupillaryDistance, 64); err != nil || mm <= 0 || mm > 100 {
			v.Add("pupillary_distance", "must be a distance in millimetres")
		}
	}
	v.Option("result", r.Result, assessment.BiResult)
	v.Text("notes", r.Notes)
	return v
}
