package assessment

const (
	ResultPass        = "pass"
	ResultRefer       = "refer"
	ResultUrgentRefer = "urgent_refer"
)

var (
	// BiResult is pass | refer.
	BiResult = Options(ResultPass, ResultRefer)
	// TriResult is pass | refer | urgent_refer.
	TriResult = Options(ResultPass, ResultRefer, ResultUrgentRefer)

	YesNo = Options("yes", "no")

	// Snellen lists distance visual acuity fractions, best first, followed by
	// the qualitative grades.
	Snellen = []Option{
		{Value: "6/5", Label: "6/5"},
		{Value: "6/6", Label: "6/6"},
		{Value: "6/9", Label: "6/9"},
		{Value: "6/12", Label: "6/12"},
		{Value: "6/18", Label: "6/18"},
		{Value: "6/24", Label: "6/24"},
		{Value: "6/36", Label: "6/36"},
		{Value: "6/60", Label: "6/60"},
		{Value: "3/60", Label: "3/60"},
		{Value: "CF", Label: "Counting fingers"},
		{Value: "HM", Label: "Hand movement"},
		{Value: "PL", Label: "Perception of light"},
		{Value: "NPL", Label: "No perception of light"},
	}
)

// DefaultResult returns v, or pass when v is empty.
func DefaultResult(v string) string {
	if v == "" {
		return ResultPass
	}
	return v
}
