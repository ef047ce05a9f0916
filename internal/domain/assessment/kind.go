package assessment

import "fmt"

// Kind names one assessment type. Its value is the path segment of the
// assessment endpoints.
type Kind string

const (
	KindHistoryTaking   Kind = "history-taking"
	KindPreliminaryTest Kind = "preliminary-test"
	KindVisualAcuity    Kind = "visual-acuity"
	KindExternalEye     Kind = "external-eye-examination"
	KindRefraction      Kind = "refraction"
	KindCaseSubmission  Kind = "case-submission"
)

// Kinds lists the assessment types in checkpoint order.
var Kinds = []Kind{
	KindHistoryTaking,
	KindPreliminaryTest,
	KindVisualAcuity,
	KindExternalEye,
	KindRefraction,
	KindCaseSubmission,
}

var kindTitles = map[Kind]string{
	KindHistoryTaking:   "History Taking",
	KindPreliminaryTest: "Preliminary Test",
	KindVisualAcuity:    "Visual Acuity",
	KindExternalEye:     "External Eye Examination",
	KindRefraction:      "Refraction Assessment",
	KindCaseSubmission:  "Case Submission",
}

func (k Kind) Title() string {
	if t, ok := kindTitles[k]; ok {
		return t
	}
	return string(k)
}

func (k Kind) Valid() bool {
	_, ok := kindTitles[k]
	return ok
}

// Path is the save endpoint; the fetch endpoint appends the registration id.
func (k Kind) Path() string {
	return "/assessment/" + string(k)
}

func (k Kind) RecordPath(registrationID int64) string {
	return fmt.Sprintf("%s/%d", k.Path(), registrationID)
}

// ParseKind accepts the endpoint name or the short alias used on the
// command line ("external-eye").
func ParseKind(s string) (Kind, error) {
	if s == "external-eye" {
		return KindExternalEye, nil
	}
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown assessment type %q", s)
	}
	return k, nil
}

// Checkpoint is one stage of the screening pipeline.
type Checkpoint string

const (
	CheckpointProfileVerification Checkpoint = "profile_verification"
	CheckpointHistoryTaking       Checkpoint = "history_taking"
	CheckpointPreliminaryTest     Checkpoint = "preliminary_test"
	CheckpointVisualAcuity        Checkpoint = "visual_acuity"
	CheckpointExternalEye         Checkpoint = "external_eye"
	CheckpointRefraction          Checkpoint = "refraction"
	CheckpointCaseSubmission      Checkpoint = "case_submission"
)

// Checkpoints is the fixed seven-stage pipeline.
var Checkpoints = []Checkpoint{
	CheckpointProfileVerification,
	CheckpointHistoryTaking,
	CheckpointPreliminaryTest,
	CheckpointVisualAcuity,
	CheckpointExternalEye,
	CheckpointRefraction,
	CheckpointCaseSubmission,
}

// Kind returns the assessment behind a checkpoint; profile verification has none.
func (c Checkpoint) Kind() (Kind, bool) {
	switch c {
	case CheckpointHistoryTaking:
		return KindHistoryTaking, true
	case CheckpointPreliminaryTest:
		return KindPreliminaryTest, true
	case CheckpointVisualAcuity:
		return KindVisualAcuity, true
	case CheckpointExternalEye:
		return KindExternalEye, true
	case CheckpointRefraction:
		return KindRefraction, true
	case CheckpointCaseSubmission:
		return KindCaseSubmission, true
	}
	return "", false
}
