package domain

// Feedback labels shared by both scoring scales.
const (
	LabelExcellent = "Excellent"
	LabelGood      = "Good"
	LabelFair      = "Fair"
	LabelPoor      = "Poor"
	LabelError     = "Error"
)

// Completeness statuses attached to the interview context.
const (
	CompletenessComplete   = "Complete"
	CompletenessIncomplete = "Incomplete"
)

// QuestionFeedbackLabel maps a per-question score (0-10) to its tier:
// Excellent [9,10], Good [7,9), Fair [5,7), Poor [0,5).
func QuestionFeedbackLabel(score float64) string {
	switch {
	case score >= 9:
		return LabelExcellent
	case score >= 7:
		return LabelGood
	case score >= 5:
		return LabelFair
	default:
		return LabelPoor
	}
}

// OverallFeedbackLabel maps a total score (0-100) to its tier:
// Excellent [80,100], Good [60,80), Fair [40,60), Poor [0,40).
// The cut points are distinct from the per-question scale.
func OverallFeedbackLabel(total float64) string {
	switch {
	case total >= 80:
		return LabelExcellent
	case total >= 60:
		return LabelGood
	case total >= 40:
		return LabelFair
	default:
		return LabelPoor
	}
}
