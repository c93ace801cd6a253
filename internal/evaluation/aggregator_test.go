package evaluation

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

func overallResponse(totalScore float64) string {
	return `{
		"total_score": ` + floatString(totalScore) + `,
		"feedback_label": "Good",
		"key_strengths": ["Consistent depth"],
		"focus_areas": ["More system design practice"],
		"performance_breakdown": {"communication": 8, "technical_knowledge": 8, "confidence": 7, "structure": 8}
	}`
}

func floatString(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func evalsWithScores(scores ...float64) []domain.QuestionEvaluation {
	evals := make([]domain.QuestionEvaluation, 0, len(scores))
	for i, s := range scores {
		evals = append(evals, domain.QuestionEvaluation{
			QuestionNumber: i + 1,
			Question:       "Q",
			Score:          s,
			FeedbackLabel:  domain.QuestionFeedbackLabel(s),
		})
	}
	return evals
}

func TestAggregator_Aggregate_CompleteInterviewUsesModelScore(t *testing.T) {
	t.Parallel()

	// 12 minute interview requires 6 questions; 6 were asked.
	sctx := testSessionContext()
	sctx.DurationMinutes = 12

	client := &scriptedAI{responses: []string{overallResponse(80)}}
	a := NewAggregator(client, tokencount.NewCounter(), "gpt-4o-mini")

	overall, completeness, usage, err := a.Aggregate(context.Background(), sctx, evalsWithScores(8, 8, 8, 8, 8, 8))
	require.NoError(t, err)

	assert.Equal(t, 80.0, overall.TotalScore)
	assert.Equal(t, domain.LabelExcellent, overall.FeedbackLabel)
	assert.Equal(t, domain.CompletenessComplete, completeness.Status)
	assert.Equal(t, 6.0, completeness.MinimumRequired)
	assert.Contains(t, completeness.Message, "completed successfully with 6 questions")
	assert.Nil(t, overall.Result)
	assert.Greater(t, usage.InputTokens, 0)
}

func TestAggregator_Aggregate_IncompleteInterviewIsPenalized(t *testing.T) {
	t.Parallel()

	// 20 minute interview requires 10 questions; only 4 perfect answers.
	// Penalty: 40 / (10 * 10) * 100 = 40, regardless of the model's synthesis.
	sctx := testSessionContext()
	sctx.DurationMinutes = 20

	client := &scriptedAI{responses: []string{overallResponse(100)}}
	a := NewAggregator(client, tokencount.NewCounter(), "gpt-4o-mini")

	overall, completeness, _, err := a.Aggregate(context.Background(), sctx, evalsWithScores(10, 10, 10, 10))
	require.NoError(t, err)

	assert.Equal(t, 40.0, overall.TotalScore)
	assert.Equal(t, domain.LabelFair, overall.FeedbackLabel)
	assert.Equal(t, domain.CompletenessIncomplete, completeness.Status)
	assert.Contains(t, completeness.Message, "Only 4/10.0 minimum questions covered")
}

func TestAggregator_Aggregate_PenaltyMonotonicity(t *testing.T) {
	t.Parallel()

	// Same per-question performance, fewer questions than required: the
	// adjusted score must never exceed the complete-interview score.
	sctx := testSessionContext()
	sctx.DurationMinutes = 20

	fewer := &scriptedAI{responses: []string{overallResponse(90)}}
	a := NewAggregator(fewer, tokencount.NewCounter(), "gpt-4o-mini")

	three, _, _, err := a.Aggregate(context.Background(), sctx, evalsWithScores(9, 9, 9))
	require.NoError(t, err)

	five, _, _, err := NewAggregator(&scriptedAI{responses: []string{overallResponse(90)}}, tokencount.NewCounter(), "gpt-4o-mini").
		Aggregate(context.Background(), sctx, evalsWithScores(9, 9, 9, 9, 9))
	require.NoError(t, err)

	assert.Less(t, three.TotalScore, five.TotalScore)
	assert.LessOrEqual(t, five.TotalScore, 90.0)
}

func TestAggregator_Aggregate_PassingScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		modelScore   float64
		passingScore *int
		expected     *string
	}{
		{"above_threshold_passes", 65, intPtr(60), strPtr("pass")},
		{"exact_threshold_passes", 60, intPtr(60), strPtr("pass")},
		{"below_threshold_fails", 59, intPtr(60), strPtr("fail")},
		{"no_threshold_no_result", 95, nil, nil},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sctx := testSessionContext()
			sctx.DurationMinutes = 4
			sctx.PassingScore = tt.passingScore

			client := &scriptedAI{responses: []string{overallResponse(tt.modelScore)}}
			a := NewAggregator(client, tokencount.NewCounter(), "gpt-4o-mini")

			overall, _, _, err := a.Aggregate(context.Background(), sctx, evalsWithScores(7, 7))
			require.NoError(t, err)

			if tt.expected == nil {
				assert.Nil(t, overall.Result)
			} else {
				require.NotNil(t, overall.Result)
				assert.Equal(t, *tt.expected, *overall.Result)
			}
		})
	}
}

func TestAggregator_Aggregate_OverallLabelBoundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		score float64
		label string
	}{
		{100, domain.LabelExcellent},
		{80, domain.LabelExcellent},
		{79.99, domain.LabelGood},
		{60, domain.LabelGood},
		{59.99, domain.LabelFair},
		{40, domain.LabelFair},
		{39.99, domain.LabelPoor},
		{0, domain.LabelPoor},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.label, domain.OverallFeedbackLabel(tt.score), "score %v", tt.score)
	}
}

func TestAggregator_Aggregate_ZeroDurationGuard(t *testing.T) {
	t.Parallel()

	sctx := testSessionContext()
	sctx.DurationMinutes = 0

	client := &scriptedAI{responses: []string{overallResponse(70)}}
	a := NewAggregator(client, tokencount.NewCounter(), "gpt-4o-mini")

	// minimum required is 0, so any question count is complete
	overall, completeness, _, err := a.Aggregate(context.Background(), sctx, evalsWithScores(7))
	require.NoError(t, err)
	assert.Equal(t, domain.CompletenessComplete, completeness.Status)
	assert.Equal(t, 70.0, overall.TotalScore)
}

func TestAggregator_Aggregate_ModelScoreClamped(t *testing.T) {
	t.Parallel()

	sctx := testSessionContext()
	sctx.DurationMinutes = 2

	client := &scriptedAI{responses: []string{overallResponse(140)}}
	a := NewAggregator(client, tokencount.NewCounter(), "gpt-4o-mini")

	overall, _, _, err := a.Aggregate(context.Background(), sctx, evalsWithScores(10))
	require.NoError(t, err)
	assert.Equal(t, 100.0, overall.TotalScore)
}

func TestAggregator_Aggregate_MalformedSynthesisIsFatal(t *testing.T) {
	t.Parallel()

	client := &scriptedAI{responses: []string{"no json here"}}
	a := NewAggregator(client, tokencount.NewCounter(), "gpt-4o-mini")

	_, _, _, err := a.Aggregate(context.Background(), testSessionContext(), evalsWithScores(7))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSchemaInvalid))
}

func intPtr(v int) *int       { return &v }
func strPtr(s string) *string { return &s }
