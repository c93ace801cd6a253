package evaluation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

func testSessionContext() domain.SessionContext {
	return domain.SessionContext{
		Role:            "Backend Engineer",
		InterviewRound:  "Technical Round",
		Difficulty:      "Medium",
		DurationMinutes: 10,
	}
}

func testQAPair() domain.QAPair {
	return domain.QAPair{
		Question: "How does garbage collection work?",
		Answer:   "It frees memory that is no longer referenced.",
	}
}

func TestAnswerEvaluator_Evaluate_ParsesAndLabels(t *testing.T) {
	t.Parallel()

	client := &scriptedAI{responses: []string{`{
		"question_score": 8.5,
		"feedback_label": "Excellent",
		"user_answer": "It frees memory that is no longer referenced.",
		"improved_answer": "A fuller answer covering tri-color marking.",
		"what_went_well": ["Correct core concept"],
		"areas_to_improve": ["Mention write barriers"],
		"performance_breakdown": {
			"communication": 8, "technical_knowledge": 9, "confidence": 7, "structure": 8
		}
	}`}}
	ae := NewAnswerEvaluator(client, tokencount.NewCounter(), "gpt-4o-mini")

	eval, usage, err := ae.Evaluate(context.Background(), 1, testQAPair(), testSessionContext())
	require.NoError(t, err)

	assert.Equal(t, 1, eval.QuestionNumber)
	assert.Equal(t, 8.5, eval.Score)
	// label is rederived from the score, not echoed from the model
	assert.Equal(t, domain.LabelGood, eval.FeedbackLabel)
	assert.Equal(t, 9.0, eval.PerformanceBreakdown.TechnicalKnowledge)
	assert.Greater(t, usage.InputTokens, 0)
	assert.Greater(t, usage.OutputTokens, 0)
}

func TestAnswerEvaluator_Evaluate_ClampsOutOfRangeScores(t *testing.T) {
	t.Parallel()

	client := &scriptedAI{responses: []string{`{
		"question_score": 14,
		"performance_breakdown": {"communication": -3, "technical_knowledge": 11, "confidence": 5, "structure": 5}
	}`}}
	ae := NewAnswerEvaluator(client, tokencount.NewCounter(), "gpt-4o-mini")

	eval, _, err := ae.Evaluate(context.Background(), 1, testQAPair(), testSessionContext())
	require.NoError(t, err)

	assert.Equal(t, 10.0, eval.Score)
	assert.Equal(t, domain.LabelExcellent, eval.FeedbackLabel)
	assert.Equal(t, 0.0, eval.PerformanceBreakdown.Communication)
	assert.Equal(t, 10.0, eval.PerformanceBreakdown.TechnicalKnowledge)
}

func TestAnswerEvaluator_Evaluate_LabelBoundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		score float64
		label string
	}{
		{10, domain.LabelExcellent},
		{9, domain.LabelExcellent},
		{8.9, domain.LabelGood},
		{7, domain.LabelGood},
		{6.9, domain.LabelFair},
		{5, domain.LabelFair},
		{4.9, domain.LabelPoor},
		{0, domain.LabelPoor},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.label, domain.QuestionFeedbackLabel(tt.score), "score %v", tt.score)
	}
}

func TestAnswerEvaluator_Evaluate_MalformedJSONIsFatal(t *testing.T) {
	t.Parallel()

	client := &scriptedAI{responses: []string{"I think the candidate did well overall."}}
	ae := NewAnswerEvaluator(client, tokencount.NewCounter(), "gpt-4o-mini")

	_, _, err := ae.Evaluate(context.Background(), 1, testQAPair(), testSessionContext())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSchemaInvalid))
}

func TestAnswerEvaluator_Evaluate_EchoesAnswerWhenModelOmitsIt(t *testing.T) {
	t.Parallel()

	client := &scriptedAI{responses: []string{`{"question_score": 6}`}}
	ae := NewAnswerEvaluator(client, tokencount.NewCounter(), "gpt-4o-mini")

	eval, _, err := ae.Evaluate(context.Background(), 2, testQAPair(), testSessionContext())
	require.NoError(t, err)
	assert.Equal(t, testQAPair().Answer, eval.UserAnswer)
	assert.NotNil(t, eval.WhatWentWell)
	assert.NotNil(t, eval.AreasToImprove)
}

func TestAnswerEvaluator_Evaluate_ModelCallErrorPropagates(t *testing.T) {
	t.Parallel()

	client := &scriptedAI{responses: []string{""}, errs: []error{errors.New("boom")}}
	ae := NewAnswerEvaluator(client, tokencount.NewCounter(), "gpt-4o-mini")

	_, usage, err := ae.Evaluate(context.Background(), 1, testQAPair(), testSessionContext())
	require.Error(t, err)
	assert.Zero(t, usage.InputTokens)
	assert.Zero(t, usage.OutputTokens)
}
