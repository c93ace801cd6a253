package evaluation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

const extractPromptTemplate = `You are a conversation analyzer. Given a raw interview conversation, extract all question-answer pairs and return them in a FLAT conversation array format.

CRITICAL VALIDATION:
- The assistant (AI interviewer) should ONLY ask questions, NOT provide answers
- The user (candidate) should ONLY provide answers, NOT ask interview questions
- If you see the assistant providing an answer right after asking a question, this is an ERROR that should be CORRECTED:
  * Remove any assistant-provided answers that appear right after questions
  * Keep only the QUESTION from the assistant's message
  * This ensures proper question-answer separation

INSTRUCTIONS:
1. Identify each meaningful question asked by the assistant (skip greetings like "Hello" and introductory statements)
2. For each question, combine ALL consecutive user messages that answer that question into ONE user response
3. Remove timestamps (already removed from input)
4. Output should be a FLAT array alternating between assistant questions and user answers
5. If a question has no answer yet (conversation ends before user responds), include empty string "" for user content
6. Skip initial greetings and pleasantries - start from the first substantive question
7. If there are incomplete assistant messages (like "It sounds like you"), ignore them as they are likely interruptions
8. IMPORTANT: If an assistant message contains both a question AND an answer/explanation, extract ONLY the question part

Example output:
{
  "conversation": [
    {"role": "assistant", "content": "first substantive question"},
    {"role": "user", "content": "combined answer to first question"},
    {"role": "assistant", "content": "second question"},
    {"role": "user", "content": ""}
  ]
}

Conversation:
%s

Return the cleaned conversation as a JSON array ONLY.
No markdown, no explanations.`

// buildExtractPrompt renders the flat-conversation extraction prompt.
func buildExtractPrompt(msgs []domain.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, fmt.Sprintf("%s: %s", strings.ToUpper(m.Role), m.Content))
	}
	return fmt.Sprintf(extractPromptTemplate, strings.Join(lines, "\n"))
}

const answerEvaluatorPromptTemplate = `You are an expert interview evaluator assessing a candidate's response in a %s level %s interview for a %s position.

Question Asked:
%s

Candidate's Answer:
%s

Your task is to evaluate the candidate's answer comprehensively across multiple dimensions:

1. **Communication** (0-10): Clarity, structure, articulation
2. **Technical Knowledge** (0-10): Correctness, depth of knowledge, technical soundness
3. **Confidence** (0-10): Assertiveness, decisiveness, body language cues from speech
4. **Structure** (0-10): Organization, logical flow, completeness

Also provide:
- **Question Score** (0-10): Overall score for this specific question
- **Feedback Label**: "Excellent" (9-10), "Good" (7-8), "Fair" (5-6), "Poor" (0-4)
- **What Went Well**: 2-3 specific bullet points highlighting strengths in this answer
- **Areas to Improve**: 2-3 specific bullet points with constructive feedback for this answer
- **Improved Answer**: An enhanced version of the candidate's answer incorporating best practices and addressing gaps

Scoring Guidelines:
- Adjust expectations for the stated difficulty
- Technical Round: weight technical_knowledge higher
- HR/Behavioral: weight communication and confidence higher
- Be fair but constructive in your evaluation
- Question score should reflect overall performance on THIS specific question

Output Format:
Return ONLY a valid JSON object with this exact structure:
{
  "question_score": float (0-10),
  "feedback_label": "Excellent|Good|Fair|Poor",
  "user_answer": "The candidate's original answer",
  "improved_answer": "Enhanced version of the answer with more depth and clarity...",
  "what_went_well": ["Specific strength 1", "Specific strength 2"],
  "areas_to_improve": ["Specific improvement 1", "Specific improvement 2"],
  "performance_breakdown": {
    "communication": float (0-10),
    "technical_knowledge": float (0-10),
    "confidence": float (0-10),
    "structure": float (0-10)
  }
}

Important:
- Return ONLY the JSON object
- All scores must be floats between 0 and 10
- Provide specific, actionable feedback
- Include the user's original answer in the response`

func buildAnswerEvaluatorPrompt(sctx domain.SessionContext, qa domain.QAPair) string {
	return fmt.Sprintf(answerEvaluatorPromptTemplate,
		sctx.Difficulty, sctx.InterviewRound, sctx.Role, qa.Question, qa.Answer)
}

const overallEvaluatorPromptTemplate = `You are an expert career coach analyzing a candidate's overall interview performance.

Role: %s
Interview Round: %s
Difficulty Level: %s
Number of Questions: %d

Individual Question Evaluations:
%s

Your task is to provide a comprehensive overall performance analysis:

1. Calculate overall metrics:
   - Total Score (0-100): Sum of all question scores normalized to percentage
   - Average scores for each dimension:
     * Communication (0-10)
     * Technical Knowledge (0-10)
     * Confidence (0-10)
     * Structure (0-10)

2. Provide holistic assessment:
   - Feedback Label: "Excellent" (80-100), "Good" (60-79), "Fair" (40-59), "Poor" (0-39)
   - Key Strengths: 3-5 specific strengths demonstrated consistently across the interview
   - Focus Areas: 3-5 specific areas needing improvement with actionable advice

Consider:
- Consistency across questions
- Improvement or decline in performance throughout the interview
- Domain-specific strengths and weaknesses
- Overall readiness for the role

Output Format:
Return ONLY a valid JSON object with this exact structure:
{
  "total_score": float (0-100),
  "feedback_label": "Excellent|Good|Fair|Poor",
  "key_strengths": ["...", "..."],
  "focus_areas": ["...", "..."],
  "performance_breakdown": {
    "communication": float (0-10),
    "technical_knowledge": float (0-10),
    "confidence": float (0-10),
    "structure": float (0-10)
  }
}

Important:
- Return ONLY the JSON object
- Total score should be out of 100 (average of all question scores x 10)
- Be specific and actionable in strengths and focus areas
- Feedback label should match the total score range`

func buildOverallEvaluatorPrompt(sctx domain.SessionContext, evals []domain.QuestionEvaluation) string {
	evalsJSON, err := json.MarshalIndent(evals, "", "  ")
	if err != nil {
		evalsJSON = []byte("[]")
	}
	return fmt.Sprintf(overallEvaluatorPromptTemplate,
		sctx.Role, sctx.InterviewRound, sctx.Difficulty, len(evals), string(evalsJSON))
}
