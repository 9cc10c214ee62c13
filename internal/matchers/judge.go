// internal/matchers/judge.go
package matchers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultThreshold is the pass bar applied when a judge verdict carries only
// a score.
const DefaultThreshold = 0.8

// Completer is the slice of the grading model's API the judge matcher needs.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Graded is a judge verdict: a normalized score, the derived pass, and the
// grader's stated reason.
type Graded struct {
	Pass   bool
	Score  float64
	Reason string
}

// JudgeMatcher delegates grading to an external model. Byte-identical
// received and expected values pass immediately without invoking the grader.
type JudgeMatcher struct {
	judge     Completer
	threshold float64
}

// NewJudgeMatcher wraps a grading model. A non-positive threshold falls back
// to DefaultThreshold.
func NewJudgeMatcher(judge Completer, threshold float64) *JudgeMatcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &JudgeMatcher{judge: judge, threshold: threshold}
}

const similaritySystemPrompt = `You are grading whether two answers are semantically equivalent. Ignore differences in style, grammar, and punctuation. Reply with a JSON object: {"score": <number between 0 and 1>, "reason": "<short explanation>"}.`

// Similarity asks the grader how close received is to expected in meaning.
func (m *JudgeMatcher) Similarity(ctx context.Context, received, expected string) (Graded, error) {
	if received == expected {
		return Graded{Pass: true, Score: 1, Reason: "identical to expected"}, nil
	}

	prompt := fmt.Sprintf("Expected answer:\n%s\n\nSubmitted answer:\n%s", expected, received)
	reply, err := m.judge.Complete(ctx, similaritySystemPrompt, prompt)
	if err != nil {
		return Graded{}, err
	}

	verdict, err := parseVerdict(reply)
	if err != nil {
		return Graded{}, err
	}
	verdict.Pass = verdict.Score >= m.threshold
	return verdict, nil
}

// factualityOptions maps each factuality rubric option to its score. Subsets
// of the expert answer do not pass: an answer that omits expected detail is
// graded as incomplete.
var factualityOptions = map[string]float64{
	"A": 0, // submission is a subset of the expert answer
	"B": 1, // submission is a superset of the expert answer
	"C": 1, // submission agrees with the expert answer
	"D": 0, // submission disagrees with the expert answer
	"E": 0, // answers differ but the differences do not matter
}

const factualityPromptTemplate = `You are comparing a submitted answer to an expert answer on a given question. Here is the data:
[BEGIN DATA]
************
[Question]: %s
************
[Expert]: %s
************
[Submission]: %s
************
[END DATA]

Compare the factual content of the submitted answer with the expert answer. Ignore any differences in style, grammar, or punctuation.
The submitted answer may either be a subset or superset of the expert answer, or it may conflict with it. Determine which case applies. Answer the question by selecting one of the following options:
(A) The submitted answer is a subset of the expert answer and is fully consistent with it.
(B) The submitted answer is a superset of the expert answer and is fully consistent with it.
(C) The submitted answer contains all the same details as the expert answer.
(D) There is a disagreement between the submitted answer and the expert answer.
(E) The answers differ, but these differences don't matter from the perspective of factuality.

Reply with a JSON object: {"choice": "<A|B|C|D|E>", "reason": "<short explanation>"}.`

// Factuality grades received against expected for the given question using
// an A-E option rubric.
func (m *JudgeMatcher) Factuality(ctx context.Context, question, received, expected string) (Graded, error) {
	if received == expected {
		return Graded{Pass: true, Score: 1, Reason: "identical to expected"}, nil
	}

	prompt := fmt.Sprintf(factualityPromptTemplate, question, expected, received)
	reply, err := m.judge.Complete(ctx, "", prompt)
	if err != nil {
		return Graded{}, err
	}

	choice, reason, err := parseOption(reply)
	if err != nil {
		return Graded{}, err
	}
	score, ok := factualityOptions[choice]
	if !ok {
		return Graded{}, fmt.Errorf("judge selected unknown option %q", choice)
	}
	if reason == "" {
		reason = fmt.Sprintf("judge selected option (%s)", choice)
	}
	return Graded{Pass: score >= m.threshold, Score: score, Reason: reason}, nil
}

const rubricSystemPrompt = `You are grading a submitted answer against a rubric. Reply with a JSON object: {"pass": <true|false>, "score": <number between 0 and 1>, "reason": "<short explanation>"}.`

// Rubric grades received against a free-form rubric, trusting the grader's
// pass verdict directly.
func (m *JudgeMatcher) Rubric(ctx context.Context, received, rubric string) (Graded, error) {
	prompt := fmt.Sprintf("Rubric:\n%s\n\nSubmitted answer:\n%s", rubric, received)
	reply, err := m.judge.Complete(ctx, rubricSystemPrompt, prompt)
	if err != nil {
		return Graded{}, err
	}

	var verdict struct {
		Pass   bool    `json:"pass"`
		Score  float64 `json:"score"`
		Reason string  `json:"reason"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(reply)), &verdict); err != nil {
		return Graded{}, fmt.Errorf("judge returned malformed rubric verdict: %w", err)
	}
	return Graded(verdict), nil
}

// CalculateScore adapts the similarity grading to the Matcher contract.
func (m *JudgeMatcher) CalculateScore(ctx context.Context, received, expected string, _ map[string]any) (Score, error) {
	graded, err := m.Similarity(ctx, received, expected)
	if err != nil {
		return Score{}, err
	}
	return Score{Value: graded.Score, Extras: map[string]any{"reason": graded.Reason}}, nil
}

// parseVerdict reads a {"score":..,"reason":..} reply.
func parseVerdict(reply string) (Graded, error) {
	var verdict struct {
		Score  float64 `json:"score"`
		Reason string  `json:"reason"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(reply)), &verdict); err != nil {
		return Graded{}, fmt.Errorf("judge returned malformed verdict: %w", err)
	}
	if verdict.Score < 0 || verdict.Score > 1 {
		return Graded{}, fmt.Errorf("judge score %v outside [0,1]", verdict.Score)
	}
	return Graded{Score: verdict.Score, Reason: verdict.Reason}, nil
}

// parseOption reads an option letter from a judge reply, accepting either the
// requested JSON form or a bare "(A)" style answer.
func parseOption(reply string) (choice, reason string, err error) {
	var parsed struct {
		Choice string `json:"choice"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(reply)), &parsed); err == nil {
		if letter := strings.ToUpper(strings.TrimSpace(parsed.Choice)); letter != "" {
			return letter, parsed.Reason, nil
		}
	}

	for _, letter := range []string{"A", "B", "C", "D", "E"} {
		if strings.Contains(reply, "("+letter+")") {
			return letter, "", nil
		}
	}
	return "", "", fmt.Errorf("judge reply contains no option letter: %q", reply)
}

// extractJSONObject trims any prose around the first top-level JSON object in
// a reply. Graders occasionally wrap their verdict in explanation text.
func extractJSONObject(reply string) string {
	start := strings.IndexByte(reply, '{')
	end := strings.LastIndexByte(reply, '}')
	if start < 0 || end < start {
		return reply
	}
	return reply[start : end+1]
}
