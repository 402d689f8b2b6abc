package participation

import (
	"fmt"
	"slices"

	"reward-polls/modules/common"
)

// ValidateAnswers checks answers against the poll's questions: one answer
// per question with a matching type, Single answers naming exactly one
// option and Multiple answers a non-empty set of distinct options.
func ValidateAnswers(questions []common.Question, answers []common.Answer) error {
	if len(answers) != len(questions) {
		return fmt.Errorf("%w: %d answers for %d questions", common.ErrAnswerSchemaMismatch, len(answers), len(questions))
	}

	for i, q := range questions {
		a := answers[i]
		if a.Type != q.Type {
			return fmt.Errorf("%w: question %d expects a %s answer, got %q", common.ErrAnswerSchemaMismatch, i, q.Type, a.Type)
		}

		switch q.Type {
		case common.QuestionSingle:
			if len(a.Values) != 1 {
				return fmt.Errorf("%w: question %d takes exactly one option", common.ErrAnswerSchemaMismatch, i)
			}
		case common.QuestionMultiple:
			if len(a.Values) == 0 {
				return fmt.Errorf("%w: question %d needs at least one option", common.ErrAnswerSchemaMismatch, i)
			}
		default:
			return fmt.Errorf("%w: question %d has unknown type %q", common.ErrAnswerSchemaMismatch, i, q.Type)
		}

		seen := make(map[string]struct{}, len(a.Values))
		for _, v := range a.Values {
			if !slices.Contains(q.Options, v) {
				return fmt.Errorf("%w: %q is not an option of question %d", common.ErrAnswerSchemaMismatch, v, i)
			}
			if _, dup := seen[v]; dup {
				return fmt.Errorf("%w: %q chosen twice for question %d", common.ErrAnswerSchemaMismatch, v, i)
			}
			seen[v] = struct{}{}
		}
	}
	return nil
}
