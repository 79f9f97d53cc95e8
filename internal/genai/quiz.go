package genai

import (
	"fmt"
	"strings"

	domerrors "github.com/YulsKumanikina/eco-ekb-bot/internal/errors"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/stringutil"
)

// ParseQuiz reads the "Key: value" reply of the quiz prompt. A reply
// missing any of the five fields is rejected with ErrMalformedQuiz.
// Over-long options are truncated.
func ParseQuiz(reply string) (*Quiz, error) {
	fields := make(map[string]string)
	for line := range strings.SplitSeq(reply, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.Trim(strings.TrimSpace(key), "*_ ")
		value = strings.Trim(strings.TrimSpace(value), "*_ ")
		if key != "" {
			fields[key] = value
		}
	}

	q := &Quiz{
		Question: fields[quizKeyQuestion],
		Correct:  fields[quizKeyCorrect],
	}
	var missing []string
	if q.Question == "" {
		missing = append(missing, quizKeyQuestion)
	}
	if q.Correct == "" {
		missing = append(missing, quizKeyCorrect)
	}
	for i := 1; i <= 3; i++ {
		key := fmt.Sprintf(quizKeyWrong, i)
		if w := fields[key]; w != "" {
			q.Wrong = append(q.Wrong, stringutil.Truncate(w, QuizOptionMaxLen))
		} else {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", domerrors.ErrMalformedQuiz, strings.Join(missing, ", "))
	}
	q.Correct = stringutil.Truncate(q.Correct, QuizOptionMaxLen)
	return q, nil
}

// Options returns the answers in the order given by perm, which must be a
// permutation of 0..3, and the index of the correct one.
func (q *Quiz) Options(perm []int) ([]string, int) {
	all := append([]string{q.Correct}, q.Wrong...)
	out := make([]string, len(all))
	correct := 0
	for i, p := range perm {
		out[i] = all[p]
		if p == 0 {
			correct = i
		}
	}
	return out, correct
}
