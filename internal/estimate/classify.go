package estimate

import (
	"errors"
	"strings"
	"unicode/utf8"

	"caloriebot/internal/domain"
)

// ErrUnrecognized is reported when the model answers with something too short
// to be an estimate.
var ErrUnrecognized = errors.New("unrecognized model response")

// minResponseRunes is the shortest trimmed response accepted as an answer.
const minResponseRunes = 5

// Classify maps a raw model response onto a result kind. The sentinel check is
// a case-insensitive substring match, so surrounding prose does not matter.
// For ResultFoodEstimate the trimmed response is returned verbatim.
func Classify(response string, sentinels []string) (domain.ResultKind, string, error) {
	text := strings.TrimSpace(response)
	if utf8.RuneCountInString(text) < minResponseRunes {
		return domain.ResultProviderError, "", ErrUnrecognized
	}
	upper := strings.ToUpper(text)
	for _, s := range sentinels {
		if s != "" && strings.Contains(upper, strings.ToUpper(s)) {
			return domain.ResultNoFood, "", nil
		}
	}
	return domain.ResultFoodEstimate, text, nil
}
