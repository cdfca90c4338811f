package textproc

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// commonPunct is the punctuation expected in scanned Spanish documents.
// Anything outside letters, digits, whitespace, and this set counts as
// recognition garbage.
const commonPunct = `.,;:!?¿¡()[]{}«»"'´-–/\@#%&+*=€$£ºª°|_<>`

// ScoreText derives a 0..1 confidence for normalized OCR output. The score
// only annotates results; callers never branch on it.
//
// Heuristic: start at 0.5, reward a high ratio of letters and digits,
// reward extracted structured fields, penalize garbage characters, and
// halve the score for very short text. Non-empty text with zero extracted
// fields always scores below the same text with matches.
func ScoreText(clean string, fields Fields) float64 {
	if strings.TrimSpace(clean) == "" {
		return 0
	}

	var letters, garbage, total int
	for _, r := range clean {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			letters++
		case strings.ContainsRune(commonPunct, r):
			// Expected punctuation is neutral.
		default:
			garbage++
		}
	}
	if total == 0 {
		return 0
	}

	score := 0.5
	score += 0.2 * float64(letters) / float64(total)
	score -= 0.3 * float64(garbage) / float64(total)

	if n := fields.Count(); n > 0 {
		bonus := 0.05 * float64(n)
		if bonus > 0.2 {
			bonus = 0.2
		}
		score += bonus
	}

	if utf8.RuneCountInString(clean) < 10 {
		score *= 0.5
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// BlendConfidence combines the engine-reported score (0-100) with the
// heuristic text score (0-1) into a final 0-100 value. The 70/30 split is a
// placeholder weighting until real accuracy data says otherwise.
func BlendConfidence(engineScore float64, textScore float64) float64 {
	if engineScore < 0 {
		engineScore = 0
	}
	if engineScore > 100 {
		engineScore = 100
	}
	blended := 0.7*engineScore + 0.3*(textScore*100)
	if blended > 100 {
		return 100
	}
	if blended < 0 {
		return 0
	}
	return blended
}
