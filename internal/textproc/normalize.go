// Package textproc cleans raw OCR output and pulls structured fields from
// it. Everything in this package is a pure function: deterministic, no I/O,
// and safe to call concurrently. Normalization is idempotent, so re-running
// it over already-clean text is a no-op.
package textproc

import (
	"regexp"
	"strings"
)

// DocType selects the cleanup and extraction rules for a document.
type DocType string

const (
	DocGeneral DocType = "general"
	DocInvoice DocType = "invoice"
	DocContact DocType = "contact"
	DocDigits  DocType = "digits_only"
)

// charFix rewrites one OCR misrecognition in context. Patterns use capture
// groups instead of lookarounds (RE2 has none) and are applied until the
// text stops changing, which keeps the cleanup idempotent.
type charFix struct {
	re   *regexp.Regexp
	repl string
}

const letterClass = `A-Za-zÁÉÍÓÚÑÜáéíóúñü`

var contextFixes = []charFix{
	// Digits misread inside words.
	{regexp.MustCompile(`([` + letterClass + `])0([` + letterClass + `])`), "${1}O${2}"},
	{regexp.MustCompile(`([` + letterClass + `])1([` + letterClass + `])`), "${1}I${2}"},
	{regexp.MustCompile(`([` + letterClass + `])5([` + letterClass + `])`), "${1}S${2}"},
	{regexp.MustCompile(`([` + letterClass + `])8([` + letterClass + `])`), "${1}B${2}"},
	{regexp.MustCompile(`([` + letterClass + `])6([` + letterClass + `])`), "${1}G${2}"},
	// Letters misread inside numbers.
	{regexp.MustCompile(`(\d)[Oo](\d)`), "${1}0${2}"},
	{regexp.MustCompile(`(\d)[Il](\d)`), "${1}1${2}"},
	{regexp.MustCompile(`(\d)S(\d)`), "${1}5${2}"},
	{regexp.MustCompile(`(\d)B(\d)`), "${1}8${2}"},
	{regexp.MustCompile(`(\d)G(\d)`), "${1}6${2}"},
}

// spanishReplacer fixes symbols the engines trade for Spanish characters.
var spanishReplacer = strings.NewReplacer(
	"|", "I",
	"°", "º",
	"¢", "c",
	"£", "E",
)

var (
	spaceRunRe   = regexp.MustCompile(`[ \t]+`)
	lineEdgeRe   = regexp.MustCompile(`(?m)^ +| +$`)
	blankRunRe   = regexp.MustCompile(`\n{3,}`)
	spacePunctRe = regexp.MustCompile(` +([,.;:!?])`)
	digitLineRe  = regexp.MustCompile(`\d`)
)

// Normalize collapses whitespace, repairs common misrecognitions, and
// extracts structured fields for document types that carry them. Applying
// Normalize to its own output returns the same text and fields.
func Normalize(raw, language string, doc DocType) (string, Fields) {
	clean := normalizeText(raw, language, doc)
	return clean, ExtractFields(clean, doc)
}

func normalizeText(raw, language string, doc DocType) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	if language == "" || language == "spa" {
		s = spanishReplacer.Replace(s)
	}
	s = applyContextFixes(s)

	s = spaceRunRe.ReplaceAllString(s, " ")
	s = spacePunctRe.ReplaceAllString(s, "$1")
	s = lineEdgeRe.ReplaceAllString(s, "")
	s = blankRunRe.ReplaceAllString(s, "\n\n")
	s = strings.TrimSpace(s)

	if doc == DocDigits {
		s = keepDigitLines(s)
	}
	return s
}

// applyContextFixes runs the contextual rewrites until a fixed point.
// Adjacent confusions overlap (a single pass over "C0L0R" only repairs the
// first zero), so one pass is not enough.
func applyContextFixes(s string) string {
	for i := 0; i < 6; i++ {
		next := s
		for _, fix := range contextFixes {
			next = fix.re.ReplaceAllString(next, fix.repl)
		}
		if next == s {
			break
		}
		s = next
	}
	return s
}

// keepDigitLines drops every line without a digit. Used for meter readings
// and reference numbers where letters are always noise.
func keepDigitLines(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if digitLineRe.MatchString(line) {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
