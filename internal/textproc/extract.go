package textproc

import "regexp"

// Field kinds produced by extraction.
const (
	FieldEmail  = "email"
	FieldPhone  = "phone"
	FieldDate   = "date"
	FieldAmount = "amount"
	FieldIBAN   = "iban"
	FieldDNI    = "dni"
	FieldPostal = "postal_code"
	FieldURL    = "url"
)

// Fields maps a field kind to the substrings matched for it, in order of
// appearance and without duplicates.
type Fields map[string][]string

// fieldPattern binds one field kind to its expression. The list is ordered:
// extraction output follows it deterministically.
type fieldPattern struct {
	kind string
	re   *regexp.Regexp
}

var fieldPatterns = []fieldPattern{
	{FieldEmail, regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)},
	// Spanish numbers: nine digits starting 6-9, optionally grouped in
	// threes and prefixed with +34/0034. Solid runs inside longer digit
	// sequences (IBANs, references) are excluded by the boundaries.
	{FieldPhone, regexp.MustCompile(`(?:(?:\+34|0034)\s?)?\b[6789]\d{2}[\s.\-]?\d{3}[\s.\-]?\d{3}\b`)},
	{FieldDate, regexp.MustCompile(`\b\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}\b`)},
	// Spanish amount format: thousands with dots, decimals with comma,
	// trailing currency mark.
	{FieldAmount, regexp.MustCompile(`\d+(?:\.\d{3})*,\d{2}\s?(?:€|EUR)|\d+(?:,\d{3})*\.\d{2}\s?\$`)},
	{FieldIBAN, regexp.MustCompile(`\bES\d{2}(?:\s?\d{4}){5}\b`)},
	{FieldDNI, regexp.MustCompile(`\b(?:\d{8}|[XYZxyz]\d{7})[A-Za-z]\b`)},
	{FieldPostal, regexp.MustCompile(`\b\d{5}\b`)},
	{FieldURL, regexp.MustCompile(`https?://\S+`)},
}

// docTypeFields lists which kinds each structured document type carries.
// General and digits-only documents skip extraction entirely.
var docTypeFields = map[DocType][]string{
	DocInvoice: {FieldEmail, FieldPhone, FieldDate, FieldAmount, FieldIBAN, FieldDNI, FieldPostal, FieldURL},
	DocContact: {FieldEmail, FieldPhone, FieldURL, FieldPostal, FieldDNI},
}

// ExtractFields matches the structured field patterns for the document type
// against already-normalized text. Unstructured document types return an
// empty map.
func ExtractFields(text string, doc DocType) Fields {
	fields := Fields{}
	kinds := docTypeFields[doc]
	if len(kinds) == 0 || text == "" {
		return fields
	}

	wanted := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		wanted[k] = true
	}

	for _, pattern := range fieldPatterns {
		if !wanted[pattern.kind] {
			continue
		}
		matches := pattern.re.FindAllString(text, -1)
		if len(matches) == 0 {
			continue
		}
		seen := make(map[string]bool, len(matches))
		for _, m := range matches {
			if seen[m] {
				continue
			}
			seen[m] = true
			fields[pattern.kind] = append(fields[pattern.kind], m)
		}
	}
	return fields
}

// Count returns the total number of matched values across all kinds.
func (f Fields) Count() int {
	n := 0
	for _, values := range f {
		n += len(values)
	}
	return n
}

// First returns the first match for a kind, or empty when there is none.
func (f Fields) First(kind string) string {
	if values := f[kind]; len(values) > 0 {
		return values[0]
	}
	return ""
}
