package utils

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// UnidentifiedDivision is returned when a classification code carries fewer
// than two usable digits.
const UnidentifiedDivision = -1

// UnidentifiedLabel is the display label for UnidentifiedDivision.
const UnidentifiedLabel = "Não Identificado"

var (
	// 1.234.567,89 / 1.234
	dottedThousands = regexp.MustCompile(`^-?\d{1,3}(\.\d{3})+(,\d+)?$`)
	// 1234,56 / 1234
	commaDecimal = regexp.MustCompile(`^-?\d+(,\d+)?$`)
	// 1234.56
	dotDecimal = regexp.MustCompile(`^-?\d+\.\d+$`)
)

// ParseCapitalDecimal normalizes a declared capital value as published by the
// Receita Federal (comma as decimal separator, optional dot thousands
// separators). The second return is false for anything unparseable.
func ParseCapitalDecimal(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	switch {
	case s == "":
		return decimal.Zero, false
	case dottedThousands.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case commaDecimal.MatchString(s):
		s = strings.Replace(s, ",", ".", 1)
	case dotDecimal.MatchString(s):
	default:
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ParseCapital is ParseCapitalDecimal returning a float64
func ParseCapital(raw string) (float64, bool) {
	d, ok := ParseCapitalDecimal(raw)
	if !ok {
		return 0, false
	}
	f := d.InexactFloat64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// DivisionOf extracts the 2-digit CNAE division from a classification code,
// ignoring punctuation such as "10.11-2/01".
func DivisionOf(code string) (int, bool) {
	digits := CleanCNPJ(code)
	if len(digits) < 2 {
		return UnidentifiedDivision, false
	}
	n, err := strconv.Atoi(digits[:2])
	if err != nil {
		return UnidentifiedDivision, false
	}
	return n, true
}

// DivisionCode formats a division as its zero-padded 2-character code
func DivisionCode(division int) string {
	if division == UnidentifiedDivision {
		return ""
	}
	return PadCode(strconv.Itoa(division), 2)
}

// SearchKind tells how a free-text term is matched
type SearchKind int

const (
	SearchNone SearchKind = iota
	SearchRoot
	SearchName
)

// SearchTerm is a cleaned company-or-identifier search
type SearchTerm struct {
	Kind  SearchKind
	Value string
}

var searchPunctuation = strings.NewReplacer(".", "", "/", "", "-", "")

// ParseSearchTerm classifies a free-text search. Digit-only terms become root
// identifier searches (a full 14-digit CNPJ is truncated to its root); any
// other term is an upper-cased name substring search.
func ParseSearchTerm(term string) SearchTerm {
	trimmed := strings.TrimSpace(term)
	if trimmed == "" {
		return SearchTerm{Kind: SearchNone}
	}

	cleaned := searchPunctuation.Replace(trimmed)
	if cleaned != "" && isDigits(cleaned) {
		if len(cleaned) == 14 {
			cleaned = cleaned[:8]
		}
		return SearchTerm{Kind: SearchRoot, Value: cleaned}
	}

	name := strings.Join(strings.Fields(strings.ToUpper(trimmed)), " ")
	return SearchTerm{Kind: SearchName, Value: name}
}

// Registration status codes
const (
	StatusNull      = "01"
	StatusActive    = "02"
	StatusSuspended = "03"
	StatusInapt     = "04"
	StatusClosed    = "08"
)

var statusDescriptions = map[string]string{
	StatusNull:      "NULA",
	StatusActive:    "ATIVA",
	StatusSuspended: "SUSPENSA",
	StatusInapt:     "INAPTA",
	StatusClosed:    "BAIXADA",
}

// NormalizeStatus zero-pads a registration status code ("2" -> "02")
func NormalizeStatus(code string) string {
	return PadCode(strings.TrimSpace(code), 2)
}

// StatusDescription returns the human-readable registration status
func StatusDescription(code string) string {
	if desc, ok := statusDescriptions[NormalizeStatus(code)]; ok {
		return desc
	}
	return strings.TrimSpace(code)
}

// PadCode left-pads a numeric code with zeros up to width
func PadCode(code string, width int) string {
	code = strings.TrimSpace(code)
	if code == "" || len(code) >= width || !isDigits(code) {
		return code
	}
	return strings.Repeat("0", width-len(code)) + code
}

var dateLayouts = []string{"20060102", "2006-01-02", "02/01/2006"}

// NormalizeDate converts YYYYMMDD, YYYY-MM-DD or DD/MM/YYYY into YYYYMMDD.
// Invalid dates return "".
func NormalizeDate(s string) string {
	t, ok := ParseDate(s)
	if !ok {
		return ""
	}
	return t.Format("20060102")
}

// ParseDate parses the date layouts accepted by NormalizeDate
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDate renders a warehouse YYYYMMDD date as DD/MM/YYYY
func FormatDate(s string) string {
	t, err := time.Parse("20060102", strings.TrimSpace(s))
	if err != nil {
		return ""
	}
	return t.Format("02/01/2006")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// IsDigits reports whether s is non-empty and made only of ASCII digits
func IsDigits(s string) bool {
	return isDigits(s)
}
