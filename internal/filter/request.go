package filter

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/nexconsult/cnpj-analytics/internal/utils"
	"github.com/shopspring/decimal"
)

// BranchMode selects which establishments participate in a query
type BranchMode string

const (
	BranchAll              BranchMode = "all"
	BranchHeadquartersOnly BranchMode = "headquarters"
	BranchBranchesOnly     BranchMode = "branches"
)

// ParseBranchMode accepts the API names plus the Portuguese dashboard labels.
// Anything unrecognized resolves to BranchAll.
func ParseBranchMode(s string) BranchMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "headquarters", "headquarters_only", "hq", "matriz", "matrizes", "somente matrizes", "1":
		return BranchHeadquartersOnly
	case "branches", "branches_only", "branch", "filial", "filiais", "somente filiais", "2":
		return BranchBranchesOnly
	default:
		return BranchAll
	}
}

// UnmarshalText implements encoding.TextUnmarshaler; it never fails
func (m *BranchMode) UnmarshalText(text []byte) error {
	*m = ParseBranchMode(string(text))
	return nil
}

// UnmarshalJSON accepts a string or a bare number such as 1 or 2
func (m *BranchMode) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		s = string(bytes.TrimSpace(b))
	}
	*m = ParseBranchMode(s)
	return nil
}

// Resolved returns the mode with the zero value mapped to BranchAll
func (m BranchMode) Resolved() BranchMode {
	return ParseBranchMode(string(m))
}

// Codes is a lenient code set. It decodes an array or a single scalar, and
// numbers keep their literal text. Elements that are neither strings nor
// numbers are kept as raw JSON so the compiler drops them individually.
type Codes []string

// UnmarshalJSON implements json.Unmarshaler; it never fails
func (c *Codes) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*c = nil
		return nil
	}

	var elems []json.RawMessage
	if b[0] != '[' || json.Unmarshal(b, &elems) != nil {
		elems = []json.RawMessage{b}
	}

	out := make(Codes, 0, len(elems))
	for _, elem := range elems {
		if s, ok := codeText(elem); ok {
			out = append(out, s)
		}
	}
	*c = out
	return nil
}

func codeText(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s, true
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String(), true
	}
	return string(raw), true
}

// Amount is an optional capital bound. Numbers and strings in either
// dot-decimal or comma-decimal notation are accepted; anything else decodes
// to an invalid bound that the compiler drops.
type Amount struct {
	decimal.NullDecimal
	raw     string
	invalid bool
}

// NewAmount returns a valid bound
func NewAmount(v float64) *Amount {
	return &Amount{NullDecimal: decimal.NewNullDecimal(decimal.NewFromFloat(v))}
}

// ParseAmount parses a bound with the capital normalizer
func ParseAmount(s string) *Amount {
	if d, ok := utils.ParseCapitalDecimal(s); ok {
		return &Amount{NullDecimal: decimal.NewNullDecimal(d), raw: s}
	}
	return &Amount{raw: s, invalid: strings.TrimSpace(s) != ""}
}

// UnmarshalJSON implements json.Unmarshaler
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = Amount{}
		return nil
	}

	var s string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			*a = Amount{raw: string(b), invalid: true}
			return nil
		}
	} else {
		s = string(b)
	}
	*a = *ParseAmount(s)
	return nil
}

// MarshalJSON implements json.Marshaler
func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.Valid {
		return []byte("null"), nil
	}
	return []byte(a.Decimal.String()), nil
}

// Request is the structured filter input. All fields are optional.
type Request struct {
	SearchTerm          string     `json:"search_term,omitempty" example:"petrobras"`
	MinCapital          *Amount    `json:"min_capital,omitempty" swaggertype:"number" example:"100000"`
	MaxCapital          *Amount    `json:"max_capital,omitempty" swaggertype:"number"`
	SizeClasses         Codes      `json:"size_classes,omitempty" swaggertype:"array,string" example:"01,03"`
	ActiveOnly          bool       `json:"active_only,omitempty" example:"true"`
	States              Codes      `json:"states,omitempty" swaggertype:"array,string" example:"SP,MG"`
	MunicipalityCodes   Codes      `json:"municipality_codes,omitempty" swaggertype:"array,string"`
	LegalNatureCodes    Codes      `json:"legal_nature_codes,omitempty" swaggertype:"array,string" example:"2062"`
	ClassificationCodes Codes      `json:"classification_codes,omitempty" swaggertype:"array,string" example:"1011201"`
	SectorDivisionCodes Codes      `json:"sector_division_codes,omitempty" swaggertype:"array,string" example:"10,20"`
	DateStart           string     `json:"date_start,omitempty" example:"2015-01-01"`
	DateEnd             string     `json:"date_end,omitempty" example:"20231231"`
	BranchMode          BranchMode `json:"branch_mode,omitempty" swaggertype:"string" enums:"all,headquarters,branches"`
}

// WithBranchMode returns a copy of the request using mode
func (r Request) WithBranchMode(mode BranchMode) Request {
	r.BranchMode = mode
	return r
}
