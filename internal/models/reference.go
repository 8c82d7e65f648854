package models

// ReferenceItem is one code/description pair of a lookup table
type ReferenceItem struct {
	Code        string `json:"code" example:"2062"`
	Description string `json:"description" example:"Sociedade Empresária Limitada"`
}
