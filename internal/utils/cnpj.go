package utils

import (
	"regexp"
	"strconv"
)

var nonDigits = regexp.MustCompile(`\D`)

// CleanCNPJ removes all non-numeric characters from a CNPJ or CNPJ root
func CleanCNPJ(cnpj string) string {
	return nonDigits.ReplaceAllString(cnpj, "")
}

// FormatCNPJ formats a full CNPJ as XX.XXX.XXX/XXXX-XX
func FormatCNPJ(cnpj string) string {
	cleaned := CleanCNPJ(cnpj)
	if len(cleaned) != 14 {
		return cnpj
	}

	return cleaned[:2] + "." + cleaned[2:5] + "." + cleaned[5:8] + "/" + cleaned[8:12] + "-" + cleaned[12:14]
}

// JoinCNPJ assembles the full 14-digit CNPJ from its root, order and check digit parts
func JoinCNPJ(root, order, dv string) string {
	return PadCode(root, 8) + PadCode(order, 4) + PadCode(dv, 2)
}

// RootOf returns the 8-digit company root of a full or partial CNPJ.
// Inputs shorter than 8 digits are returned cleaned but untruncated.
func RootOf(cnpj string) string {
	cleaned := CleanCNPJ(cnpj)
	if len(cleaned) > 8 {
		return cleaned[:8]
	}
	return cleaned
}

// IsValidCNPJ validates CNPJ check digits
func IsValidCNPJ(cnpj string) bool {
	cleaned := CleanCNPJ(cnpj)
	if len(cleaned) != 14 {
		return false
	}

	if isAllSameDigit(cleaned) {
		return false
	}

	digits := make([]int, 14)
	for i, char := range cleaned {
		digit, err := strconv.Atoi(string(char))
		if err != nil {
			return false
		}
		digits[i] = digit
	}

	if checkDigit(digits[:12], []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}) != digits[12] {
		return false
	}
	return checkDigit(digits[:13], []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}) == digits[13]
}

func isAllSameDigit(s string) bool {
	if len(s) == 0 {
		return false
	}

	first := s[0]
	for i := 1; i < len(s); i++ {
		if s[i] != first {
			return false
		}
	}
	return true
}

func checkDigit(digits []int, weights []int) int {
	sum := 0
	for i, digit := range digits {
		sum += digit * weights[i]
	}

	remainder := sum % 11
	if remainder < 2 {
		return 0
	}
	return 11 - remainder
}
