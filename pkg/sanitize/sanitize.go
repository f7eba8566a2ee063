package sanitize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	emailRegex   = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	nonDigit     = regexp.MustCompile(`[^\d+]`)
	pathTraverse = strings.NewReplacer("../", "", "./", "", "..\\", "", ".\\", "")
	likeEscaper  = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
)

// SanitizeEmail trims and lowercases an email address
func SanitizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmailFormat checks if email format is valid
func ValidateEmailFormat(email string) bool {
	return emailRegex.MatchString(email)
}

// SanitizePhoneNumber keeps digits and a leading plus sign
func SanitizePhoneNumber(phone string) string {
	phone = strings.TrimSpace(phone)
	cleaned := nonDigit.ReplaceAllString(phone, "")
	if strings.HasPrefix(cleaned, "+") {
		return "+" + strings.ReplaceAll(cleaned[1:], "+", "")
	}
	return strings.ReplaceAll(cleaned, "+", "")
}

// SanitizeFilename strips path traversal and control characters
func SanitizeFilename(filename string) string {
	return StripControlCharacters(pathTraverse.Replace(strings.TrimSpace(filename)))
}

// StripControlCharacters removes control characters, keeping newlines and tabs
func StripControlCharacters(input string) string {
	var result strings.Builder
	result.Grow(len(input))
	for _, r := range input {
		if r == '\n' || r == '\t' || !unicode.IsControl(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// CleanText trims, strips control characters and reports whether the result fits maxRunes.
// Chat content is stored verbatim otherwise; escaping is the client's job at render time.
func CleanText(input string, maxRunes int) (string, bool) {
	cleaned := strings.TrimSpace(StripControlCharacters(input))
	return cleaned, utf8.RuneCountInString(cleaned) <= maxRunes
}

// EscapeLike escapes LIKE/ILIKE metacharacters so user input matches literally
func EscapeLike(input string) string {
	return likeEscaper.Replace(input)
}
