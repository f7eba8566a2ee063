package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\%\_off\\`, EscapeLike(`50%_off\`))
	assert.Equal(t, "alice", EscapeLike("alice"))
}

func TestCleanText(t *testing.T) {
	text, ok := CleanText("  hello\x00 world \n", 20)
	assert.True(t, ok)
	assert.Equal(t, "hello world", text)

	_, ok = CleanText("héllo", 4)
	assert.False(t, ok)
}

func TestSanitizePhoneNumber(t *testing.T) {
	assert.Equal(t, "+15551234567", SanitizePhoneNumber(" +1 (555) 123-4567 "))
	assert.Equal(t, "5551234", SanitizePhoneNumber("555+1234"))
}

func TestSanitizeEmail(t *testing.T) {
	assert.Equal(t, "alice@example.com", SanitizeEmail("  Alice@Example.COM "))
	assert.True(t, ValidateEmailFormat("alice@example.com"))
	assert.False(t, ValidateEmailFormat("alice@"))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "etc/passwd", SanitizeFilename("../../etc/passwd"))
}
