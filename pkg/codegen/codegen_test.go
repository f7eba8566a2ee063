package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeetingCode_Format(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := MeetingCode()
		require.NoError(t, err)
		assert.Regexp(t, `^[a-z]{3}-[a-z]{4}-[a-z]{3}$`, code)
		assert.True(t, IsMeetingCode(code))
	}
}

func TestMeetingCode_Varies(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		code, err := MeetingCode()
		require.NoError(t, err)
		seen[code] = struct{}{}
	}
	assert.Greater(t, len(seen), 1)
}

func TestIsMeetingCode(t *testing.T) {
	assert.False(t, IsMeetingCode("ABC-defg-hij"))
	assert.False(t, IsMeetingCode("abc-def-hij"))
	assert.False(t, IsMeetingCode(""))
}
