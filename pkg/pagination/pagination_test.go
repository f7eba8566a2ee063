package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	p, err := Parse("", "", 5, 50)
	require.NoError(t, err)

	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 5, p.Size)
	assert.Equal(t, 0, p.Offset)
}

func TestParse_ClampsSize(t *testing.T) {
	p, err := Parse("3", "500", 5, 50)
	require.NoError(t, err)

	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 50, p.Size)
	assert.Equal(t, 100, p.Offset)
}

func TestParse_InvalidInput(t *testing.T) {
	_, err := Parse("abc", "", 5, 50)
	assert.Error(t, err)

	_, err = Parse("", "x", 5, 50)
	assert.Error(t, err)
}

func TestNewPage(t *testing.T) {
	page := NewPage[string](New(2, 5, 5, 50), 11, nil)

	assert.Equal(t, 3, page.TotalPages)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
}
