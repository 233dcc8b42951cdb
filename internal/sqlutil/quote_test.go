package sqlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple table", "linktarget", "`linktarget`"},
		{"prefixed table", "commonswiki_page", "`commonswiki_page`"},
		{"embedded backtick doubled", "bad`name", "`bad``name`"},
		{"empty string", "", "``"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, QuoteIdentifier(tt.input))
		})
	}
}

func TestIsValidIdentifier(t *testing.T) {
	valid := []string{"page", "categorylinks", "commonswiki_linktarget", "t1", "_x"}
	for _, name := range valid {
		assert.True(t, IsValidIdentifier(name), name)
	}

	invalid := []string{"", "bad`name", "bad-name", "bad.name", "bad name", "p;age", "página"}
	for _, name := range invalid {
		assert.False(t, IsValidIdentifier(name), name)
	}
}

func TestQuoteIdentifierSafe(t *testing.T) {
	quoted, err := QuoteIdentifierSafe("commonswiki_page")
	require.NoError(t, err)
	assert.Equal(t, "`commonswiki_page`", quoted)

	_, err = QuoteIdentifierSafe("drop table; --")
	require.Error(t, err)

	var ierr *InvalidIdentifierError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, "drop table; --", ierr.Name)
}
