package language

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_KnownLanguage(t *testing.T) {
	d, err := Get("python")
	require.NoError(t, err)
	assert.Equal(t, "python", d.Key)
	assert.Equal(t, "main.py", d.SourceFilename)
	assert.Nil(t, d.CompileCmd)
}

func TestGet_CompiledLanguageHasCompileCmd(t *testing.T) {
	d, err := Get("cpp")
	require.NoError(t, err)
	assert.NotEmpty(t, d.CompileCmd)
	assert.NotEmpty(t, d.RunCmd)
	assert.Greater(t, d.CompileTimeLimit, 0.0)
}

func TestGet_Aliases(t *testing.T) {
	tests := []struct {
		alias    string
		resolved string
	}{
		{"js", "javascript"},
		{"node", "javascript"},
		{"nodejs", "javascript"},
		{"py", "python"},
		{"python3", "python"},
		{"c++", "cpp"},
		{"rs", "rust"},
	}

	for _, tt := range tests {
		t.Run(tt.alias, func(t *testing.T) {
			d, err := Get(tt.alias)
			require.NoError(t, err)
			assert.Equal(t, tt.resolved, d.Key)
		})
	}
}

func TestGet_CaseAndWhitespaceInsensitive(t *testing.T) {
	d, err := Get("  PYTHON \n")
	require.NoError(t, err)
	assert.Equal(t, "python", d.Key)
}

func TestGet_UnknownLanguage(t *testing.T) {
	_, err := Get("cobol")
	require.Error(t, err)

	var unsupported *UnsupportedLanguage
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "cobol", unsupported.Key)
}

func TestKeys_IncludesAllRegisteredLanguages(t *testing.T) {
	keys := Keys()
	for _, want := range []string{"python", "javascript", "ruby", "php", "c", "cpp", "go", "rust", "java"} {
		assert.Contains(t, keys, want)
	}
}
