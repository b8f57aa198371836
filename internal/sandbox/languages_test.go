package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecipesCoverSupportedLanguages(t *testing.T) {
	for _, lang := range []string{"python", "javascript", "java", "cpp", "c", "go"} {
		r, ok := RecipeFor(lang)
		require.True(t, ok, lang)
		assert.NotEmpty(t, r.Image, lang)
		assert.NotEmpty(t, r.FileName, lang)
		assert.NotEmpty(t, r.Command, lang)
		assert.True(t, Supported(lang))
	}
	assert.False(t, Supported("cobol"))
}

func TestOnlyGoGetsNetwork(t *testing.T) {
	for _, lang := range Languages() {
		r, _ := RecipeFor(lang)
		if lang == "go" {
			assert.True(t, r.NetworkEnabled)
		} else {
			assert.False(t, r.NetworkEnabled, lang)
		}
	}
}

func TestExtensionFallback(t *testing.T) {
	assert.Equal(t, ".py", Extension("python"))
	assert.Equal(t, ".txt", Extension("cobol"))
}
