package theme

import (
	"testing"

	"github.com/grovetools/notifsync/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestNewThemeWithNameFallsBack(t *testing.T) {
	unknown := NewThemeWithName("solarized")
	kanagawa := NewThemeWithName("Kanagawa")
	assert.Equal(t, kanagawa.Colors, unknown.Colors)

	terminal := NewThemeWithName("terminal")
	assert.NotEqual(t, kanagawa.Colors, terminal.Colors)
}

func TestIcon(t *testing.T) {
	t.Setenv("NOTIFSYNC_NERD_FONT", "")
	assert.Equal(t, "$", Icon(models.CategoryOrder))
	assert.Equal(t, "!", Icon(models.KindOther.Category()))

	t.Setenv("NOTIFSYNC_NERD_FONT", "1")
	assert.NotEqual(t, "$", Icon(models.CategoryOrder))
}
