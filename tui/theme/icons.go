package theme

import (
	"os"

	"github.com/grovetools/notifsync/pkg/models"
)

// Nerd Font icons per notification category, with ASCII fallbacks.
var (
	nerdIcons = map[models.Category]string{
		models.CategoryOrder:        "\U000F0110", // md-cart
		models.CategoryStock:        "\U000F03D3", // md-package_variant
		models.CategoryCatalog:      "\U000F010B", // md-car
		models.CategoryRegistration: "\U000F0004", // md-account
		models.CategoryOther:        "\U000F009A", // md-bell
	}
	asciiIcons = map[models.Category]string{
		models.CategoryOrder:        "$",
		models.CategoryStock:        "#",
		models.CategoryCatalog:      "*",
		models.CategoryRegistration: "+",
		models.CategoryOther:        "!",
	}
)

// Icon returns the icon for a category. Nerd Font glyphs are used only when
// NOTIFSYNC_NERD_FONT=1.
func Icon(c models.Category) string {
	if os.Getenv("NOTIFSYNC_NERD_FONT") == "1" {
		return nerdIcons[c]
	}
	return asciiIcons[c]
}
