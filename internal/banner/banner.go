package banner

import (
	"shakeout/internal/tui/styles"

	"github.com/charmbracelet/lipgloss"
)

func GetString() string {
	renderer := lipgloss.DefaultRenderer()

	style := renderer.NewStyle().
		Foreground(styles.ColorPrimary).
		Bold(true)

	ascii := `
       __          __                   __ 
  ___ / /  ___ _  / /__ ___  __ __ __  / /_
 (_-</ _ \/ _ '/ /  '_// -_)/ _ \/ // // __/
/___/_//_/\_,_/ /_/\_\ \__/ \___/\_,_/ \__/ `

	return "\n" + style.Render(ascii) + "\n"
}
