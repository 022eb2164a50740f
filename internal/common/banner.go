package common

import (
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner
func PrintBanner(version string) {
	b := banner.New()
	b.PrintTopLine()
	b.PrintCenteredText("Vellum")
	b.PrintKeyValue("Version", version, 10)
	b.PrintBottomLine()
}
