package main

import (
	"log"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/cb-v4s/ghoulies/internal/game"
)

func main() {
	ebiten.SetWindowSize(740, 710)
	ebiten.SetWindowTitle("ghoulies")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSizeLimits(360, 440, -1, -1)

	app := game.New()
	defer app.Close()

	if err := ebiten.RunGame(app); err != nil {
		log.Fatal(err)
	}
}
