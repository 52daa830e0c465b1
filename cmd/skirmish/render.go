package main

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"

	"starfall-arena/game"
)

var (
	styleHUD        = tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
	styleBorder     = tcell.StyleDefault.Foreground(tcell.ColorGray)
	stylePlayer     = tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)
	styleEnemy      = tcell.StyleDefault.Foreground(tcell.ColorRed)
	styleProjectile = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	stylePickup     = tcell.StyleDefault.Foreground(tcell.ColorBlue)
	styleShield     = tcell.StyleDefault.Foreground(tcell.ColorTeal)
	styleBanner     = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
)

func glyph(e game.RenderEntity) (rune, tcell.Style) {
	switch e.Kind {
	case game.KindPlayer:
		return '@', stylePlayer
	case game.KindEnemy:
		return 'W', styleEnemy
	case game.KindProjectile:
		return '*', styleProjectile
	case game.KindPickup:
		switch {
		case strings.HasPrefix(e.Payload, "module:"):
			return '#', stylePickup
		case e.Payload == "energy":
			return '%', stylePickup
		}
		return '+', stylePickup
	case game.KindShieldZone:
		return 'o', styleShield
	}
	return '?', tcell.StyleDefault
}

func (s *skirmish) draw() {
	scr := s.screen
	scr.Clear()
	cols, rows := scr.Size()
	if cols < 10 || rows < 5 {
		scr.Show()
		return
	}

	st := s.engine.Status()
	hud := fmt.Sprintf(" %-8s score %-4d chain %-3d wave %-2d hp %3.0f/%-3.0f en %3.0f/%-3.0f %s",
		st.State, st.Score, st.KillChain, st.Wave, st.HitPoints, st.MaxHitPoints, st.Energy, st.MaxEnergy, st.Weapon)
	if st.ShieldUp {
		hud += " [shield]"
	}
	drawText(scr, 0, 0, hud, styleHUD)

	// arena box below the HUD line
	top, left := 1, 0
	w, h := cols-2, rows-top-2
	drawBox(scr, left, top, w+2, h+2)

	world := s.engine.World()
	sx := float64(w) / world.Width()
	sy := float64(h) / world.Height()
	snap := s.engine.Snapshot()
	// shields first so ships draw over them
	for pass := 0; pass < 2; pass++ {
		for _, e := range snap {
			if (e.Kind == game.KindShieldZone) != (pass == 0) {
				continue
			}
			x := left + 1 + int(e.Position.X*sx)
			y := top + 1 + int(e.Position.Y*sy)
			if x <= left || x > left+w || y <= top || y > top+h {
				continue
			}
			r, style := glyph(e)
			scr.SetContent(x, y, r, nil, style)
		}
	}

	switch st.State {
	case game.StateStartScreen:
		drawCentered(scr, rows/2, "STARFALL", styleBanner)
		drawCentered(scr, rows/2+1, "enter to launch, esc to quit", styleHUD)
	case game.StateMenu:
		drawCentered(scr, rows/2, "PAUSED", styleBanner)
		drawCentered(scr, rows/2+1, "enter to resume", styleHUD)
	case game.StateDeathScreen:
		drawCentered(scr, rows/2, fmt.Sprintf("SHIP LOST  score %d  best chain %d", st.Score, st.BestChain), styleBanner)
		drawCentered(scr, rows/2+1, "space for a new run", styleHUD)
	}
	scr.Show()
}

func drawText(scr tcell.Screen, x, y int, text string, style tcell.Style) {
	for i, r := range []rune(text) {
		scr.SetContent(x+i, y, r, nil, style)
	}
}

func drawCentered(scr tcell.Screen, y int, text string, style tcell.Style) {
	cols, _ := scr.Size()
	drawText(scr, (cols-len([]rune(text)))/2, y, text, style)
}

func drawBox(scr tcell.Screen, x, y, w, h int) {
	for i := x + 1; i < x+w-1; i++ {
		scr.SetContent(i, y, tcell.RuneHLine, nil, styleBorder)
		scr.SetContent(i, y+h-1, tcell.RuneHLine, nil, styleBorder)
	}
	for j := y + 1; j < y+h-1; j++ {
		scr.SetContent(x, j, tcell.RuneVLine, nil, styleBorder)
		scr.SetContent(x+w-1, j, tcell.RuneVLine, nil, styleBorder)
	}
	scr.SetContent(x, y, tcell.RuneULCorner, nil, styleBorder)
	scr.SetContent(x+w-1, y, tcell.RuneURCorner, nil, styleBorder)
	scr.SetContent(x, y+h-1, tcell.RuneLLCorner, nil, styleBorder)
	scr.SetContent(x+w-1, y+h-1, tcell.RuneLRCorner, nil, styleBorder)
}
