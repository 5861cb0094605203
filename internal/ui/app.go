package ui

import (
	"github.com/clouddrift/gobomb/internal/emu"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// App is a thin ebiten host adapter: it steps the machine once per tick,
// forwards keyboard state as button presses, and blits the framebuffer.
// It carries none of the menu, audio, or save-slot machinery a full frontend
// would have; those are out of scope here.
type App struct {
	cfg Config
	m   *emu.Machine
	tex *ebiten.Image

	paused bool
}

func NewApp(cfg Config, m *emu.Machine) *App {
	cfg.Defaults()
	ebiten.SetWindowTitle(windowTitle(cfg, m))
	ebiten.SetWindowSize(160*cfg.Scale, 144*cfg.Scale)
	return &App{cfg: cfg, m: m}
}

func windowTitle(cfg Config, m *emu.Machine) string {
	if m == nil {
		return cfg.Title
	}
	if t := m.ROMTitle(); t != "" {
		return cfg.Title + " - " + t
	}
	return cfg.Title
}

func (a *App) Run() error { return ebiten.RunGame(a) }

func (a *App) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		a.paused = !a.paused
	}
	if a.paused {
		return nil
	}
	a.m.SetButtons(emu.Buttons{
		Right:  ebiten.IsKeyPressed(ebiten.KeyRight),
		Left:   ebiten.IsKeyPressed(ebiten.KeyLeft),
		Up:     ebiten.IsKeyPressed(ebiten.KeyUp),
		Down:   ebiten.IsKeyPressed(ebiten.KeyDown),
		A:      ebiten.IsKeyPressed(ebiten.KeyZ),
		B:      ebiten.IsKeyPressed(ebiten.KeyX),
		Start:  ebiten.IsKeyPressed(ebiten.KeyEnter),
		Select: ebiten.IsKeyPressed(ebiten.KeyShiftRight),
	})
	a.m.StepFrame()
	return nil
}

func (a *App) Draw(screen *ebiten.Image) {
	if a.tex == nil {
		a.tex = ebiten.NewImage(160, 144)
	}
	a.tex.WritePixels(a.m.Framebuffer())
	screen.DrawImage(a.tex, nil)
}

func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) { return 160, 144 }
