// Package emu assembles the cartridge, bus, and CPU into a runnable machine:
// it is the layer host adapters (a windowed UI, a headless CLI) drive one
// frame at a time.
package emu

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/clouddrift/gobomb/internal/bus"
	"github.com/clouddrift/gobomb/internal/cart"
	"github.com/clouddrift/gobomb/internal/cpu"
	"github.com/clouddrift/gobomb/internal/ppu"
)

// Buttons is the logical Game Boy button state for one input sample.
type Buttons struct {
	A, B, Start, Select   bool
	Up, Down, Left, Right bool
}

// Machine owns one emulated console: cartridge, bus, and CPU.
type Machine struct {
	cfg Config

	bus *bus.Bus
	cpu *cpu.CPU

	bootROM  []byte
	romPath  string
	romTitle string

	fb         []byte // RGBA 160x144*4, refreshed at the end of each StepFrame
	frameReady bool

	lastFrameAt time.Time
}

func New(cfg Config) *Machine {
	return &Machine{cfg: cfg, fb: make([]byte, 160*144*4)}
}

// SetBootROM stashes a boot ROM image to apply to the next LoadCartridge
// call (it may be set before a cartridge is loaded, as cmd/gbemu does).
func (m *Machine) SetBootROM(b []byte) {
	m.bootROM = append([]byte(nil), b...)
}

// LoadCartridge builds a fresh bus and CPU around rom. If boot is non-empty
// it overrides any boot ROM set via SetBootROM for this load.
func (m *Machine) LoadCartridge(rom []byte, boot []byte) error {
	c, err := cart.NewCartridge(rom)
	if err != nil {
		return err
	}
	h, _ := cart.ParseHeader(rom)
	cgbMode := h != nil && h.IsCGB()

	m.bus = bus.NewWithCartridge(c, cgbMode)
	m.bus.PPU().SetFrameCompleteCallback(func(_ [144][160]ppu.Color) { m.frameReady = true })
	m.cpu = cpu.New(m.bus)

	effectiveBoot := boot
	if len(effectiveBoot) == 0 {
		effectiveBoot = m.bootROM
	}
	if len(effectiveBoot) >= 0x100 {
		m.bus.SetBootROM(effectiveBoot)
		m.cpu.SetPC(0x0000)
	} else {
		m.cpu.ResetNoBoot()
	}

	if !cgbMode {
		if id, ok := autoCompatPaletteFromHeader(h); ok {
			m.bus.PPU().SetDMGPalette(compatPaletteSets[id])
		}
	}

	m.romTitle = ""
	if h != nil {
		m.romTitle = strings.TrimSpace(h.Title)
	}
	return nil
}

// LoadROMFromFile reads rom from path and loads it, recording the path for
// ROMPath() and battery-save derivation.
func (m *Machine) LoadROMFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := m.LoadCartridge(data, m.bootROM); err != nil {
		return err
	}
	m.romPath = path
	return nil
}

func (m *Machine) ROMPath() string  { return m.romPath }
func (m *Machine) ROMTitle() string { return m.romTitle }

// LoadBattery restores external RAM (and RTC state, for MBC3) from a save
// file. It reports false if the loaded cartridge has no battery-backed RAM.
func (m *Machine) LoadBattery(data []byte) bool {
	bb, ok := m.bus.Cart().(cart.BatteryBacked)
	if !ok {
		return false
	}
	bb.LoadRAM(data)
	return true
}

// SaveBattery returns the cartridge's external RAM for persisting to disk.
func (m *Machine) SaveBattery() ([]byte, bool) {
	bb, ok := m.bus.Cart().(cart.BatteryBacked)
	if !ok {
		return nil, false
	}
	return bb.SaveRAM(), true
}

// SetButtons updates the live joypad state the bus reports through FF00.
func (m *Machine) SetButtons(b Buttons) {
	var mask byte
	if b.Right {
		mask |= bus.JoypRight
	}
	if b.Left {
		mask |= bus.JoypLeft
	}
	if b.Up {
		mask |= bus.JoypUp
	}
	if b.Down {
		mask |= bus.JoypDown
	}
	if b.A {
		mask |= bus.JoypA
	}
	if b.B {
		mask |= bus.JoypB
	}
	if b.Select {
		mask |= bus.JoypSelectBtn
	}
	if b.Start {
		mask |= bus.JoypStart
	}
	m.bus.SetJoypadState(mask)
}

// StepFrame runs the CPU until the PPU reports a completed frame, then
// refreshes the RGBA framebuffer. If Config.LimitFPS is set it paces calls
// to roughly 59.7 Hz, the DMG's real refresh rate.
func (m *Machine) StepFrame() {
	m.frameReady = false
	for !m.frameReady {
		pc := m.cpu.PC
		cycles := m.cpu.Step()
		if m.cfg.Trace {
			log.Printf("PC=%04X cycles=%d A=%02X F=%02X SP=%04X", pc, cycles, m.cpu.A, m.cpu.F, m.cpu.SP)
		}
	}
	m.renderFramebuffer()
	if m.cfg.LimitFPS {
		m.pace()
	}
}

func (m *Machine) pace() {
	const frameInterval = time.Second * 1000 / 59700
	now := time.Now()
	if !m.lastFrameAt.IsZero() {
		if d := frameInterval - now.Sub(m.lastFrameAt); d > 0 {
			time.Sleep(d)
		}
	}
	m.lastFrameAt = time.Now()
}

func (m *Machine) renderFramebuffer() {
	src := m.bus.PPU().Framebuffer()
	i := 0
	for y := 0; y < 144; y++ {
		for x := 0; x < 160; x++ {
			px := src[y][x]
			m.fb[i+0] = px.R
			m.fb[i+1] = px.G
			m.fb[i+2] = px.B
			m.fb[i+3] = 0xFF
			i += 4
		}
	}
}

func (m *Machine) Framebuffer() []byte { return m.fb }
