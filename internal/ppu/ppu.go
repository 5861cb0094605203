// Package ppu implements the Game Boy's pixel-FIFO picture processing unit:
// VRAM/OAM storage, the LCDC/STAT/scroll/palette register file, and a
// dot-accurate mode scheduler and fetcher driving a 160x144 framebuffer.
package ppu

// InterruptRequester requests an IF bit (0:VBlank, 1:STAT, ...).
type InterruptRequester func(bit int)

// PPU owns VRAM, OAM, the LCD register file, and the per-dot rendering
// pipeline. CGB features (VRAM bank 1, BG map attributes, CRAM palettes)
// activate when New is constructed with cgbMode true.
type PPU struct {
	vram     [2][0x2000]byte // 0x8000-0x9FFF, bank 1 is CGB-only
	vramBank int
	oam      [0xA0]byte // 0xFE00-0xFE9F

	lcdc, stat, scy, scx, ly, lyc byte
	bgp, obp0, obp1               byte
	wy, wx                        byte

	bcps, ocps   byte
	bcram, ocram [64]byte

	cgbMode bool
	dmgShades [4]Color

	dot  int // 0..455 within the current line
	mode byte

	req           InterruptRequester
	statIRQLine   bool

	bg         bgFetcher
	spr        spriteFetcher
	bgFIFO     pixelFIFO
	spriteFIFO pixelFIFO

	pixelX           int
	discardRemaining int

	spriteBuffer  []Sprite
	intercepting  bool
	interceptedAt map[int]bool

	windowLineCounter        int
	windowTriggeredThisFrame bool
	windowActive             bool

	framebuffer   [144][160]Color
	frameComplete func([144][160]Color)
	skipFrame     bool
	lcdWasOff     bool
}

func New(req InterruptRequester, cgbMode bool) *PPU {
	p := &PPU{req: req, cgbMode: cgbMode, dmgShades: defaultDMGShades}
	p.interceptedAt = make(map[int]bool, 10)
	return p
}

// PowerOnRegisters sets the documented DMG post-boot-ROM register state
// (LCDC=0x91, PPU on) on both DMG and CGB, per the spec's resolution of the
// "does CGB really power on with DMG's LCDC=0x91" ambiguity: keep both the
// same, since test ROMs assume it.
func (p *PPU) PowerOnRegisters() {
	p.bgp = 0xFC
	p.obp0, p.obp1 = 0xFF, 0xFF
	p.writeLCDC(0x91)
}

// SetDMGPalette overrides the four-shade RGB table used for DMG rendering.
func (p *PPU) SetDMGPalette(shades [4]Color) { p.dmgShades = shades }

// SetFrameCompleteCallback installs a callback invoked once per rendered
// frame (skipped frames after an LCD re-enable are not reported).
func (p *PPU) SetFrameCompleteCallback(cb func([144][160]Color)) { p.frameComplete = cb }

func (p *PPU) Framebuffer() [144][160]Color { return p.framebuffer }

func (p *PPU) readVRAMBank(bank int, addr uint16) byte {
	if addr < 0x8000 || addr > 0x9FFF {
		return 0xFF
	}
	return p.vram[bank][addr-0x8000]
}

func (p *PPU) VRAMLocked() bool { return p.mode == 3 }
func (p *PPU) OAMLocked() bool  { return p.mode == 2 || p.mode == 3 }

// WriteOAMByte implements dma.OAMWriter: OAM DMA pokes bytes directly,
// bypassing the normal CPU-facing lock.
func (p *PPU) WriteOAMByte(index byte, value byte) { p.oam[index] = value }

// WriteVRAMDirect implements the HDMA/GDMA transfer destination: writes go
// straight to the currently selected VRAM bank, bypassing the CPU-facing lock
// the same way OAM DMA bypasses the OAM lock.
func (p *PPU) WriteVRAMDirect(addr uint16, value byte) {
	if addr < 0x8000 || addr > 0x9FFF {
		return
	}
	p.vram[p.vramBank][addr-0x8000] = value
}

// CPURead returns bytes for VRAM, OAM, and the PPU's IO registers.
func (p *PPU) CPURead(addr uint16) byte {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if p.VRAMLocked() {
			return 0xFF
		}
		return p.vram[p.vramBank][addr-0x8000]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if p.OAMLocked() {
			return 0xFF
		}
		return p.oam[addr-0xFE00]
	case addr == 0xFF40:
		return p.lcdc
	case addr == 0xFF41:
		return 0x80 | (p.stat & 0x7F)
	case addr == 0xFF42:
		return p.scy
	case addr == 0xFF43:
		return p.scx
	case addr == 0xFF44:
		return p.ly
	case addr == 0xFF45:
		return p.lyc
	case addr == 0xFF47:
		return p.bgp
	case addr == 0xFF48:
		return p.obp0
	case addr == 0xFF49:
		return p.obp1
	case addr == 0xFF4A:
		return p.wy
	case addr == 0xFF4B:
		return p.wx
	case addr == 0xFF4F:
		return 0xFE | byte(p.vramBank)
	case addr == 0xFF68:
		return p.bcps
	case addr == 0xFF69:
		if p.paletteLocked() {
			return 0xFF
		}
		return p.bcram[p.bcps&0x3F]
	case addr == 0xFF6A:
		return p.ocps
	case addr == 0xFF6B:
		if p.paletteLocked() {
			return 0xFF
		}
		return p.ocram[p.ocps&0x3F]
	default:
		return 0xFF
	}
}

// paletteLocked reports whether CGB CRAM reads return 0xFF: during mode 3.
func (p *PPU) paletteLocked() bool { return p.mode == 3 }

func (p *PPU) CPUWrite(addr uint16, value byte) {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if p.VRAMLocked() {
			return
		}
		p.vram[p.vramBank][addr-0x8000] = value
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if p.OAMLocked() {
			return
		}
		p.oam[addr-0xFE00] = value
	case addr == 0xFF40:
		p.writeLCDC(value)
	case addr == 0xFF41:
		p.stat = (p.stat & 0x07) | (value & 0x78)
	case addr == 0xFF42:
		p.scy = value
	case addr == 0xFF43:
		p.scx = value
	case addr == 0xFF44:
		// LY is read-only; writes are ignored.
	case addr == 0xFF45:
		p.lyc = value
		p.updateLYC()
	case addr == 0xFF47:
		p.bgp = value
	case addr == 0xFF48:
		p.obp0 = value
	case addr == 0xFF49:
		p.obp1 = value
	case addr == 0xFF4A:
		p.wy = value
	case addr == 0xFF4B:
		p.wx = value
	case addr == 0xFF4F:
		if p.cgbMode {
			p.vramBank = int(value & 0x01)
		}
	case addr == 0xFF68:
		p.bcps = value & 0xBF
	case addr == 0xFF69:
		if !p.paletteLocked() {
			p.bcram[p.bcps&0x3F] = value
		}
		if p.bcps&0x80 != 0 {
			p.bcps = (p.bcps & 0x80) | ((p.bcps + 1) & 0x3F)
		}
	case addr == 0xFF6A:
		p.ocps = value & 0xBF
	case addr == 0xFF6B:
		if !p.paletteLocked() {
			p.ocram[p.ocps&0x3F] = value
		}
		if p.ocps&0x80 != 0 {
			p.ocps = (p.ocps & 0x80) | ((p.ocps + 1) & 0x3F)
		}
	}
}

func (p *PPU) writeLCDC(value byte) {
	prevOn := p.lcdc&0x80 != 0
	p.lcdc = value
	on := p.lcdc&0x80 != 0
	if prevOn && !on {
		p.ly = 0
		p.dot = 0
		p.setMode(0)
		p.updateLYC()
		p.lcdWasOff = true
	} else if !prevOn && on {
		p.ly = 0
		p.dot = 0
		p.windowLineCounter = 0
		p.windowTriggeredThisFrame = false
		p.setMode(2)
		p.beginOAMScan()
		p.updateLYC()
		p.skipFrame = true
	}
}

// Tick advances the PPU by the given number of dots (T-cycles in
// single-speed mode; the bus is responsible for halving the count it
// passes in double-speed mode, since the PPU's dot rate never doubles).
func (p *PPU) Tick(dots int) {
	for i := 0; i < dots; i++ {
		p.tickDot()
	}
}

func (p *PPU) tickDot() {
	if p.lcdc&0x80 == 0 {
		return
	}
	switch p.mode {
	case 2:
		if p.dot == 0 {
			p.beginOAMScan()
		}
		if p.dot == 79 {
			p.beginMode3()
		}
	case 3:
		p.stepMode3()
	}

	p.dot++
	if p.dot >= 456 {
		p.dot = 0
		p.advanceLine()
	}
}

func (p *PPU) beginOAMScan() {
	p.spriteBuffer = p.scanOAM(int(p.ly))
	p.interceptedAt = make(map[int]bool, 10)
}

func (p *PPU) beginMode3() {
	p.setMode(3)
	p.bgFIFO.Clear()
	p.spriteFIFO.Clear()
	p.pixelX = 0
	p.discardRemaining = int(p.scx & 0x07)
	p.intercepting = false

	p.windowActive = false
	if p.ly == p.wy {
		p.windowTriggeredThisFrame = true
	}

	tileCol := int(p.scx>>3) & 31
	mapRow := (int(p.ly) + int(p.scy)) >> 3
	fineY := byte((int(p.ly) + int(p.scy)) & 7)
	mapBase := p.bgMapBase(false)
	p.bg.reset(mapBase, tileCol, mapRow, fineY, false)
	p.bg.optionalPush = true
}

func (p *PPU) bgMapBase(window bool) uint16 {
	var bit byte
	if window {
		bit = p.lcdc & 0x40
	} else {
		bit = p.lcdc & 0x08
	}
	if bit != 0 {
		return 0x9C00
	}
	return 0x9800
}

func (p *PPU) stepMode3() {
	if p.pixelX >= 160 {
		p.setMode(0)
		return
	}

	if p.intercepting {
		if p.spr.step(p, int(p.ly)) {
			p.intercepting = false
			p.bgFIFO.Overlay(&p.spriteFIFO)
		}
		return
	}

	if sp, ok := p.findInterceptingSprite(); ok && p.lcdc&0x02 != 0 {
		p.interceptedAt[sp.OAMIndex] = true
		p.intercepting = true
		p.spr.start(sp)
		return
	}

	if p.windowTrigger() {
		p.windowActive = true
		p.bgFIFO.Clear()
		mapBase := p.bgMapBase(true)
		tileCol := 0
		fineY := byte(p.windowLineCounter & 7)
		mapRow := p.windowLineCounter >> 3
		p.bg.reset(mapBase, tileCol, mapRow, fineY, true)
		p.bg.optionalPush = false
	}

	p.bg.step(p)

	if p.discardRemaining > 0 {
		if _, ok := p.bgFIFO.Pop(); ok {
			p.discardRemaining--
		}
		return
	}

	if px, ok := p.bgFIFO.Pop(); ok {
		p.emitPixel(px)
		p.pixelX++
	}
}

func (p *PPU) findInterceptingSprite() (Sprite, bool) {
	for _, s := range p.spriteBuffer {
		if p.interceptedAt[s.OAMIndex] {
			continue
		}
		if s.X == p.pixelX {
			return s, true
		}
	}
	return Sprite{}, false
}

// windowTrigger reports whether the background fetcher should flush and
// restart rendering window tiles at the current pixel.
func (p *PPU) windowTrigger() bool {
	if p.windowActive {
		return false
	}
	if p.lcdc&0x20 == 0 || !p.windowTriggeredThisFrame {
		return false
	}
	if !p.cgbMode && p.lcdc&0x01 == 0 {
		return false
	}
	return p.pixelX == int(p.wx)-7
}

func (p *PPU) emitPixel(px Pixel) {
	if p.ly < 144 && p.pixelX < 160 {
		p.framebuffer[p.ly][p.pixelX] = p.resolveColor(px)
	}
}

func (p *PPU) resolveColor(px Pixel) Color {
	if !p.cgbMode {
		var reg byte
		switch {
		case px.IsSprite && px.Palette == 0:
			reg = p.obp0
		case px.IsSprite:
			reg = p.obp1
		default:
			reg = p.bgp
		}
		shade := shadeFromReg(reg, px.Color)
		return p.dmgShades[shade]
	}
	table := &p.bcram
	if px.IsSprite {
		table = &p.ocram
	}
	entryBase := int(px.Palette)*8 + int(px.Color)*2
	return decodeRGB555(table[entryBase], table[entryBase+1])
}

func (p *PPU) advanceLine() {
	p.ly++
	if p.windowActive {
		p.windowLineCounter++
	}
	if p.ly == 144 {
		p.setMode(1)
		p.req(0) // VBlank IF
		if p.stat&(1<<4) != 0 {
			p.req(1)
		}
		if !p.skipFrame && p.frameComplete != nil {
			p.frameComplete(p.framebuffer)
		}
		p.skipFrame = false
	} else if p.ly > 153 {
		p.ly = 0
		p.windowLineCounter = 0
		p.windowTriggeredThisFrame = false
		p.setMode(2)
	} else if p.ly < 144 {
		p.setMode(2)
	}
	p.updateLYC()
}

func (p *PPU) setMode(mode byte) {
	prev := p.stat & 0x03
	p.mode = mode
	if prev == mode {
		return
	}
	p.stat = (p.stat &^ 0x03) | (mode & 0x03)
	switch mode {
	case 0:
		if p.stat&(1<<3) != 0 {
			p.req(1)
		}
	case 2:
		if p.stat&(1<<5) != 0 {
			p.req(1)
		}
	}
}

func (p *PPU) updateLYC() {
	if p.ly == p.lyc {
		p.stat |= 1 << 2
		if p.stat&(1<<6) != 0 {
			p.req(1)
		}
	} else {
		p.stat &^= 1 << 2
	}
}

func (p *PPU) BGP() byte  { return p.bgp }
func (p *PPU) OBP0() byte { return p.obp0 }
func (p *PPU) OBP1() byte { return p.obp1 }
func (p *PPU) LCDC() byte { return p.lcdc }
func (p *PPU) SCY() byte  { return p.scy }
func (p *PPU) SCX() byte  { return p.scx }
func (p *PPU) WY() byte   { return p.wy }
func (p *PPU) WX() byte   { return p.wx }
func (p *PPU) LY() byte   { return p.ly }
func (p *PPU) Mode() byte { return p.mode }

// State is a frame-boundary snapshot of PPU memory and registers, suitable
// for gob encoding by the owning machine's save-state support. Mid-scanline
// fetcher/FIFO state is intentionally excluded: snapshots are only ever
// taken between instructions, and the PPU resumes a fresh dot sequence at
// its current mode cleanly since mode 2 and the start of mode 3 both
// reinitialize the fetcher from registers alone.
type State struct {
	VRAM     [2][0x2000]byte
	VRAMBank int
	OAM      [0xA0]byte

	LCDC, STAT, SCY, SCX, LY, LYC byte
	BGP, OBP0, OBP1               byte
	WY, WX                        byte

	BCPS, OCPS   byte
	BCRAM, OCRAM [64]byte

	Dot  int
	Mode byte

	WindowLineCounter        int
	WindowTriggeredThisFrame bool
}

func (p *PPU) SaveState() State {
	return State{
		VRAM: p.vram, VRAMBank: p.vramBank, OAM: p.oam,
		LCDC: p.lcdc, STAT: p.stat, SCY: p.scy, SCX: p.scx, LY: p.ly, LYC: p.lyc,
		BGP: p.bgp, OBP0: p.obp0, OBP1: p.obp1, WY: p.wy, WX: p.wx,
		BCPS: p.bcps, OCPS: p.ocps, BCRAM: p.bcram, OCRAM: p.ocram,
		Dot: p.dot, Mode: p.mode,
		WindowLineCounter: p.windowLineCounter, WindowTriggeredThisFrame: p.windowTriggeredThisFrame,
	}
}

func (p *PPU) LoadState(s State) {
	p.vram, p.vramBank, p.oam = s.VRAM, s.VRAMBank, s.OAM
	p.lcdc, p.stat, p.scy, p.scx, p.ly, p.lyc = s.LCDC, s.STAT, s.SCY, s.SCX, s.LY, s.LYC
	p.bgp, p.obp0, p.obp1, p.wy, p.wx = s.BGP, s.OBP0, s.OBP1, s.WY, s.WX
	p.bcps, p.ocps, p.bcram, p.ocram = s.BCPS, s.OCPS, s.BCRAM, s.OCRAM
	p.dot, p.mode = s.Dot, s.Mode
	p.windowLineCounter, p.windowTriggeredThisFrame = s.WindowLineCounter, s.WindowTriggeredThisFrame
	p.bgFIFO.Clear()
	p.spriteFIFO.Clear()
}
