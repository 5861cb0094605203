package ppu

type fetchState int

const (
	fsGetTile fetchState = iota
	fsGetDataLow
	fsGetDataHigh
	fsSleep
	fsPush
)

// bgFetcher implements the background/window fetcher state machine: each of
// GetTile/GetDataLow/GetDataHigh/Sleep takes two dots, then Push retries
// every dot until the background FIFO has room. The very first fetch of a
// scanline runs an "optional push" that discards its own output instead of
// enqueuing it, priming the pipeline one tile ahead of pixel emission.
type bgFetcher struct {
	state      fetchState
	dotInState int

	mapBase   uint16
	tileCol   int // tile column within the 32-wide map, wraps at 32
	mapRow    int // tile row within the 32-tall map
	fineY     byte

	tileNum byte
	attr    byte // CGB-only tile attributes; zero on DMG
	lo, hi  byte

	optionalPush bool // true only for the first fetch of a scanline
	windowMode   bool
}

func (f *bgFetcher) reset(mapBase uint16, tileCol, mapRow int, fineY byte, windowMode bool) {
	f.state = fsGetTile
	f.dotInState = 0
	f.mapBase = mapBase
	f.tileCol = tileCol & 31
	f.mapRow = mapRow & 31
	f.fineY = fineY & 7
	f.windowMode = windowMode
}

// step advances the fetcher by one dot. It returns true the dot a (non
// optional) push succeeds, meaning 8 fresh pixels are now in the BG FIFO.
func (f *bgFetcher) step(p *PPU) bool {
	switch f.state {
	case fsGetTile, fsGetDataLow, fsGetDataHigh, fsSleep:
		f.dotInState++
		if f.dotInState < 2 {
			return false
		}
		f.dotInState = 0
		switch f.state {
		case fsGetTile:
			addr := f.mapBase + uint16(f.mapRow)*32 + uint16(f.tileCol)
			f.tileNum = p.readVRAMBank(0, addr)
			if p.cgbMode {
				f.attr = p.readVRAMBank(1, addr)
			} else {
				f.attr = 0
			}
			f.state = fsGetDataLow
		case fsGetDataLow:
			f.lo = f.tileRowByte(p, 0)
			f.state = fsGetDataHigh
		case fsGetDataHigh:
			f.hi = f.tileRowByte(p, 1)
			f.state = fsSleep
		case fsSleep:
			f.state = fsPush
		}
		return false
	case fsPush:
		pixels := f.decodeRow()
		if f.optionalPush {
			f.optionalPush = false
			f.tileCol = (f.tileCol + 1) & 31
			f.state = fsGetTile
			return false
		}
		if p.bgFIFO.Len() > 0 {
			return false // retry next dot
		}
		for _, px := range pixels {
			p.bgFIFO.Push(px)
		}
		f.tileCol = (f.tileCol + 1) & 31
		f.state = fsGetTile
		return true
	}
	return false
}

func (f *bgFetcher) tileRowByte(p *PPU, hiPlane int) byte {
	row := f.fineY
	yFlip := f.attr&0x40 != 0
	if yFlip {
		row = 7 - row
	}
	bank := 0
	if p.cgbMode && f.attr&0x08 != 0 {
		bank = 1
	}
	var base uint16
	if p.lcdc&0x10 != 0 {
		base = 0x8000 + uint16(f.tileNum)*16
	} else {
		base = 0x9000 + uint16(int8(f.tileNum))*16
	}
	addr := base + uint16(row)*2 + uint16(hiPlane)
	return p.readVRAMBank(bank, addr)
}

func (f *bgFetcher) decodeRow() [8]Pixel {
	var out [8]Pixel
	xFlip := f.attr&0x20 != 0
	priority := f.attr&0x80 != 0
	palette := f.attr & 0x07
	for i := 0; i < 8; i++ {
		bit := 7 - i
		if xFlip {
			bit = i
		}
		ci := ((f.hi>>bit)&1)<<1 | ((f.lo >> bit) & 1)
		out[i] = Pixel{Color: ci, Palette: palette, BGPriority: priority}
	}
	return out
}

// spriteFetcher performs the 6-dot sprite tile fetch that pauses the
// background fetcher during mid-scanline sprite interception.
type spriteFetcher struct {
	state      fetchState
	dotInState int
	sprite     Sprite
	lo, hi     byte
}

func (f *spriteFetcher) start(s Sprite) {
	f.state = fsGetTile
	f.dotInState = 0
	f.sprite = s
}

// step advances the sprite fetch by one dot and returns true once the 8
// decoded pixels have been pushed into the sprite FIFO.
func (f *spriteFetcher) step(p *PPU, ly int) bool {
	switch f.state {
	case fsGetTile, fsGetDataLow, fsGetDataHigh:
		f.dotInState++
		if f.dotInState < 2 {
			return false
		}
		f.dotInState = 0
		switch f.state {
		case fsGetTile:
			f.state = fsGetDataLow
		case fsGetDataLow:
			f.lo = f.spriteRowByte(p, ly, 0)
			f.state = fsGetDataHigh
		case fsGetDataHigh:
			f.hi = f.spriteRowByte(p, ly, 1)
			f.state = fsPush
		}
		return false
	case fsPush:
		xFlip := f.sprite.xFlip()
		priority := f.sprite.priorityBit()
		var palette byte
		if p.cgbMode {
			palette = f.sprite.cgbPalette()
		} else {
			palette = f.sprite.dmgPalette()
		}
		for i := 0; i < 8; i++ {
			bit := 7 - i
			if xFlip {
				bit = i
			}
			ci := ((f.hi>>bit)&1)<<1 | ((f.lo >> bit) & 1)
			p.spriteFIFO.Push(Pixel{
				Color: ci, Palette: palette, BGPriority: priority,
				IsSprite: true, OAMIndex: f.sprite.OAMIndex,
			})
		}
		f.state = fsGetTile
		return true
	}
	return false
}

func (f *spriteFetcher) spriteRowByte(p *PPU, ly int, hiPlane int) byte {
	height := 8
	if p.lcdc&0x04 != 0 {
		height = 16
	}
	row := ly - f.sprite.Y
	if f.sprite.yFlip() {
		row = height - 1 - row
	}
	bank := 0
	if p.cgbMode && f.sprite.cgbBank() == 1 {
		bank = 1
	}
	base := 0x8000 + uint16(f.sprite.Tile)*16
	addr := base + uint16(row)*2 + uint16(hiPlane)
	return p.readVRAMBank(bank, addr)
}
