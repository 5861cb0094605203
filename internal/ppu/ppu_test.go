package ppu

import "testing"

func statMode(p *PPU) byte { return p.CPURead(0xFF41) & 0x03 }

func tickUntilMode(p *PPU, mode byte, maxDots int) bool {
	for i := 0; i < maxDots; i++ {
		if statMode(p) == mode {
			return true
		}
		p.Tick(1)
	}
	return statMode(p) == mode
}

func TestPPUModeSequenceOneLine(t *testing.T) {
	p := New(func(bit int) {}, false)
	p.CPUWrite(0xFF40, 0x80)
	if m := statMode(p); m != 2 {
		t.Fatalf("expected mode 2 after LCD on, got %d", m)
	}
	if !tickUntilMode(p, 3, 200) {
		t.Fatalf("PPU never entered mode 3")
	}
	if !tickUntilMode(p, 0, 456) {
		t.Fatalf("PPU never entered HBlank")
	}
	if !tickUntilMode(p, 2, 456) {
		t.Fatalf("PPU never returned to mode 2 on the next line")
	}
	if ly := p.CPURead(0xFF44); ly != 1 {
		t.Fatalf("expected LY=1, got %d", ly)
	}
}

func TestPPUVBlankAndSTATOnVBlank(t *testing.T) {
	var got []int
	p := New(func(bit int) { got = append(got, bit) }, false)
	p.CPUWrite(0xFF41, 1<<4) // STAT VBlank enable
	p.CPUWrite(0xFF40, 0x80)

	for ly := 0; ly < 144; {
		p.Tick(1)
		ly = int(p.CPURead(0xFF44))
	}

	vb, st := 0, 0
	for _, b := range got {
		if b == 0 {
			vb++
		} else if b == 1 {
			st++
		}
	}
	if vb == 0 {
		t.Fatalf("expected at least one VBlank IRQ at LY=144")
	}
	if st == 0 {
		t.Fatalf("expected STAT IRQ on VBlank when enabled")
	}
}

func TestSTATLYCCoincidence(t *testing.T) {
	var got []int
	p := New(func(bit int) { got = append(got, bit) }, false)
	p.CPUWrite(0xFF41, 1<<6) // LYC STAT enable
	p.CPUWrite(0xFF45, 2)    // LYC = 2
	p.CPUWrite(0xFF40, 0x80)

	for ly := 0; ly < 3; {
		p.Tick(1)
		ly = int(p.CPURead(0xFF44))
	}

	hasLYC := false
	for _, b := range got {
		if b == 1 {
			hasLYC = true
		}
	}
	if !hasLYC {
		t.Fatalf("expected STAT IRQ on LYC coincidence at LY=2")
	}
}

func TestFrameTotalDotsAcrossWholeFrame(t *testing.T) {
	p := New(func(bit int) {}, false)
	p.CPUWrite(0xFF40, 0x80)
	for i := 0; i < 70224; i++ {
		p.Tick(1)
	}
	// after exactly 70224 dots we should be back at the start of LY=0, mode 2
	if ly := p.CPURead(0xFF44); ly != 0 {
		t.Fatalf("LY after full frame got %d want 0", ly)
	}
	if m := statMode(p); m != 2 {
		t.Fatalf("mode after full frame got %d want 2", m)
	}
}

func TestVRAMLockedDuringMode3(t *testing.T) {
	p := New(func(bit int) {}, false)
	p.CPUWrite(0xFF40, 0x80)
	if !tickUntilMode(p, 3, 200) {
		t.Fatalf("never reached mode 3")
	}
	if got := p.CPURead(0x8000); got != 0xFF {
		t.Fatalf("VRAM read during mode 3 got %#02x want FF", got)
	}
	p.CPUWrite(0x8000, 0x42) // should be dropped
	tickUntilMode(p, 0, 456)
	if got := p.CPURead(0x8000); got == 0x42 {
		t.Fatalf("VRAM write during mode 3 should have been dropped")
	}
}

func TestLCDOffResetsLYAndReleasesLocks(t *testing.T) {
	p := New(func(bit int) {}, false)
	p.CPUWrite(0xFF40, 0x80)
	tickUntilMode(p, 0, 456)
	p.CPUWrite(0xFF40, 0x00) // LCD off
	if ly := p.CPURead(0xFF44); ly != 0 {
		t.Fatalf("LY after LCD off got %d want 0", ly)
	}
	if m := statMode(p); m != 0 {
		t.Fatalf("mode after LCD off got %d want 0", m)
	}
	p.CPUWrite(0x8000, 0x55)
	if got := p.CPURead(0x8000); got != 0x55 {
		t.Fatalf("VRAM should be writable while LCD is off, got %#02x", got)
	}
}

func TestBackgroundPixelsRenderIntoFramebuffer(t *testing.T) {
	p := New(func(bit int) {}, false)
	// Tile 0 fully opaque color-index-3 row: lo=0xFF, hi=0xFF.
	p.vram[0][0x0000] = 0xFF
	p.vram[0][0x0001] = 0xFF
	// BGP maps color 3 to shade 3 by default identity mapping (0xE4 = 11 10 01 00).
	p.CPUWrite(0xFF47, 0xE4)
	p.CPUWrite(0xFF40, 0x91) // LCD + BG enable, tile data at 0x8000, map at 0x9800

	for ly := 0; ly < 1; {
		p.Tick(1)
		ly = int(p.CPURead(0xFF44))
	}

	fb := p.Framebuffer()
	want := p.dmgShades[3]
	if fb[0][0] != want {
		t.Fatalf("pixel (0,0) got %+v want %+v", fb[0][0], want)
	}
}

func TestFrameCompleteCallbackFiresOncePerFrame(t *testing.T) {
	p := New(func(bit int) {}, false)
	count := 0
	p.SetFrameCompleteCallback(func([144][160]Color) { count++ })
	p.CPUWrite(0xFF40, 0x80)
	// The first frame after the LCD is switched on is skipped, so three
	// frames of dots report exactly two completed frames.
	for i := 0; i < 70224*3; i++ {
		p.Tick(1)
	}
	if count != 2 {
		t.Fatalf("frame complete callback fired %d times want 2", count)
	}
}
