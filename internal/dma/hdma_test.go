package dma

import "testing"

func TestHDMA_GeneralPurposeReturnsImmediateCopyRequest(t *testing.T) {
	h := NewHDMA()
	h.SetHDMA1(0xC0)
	h.SetHDMA2(0x00)
	h.SetHDMA3(0x10)
	h.SetHDMA4(0x00)

	src, dst, length, startGDMA := h.WriteControl(0x02) // bit7 clear, 3 blocks
	if !startGDMA {
		t.Fatalf("expected immediate GDMA request")
	}
	if src != 0xC000 {
		t.Fatalf("src got %#04x want C000", src)
	}
	if dst != 0x9000 {
		t.Fatalf("dst got %#04x want 9000", dst)
	}
	if length != 3*16 {
		t.Fatalf("length got %d want 48", length)
	}
	if h.Active() {
		t.Fatalf("GDMA should not leave an HBlank transfer active")
	}
}

func TestHDMA_HBlankModeStepsOneBlockPerCall(t *testing.T) {
	h := NewHDMA()
	h.SetHDMA1(0xC0)
	h.SetHDMA2(0x00)
	h.SetHDMA3(0x00)
	h.SetHDMA4(0x00)

	_, _, _, startGDMA := h.WriteControl(0x81) // bit7 set, 2 blocks
	if startGDMA {
		t.Fatalf("HBlank mode should not request immediate copy")
	}
	if !h.Active() {
		t.Fatalf("expected HBlank transfer to be active")
	}
	if h.StatusFF55() != 0x81 {
		t.Fatalf("status got %#02x want 0x81 (bit7 set, 2 blocks - 1)", h.StatusFF55())
	}

	mem := make(map[uint16]byte)
	mem[0xC000] = 0x11
	read := func(a uint16) byte { return mem[a] }
	write := func(a uint16, v byte) { mem[a] = v }

	n := h.StepBlock(read, write)
	if n != 16 {
		t.Fatalf("StepBlock copied %d want 16", n)
	}
	if !h.Active() {
		t.Fatalf("expected transfer still active after 1 of 2 blocks")
	}
	if mem[0x8000] != 0x11 {
		t.Fatalf("copied byte got %#02x want 11", mem[0x8000])
	}

	h.StepBlock(read, write)
	if h.Active() {
		t.Fatalf("expected transfer complete after 2 of 2 blocks")
	}
	if h.StatusFF55() != 0xFF {
		t.Fatalf("status after completion got %#02x want FF", h.StatusFF55())
	}
}

func TestHDMA_CancelMidTransfer(t *testing.T) {
	h := NewHDMA()
	h.WriteControl(0x81)
	if !h.Active() {
		t.Fatalf("expected active transfer")
	}
	_, _, _, startGDMA := h.WriteControl(0x00) // bit7 clear cancels
	if startGDMA {
		t.Fatalf("cancel write should not request a GDMA copy")
	}
	if h.Active() {
		t.Fatalf("expected transfer cancelled")
	}
	if got, want := h.StatusFF55(), byte(0x80|(2-1)); got != want {
		t.Fatalf("status after cancel got %#02x want %#02x (bit7 set, remaining-1)", got, want)
	}
}
