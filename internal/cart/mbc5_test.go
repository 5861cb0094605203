package cart

import "testing"

func TestMBC5_BankZeroIsSelectable(t *testing.T) {
	rom := make([]byte, 4*0x4000)
	for b := 0; b < 4; b++ {
		rom[b*0x4000] = byte(0xA0 + b)
	}
	m := NewMBC5(rom, 0)

	m.Write(0x2000, 0x00) // low byte of bank select, bank 0
	if got := m.Read(0x4000); got != 0xA0 {
		t.Fatalf("bank 0 selectable got %02X want %02X", got, 0xA0)
	}

	m.Write(0x2000, 0x02)
	if got := m.Read(0x4000); got != 0xA2 {
		t.Fatalf("bank 2 got %02X want %02X", got, 0xA2)
	}
}

func TestMBC5_NineBitBankSelect(t *testing.T) {
	rom := make([]byte, 0x200*0x4000)
	rom[0x1FF*0x4000] = 0x77
	m := NewMBC5(rom, 0)

	m.Write(0x2000, 0xFF) // low 8 bits
	m.Write(0x3000, 0x01) // bit 8
	if got := m.Read(0x4000); got != 0x77 {
		t.Fatalf("bank 0x1FF got %02X want %02X", got, 0x77)
	}

	m.Write(0x3000, 0x00) // clear bit 8, bank drops to 0xFF
	rom[0xFF*0x4000] = 0x55
	if got := m.Read(0x4000); got != 0x55 {
		t.Fatalf("bank 0xFF got %02X want %02X", got, 0x55)
	}
}

func TestMBC5_RAMBankingAndGate(t *testing.T) {
	rom := make([]byte, 0x8000)
	m := NewMBC5(rom, 4*0x2000)

	if got := m.Read(0xA000); got != 0xFF {
		t.Fatalf("disabled RAM read got %02X want FF", got)
	}

	m.Write(0x0000, 0x0A) // enable
	m.Write(0x4000, 0x03) // RAM bank 3
	m.Write(0xA000, 0x42)
	if got := m.Read(0xA000); got != 0x42 {
		t.Fatalf("RAM bank 3 RW got %02X want 42", got)
	}

	m.Write(0x4000, 0x00)
	if got := m.Read(0xA000); got == 0x42 {
		t.Fatalf("RAM bank 0 unexpectedly aliases bank 3's byte")
	}
}

func TestMBC5_SaveLoadState(t *testing.T) {
	rom := make([]byte, 0x8000)
	m := NewMBC5(rom, 0x2000)
	m.Write(0x2000, 0x2A)
	m.Write(0x3000, 0x01)
	m.Write(0x4000, 0x05)
	m.Write(0x0000, 0x0A)

	data := m.SaveState()
	n := NewMBC5(rom, 0x2000)
	n.LoadState(data)
	if n.romBank != m.romBank || n.ramBank != m.ramBank || n.ramEnabled != m.ramEnabled {
		t.Fatalf("state mismatch: got bank=%03X ramBank=%d en=%v want bank=%03X ramBank=%d en=%v",
			n.romBank, n.ramBank, n.ramEnabled, m.romBank, m.ramBank, m.ramEnabled)
	}
}
