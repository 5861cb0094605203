package cart

import "testing"

func TestNewCartridge_DispatchesByType(t *testing.T) {
	cases := []struct {
		name     string
		cartType byte
		wantType interface{}
	}{
		{"rom only", 0x00, &ROMOnly{}},
		{"mbc1", 0x01, &MBC1{}},
		{"mbc2", 0x05, &MBC2{}},
		{"mbc3", 0x0F, &MBC3{}},
		{"mbc5", 0x19, &MBC5{}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rom := buildROM("TEST", c.cartType, 0x01, 0x02, 64*1024)
			got, err := NewCartridge(rom)
			if err != nil {
				t.Fatalf("NewCartridge error: %v", err)
			}
			switch c.wantType.(type) {
			case *ROMOnly:
				if _, ok := got.(*ROMOnly); !ok {
					t.Fatalf("got %T want *ROMOnly", got)
				}
			case *MBC1:
				if _, ok := got.(*MBC1); !ok {
					t.Fatalf("got %T want *MBC1", got)
				}
			case *MBC2:
				if _, ok := got.(*MBC2); !ok {
					t.Fatalf("got %T want *MBC2", got)
				}
			case *MBC3:
				if _, ok := got.(*MBC3); !ok {
					t.Fatalf("got %T want *MBC3", got)
				}
			case *MBC5:
				if _, ok := got.(*MBC5); !ok {
					t.Fatalf("got %T want *MBC5", got)
				}
			}
		})
	}
}

func TestNewCartridge_UnsupportedType(t *testing.T) {
	rom := buildROM("TEST", 0xFC, 0x01, 0x02, 64*1024) // 0xFC: POCKET CAMERA, unsupported
	_, err := NewCartridge(rom)
	if err == nil {
		t.Fatalf("expected error for unsupported cartridge type, got nil")
	}
	mbcErr, ok := err.(*UnsupportedMBCError)
	if !ok {
		t.Fatalf("got error type %T want *UnsupportedMBCError", err)
	}
	if mbcErr.Code != 0xFC {
		t.Fatalf("error code got %#02x want %#02x", mbcErr.Code, 0xFC)
	}
}

func TestNewCartridge_TooSmallFallsBackToROMOnly(t *testing.T) {
	rom := make([]byte, 0x100) // too small for a header
	got, err := NewCartridge(rom)
	if err != nil {
		t.Fatalf("NewCartridge error: %v", err)
	}
	if _, ok := got.(*ROMOnly); !ok {
		t.Fatalf("got %T want *ROMOnly fallback", got)
	}
}
