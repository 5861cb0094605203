package cart

import (
	"bytes"
	"encoding/gob"
)

// MBC1 implements ROM/RAM banking up to 2MB ROM / 32KB RAM, including the
// large-ROM (>=1MB) low-window remap quirk in RAM banking mode.
type MBC1 struct {
	rom []byte
	ram []byte

	romBankLow5 byte // lower 5 bits of ROM bank number (0 promoted to 1)
	bankHigh2   byte // secondary 2-bit register: RAM bank, or ROM bank bits 5-6
	ramEnabled  bool
	modeSelect  byte // 0: ROM banking (default), 1: RAM banking

	romBanks int // total 16KB banks, derived from len(rom)
	largeROM bool // true when ROM is >= 1MB (the secondary register also remaps bank 0)
}

func NewMBC1(rom []byte, ramSize int) *MBC1 {
	m := &MBC1{rom: rom}
	if ramSize > 0 {
		m.ram = make([]byte, ramSize)
	}
	m.romBankLow5 = 1
	m.romBanks = len(rom) / 0x4000
	if m.romBanks <= 0 {
		m.romBanks = 1
	}
	m.largeROM = len(rom) >= 1024*1024
	return m
}

func (m *MBC1) maskBank(bank int) int {
	if m.romBanks == 0 {
		return bank
	}
	return bank % m.romBanks
}

// lowWindowBank returns the bank mapped at 0000-3FFF: fixed to 0 in ROM-banking
// mode, or {0x00,0x20,0x40,0x60} selected by the secondary register for >=1MB
// ROMs while in RAM-banking mode.
func (m *MBC1) lowWindowBank() int {
	if m.modeSelect == 0 || !m.largeROM {
		return 0
	}
	return m.maskBank(int(m.bankHigh2&0x03) << 5)
}

func (m *MBC1) effectiveROMBank() int {
	bank := int(m.romBankLow5)
	if m.largeROM {
		bank |= int(m.bankHigh2&0x03) << 5
	}
	return m.maskBank(bank)
}

func (m *MBC1) ramBank() int {
	if m.modeSelect == 1 && len(m.ram) > 8*1024 {
		return int(m.bankHigh2 & 0x03)
	}
	return 0
}

func (m *MBC1) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		off := m.lowWindowBank()*0x4000 + int(addr)
		if off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr < 0x8000:
		off := m.effectiveROMBank()*0x4000 + int(addr-0x4000)
		if off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	default: // 0xA000-0xBFFF
		if !m.ramEnabled || len(m.ram) == 0 {
			return 0xFF
		}
		off := m.ramBank()*0x2000 + int(addr-0xA000)
		if off >= 0 && off < len(m.ram) {
			return m.ram[off]
		}
		return 0xFF
	}
}

func (m *MBC1) Write(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		m.ramEnabled = (value & 0x0F) == 0x0A
	case addr < 0x4000:
		m.romBankLow5 = value & 0x1F
		if m.romBankLow5 == 0 {
			m.romBankLow5 = 1
		}
	case addr < 0x6000:
		m.bankHigh2 = value & 0x03
	case addr < 0x8000:
		m.modeSelect = value & 0x01
	default: // 0xA000-0xBFFF
		if !m.ramEnabled || len(m.ram) == 0 {
			return
		}
		off := m.ramBank()*0x2000 + int(addr-0xA000)
		if off >= 0 && off < len(m.ram) {
			m.ram[off] = value
		}
	}
}

func (m *MBC1) SaveRAM() []byte {
	if len(m.ram) == 0 {
		return nil
	}
	out := make([]byte, len(m.ram))
	copy(out, m.ram)
	return out
}

func (m *MBC1) LoadRAM(data []byte) {
	if len(m.ram) == 0 || len(data) == 0 {
		return
	}
	copy(m.ram, data)
}

type mbc1State struct {
	RAM                         []byte
	RomBankLow5, BankHigh2      byte
	RAMEnabled                  bool
	ModeSelect                  byte
}

func (m *MBC1) SaveState() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(mbc1State{
		RAM: m.ram, RomBankLow5: m.romBankLow5, BankHigh2: m.bankHigh2,
		RAMEnabled: m.ramEnabled, ModeSelect: m.modeSelect,
	})
	return buf.Bytes()
}

func (m *MBC1) LoadState(data []byte) {
	var s mbc1State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	if len(s.RAM) == len(m.ram) {
		copy(m.ram, s.RAM)
	}
	m.romBankLow5, m.bankHigh2 = s.RomBankLow5, s.BankHigh2
	m.ramEnabled, m.modeSelect = s.RAMEnabled, s.ModeSelect
}
