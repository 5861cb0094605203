package cart

import (
	"bytes"
	"encoding/gob"
	"time"
)

// nowUnix is overridden in tests to make RTC advancement deterministic.
var nowUnix = func() int64 { return time.Now().Unix() }

// MBC3 implements ROM/RAM banking plus the real-time clock registers.
// Banking:
//   0000-1FFF: RAM/RTC enable (0x0A in low nibble)
//   2000-3FFF: ROM bank, 7 bits (0 maps to 1)
//   4000-5FFF: RAM bank 0-3, or RTC register select 0x08-0x0C
//   6000-7FFF: latch clock data on a 0->1 write
type MBC3 struct {
	rom []byte
	ram []byte

	ramEnabled bool
	romBank    byte // 1..127
	bankOrRTC  byte // 0..3 RAM bank, or 0x08..0x0C RTC register select

	latchState byte // last byte written to 6000-7FFF, for edge detection

	// live RTC registers
	rtcSec, rtcMin, rtcHour byte
	rtcDay                  uint16 // 9-bit day counter
	rtcHalt, rtcCarry       bool
	lastRTCWallSec          int64

	// latched snapshot, exposed to CPU reads while selected
	latchSec, latchMin, latchHour byte
	latchDay                      uint16
	latchHalt, latchCarry         bool
}

func NewMBC3(rom []byte, ramSize int) *MBC3 {
	m := &MBC3{rom: rom, romBank: 1}
	if ramSize > 0 {
		m.ram = make([]byte, ramSize)
	}
	m.lastRTCWallSec = nowUnix()
	return m
}

func (m *MBC3) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		if int(addr) < len(m.rom) {
			return m.rom[addr]
		}
		return 0xFF
	case addr < 0x8000:
		bank := int(m.romBank & 0x7F)
		if bank == 0 {
			bank = 1
		}
		off := bank*0x4000 + int(addr-0x4000)
		if off >= 0 && off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		if m.bankOrRTC >= 0x08 && m.bankOrRTC <= 0x0C {
			m.advanceRTC()
			return m.readRTCReg(m.bankOrRTC)
		}
		if len(m.ram) == 0 {
			return 0xFF
		}
		rb := int(m.bankOrRTC & 0x03)
		off := rb*0x2000 + int(addr-0xA000)
		if off >= 0 && off < len(m.ram) {
			return m.ram[off]
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (m *MBC3) readRTCReg(sel byte) byte {
	switch sel {
	case 0x08:
		return m.latchSec
	case 0x09:
		return m.latchMin
	case 0x0A:
		return m.latchHour
	case 0x0B:
		return byte(m.latchDay & 0xFF)
	case 0x0C:
		v := byte((m.latchDay >> 8) & 0x01)
		if m.latchHalt {
			v |= 0x40
		}
		if m.latchCarry {
			v |= 0x80
		}
		return v
	}
	return 0xFF
}

func (m *MBC3) Write(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		m.ramEnabled = (value & 0x0F) == 0x0A
	case addr < 0x4000:
		v := value & 0x7F
		if v == 0 {
			v = 1
		}
		m.romBank = v
	case addr < 0x6000:
		m.bankOrRTC = value
	case addr < 0x8000:
		if m.latchState == 0x00 && value == 0x01 {
			m.latchClock()
		}
		m.latchState = value
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return
		}
		if m.bankOrRTC >= 0x08 && m.bankOrRTC <= 0x0C {
			m.advanceRTC()
			m.writeRTCReg(m.bankOrRTC, value)
			return
		}
		if len(m.ram) == 0 {
			return
		}
		rb := int(m.bankOrRTC & 0x03)
		off := rb*0x2000 + int(addr-0xA000)
		if off >= 0 && off < len(m.ram) {
			m.ram[off] = value
		}
	}
}

func (m *MBC3) writeRTCReg(sel, value byte) {
	switch sel {
	case 0x08:
		m.rtcSec = value % 60
	case 0x09:
		m.rtcMin = value % 60
	case 0x0A:
		m.rtcHour = value % 24
	case 0x0B:
		m.rtcDay = (m.rtcDay &^ 0xFF) | uint16(value)
	case 0x0C:
		m.rtcDay = (m.rtcDay &^ 0x100) | (uint16(value&0x01) << 8)
		m.rtcHalt = value&0x40 != 0
		m.rtcCarry = value&0x80 != 0
	}
}

// latchClock snapshots the live RTC registers into the latch copy exposed to reads.
func (m *MBC3) latchClock() {
	m.advanceRTC()
	m.latchSec, m.latchMin, m.latchHour = m.rtcSec, m.rtcMin, m.rtcHour
	m.latchDay, m.latchHalt, m.latchCarry = m.rtcDay, m.rtcHalt, m.rtcCarry
}

// advanceRTC rolls the live registers forward by elapsed wall-clock seconds.
func (m *MBC3) advanceRTC() {
	if m.rtcHalt {
		m.lastRTCWallSec = nowUnix()
		return
	}
	now := nowUnix()
	elapsed := now - m.lastRTCWallSec
	if elapsed <= 0 {
		return
	}
	m.lastRTCWallSec = now

	total := int64(m.rtcSec) + int64(m.rtcMin)*60 + int64(m.rtcHour)*3600 + int64(m.rtcDay)*86400 + elapsed
	days := total / 86400
	rem := total % 86400
	m.rtcHour = byte(rem / 3600)
	rem %= 3600
	m.rtcMin = byte(rem / 60)
	m.rtcSec = byte(rem % 60)
	if days > 0x1FF {
		m.rtcCarry = true
		days &= 0x1FF
	}
	m.rtcDay = uint16(days)
}

func (m *MBC3) SaveRAM() []byte {
	m.advanceRTC()
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	_ = enc.Encode(m.ram)
	_ = enc.Encode(mbc3RTCState{
		Sec: m.rtcSec, Min: m.rtcMin, Hour: m.rtcHour, Day: m.rtcDay,
		Halt: m.rtcHalt, Carry: m.rtcCarry, LastWall: m.lastRTCWallSec,
	})
	return buf.Bytes()
}

func (m *MBC3) LoadRAM(data []byte) {
	dec := gob.NewDecoder(bytes.NewReader(data))
	var ram []byte
	if err := dec.Decode(&ram); err != nil {
		return
	}
	if len(ram) == len(m.ram) {
		copy(m.ram, ram)
	}
	var rtc mbc3RTCState
	if err := dec.Decode(&rtc); err == nil {
		m.rtcSec, m.rtcMin, m.rtcHour, m.rtcDay = rtc.Sec, rtc.Min, rtc.Hour, rtc.Day
		m.rtcHalt, m.rtcCarry, m.lastRTCWallSec = rtc.Halt, rtc.Carry, rtc.LastWall
		m.latchClock()
	}
}

type mbc3RTCState struct {
	Sec, Min, Hour    byte
	Day               uint16
	Halt, Carry       bool
	LastWall          int64
}

type mbc3State struct {
	RomBank, BankOrRTC, LatchState byte
	RAMEnabled                     bool
}

func (m *MBC3) SaveState() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(mbc3State{
		RomBank: m.romBank, BankOrRTC: m.bankOrRTC, LatchState: m.latchState, RAMEnabled: m.ramEnabled,
	})
	return buf.Bytes()
}

func (m *MBC3) LoadState(data []byte) {
	var s mbc3State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	m.romBank, m.bankOrRTC, m.latchState, m.ramEnabled = s.RomBank, s.BankOrRTC, s.LatchState, s.RAMEnabled
}
