package cart

import "testing"

func TestMBC3_RTC_LatchAndRead(t *testing.T) {
	prevNow := nowUnix
	nowUnix = func() int64 { return 100 }
	defer func() { nowUnix = prevNow }()

	rom := make([]byte, 0x8000)
	m := NewMBC3(rom, 0x2000)

	m.Write(0x0000, 0x0A) // RAM/RTC enable
	m.rtcSec, m.rtcMin, m.rtcHour, m.rtcDay = 5, 6, 7, 0x101
	m.rtcHalt, m.rtcCarry = false, false
	m.lastRTCWallSec = 100
	m.Write(0x6000, 0x00)
	m.Write(0x6000, 0x01) // latch on 0->1 edge

	m.Write(0x4000, 0x08) // select seconds
	if got := m.Read(0xA000); got != 5 {
		t.Fatalf("latched sec got %d want 5", got)
	}
	m.rtcSec = 30
	if got := m.Read(0xA000); got != 5 {
		t.Fatalf("latched sec changed unexpectedly: got %d", got)
	}

	m.Write(0x4000, 0x0B)
	if got := m.Read(0xA000); got != byte(0x101&0xFF) {
		t.Fatalf("latched day low got %02X want %02X", got, byte(0x01))
	}
	m.Write(0x4000, 0x0C)
	got := m.Read(0xA000)
	if got&0x01 == 0 {
		t.Fatalf("latched day high bit not set")
	}
	if got&0x40 != 0 {
		t.Fatalf("halt bit set unexpectedly")
	}
}

func TestMBC3_RTC_AdvanceAndPersist(t *testing.T) {
	prevNow := nowUnix
	nowVal := int64(100)
	nowUnix = func() int64 { return nowVal }
	defer func() { nowUnix = prevNow }()

	rom := make([]byte, 0x8000)
	m := NewMBC3(rom, 0x2000)
	m.Write(0x0000, 0x0A)
	m.rtcSec, m.rtcMin, m.rtcHour, m.rtcDay = 30, 59, 23, 0x1FF
	m.rtcHalt, m.rtcCarry = false, false
	m.lastRTCWallSec = nowVal

	nowVal = 120 // +20s
	m.advanceRTC()
	if m.rtcSec != 50 || m.rtcMin != 59 {
		t.Fatalf("rtc advance 20s got sec=%d min=%d", m.rtcSec, m.rtcMin)
	}

	nowVal = 180 // +60s more -> rollover with carry and day wrap
	m.advanceRTC()
	if m.rtcSec != 50 || m.rtcMin != 0 || m.rtcHour != 0 || m.rtcDay != 0 || !m.rtcCarry {
		t.Fatalf("rtc +60s rollover got %02d:%02d:%02d day=%03d carry=%v",
			m.rtcHour, m.rtcMin, m.rtcSec, m.rtcDay, m.rtcCarry)
	}

	data := m.SaveRAM()
	n := NewMBC3(rom, 0x2000)
	n.LoadRAM(data)
	if n.rtcSec != m.rtcSec || n.rtcMin != m.rtcMin || n.rtcHour != m.rtcHour || n.rtcDay != m.rtcDay {
		t.Fatalf("rtc persist mismatch: got %02d:%02d:%02d day=%03d want %02d:%02d:%02d day=%03d",
			n.rtcHour, n.rtcMin, n.rtcSec, n.rtcDay, m.rtcHour, m.rtcMin, m.rtcSec, m.rtcDay)
	}
}

func TestMBC3_RAMBankSelectDisjointFromRTC(t *testing.T) {
	rom := make([]byte, 0x8000)
	m := NewMBC3(rom, 4*0x2000)
	m.Write(0x0000, 0x0A)
	m.Write(0x4000, 0x02) // RAM bank 2
	m.Write(0xA000, 0x9A)
	if got := m.Read(0xA000); got != 0x9A {
		t.Fatalf("RAM bank 2 RW failed: got %02X", got)
	}
}
