// Package bus implements the Game Boy's address-decoded memory bus: it
// mediates every CPU and DMA access to cartridge, WRAM, HRAM, and the IO
// register file, and is the single place that drives the PPU, timer, OAM
// DMA, and CGB HDMA/GDMA engines forward in lockstep with CPU execution.
package bus

import (
	"bytes"
	"encoding/gob"
	"io"

	"github.com/clouddrift/gobomb/internal/cart"
	"github.com/clouddrift/gobomb/internal/dma"
	"github.com/clouddrift/gobomb/internal/ppu"
	"github.com/clouddrift/gobomb/internal/timer"
)

// Bus wires CPU-visible address space to cartridge, WRAM, HRAM, and IO,
// and owns the PPU/timer/DMA submodules so a single Tick call from the CPU
// advances every piece of hardware that shares the clock.
type Bus struct {
	cart cart.Cartridge
	ppu  *ppu.PPU

	timer *timer.Timer
	oam   *dma.OAM
	hdma  *dma.HDMA

	cgbMode bool

	// Work RAM: bank 0 fixed at C000-CFFF, bank N (1 on DMG, 1-7 on CGB via
	// SVBK) at D000-DFFF. Echo E000-FDFF mirrors C000-DDFF through the same
	// banking, since it is the same physical memory on real hardware.
	wram       [8][0x1000]byte
	wramBank   byte // raw SVBK bits 0-2; 0 is stored as written but treated as 1

	hram [0x7F]byte // FF80-FFFE

	ie    byte // FFFF
	ifReg byte // FF0F, lower 5 bits used

	joypSelect byte
	joypad     byte // Joyp* bitmask, 1 = pressed
	joypLower4 byte // last computed active-low nibble, for edge detection

	sb byte
	sc byte
	sw io.Writer

	doubleSpeed bool
	key1Armed   bool

	dmaReg byte // FF46 readback

	// apuRegs backs FF10-FF3F (APU channel registers and wave RAM) as dumb
	// read/write memory: audio synthesis is out of scope, but programs that
	// poke wave RAM or poll register bits must see what they wrote.
	apuRegs [0x30]byte

	bootROM     []byte
	bootEnabled bool

	tCycles uint64 // monotonically increasing T-cycle count, used by CPU.Step for cycle accounting
}

// New constructs a Bus with a cartridge auto-selected from the ROM header
// (falling back to ROM-only on a header it cannot parse — this convenience
// constructor is for tools like cpurunner that just want something to boot;
// emu.Machine uses NewWithCartridge so boot failures are fatal, per spec).
func New(rom []byte) *Bus {
	c, err := cart.NewCartridge(rom)
	if err != nil {
		c = cart.NewROMOnly(rom)
	}
	h, _ := cart.ParseHeader(rom)
	return NewWithCartridge(c, h != nil && h.IsCGB())
}

// NewWithCartridge wires a provided cartridge implementation.
func NewWithCartridge(c cart.Cartridge, cgbMode bool) *Bus {
	b := &Bus{cart: c, cgbMode: cgbMode, timer: timer.New(), oam: dma.NewOAM(), hdma: dma.NewHDMA()}
	b.ppu = ppu.New(func(bit int) { b.ifReg |= 1 << bit }, cgbMode)
	b.wramBank = 1
	return b
}

// PPU returns the internal PPU for read-only rendering helpers.
func (b *Bus) PPU() *ppu.PPU { return b.ppu }

// Cart returns the underlying cartridge for optional battery operations.
func (b *Bus) Cart() cart.Cartridge { return b.cart }

func (b *Bus) CGBMode() bool { return b.cgbMode }

// PowerOnRegisters sets IO register state to the documented DMG
// post-boot-ROM values, for sessions that start at 0x0100 without running an
// actual boot ROM image.
func (b *Bus) PowerOnRegisters() {
	b.ppu.PowerOnRegisters()
	b.timer.WriteTAC(0xF8)
	b.dmaReg = 0xFF
}

func (b *Bus) IE() byte     { return b.ie }
func (b *Bus) IFReg() byte  { return b.ifReg }
func (b *Bus) ClearIF(bit int) { b.ifReg &^= 1 << bit }

// TotalTCycles returns the running T-cycle count since construction. CPU.Step
// diffs this before and after dispatch to report the M-cycles an instruction
// (and any synchronous GDMA it triggers) actually consumed.
func (b *Bus) TotalTCycles() uint64 { return b.tCycles }

// ReadTick ticks the scheduler one M-cycle and then performs the read, so
// memory-mapped hardware observes the bus access at the right sub-instruction
// moment (tick before access, never after).
func (b *Bus) ReadTick(addr uint16) byte {
	b.tick()
	return b.Read(addr)
}

// WriteTick ticks the scheduler one M-cycle and then performs the write.
func (b *Bus) WriteTick(addr uint16, value byte) {
	b.tick()
	b.Write(addr, value)
}

// TickOnly advances the scheduler by one M-cycle without any memory access,
// for the CPU's internal (no-bus-activity) cycles: branch decisions, PUSH's
// setup cycle, 16-bit register transfers, and so on.
func (b *Bus) TickOnly() { b.tick() }

func (b *Bus) Read(addr uint16) byte {
	switch {
	case addr < 0x8000:
		if b.bootEnabled && addr < 0x0100 && len(b.bootROM) >= 0x100 {
			return b.bootROM[addr]
		}
		return b.cart.Read(addr)
	case addr >= 0x8000 && addr <= 0x9FFF:
		return b.ppu.CPURead(addr)
	case addr >= 0xA000 && addr <= 0xBFFF:
		return b.cart.Read(addr)
	case addr >= 0xC000 && addr <= 0xDFFF:
		return b.wramRead(addr)
	case addr >= 0xE000 && addr <= 0xFDFF:
		return b.wramRead(addr - 0x2000)
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if b.oam.Active() {
			return 0xFF
		}
		return b.ppu.CPURead(addr)
	case addr >= 0xFEA0 && addr <= 0xFEFF:
		return 0xFF // unusable
	case addr >= 0xFF80 && addr <= 0xFFFE:
		return b.hram[addr-0xFF80]
	case addr == 0xFF00:
		return b.readJoyp()
	case addr == 0xFF01:
		return b.sb
	case addr == 0xFF02:
		return 0x7E | (b.sc & 0x81)
	case addr == 0xFF04:
		return b.timer.DIV()
	case addr == 0xFF05:
		return b.timer.TIMA()
	case addr == 0xFF06:
		return b.timer.TMA()
	case addr == 0xFF07:
		return b.timer.TAC()
	case addr == 0xFF0F:
		return 0xE0 | (b.ifReg & 0x1F)
	case addr == 0xFF40, addr == 0xFF41, addr == 0xFF42, addr == 0xFF43,
		addr == 0xFF44, addr == 0xFF45,
		addr == 0xFF47, addr == 0xFF48, addr == 0xFF49,
		addr == 0xFF4A, addr == 0xFF4B, addr == 0xFF4F,
		addr == 0xFF68, addr == 0xFF69, addr == 0xFF6A, addr == 0xFF6B:
		return b.ppu.CPURead(addr)
	case addr == 0xFF46:
		return b.dmaReg
	case addr == 0xFF4D:
		var v byte = 0x7E
		if b.doubleSpeed {
			v |= 0x80
		}
		if b.key1Armed {
			v |= 0x01
		}
		return v
	case addr == 0xFF55:
		return b.hdma.StatusFF55()
	case addr == 0xFF70:
		return 0xF8 | (b.wramBank & 0x07)
	case addr == 0xFF50:
		return 0xFF
	case addr >= 0xFF10 && addr <= 0xFF3F:
		return b.apuRegs[addr-0xFF10]
	case addr == 0xFFFF:
		return b.ie
	default:
		return 0xFF
	}
}

func (b *Bus) Write(addr uint16, value byte) {
	switch {
	case addr < 0x8000:
		b.cart.Write(addr, value)
	case addr >= 0x8000 && addr <= 0x9FFF:
		b.ppu.CPUWrite(addr, value)
	case addr >= 0xA000 && addr <= 0xBFFF:
		b.cart.Write(addr, value)
	case addr >= 0xC000 && addr <= 0xDFFF:
		b.wramWrite(addr, value)
	case addr >= 0xE000 && addr <= 0xFDFF:
		b.wramWrite(addr-0x2000, value)
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if b.oam.Active() {
			return
		}
		b.ppu.CPUWrite(addr, value)
	case addr >= 0xFEA0 && addr <= 0xFEFF:
		// unusable: writes dropped
	case addr >= 0xFF80 && addr <= 0xFFFE:
		b.hram[addr-0xFF80] = value
	case addr == 0xFF00:
		b.joypSelect = value & 0x30
		b.updateJoypadIRQ()
	case addr == 0xFF01:
		b.sb = value
	case addr == 0xFF02:
		b.sc = value & 0x81
		if b.sc&0x80 != 0 {
			if b.sw != nil {
				_, _ = b.sw.Write([]byte{b.sb})
			}
			b.ifReg |= 1 << 3
			b.sc &^= 0x80
		}
	case addr == 0xFF04:
		if b.timer.WriteDIV() {
			b.ifReg |= 1 << 2
		}
	case addr == 0xFF05:
		b.timer.WriteTIMA(value)
	case addr == 0xFF06:
		b.timer.WriteTMA(value)
	case addr == 0xFF07:
		if b.timer.WriteTAC(value) {
			b.ifReg |= 1 << 2
		}
	case addr == 0xFF0F:
		b.ifReg = value & 0x1F
	case addr == 0xFF40, addr == 0xFF41, addr == 0xFF42, addr == 0xFF43,
		addr == 0xFF44, addr == 0xFF45,
		addr == 0xFF47, addr == 0xFF48, addr == 0xFF49,
		addr == 0xFF4A, addr == 0xFF4B, addr == 0xFF4F,
		addr == 0xFF68, addr == 0xFF69, addr == 0xFF6A, addr == 0xFF6B:
		b.ppu.CPUWrite(addr, value)
	case addr == 0xFF46:
		if value > 0xDF {
			value = 0xDF
		}
		b.dmaReg = value
		b.oam.Start(value)
	case addr == 0xFF4D:
		if b.cgbMode {
			b.key1Armed = value&0x01 != 0
		}
	case addr == 0xFF51:
		if b.cgbMode {
			b.hdma.SetHDMA1(value)
		}
	case addr == 0xFF52:
		if b.cgbMode {
			b.hdma.SetHDMA2(value)
		}
	case addr == 0xFF53:
		if b.cgbMode {
			b.hdma.SetHDMA3(value)
		}
	case addr == 0xFF54:
		if b.cgbMode {
			b.hdma.SetHDMA4(value)
		}
	case addr == 0xFF55:
		if b.cgbMode {
			b.startHDMA(value)
		}
	case addr == 0xFF70:
		if b.cgbMode {
			b.wramBank = value & 0x07
		}
	case addr == 0xFF50:
		if value != 0x00 {
			b.bootEnabled = false
		}
	case addr >= 0xFF10 && addr <= 0xFF3F:
		b.apuRegs[addr-0xFF10] = value
	case addr == 0xFFFF:
		b.ie = value
	}
}

// startHDMA handles a write to FF55: general-purpose transfers copy
// immediately (consuming their own M-cycles via repeated tick() calls so the
// PPU and timer keep advancing while the CPU is paused); HBlank transfers are
// armed and stepped one block at a time from tick() as HBlank is entered.
func (b *Bus) startHDMA(value byte) {
	src, dst, length, startGDMA := b.hdma.WriteControl(value)
	if !startGDMA {
		return
	}
	bytesPerMCycle := 2
	if b.doubleSpeed {
		bytesPerMCycle = 1
	}
	copied := 0
	for copied < length {
		b.tick()
		for i := 0; i < bytesPerMCycle && copied < length; i++ {
			v := b.Read(src + uint16(copied))
			b.ppu.WriteVRAMDirect(dst+uint16(copied), v)
			copied++
		}
	}
}

func (b *Bus) wramRead(addr uint16) byte {
	switch {
	case addr <= 0xCFFF:
		return b.wram[0][addr-0xC000]
	default:
		return b.wram[b.effectiveWRAMBank()][addr-0xD000]
	}
}

func (b *Bus) wramWrite(addr uint16, v byte) {
	switch {
	case addr <= 0xCFFF:
		b.wram[0][addr-0xC000] = v
	default:
		b.wram[b.effectiveWRAMBank()][addr-0xD000] = v
	}
}

func (b *Bus) effectiveWRAMBank() byte {
	bank := b.wramBank & 0x07
	if bank == 0 {
		bank = 1
	}
	return bank
}

// readJoyp synthesizes FF00's lower nibble from the currently selected row.
func (b *Bus) readJoyp() byte {
	res := byte(0xC0 | (b.joypSelect & 0x30) | 0x0F)
	if b.joypSelect&0x10 == 0 { // P14 low selects D-Pad
		if b.joypad&JoypRight != 0 {
			res &^= 0x01
		}
		if b.joypad&JoypLeft != 0 {
			res &^= 0x02
		}
		if b.joypad&JoypUp != 0 {
			res &^= 0x04
		}
		if b.joypad&JoypDown != 0 {
			res &^= 0x08
		}
	}
	if b.joypSelect&0x20 == 0 { // P15 low selects buttons
		if b.joypad&JoypA != 0 {
			res &^= 0x01
		}
		if b.joypad&JoypB != 0 {
			res &^= 0x02
		}
		if b.joypad&JoypSelectBtn != 0 {
			res &^= 0x04
		}
		if b.joypad&JoypStart != 0 {
			res &^= 0x08
		}
	}
	return res
}

// Joypad button bitmasks for SetJoypadState. Bits set mean "pressed".
const (
	JoypRight     = 1 << 0
	JoypLeft      = 1 << 1
	JoypUp        = 1 << 2
	JoypDown      = 1 << 3
	JoypA         = 1 << 4
	JoypB         = 1 << 5
	JoypSelectBtn = 1 << 6
	JoypStart     = 1 << 7
)

// SetJoypadState sets which buttons are currently pressed.
func (b *Bus) SetJoypadState(mask byte) {
	b.joypad = mask
	b.updateJoypadIRQ()
}

func (b *Bus) updateJoypadIRQ() {
	newLower := b.readJoyp() & 0x0F
	falling := (b.joypLower4 &^ newLower) & 0x0F
	if falling != 0 {
		b.ifReg |= 1 << 4
	}
	b.joypLower4 = newLower
}

// SetSerialWriter sets a sink that receives bytes written via the serial port.
func (b *Bus) SetSerialWriter(w io.Writer) { b.sw = w }

// SetBootROM loads a DMG boot ROM mapped at 0x0000-0x00FF until FF50 disables it.
func (b *Bus) SetBootROM(data []byte) {
	b.bootROM = nil
	b.bootEnabled = false
	if len(data) >= 0x100 {
		b.bootROM = make([]byte, 0x100)
		copy(b.bootROM, data[:0x100])
		b.bootEnabled = true
	}
}

// SpeedSwitchArmed reports whether KEY1 bit 0 has been set, priming STOP to
// perform a CGB double-speed switch.
func (b *Bus) SpeedSwitchArmed() bool { return b.key1Armed }

// DisarmSpeedSwitch clears the KEY1 arm bit, consumed once STOP acts on it.
func (b *Bus) DisarmSpeedSwitch() { b.key1Armed = false }

// ToggleDoubleSpeed flips CGB double-speed mode, performed by STOP.
func (b *Bus) ToggleDoubleSpeed() { b.doubleSpeed = !b.doubleSpeed }

func (b *Bus) DoubleSpeed() bool { return b.doubleSpeed }

// tick is the central scheduler hook invoked once per CPU M-cycle (or once
// per M-cycle of a synchronous GDMA transfer). It advances the timer every
// T-cycle, the PPU by dots (halved in double-speed, since the dot clock
// itself never doubles), OAM DMA one T-cycle at a time, and steps a pending
// HBlank transfer on the dot the PPU enters mode 0.
func (b *Bus) tick() {
	const tCyclesPerMCycle = 4
	b.tCycles += tCyclesPerMCycle

	if b.timer.Tick(tCyclesPerMCycle) {
		b.ifReg |= 1 << 2
	}

	dots := tCyclesPerMCycle
	if b.doubleSpeed {
		dots = tCyclesPerMCycle / 2
	}
	prevMode := b.ppu.Mode()
	b.ppu.Tick(dots)
	enteredHBlank := prevMode != 0 && b.ppu.Mode() == 0

	for i := 0; i < tCyclesPerMCycle; i++ {
		b.oam.Tick(b, b.ppu)
	}

	if enteredHBlank && b.hdma.Active() {
		b.hdma.StepBlock(b.Read, b.ppu.WriteVRAMDirect)
	}
}

// State is a frame-boundary snapshot suitable for gob encoding.
type State struct {
	WRAM        [8][0x1000]byte
	WRAMBank    byte
	HRAM        [0x7F]byte
	IE, IF      byte
	JoypSel     byte
	Joypad      byte
	JoypL4      byte
	SB, SC      byte
	DoubleSpeed bool
	Key1Armed   bool
	DMAReg      byte
	BootEnabled bool
	APURegs     [0x30]byte

	Timer timer.State
	OAM   dma.State
	HDMA  dma.HDMAState
	PPU   ppu.State
}

func (b *Bus) SaveState() []byte {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	s := State{
		WRAM: b.wram, WRAMBank: b.wramBank, HRAM: b.hram,
		IE: b.ie, IF: b.ifReg,
		JoypSel: b.joypSelect, Joypad: b.joypad, JoypL4: b.joypLower4,
		SB: b.sb, SC: b.sc,
		DoubleSpeed: b.doubleSpeed, Key1Armed: b.key1Armed,
		DMAReg: b.dmaReg, BootEnabled: b.bootEnabled, APURegs: b.apuRegs,
		Timer: b.timer.SaveState(), OAM: b.oam.SaveState(), HDMA: b.hdma.SaveState(),
		PPU: b.ppu.SaveState(),
	}
	_ = enc.Encode(s)
	_ = enc.Encode(b.cart.SaveState())
	return buf.Bytes()
}

func (b *Bus) LoadState(data []byte) {
	dec := gob.NewDecoder(bytes.NewReader(data))
	var s State
	if err := dec.Decode(&s); err != nil {
		return
	}
	b.wram, b.wramBank, b.hram = s.WRAM, s.WRAMBank, s.HRAM
	b.ie, b.ifReg = s.IE, s.IF
	b.joypSelect, b.joypad, b.joypLower4 = s.JoypSel, s.Joypad, s.JoypL4
	b.sb, b.sc = s.SB, s.SC
	b.doubleSpeed, b.key1Armed = s.DoubleSpeed, s.Key1Armed
	b.dmaReg, b.bootEnabled = s.DMAReg, s.BootEnabled
	b.apuRegs = s.APURegs
	b.timer.LoadState(s.Timer)
	b.oam.LoadState(s.OAM)
	b.hdma.LoadState(s.HDMA)
	b.ppu.LoadState(s.PPU)

	var cs []byte
	if err := dec.Decode(&cs); err == nil {
		b.cart.LoadState(cs)
	}
}
