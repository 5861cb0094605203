package cpu

// getReg8/setReg8 map the standard 3-bit register index (0:B 1:C 2:D 3:E
// 4:H 5:L 6:(HL) 7:A) shared by the LD r,r' block, the ALU block, and the
// CB-prefixed table.
func (c *CPU) getReg8(idx byte) byte {
	switch idx {
	case 0:
		return c.B
	case 1:
		return c.C
	case 2:
		return c.D
	case 3:
		return c.E
	case 4:
		return c.H
	case 5:
		return c.L
	case 6:
		return c.read8(c.getHL())
	default:
		return c.A
	}
}

func (c *CPU) setReg8(idx byte, v byte) {
	switch idx {
	case 0:
		c.B = v
	case 1:
		c.C = v
	case 2:
		c.D = v
	case 3:
		c.E = v
	case 4:
		c.H = v
	case 5:
		c.L = v
	case 6:
		c.write8(c.getHL(), v)
	default:
		c.A = v
	}
}

func (c *CPU) condTaken(cc byte) bool {
	switch cc {
	case 0:
		return c.F&flagZ == 0
	case 1:
		return c.F&flagZ != 0
	case 2:
		return c.F&flagC == 0
	default:
		return c.F&flagC != 0
	}
}

func (c *CPU) jr() {
	off := int8(c.fetch8())
	c.PC = uint16(int32(c.PC) + int32(off))
	c.tickInternal()
}

func (c *CPU) jrCond(cc byte) {
	off := int8(c.fetch8())
	if c.condTaken(cc) {
		c.PC = uint16(int32(c.PC) + int32(off))
		c.tickInternal()
	}
}

func (c *CPU) jp() {
	addr := c.fetch16()
	c.PC = addr
	c.tickInternal()
}

func (c *CPU) jpCond(cc byte) {
	addr := c.fetch16()
	if c.condTaken(cc) {
		c.PC = addr
		c.tickInternal()
	}
}

func (c *CPU) call() {
	addr := c.fetch16()
	c.push16(c.PC)
	c.PC = addr
}

func (c *CPU) callCond(cc byte) {
	addr := c.fetch16()
	if c.condTaken(cc) {
		c.push16(c.PC)
		c.PC = addr
	}
}

func (c *CPU) ret() {
	c.PC = c.pop16()
	c.tickInternal()
}

func (c *CPU) retCond(cc byte) {
	c.tickInternal()
	if c.condTaken(cc) {
		c.PC = c.pop16()
		c.tickInternal()
	}
}

func (c *CPU) rst(target uint16) {
	c.push16(c.PC)
	c.PC = target
}

func (c *CPU) addHL(rr uint16) {
	hl := c.getHL()
	r := uint32(hl) + uint32(rr)
	h := (hl&0x0FFF)+(rr&0x0FFF) > 0x0FFF
	cy := r > 0xFFFF
	c.tickInternal()
	c.setHL(uint16(r))
	c.setZNHC(c.F&flagZ != 0, false, h, cy)
}

// execute dispatches one already-fetched opcode. Undefined opcodes
// (D3,DB,DD,E3,E4,EB,EC,ED,F4,FC,FD) behave as a one M-cycle no-op, matching
// how real hardware locks up only when one is actually reached in practice;
// we simply treat the slot as inert rather than emulating the lockup.
func (c *CPU) execute(op byte) {
	switch {
	case op >= 0x40 && op <= 0x7F:
		if op == 0x76 {
			c.halt()
			return
		}
		dst := (op >> 3) & 0x07
		src := op & 0x07
		c.setReg8(dst, c.getReg8(src))
		return
	case op >= 0x80 && op <= 0xBF:
		src := c.getReg8(op & 0x07)
		switch (op >> 3) & 0x07 {
		case 0:
			res, z, n, h, cy := c.add8(c.A, src)
			c.A = res
			c.setZNHC(z, n, h, cy)
		case 1:
			res, z, n, h, cy := c.adc8(c.A, src, c.F&flagC != 0)
			c.A = res
			c.setZNHC(z, n, h, cy)
		case 2:
			res, z, n, h, cy := c.sub8(c.A, src)
			c.A = res
			c.setZNHC(z, n, h, cy)
		case 3:
			res, z, n, h, cy := c.sbc8(c.A, src, c.F&flagC != 0)
			c.A = res
			c.setZNHC(z, n, h, cy)
		case 4:
			res, z, n, h, cy := c.and8(c.A, src)
			c.A = res
			c.setZNHC(z, n, h, cy)
		case 5:
			res, z, n, h, cy := c.xor8(c.A, src)
			c.A = res
			c.setZNHC(z, n, h, cy)
		case 6:
			res, z, n, h, cy := c.or8(c.A, src)
			c.A = res
			c.setZNHC(z, n, h, cy)
		case 7:
			z, n, h, cy := c.cp8(c.A, src)
			c.setZNHC(z, n, h, cy)
		}
		return
	}

	switch op {
	case 0x00: // NOP
	case 0x01:
		c.setBC(c.fetch16())
	case 0x02:
		c.write8(c.getBC(), c.A)
	case 0x03:
		c.setBC(c.getBC() + 1)
		c.tickInternal()
	case 0x04:
		res, z, n, h := c.inc8(c.B)
		c.B = res
		c.setZNHC(z, n, h, c.F&flagC != 0)
	case 0x05:
		res, z, n, h := c.dec8(c.B)
		c.B = res
		c.setZNHC(z, n, h, c.F&flagC != 0)
	case 0x06:
		c.B = c.fetch8()
	case 0x07:
		res, cy := c.rlc(c.A)
		c.A = res
		c.setZNHC(false, false, false, cy)
	case 0x08:
		addr := c.fetch16()
		c.write8(addr, byte(c.SP))
		c.write8(addr+1, byte(c.SP>>8))
	case 0x09:
		c.addHL(c.getBC())
	case 0x0A:
		c.A = c.read8(c.getBC())
	case 0x0B:
		c.setBC(c.getBC() - 1)
		c.tickInternal()
	case 0x0C:
		res, z, n, h := c.inc8(c.C)
		c.C = res
		c.setZNHC(z, n, h, c.F&flagC != 0)
	case 0x0D:
		res, z, n, h := c.dec8(c.C)
		c.C = res
		c.setZNHC(z, n, h, c.F&flagC != 0)
	case 0x0E:
		c.C = c.fetch8()
	case 0x0F:
		res, cy := c.rrc(c.A)
		c.A = res
		c.setZNHC(false, false, false, cy)

	case 0x10:
		c.stop()
	case 0x11:
		c.setDE(c.fetch16())
	case 0x12:
		c.write8(c.getDE(), c.A)
	case 0x13:
		c.setDE(c.getDE() + 1)
		c.tickInternal()
	case 0x14:
		res, z, n, h := c.inc8(c.D)
		c.D = res
		c.setZNHC(z, n, h, c.F&flagC != 0)
	case 0x15:
		res, z, n, h := c.dec8(c.D)
		c.D = res
		c.setZNHC(z, n, h, c.F&flagC != 0)
	case 0x16:
		c.D = c.fetch8()
	case 0x17:
		res, cy := c.rl(c.A, c.F&flagC != 0)
		c.A = res
		c.setZNHC(false, false, false, cy)
	case 0x18:
		c.jr()
	case 0x19:
		c.addHL(c.getDE())
	case 0x1A:
		c.A = c.read8(c.getDE())
	case 0x1B:
		c.setDE(c.getDE() - 1)
		c.tickInternal()
	case 0x1C:
		res, z, n, h := c.inc8(c.E)
		c.E = res
		c.setZNHC(z, n, h, c.F&flagC != 0)
	case 0x1D:
		res, z, n, h := c.dec8(c.E)
		c.E = res
		c.setZNHC(z, n, h, c.F&flagC != 0)
	case 0x1E:
		c.E = c.fetch8()
	case 0x1F:
		res, cy := c.rr(c.A, c.F&flagC != 0)
		c.A = res
		c.setZNHC(false, false, false, cy)

	case 0x20:
		c.jrCond(0)
	case 0x21:
		c.setHL(c.fetch16())
	case 0x22:
		c.write8(c.getHL(), c.A)
		c.setHL(c.getHL() + 1)
	case 0x23:
		c.setHL(c.getHL() + 1)
		c.tickInternal()
	case 0x24:
		res, z, n, h := c.inc8(c.H)
		c.H = res
		c.setZNHC(z, n, h, c.F&flagC != 0)
	case 0x25:
		res, z, n, h := c.dec8(c.H)
		c.H = res
		c.setZNHC(z, n, h, c.F&flagC != 0)
	case 0x26:
		c.H = c.fetch8()
	case 0x27:
		c.daa()
	case 0x28:
		c.jrCond(1)
	case 0x29:
		c.addHL(c.getHL())
	case 0x2A:
		c.A = c.read8(c.getHL())
		c.setHL(c.getHL() + 1)
	case 0x2B:
		c.setHL(c.getHL() - 1)
		c.tickInternal()
	case 0x2C:
		res, z, n, h := c.inc8(c.L)
		c.L = res
		c.setZNHC(z, n, h, c.F&flagC != 0)
	case 0x2D:
		res, z, n, h := c.dec8(c.L)
		c.L = res
		c.setZNHC(z, n, h, c.F&flagC != 0)
	case 0x2E:
		c.L = c.fetch8()
	case 0x2F:
		c.A = ^c.A
		c.setZNHC(c.F&flagZ != 0, true, true, c.F&flagC != 0)

	case 0x30:
		c.jrCond(2)
	case 0x31:
		c.SP = c.fetch16()
	case 0x32:
		c.write8(c.getHL(), c.A)
		c.setHL(c.getHL() - 1)
	case 0x33:
		c.SP++
		c.tickInternal()
	case 0x34:
		v := c.read8(c.getHL())
		res, z, n, h := c.inc8(v)
		c.write8(c.getHL(), res)
		c.setZNHC(z, n, h, c.F&flagC != 0)
	case 0x35:
		v := c.read8(c.getHL())
		res, z, n, h := c.dec8(v)
		c.write8(c.getHL(), res)
		c.setZNHC(z, n, h, c.F&flagC != 0)
	case 0x36:
		c.write8(c.getHL(), c.fetch8())
	case 0x37:
		c.setZNHC(c.F&flagZ != 0, false, false, true)
	case 0x38:
		c.jrCond(3)
	case 0x39:
		c.addHL(c.SP)
	case 0x3A:
		c.A = c.read8(c.getHL())
		c.setHL(c.getHL() - 1)
	case 0x3B:
		c.SP--
		c.tickInternal()
	case 0x3C:
		res, z, n, h := c.inc8(c.A)
		c.A = res
		c.setZNHC(z, n, h, c.F&flagC != 0)
	case 0x3D:
		res, z, n, h := c.dec8(c.A)
		c.A = res
		c.setZNHC(z, n, h, c.F&flagC != 0)
	case 0x3E:
		c.A = c.fetch8()
	case 0x3F:
		c.setZNHC(c.F&flagZ != 0, false, false, c.F&flagC == 0)

	case 0xC0:
		c.retCond(0)
	case 0xC1:
		c.setBC(c.pop16())
	case 0xC2:
		c.jpCond(0)
	case 0xC3:
		c.jp()
	case 0xC4:
		c.callCond(0)
	case 0xC5:
		c.push16(c.getBC())
	case 0xC6:
		b := c.fetch8()
		res, z, n, h, cy := c.add8(c.A, b)
		c.A = res
		c.setZNHC(z, n, h, cy)
	case 0xC7:
		c.rst(0x00)
	case 0xC8:
		c.retCond(1)
	case 0xC9:
		c.ret()
	case 0xCA:
		c.jpCond(1)
	case 0xCB:
		c.executeCB(c.fetch8())
	case 0xCC:
		c.callCond(1)
	case 0xCD:
		c.call()
	case 0xCE:
		b := c.fetch8()
		res, z, n, h, cy := c.adc8(c.A, b, c.F&flagC != 0)
		c.A = res
		c.setZNHC(z, n, h, cy)
	case 0xCF:
		c.rst(0x08)

	case 0xD0:
		c.retCond(2)
	case 0xD1:
		c.setDE(c.pop16())
	case 0xD2:
		c.jpCond(2)
	case 0xD3:
		// undefined
	case 0xD4:
		c.callCond(2)
	case 0xD5:
		c.push16(c.getDE())
	case 0xD6:
		b := c.fetch8()
		res, z, n, h, cy := c.sub8(c.A, b)
		c.A = res
		c.setZNHC(z, n, h, cy)
	case 0xD7:
		c.rst(0x10)
	case 0xD8:
		c.retCond(3)
	case 0xD9:
		c.ret()
		c.IME = true
		c.imeScheduled = false
	case 0xDA:
		c.jpCond(3)
	case 0xDB:
		// undefined
	case 0xDC:
		c.callCond(3)
	case 0xDD:
		// undefined
	case 0xDE:
		b := c.fetch8()
		res, z, n, h, cy := c.sbc8(c.A, b, c.F&flagC != 0)
		c.A = res
		c.setZNHC(z, n, h, cy)
	case 0xDF:
		c.rst(0x18)

	case 0xE0:
		addr := 0xFF00 + uint16(c.fetch8())
		c.write8(addr, c.A)
	case 0xE1:
		c.setHL(c.pop16())
	case 0xE2:
		c.write8(0xFF00+uint16(c.C), c.A)
	case 0xE3:
		// undefined
	case 0xE4:
		// undefined
	case 0xE5:
		c.push16(c.getHL())
	case 0xE6:
		b := c.fetch8()
		res, z, n, h, cy := c.and8(c.A, b)
		c.A = res
		c.setZNHC(z, n, h, cy)
	case 0xE7:
		c.rst(0x20)
	case 0xE8:
		c.addSPr8()
	case 0xE9:
		c.PC = c.getHL()
	case 0xEA:
		addr := c.fetch16()
		c.write8(addr, c.A)
	case 0xEB:
		// undefined
	case 0xEC:
		// undefined
	case 0xED:
		// undefined
	case 0xEE:
		b := c.fetch8()
		res, z, n, h, cy := c.xor8(c.A, b)
		c.A = res
		c.setZNHC(z, n, h, cy)
	case 0xEF:
		c.rst(0x28)

	case 0xF0:
		addr := 0xFF00 + uint16(c.fetch8())
		c.A = c.read8(addr)
	case 0xF1:
		c.setAF(c.pop16())
	case 0xF2:
		c.A = c.read8(0xFF00 + uint16(c.C))
	case 0xF3:
		c.IME = false
		c.imeScheduled = false
	case 0xF4:
		// undefined
	case 0xF5:
		c.push16(c.getAF())
	case 0xF6:
		b := c.fetch8()
		res, z, n, h, cy := c.or8(c.A, b)
		c.A = res
		c.setZNHC(z, n, h, cy)
	case 0xF7:
		c.rst(0x30)
	case 0xF8:
		c.ldHLSPr8()
	case 0xF9:
		c.SP = c.getHL()
		c.tickInternal()
	case 0xFA:
		addr := c.fetch16()
		c.A = c.read8(addr)
	case 0xFB:
		c.imeScheduled = true
	case 0xFC:
		// undefined
	case 0xFD:
		// undefined
	case 0xFE:
		b := c.fetch8()
		z, n, h, cy := c.cp8(c.A, b)
		c.setZNHC(z, n, h, cy)
	case 0xFF:
		c.rst(0x38)
	}
}

func (c *CPU) halt() {
	pending := c.bus.IE()&c.bus.IFReg()&0x1F != 0
	if !c.IME && pending {
		c.haltBugPending = true
		return
	}
	c.halted = true
}

// stop consumes STOP's encoded padding byte, then either performs a CGB
// double-speed switch (idling 2050 M-cycles) or acts as a near no-op that
// still resets DIV, matching real hardware.
func (c *CPU) stop() {
	c.fetch8()
	if c.bus.SpeedSwitchArmed() {
		c.bus.DisarmSpeedSwitch()
		for i := 0; i < 2050; i++ {
			c.tickInternal()
		}
		c.bus.ToggleDoubleSpeed()
	} else {
		c.write8(0xFF04, 0)
	}
}

func (c *CPU) addSPr8() {
	off := int8(c.fetch8())
	low := byte(c.SP)
	_, _, _, h, cy := c.add8(low, byte(off))
	c.tickInternal()
	c.tickInternal()
	c.SP = uint16(int32(c.SP) + int32(off))
	c.setZNHC(false, false, h, cy)
}

func (c *CPU) ldHLSPr8() {
	off := int8(c.fetch8())
	low := byte(c.SP)
	_, _, _, h, cy := c.add8(low, byte(off))
	c.tickInternal()
	c.setHL(uint16(int32(c.SP) + int32(off)))
	c.setZNHC(false, false, h, cy)
}
