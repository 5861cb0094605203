package cpu

// executeCB dispatches one of the 256 CB-prefixed opcodes. The top two bits
// select rotate/shift-or-swap (00), BIT (01), RES (10), or SET (11); bits
// 3-5 pick the bit index or rotate/shift variant; bits 0-2 pick the operand
// register via the shared 0:B..5:L 6:(HL) 7:A index.
func (c *CPU) executeCB(op byte) {
	reg := op & 0x07
	bit := (op >> 3) & 0x07

	switch op >> 6 {
	case 0:
		v := c.getReg8(reg)
		var res byte
		var cy bool
		switch bit {
		case 0:
			res, cy = c.rlc(v)
		case 1:
			res, cy = c.rrc(v)
		case 2:
			res, cy = c.rl(v, c.F&flagC != 0)
		case 3:
			res, cy = c.rr(v, c.F&flagC != 0)
		case 4:
			res, cy = c.sla(v)
		case 5:
			res, cy = c.sra(v)
		case 6:
			res = c.swap(v)
			cy = false
		case 7:
			res, cy = c.srl(v)
		}
		c.setReg8(reg, res)
		c.setZNHC(res == 0, false, false, cy)
	case 1:
		v := c.getReg8(reg)
		z := v&(1<<bit) == 0
		c.setZNHC(z, false, true, c.F&flagC != 0)
	case 2:
		v := c.getReg8(reg)
		c.setReg8(reg, v&^(1<<bit))
	case 3:
		v := c.getReg8(reg)
		c.setReg8(reg, v|(1<<bit))
	}
}
