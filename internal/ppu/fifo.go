package ppu

// Pixel is one entry carried through the background/window or sprite FIFO.
type Pixel struct {
	Color      byte // 2-bit color ID (0..3)
	Palette    byte // DMG: BGP always for BG, OBP0/OBP1 index for sprites. CGB: 0..7 palette index.
	BGPriority bool // CGB BG-map priority bit, or OAM priority ("behind BG") bit for sprite pixels.
	IsSprite   bool
	OAMIndex   int // lower wins ties; unused (left 0) for background pixels.
}

// pixelFIFO is a small ring buffer; 16 slots comfortably holds two fetched
// tiles' worth of background pixels or one sprite's worth.
type pixelFIFO struct {
	buf  [16]Pixel
	head int
	tail int
	size int
}

func (q *pixelFIFO) Clear()   { q.head, q.tail, q.size = 0, 0, 0 }
func (q *pixelFIFO) Len() int { return q.size }

func (q *pixelFIFO) Push(p Pixel) bool {
	if q.size == len(q.buf) {
		return false
	}
	q.buf[q.tail] = p
	q.tail = (q.tail + 1) % len(q.buf)
	q.size++
	return true
}

func (q *pixelFIFO) Pop() (Pixel, bool) {
	if q.size == 0 {
		return Pixel{}, false
	}
	p := q.buf[q.head]
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	return p, true
}

// Peek returns the pixel at the given offset from the front without
// removing it (offset 0 is the next pixel Pop would return).
func (q *pixelFIFO) Peek(offset int) (Pixel, bool) {
	if offset >= q.size {
		return Pixel{}, false
	}
	return q.buf[(q.head+offset)%len(q.buf)], true
}

// Overlay merges a sprite's 8 pixels onto the front of the background FIFO,
// applying priority/transparency compositing pixel by pixel. Sprite pixels
// with color ID 0 are transparent and never override the background. A slot
// already holding an opaque pixel of an earlier-fetched sprite (lower X, or
// same X and lower OAM index) keeps it.
func (bg *pixelFIFO) Overlay(sprite *pixelFIFO) {
	n := sprite.Len()
	for i := 0; i < n && i < bg.Len(); i++ {
		sp, _ := sprite.Peek(i)
		if sp.Color == 0 {
			continue
		}
		idx := (bg.head + i) % len(bg.buf)
		bgPix := bg.buf[idx]
		if bgPix.IsSprite && bgPix.Color != 0 {
			continue
		}
		bg.buf[idx] = composeSpriteOverBG(bgPix, sp)
	}
	sprite.Clear()
}

// composeSpriteOverBG applies the documented priority rule: the sprite pixel
// wins unless it is transparent, or its OAM priority bit is set and the
// background pixel is non-zero (CGB additionally lets the BG-map priority
// bit force the background on top regardless of the sprite's own bit).
func composeSpriteOverBG(bgPix, spritePix Pixel) Pixel {
	if spritePix.Color == 0 {
		return bgPix
	}
	if bgPix.BGPriority && bgPix.Color != 0 {
		return bgPix
	}
	if spritePix.BGPriority && bgPix.Color != 0 {
		return bgPix
	}
	return spritePix
}
