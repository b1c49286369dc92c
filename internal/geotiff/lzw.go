package geotiff

const (
	lzwClear    = 256
	lzwEOI      = 257
	lzwFirst    = 258
	lzwMinWidth = 9
	lzwMaxWidth = 12
	// the table is reset one code before it would overflow 12 bits
	lzwTableFull = 1<<lzwMaxWidth - 2
)

// lzwEncode compresses src with the TIFF variant of LZW: MSB-first codes and
// the code width growing one code early, as libtiff writes it.
func lzwEncode(src []byte) []byte {
	bw := &bitWriter{out: make([]byte, 0, len(src)/2+16)}
	width := uint(lzwMinWidth)
	next := lzwFirst
	table := make(map[uint32]uint16, 4096)

	bw.write(lzwClear, width)
	if len(src) == 0 {
		bw.write(lzwEOI, width)
		return bw.flush()
	}

	// grow advances the free code, widening codes or resetting a full table.
	grow := func() {
		next++
		switch {
		case next == lzwTableFull:
			bw.write(lzwClear, width)
			clear(table)
			next = lzwFirst
			width = lzwMinWidth
		case next > 1<<width-1 && width < lzwMaxWidth:
			width++
		}
	}

	prefix := uint32(src[0])
	for _, b := range src[1:] {
		key := prefix<<8 | uint32(b)
		if code, ok := table[key]; ok {
			prefix = uint32(code)
			continue
		}
		bw.write(prefix, width)
		table[key] = uint16(next)
		grow()
		prefix = uint32(b)
	}
	bw.write(prefix, width)
	grow()
	bw.write(lzwEOI, width)

	return bw.flush()
}

type bitWriter struct {
	out   []byte
	acc   uint64
	nbits uint
}

func (w *bitWriter) write(code uint32, width uint) {
	w.acc = w.acc<<width | uint64(code)
	w.nbits += width
	for w.nbits >= 8 {
		w.out = append(w.out, byte(w.acc>>(w.nbits-8)))
		w.nbits -= 8
	}
	w.acc &= 1<<w.nbits - 1
}

func (w *bitWriter) flush() []byte {
	if w.nbits > 0 {
		w.out = append(w.out, byte(w.acc<<(8-w.nbits)))
		w.nbits = 0
		w.acc = 0
	}
	return w.out
}
