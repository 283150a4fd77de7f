package graphics

// VideoProcessor adjusts brightness, contrast and saturation of frames.
// The PPU only ever emits a few dozen distinct colors, so results are
// cached per input color.
type VideoProcessor struct {
	brightness float32
	contrast   float32
	saturation float32

	cache map[uint32]uint32
}

// NewVideoProcessor creates a processor; 1.0 leaves a parameter neutral
func NewVideoProcessor(brightness, contrast, saturation float32) *VideoProcessor {
	return &VideoProcessor{
		brightness: brightness,
		contrast:   contrast,
		saturation: saturation,
		cache:      make(map[uint32]uint32),
	}
}

// IsIdentity reports whether Process would leave frames unchanged
func (vp *VideoProcessor) IsIdentity() bool {
	return vp.brightness == 1 && vp.contrast == 1 && vp.saturation == 1
}

// Process adjusts frame in place
func (vp *VideoProcessor) Process(frame *[256 * 240]uint32) {
	if vp.IsIdentity() {
		return
	}
	for i, pixel := range frame {
		out, ok := vp.cache[pixel]
		if !ok {
			out = vp.adjust(pixel)
			vp.cache[pixel] = out
		}
		frame[i] = out
	}
}

func (vp *VideoProcessor) adjust(pixel uint32) uint32 {
	r := float32((pixel>>16)&0xFF) / 255
	g := float32((pixel>>8)&0xFF) / 255
	b := float32(pixel&0xFF) / 255

	r, g, b = r*vp.brightness, g*vp.brightness, b*vp.brightness
	r = (r-0.5)*vp.contrast + 0.5
	g = (g-0.5)*vp.contrast + 0.5
	b = (b-0.5)*vp.contrast + 0.5

	luma := 0.299*r + 0.587*g + 0.114*b
	r = luma + (r-luma)*vp.saturation
	g = luma + (g-luma)*vp.saturation
	b = luma + (b-luma)*vp.saturation

	return uint32(channel(r))<<16 | uint32(channel(g))<<8 | uint32(channel(b))
}

func channel(v float32) uint8 {
	v *= 255
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
