package debug

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
)

const (
	frameWidth  = 256
	frameHeight = 240
)

// FrameDumper writes frames as PNG files
type FrameDumper struct {
	outputDir    string
	scale        int
	maxDumps     int
	dumpInterval uint64
	dumped       int
}

// NewFrameDumper creates a dumper writing into outputDir at 1x scale with
// no limit on the number of dumps.
func NewFrameDumper(outputDir string) *FrameDumper {
	return &FrameDumper{
		outputDir:    outputDir,
		scale:        1,
		dumpInterval: 1,
	}
}

// SetScale sets the integer upscaling factor
func (fd *FrameDumper) SetScale(scale int) {
	if scale < 1 {
		scale = 1
	}
	fd.scale = scale
}

// SetMaxDumps limits how many frames Dump writes; 0 means no limit
func (fd *FrameDumper) SetMaxDumps(max int) {
	fd.maxDumps = max
}

// SetDumpInterval makes Dump write only every Nth frame
func (fd *FrameDumper) SetDumpInterval(interval uint64) {
	if interval == 0 {
		interval = 1
	}
	fd.dumpInterval = interval
}

// Dumped returns the number of files written so far
func (fd *FrameDumper) Dumped() int {
	return fd.dumped
}

// Dump writes frame_<n>.png into the output directory when the interval and
// limit allow it. It returns the path written, or "" when the frame was
// skipped.
func (fd *FrameDumper) Dump(frame [frameWidth * frameHeight]uint32, frameNum uint64) (string, error) {
	if frameNum%fd.dumpInterval != 0 {
		return "", nil
	}
	if fd.maxDumps > 0 && fd.dumped >= fd.maxDumps {
		return "", nil
	}

	if err := os.MkdirAll(fd.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create frame dump directory: %w", err)
	}
	path := filepath.Join(fd.outputDir, fmt.Sprintf("frame_%06d.png", frameNum))
	if err := fd.WriteFile(path, frame); err != nil {
		return "", err
	}
	fd.dumped++
	return path, nil
}

// WriteFile writes a single frame to path.
func (fd *FrameDumper) WriteFile(path string, frame [frameWidth * frameHeight]uint32) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create frame dump file: %w", err)
	}
	if err := fd.Encode(file, frame); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// Encode writes the frame as PNG, scaled by the configured factor.
func (fd *FrameDumper) Encode(w io.Writer, frame [frameWidth * frameHeight]uint32) error {
	var img image.Image = FrameImage(frame)
	if fd.scale > 1 {
		dst := image.NewRGBA(image.Rect(0, 0, frameWidth*fd.scale, frameHeight*fd.scale))
		draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
		img = dst
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	return nil
}

// FrameImage converts a 0xRRGGBB frame buffer into an opaque RGBA image.
func FrameImage(frame [frameWidth * frameHeight]uint32) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, frameWidth, frameHeight))
	for i, rgb := range frame {
		img.SetRGBA(i%frameWidth, i/frameWidth, color.RGBA{
			R: uint8(rgb >> 16),
			G: uint8(rgb >> 8),
			B: uint8(rgb),
			A: 0xFF,
		})
	}
	return img
}
