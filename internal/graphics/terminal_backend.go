package graphics

import (
	"fmt"
	"image"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/term"
)

// Fallback text grid when the output is not a terminal
const (
	defaultTermCols = 80
	defaultTermRows = 30
)

// TerminalBackend implements the Backend interface for terminal-based rendering
type TerminalBackend struct {
	initialized bool
	config      Config
}

// TerminalWindow draws frames with 24-bit ANSI colors, two pixels per
// character cell using the upper half block.
type TerminalWindow struct {
	title   string
	width   int
	height  int
	running bool

	out     io.Writer
	fd      int
	cols    int
	rows    int
	cleared bool

	src *image.RGBA
	dst *image.RGBA
	sb  strings.Builder
}

// NewTerminalBackend creates a new terminal graphics backend
func NewTerminalBackend() Backend {
	return &TerminalBackend{}
}

// Initialize initializes the terminal backend
func (b *TerminalBackend) Initialize(config Config) error {
	if b.initialized {
		return fmt.Errorf("terminal backend already initialized")
	}
	b.config = config
	b.initialized = true
	return nil
}

// CreateWindow creates a terminal "window" on stdout
func (b *TerminalBackend) CreateWindow(title string, width, height int) (Window, error) {
	if !b.initialized {
		return nil, fmt.Errorf("backend not initialized")
	}
	w := &TerminalWindow{
		title:   title,
		width:   width,
		height:  height,
		running: true,
		out:     os.Stdout,
		fd:      int(os.Stdout.Fd()),
		src:     image.NewRGBA(image.Rect(0, 0, FrameWidth, FrameHeight)),
	}
	return w, nil
}

// Cleanup releases all terminal resources
func (b *TerminalBackend) Cleanup() error {
	b.initialized = false
	return nil
}

// IsHeadless returns false (terminal has basic output)
func (b *TerminalBackend) IsHeadless() bool {
	return false
}

// GetName returns the backend name
func (b *TerminalBackend) GetName() string {
	return "Terminal"
}

// SetOutput redirects rendering to out with a fixed grid of cols x rows
// character cells. Terminal size detection is disabled.
func (w *TerminalWindow) SetOutput(out io.Writer, cols, rows int) {
	w.out = out
	w.fd = -1
	w.cols, w.rows = cols, rows
}

// SetTitle sets the terminal title
func (w *TerminalWindow) SetTitle(title string) {
	w.title = title
	fmt.Fprintf(w.out, "\x1b]0;%s\x07", title)
}

func (w *TerminalWindow) GetSize() (width, height int) {
	return w.width, w.height
}

func (w *TerminalWindow) ShouldClose() bool {
	return !w.running
}

// PollEvents returns nothing; the terminal backend is output only
func (w *TerminalWindow) PollEvents() []InputEvent {
	return nil
}

// gridSize returns the character grid to draw into, keeping the NES aspect
func (w *TerminalWindow) gridSize() (cols, rows int) {
	cols, rows = w.cols, w.rows
	if w.fd >= 0 && term.IsTerminal(w.fd) {
		if c, r, err := term.GetSize(w.fd); err == nil {
			cols, rows = c, r-1
		}
	}
	if cols <= 0 || rows <= 0 {
		cols, rows = defaultTermCols, defaultTermRows
	}

	// Each cell is one pixel wide and two tall
	if cols*FrameHeight > rows*2*FrameWidth {
		cols = rows * 2 * FrameWidth / FrameHeight
	} else {
		rows = cols * FrameHeight / FrameWidth / 2
	}
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	return cols, rows
}

// RenderFrame scales the frame to the terminal and writes it in one call
func (w *TerminalWindow) RenderFrame(frameBuffer [FrameWidth * FrameHeight]uint32) error {
	if w.src == nil {
		w.src = image.NewRGBA(image.Rect(0, 0, FrameWidth, FrameHeight))
	}
	frameToRGBA(&frameBuffer, w.src.Pix)

	cols, rows := w.gridSize()
	if w.dst == nil || w.dst.Bounds().Dx() != cols || w.dst.Bounds().Dy() != rows*2 {
		w.dst = image.NewRGBA(image.Rect(0, 0, cols, rows*2))
	}
	draw.ApproxBiLinear.Scale(w.dst, w.dst.Bounds(), w.src, w.src.Bounds(), draw.Src, nil)

	w.sb.Reset()
	if !w.cleared {
		w.sb.WriteString("\x1b[2J")
		w.cleared = true
	}
	w.sb.WriteString("\x1b[H")
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			top := w.dst.RGBAAt(x, y*2)
			bottom := w.dst.RGBAAt(x, y*2+1)
			w.sb.WriteString("\x1b[38;2;")
			writeRGB(&w.sb, top.R, top.G, top.B)
			w.sb.WriteString("m\x1b[48;2;")
			writeRGB(&w.sb, bottom.R, bottom.G, bottom.B)
			w.sb.WriteString("m▀")
		}
		w.sb.WriteString("\x1b[0m\n")
	}

	_, err := io.WriteString(w.out, w.sb.String())
	return err
}

func writeRGB(sb *strings.Builder, r, g, b uint8) {
	sb.WriteString(strconv.Itoa(int(r)))
	sb.WriteByte(';')
	sb.WriteString(strconv.Itoa(int(g)))
	sb.WriteByte(';')
	sb.WriteString(strconv.Itoa(int(b)))
}

// Cleanup resets terminal colors
func (w *TerminalWindow) Cleanup() error {
	w.running = false
	if w.cleared {
		_, err := io.WriteString(w.out, "\x1b[0m")
		return err
	}
	return nil
}
