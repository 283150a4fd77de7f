//go:build !headless

package graphics

import (
	"errors"
	"fmt"
	"image/color"
	"log"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// EbitengineBackend implements the Backend interface using Ebitengine
type EbitengineBackend struct {
	initialized bool
	config      Config
}

// EbitengineWindow implements Window and Runner. Ebitengine owns the main
// loop, so the emulator runs inside the update function.
type EbitengineWindow struct {
	title   string
	width   int
	height  int
	running bool
	events  []InputEvent

	keyMap map[Key]Button
	filter ebiten.Filter
	update func() error

	frameImage *ebiten.Image
	pixels     []byte
	dirty      bool
}

var ebitenKeys = map[ebiten.Key]Key{
	ebiten.KeyEscape:     KeyEscape,
	ebiten.KeyEnter:      KeyEnter,
	ebiten.KeySpace:      KeySpace,
	ebiten.KeyTab:        KeyTab,
	ebiten.KeyShiftLeft:  KeyShift,
	ebiten.KeyArrowUp:    KeyUp,
	ebiten.KeyArrowDown:  KeyDown,
	ebiten.KeyArrowLeft:  KeyLeft,
	ebiten.KeyArrowRight: KeyRight,
	ebiten.KeyW:          KeyW,
	ebiten.KeyA:          KeyA,
	ebiten.KeyS:          KeyS,
	ebiten.KeyD:          KeyD,
	ebiten.KeyJ:          KeyJ,
	ebiten.KeyK:          KeyK,
	ebiten.KeyX:          KeyX,
	ebiten.KeyZ:          KeyZ,
	ebiten.Key1:          Key1,
	ebiten.Key2:          Key2,
	ebiten.Key3:          Key3,
	ebiten.Key4:          Key4,
	ebiten.Key5:          Key5,
	ebiten.Key6:          Key6,
	ebiten.Key7:          Key7,
	ebiten.Key8:          Key8,
	ebiten.KeyF1:         KeyF1,
	ebiten.KeyF2:         KeyF2,
	ebiten.KeyF12:        KeyF12,
}

// NewEbitengineBackend creates a new Ebitengine graphics backend
func NewEbitengineBackend() Backend {
	return &EbitengineBackend{}
}

// Initialize initializes the Ebitengine backend
func (b *EbitengineBackend) Initialize(config Config) error {
	if b.initialized {
		return fmt.Errorf("Ebitengine backend already initialized")
	}
	b.config = config
	b.initialized = true
	return nil
}

// CreateWindow configures the Ebitengine window. Nothing is shown until Run.
func (b *EbitengineBackend) CreateWindow(title string, width, height int) (Window, error) {
	if !b.initialized {
		return nil, fmt.Errorf("backend not initialized")
	}
	if b.config.Headless {
		return nil, fmt.Errorf("cannot create window in headless mode")
	}

	keyMap := b.config.KeyMap
	if keyMap == nil {
		keyMap = DefaultKeyMap()
	}
	filter := ebiten.FilterNearest
	if b.config.Filter == "linear" {
		filter = ebiten.FilterLinear
	}

	ebiten.SetWindowTitle(title)
	ebiten.SetWindowSize(width, height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetVsyncEnabled(b.config.VSync)
	ebiten.SetFullscreen(b.config.Fullscreen)

	return &EbitengineWindow{
		title:   title,
		width:   width,
		height:  height,
		running: true,
		keyMap:  keyMap,
		filter:  filter,
		pixels:  make([]byte, FrameWidth*FrameHeight*4),
	}, nil
}

// Cleanup releases all Ebitengine resources
func (b *EbitengineBackend) Cleanup() error {
	b.initialized = false
	return nil
}

// IsHeadless returns true if running in headless mode
func (b *EbitengineBackend) IsHeadless() bool {
	return b.config.Headless
}

// GetName returns the backend name
func (b *EbitengineBackend) GetName() string {
	return "Ebitengine"
}

// SetTitle sets the window title
func (w *EbitengineWindow) SetTitle(title string) {
	w.title = title
	ebiten.SetWindowTitle(title)
}

// GetSize returns window dimensions
func (w *EbitengineWindow) GetSize() (width, height int) {
	return w.width, w.height
}

// ShouldClose returns true if window should close
func (w *EbitengineWindow) ShouldClose() bool {
	return !w.running
}

// PollEvents returns and clears the queued events
func (w *EbitengineWindow) PollEvents() []InputEvent {
	events := w.events
	w.events = nil
	return events
}

// RenderFrame converts the frame to RGBA; Draw uploads it on the next tick
func (w *EbitengineWindow) RenderFrame(frameBuffer [FrameWidth * FrameHeight]uint32) error {
	frameToRGBA(&frameBuffer, w.pixels)
	w.dirty = true
	return nil
}

// Cleanup releases window resources
func (w *EbitengineWindow) Cleanup() error {
	w.running = false
	return nil
}

// SetUpdateFunc sets the function run once per tick
func (w *EbitengineWindow) SetUpdateFunc(update func() error) {
	w.update = update
}

// Run starts the Ebitengine game loop and blocks until the window closes
func (w *EbitengineWindow) Run() error {
	err := ebiten.RunGame(w)
	if errors.Is(err, ebiten.Termination) {
		return nil
	}
	return err
}

// Update implements ebiten.Game
func (w *EbitengineWindow) Update() error {
	if !w.running || ebiten.IsWindowBeingClosed() {
		return ebiten.Termination
	}

	var raw []InputEvent
	for ek, key := range ebitenKeys {
		switch {
		case inpututil.IsKeyJustPressed(ek):
			raw = append(raw, InputEvent{Type: InputEventTypeKey, Key: key, Pressed: true})
		case inpututil.IsKeyJustReleased(ek):
			raw = append(raw, InputEvent{Type: InputEventTypeKey, Key: key, Pressed: false})
		}
	}
	w.events = append(w.events, translateKeys(raw, w.keyMap)...)

	if w.update != nil {
		if err := w.update(); err != nil {
			log.Printf("[Ebitengine] Emulator stopped: %v", err)
			return ebiten.Termination
		}
	}
	return nil
}

// Draw implements ebiten.Game
func (w *EbitengineWindow) Draw(screen *ebiten.Image) {
	if w.frameImage == nil {
		w.frameImage = ebiten.NewImage(FrameWidth, FrameHeight)
	}
	if w.dirty {
		w.frameImage.WritePixels(w.pixels)
		w.dirty = false
	}

	screen.Fill(color.Black)

	sw, sh := screen.Bounds().Dx(), screen.Bounds().Dy()
	scale := float64(sw) / FrameWidth
	if s := float64(sh) / FrameHeight; s < scale {
		scale = s
	}
	op := &ebiten.DrawImageOptions{Filter: w.filter}
	op.GeoM.Scale(scale, scale)
	op.GeoM.Translate((float64(sw)-FrameWidth*scale)/2, (float64(sh)-FrameHeight*scale)/2)
	screen.DrawImage(w.frameImage, op)
}

// Layout implements ebiten.Game
func (w *EbitengineWindow) Layout(outsideWidth, outsideHeight int) (int, int) {
	w.width, w.height = outsideWidth, outsideHeight
	return outsideWidth, outsideHeight
}
