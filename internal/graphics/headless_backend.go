package graphics

import "fmt"

// HeadlessBackend implements the Backend interface for headless operation
type HeadlessBackend struct {
	initialized bool
	config      Config
}

// HeadlessWindow keeps the most recent frame in memory and shows nothing
type HeadlessWindow struct {
	title      string
	width      int
	height     int
	running    bool
	frameCount int
	lastFrame  [FrameWidth * FrameHeight]uint32
	onFrame    func(frame *[FrameWidth * FrameHeight]uint32, n int) error
}

// NewHeadlessBackend creates a new headless graphics backend
func NewHeadlessBackend() Backend {
	return &HeadlessBackend{}
}

// Initialize initializes the headless backend
func (b *HeadlessBackend) Initialize(config Config) error {
	if b.initialized {
		return fmt.Errorf("headless backend already initialized")
	}
	b.config = config
	b.initialized = true
	return nil
}

// CreateWindow creates a headless "window" (no actual window)
func (b *HeadlessBackend) CreateWindow(title string, width, height int) (Window, error) {
	if !b.initialized {
		return nil, fmt.Errorf("backend not initialized")
	}
	return &HeadlessWindow{
		title:   title,
		width:   width,
		height:  height,
		running: true,
	}, nil
}

// Cleanup releases all headless resources
func (b *HeadlessBackend) Cleanup() error {
	b.initialized = false
	return nil
}

// IsHeadless returns true (this is a headless backend)
func (b *HeadlessBackend) IsHeadless() bool {
	return true
}

// GetName returns the backend name
func (b *HeadlessBackend) GetName() string {
	return "Headless"
}

func (w *HeadlessWindow) SetTitle(title string) {
	w.title = title
}

func (w *HeadlessWindow) GetSize() (width, height int) {
	return w.width, w.height
}

func (w *HeadlessWindow) ShouldClose() bool {
	return !w.running
}

// PollEvents returns nothing; there is no input in headless mode
func (w *HeadlessWindow) PollEvents() []InputEvent {
	return nil
}

// RenderFrame stores the frame and passes it to the frame hook, if any
func (w *HeadlessWindow) RenderFrame(frameBuffer [FrameWidth * FrameHeight]uint32) error {
	w.frameCount++
	w.lastFrame = frameBuffer
	if w.onFrame != nil {
		return w.onFrame(&w.lastFrame, w.frameCount)
	}
	return nil
}

func (w *HeadlessWindow) Cleanup() error {
	w.running = false
	return nil
}

// SetFrameHook installs a function called with every rendered frame and
// its 1-based number. An error from the hook is returned by RenderFrame.
func (w *HeadlessWindow) SetFrameHook(hook func(frame *[FrameWidth * FrameHeight]uint32, n int) error) {
	w.onFrame = hook
}

// GetFrameCount returns the number of frames rendered
func (w *HeadlessWindow) GetFrameCount() int {
	return w.frameCount
}

// LastFrame returns a copy of the most recent frame
func (w *HeadlessWindow) LastFrame() [FrameWidth * FrameHeight]uint32 {
	return w.lastFrame
}
