// Package graphics provides an abstraction layer for different rendering backends
package graphics

import (
	"fmt"
	"strings"

	"cyclenes/internal/input"
)

// NES picture size
const (
	FrameWidth  = 256
	FrameHeight = 240
)

// Backend represents a graphics rendering backend
type Backend interface {
	// Initialize initializes the graphics backend
	Initialize(config Config) error

	// CreateWindow creates a window for rendering
	CreateWindow(title string, width, height int) (Window, error)

	// Cleanup releases all resources
	Cleanup() error

	// IsHeadless returns true if the backend shows nothing
	IsHeadless() bool

	// GetName returns the backend name for identification
	GetName() string
}

// Window represents a rendering window
type Window interface {
	SetTitle(title string)
	GetSize() (width, height int)
	ShouldClose() bool

	// PollEvents returns the input events gathered since the last call
	PollEvents() []InputEvent

	// RenderFrame presents a NES frame buffer
	RenderFrame(frameBuffer [FrameWidth * FrameHeight]uint32) error

	Cleanup() error
}

// Runner is implemented by windows that own the main loop. The update
// function is called once per display tick.
type Runner interface {
	SetUpdateFunc(update func() error)
	Run() error
}

// Config contains configuration for graphics backends
type Config struct {
	WindowTitle  string
	WindowWidth  int
	WindowHeight int
	Fullscreen   bool
	VSync        bool

	// "nearest" or "linear"
	Filter string

	Headless bool
	Debug    bool

	// KeyMap binds keyboard keys to controller buttons; nil uses DefaultKeyMap
	KeyMap map[Key]Button
}

// InputEvent represents an input event from the window
type InputEvent struct {
	Type    InputEventType
	Key     Key
	Button  Button
	Pressed bool
}

// InputEventType represents the type of input event
type InputEventType int

const (
	InputEventTypeKey InputEventType = iota
	InputEventTypeButton
	InputEventTypeQuit
)

// Key represents keyboard keys
type Key int

const (
	KeyUnknown Key = iota
	KeyEscape
	KeyEnter
	KeySpace
	KeyTab
	KeyShift
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyW
	KeyA
	KeyS
	KeyD
	KeyJ
	KeyK
	KeyX
	KeyZ
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	KeyF1
	KeyF2
	KeyF12
)

var keyNames = map[Key]string{
	KeyEscape: "Escape", KeyEnter: "Enter", KeySpace: "Space", KeyTab: "Tab", KeyShift: "Shift",
	KeyUp: "Up", KeyDown: "Down", KeyLeft: "Left", KeyRight: "Right",
	KeyW: "W", KeyA: "A", KeyS: "S", KeyD: "D", KeyJ: "J", KeyK: "K", KeyX: "X", KeyZ: "Z",
	Key1: "1", Key2: "2", Key3: "3", Key4: "4", Key5: "5", Key6: "6", Key7: "7", Key8: "8",
	KeyF1: "F1", KeyF2: "F2", KeyF12: "F12",
}

func (k Key) String() string {
	if name, ok := keyNames[k]; ok {
		return name
	}
	return "Unknown"
}

// ParseKey looks a key up by its String name, ignoring case
func ParseKey(name string) (Key, error) {
	for k, n := range keyNames {
		if strings.EqualFold(n, name) {
			return k, nil
		}
	}
	return KeyUnknown, fmt.Errorf("unknown key %q", name)
}

// Button represents controller buttons of both players
type Button int

const (
	ButtonUnknown Button = iota
	ButtonA
	ButtonB
	ButtonSelect
	ButtonStart
	ButtonUp
	ButtonDown
	ButtonLeft
	ButtonRight
	Button2A
	Button2B
	Button2Select
	Button2Start
	Button2Up
	Button2Down
	Button2Left
	Button2Right
)

// Controller returns the controller port (1 or 2) and the joypad button a
// window button drives.
func (b Button) Controller() (port int, button input.Button, ok bool) {
	if b < ButtonA || b > Button2Right {
		return 0, 0, false
	}
	i := int(b - ButtonA)
	return i/8 + 1, input.Button(1 << (i % 8)), true
}

// ButtonFor is the inverse of Controller
func ButtonFor(port int, button input.Button) Button {
	for i := 0; i < 8; i++ {
		if button == input.Button(1<<i) {
			return ButtonA + Button((port-1)*8+i)
		}
	}
	return ButtonUnknown
}

// DefaultKeyMap returns the standard bindings: arrows or WASD, J/K for A/B,
// Enter for Start and Space for Select. Player 2 uses the number row.
func DefaultKeyMap() map[Key]Button {
	return map[Key]Button{
		KeyUp:    ButtonUp,
		KeyDown:  ButtonDown,
		KeyLeft:  ButtonLeft,
		KeyRight: ButtonRight,
		KeyW:     ButtonUp,
		KeyS:     ButtonDown,
		KeyA:     ButtonLeft,
		KeyD:     ButtonRight,
		KeyJ:     ButtonA,
		KeyK:     ButtonB,
		KeyEnter: ButtonStart,
		KeySpace: ButtonSelect,
		Key1:     Button2Up,
		Key2:     Button2Down,
		Key3:     Button2Left,
		Key4:     Button2Right,
		Key5:     Button2A,
		Key6:     Button2B,
		Key7:     Button2Start,
		Key8:     Button2Select,
	}
}

// translateKeys turns raw key events into button events using keyMap.
// Escape becomes a quit event; unbound keys pass through unchanged.
func translateKeys(raw []InputEvent, keyMap map[Key]Button) []InputEvent {
	var out []InputEvent
	for _, event := range raw {
		if event.Type != InputEventTypeKey {
			out = append(out, event)
			continue
		}
		if event.Key == KeyEscape && event.Pressed {
			out = append(out, InputEvent{Type: InputEventTypeQuit, Pressed: true})
			continue
		}
		if button, ok := keyMap[event.Key]; ok {
			out = append(out, InputEvent{Type: InputEventTypeButton, Button: button, Pressed: event.Pressed})
			continue
		}
		out = append(out, event)
	}
	return out
}

// frameToRGBA writes a 0xRRGGBB frame into an RGBA byte slice of at least
// FrameWidth*FrameHeight*4 bytes.
func frameToRGBA(frame *[FrameWidth * FrameHeight]uint32, pix []byte) {
	for i, rgb := range frame {
		p := pix[i*4 : i*4+4 : i*4+4]
		p[0] = uint8(rgb >> 16)
		p[1] = uint8(rgb >> 8)
		p[2] = uint8(rgb)
		p[3] = 0xFF
	}
}

// BackendType represents different graphics backend types
type BackendType string

const (
	BackendEbitengine BackendType = "ebitengine"
	BackendHeadless   BackendType = "headless"
	BackendTerminal   BackendType = "terminal"
)

// CreateBackend creates a graphics backend of the specified type
func CreateBackend(backendType BackendType) (Backend, error) {
	switch backendType {
	case BackendEbitengine, "":
		return NewEbitengineBackend(), nil
	case BackendHeadless:
		return NewHeadlessBackend(), nil
	case BackendTerminal:
		return NewTerminalBackend(), nil
	}
	return nil, fmt.Errorf("unknown graphics backend %q", backendType)
}
