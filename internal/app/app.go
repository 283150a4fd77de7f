// Package app implements the emulator front end: configuration, the main
// loop, input routing, presentation and audio output.
package app

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"math/bits"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cyclenes/internal/audio"
	"cyclenes/internal/bus"
	"cyclenes/internal/cartridge"
	"cyclenes/internal/debug"
	"cyclenes/internal/graphics"
	"cyclenes/internal/loader"
)

// StopHandler is called when the bus stops on a breakpoint, trap or illegal
// opcode. Returning nil resumes emulation; an error ends Run with it.
type StopHandler func(b *bus.Bus, err error) error

// Application represents the main NES emulator application
type Application struct {
	bus *bus.Bus

	graphicsBackend graphics.Backend
	window          graphics.Window
	videoProcessor  *graphics.VideoProcessor

	config   *Config
	emulator *Emulator

	player    *audio.Player
	recorder  *audio.Recorder
	traceFile *os.File
	traceBuf  *bufio.Writer
	dumper    *debug.FrameDumper

	onStop StopHandler

	running     bool
	paused      bool
	initialized bool
	headless    bool

	pads      [2][8]bool
	romPath   string
	startTime time.Time
}

// ApplicationError represents application-specific errors
type ApplicationError struct {
	Component string
	Operation string
	Err       error
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("Application %s error during %s: %v", e.Component, e.Operation, e.Err)
}

func (e *ApplicationError) Unwrap() error {
	return e.Err
}

// NewApplication creates a windowed application
func NewApplication(configPath string) (*Application, error) {
	return NewApplicationWithMode(configPath, false)
}

// NewApplicationWithMode creates an application. An unreadable config file
// is logged and the defaults are used.
func NewApplicationWithMode(configPath string, headless bool) (*Application, error) {
	config := NewConfig()
	if configPath != "" {
		if err := config.LoadFromFile(configPath); err != nil {
			log.Printf("[APP] Could not load config from %s, using defaults: %v", configPath, err)
			config = NewConfig()
		}
	}
	return NewApplicationWithConfig(config, headless)
}

// NewApplicationWithConfig creates an application from a ready config
func NewApplicationWithConfig(config *Config, headless bool) (*Application, error) {
	app := &Application{
		config:    config,
		headless:  headless,
		startTime: time.Now(),
		dumper:    debug.NewFrameDumper(config.Paths.Screenshots),
	}

	if err := app.initializeGraphicsBackend(headless); err != nil {
		return nil, &ApplicationError{
			Component: "graphics",
			Operation: "backend setup",
			Err:       err,
		}
	}

	app.initialized = true
	return app, nil
}

// initializeGraphicsBackend creates the backend and window the config asks
// for, falling back to headless when no display is available.
func (app *Application) initializeGraphicsBackend(headless bool) error {
	backendType := graphics.BackendType(app.config.Video.Backend)
	if headless {
		backendType = graphics.BackendHeadless
	}

	var err error
	app.graphicsBackend, err = graphics.CreateBackend(backendType)
	if err != nil {
		return err
	}

	keyMap, err := app.config.KeyMap()
	if err != nil {
		return err
	}
	width, height := app.config.Window.Width, app.config.Window.Height
	if app.config.Window.Scale > 0 {
		width, height = app.config.GetWindowResolution()
	}
	graphicsConfig := graphics.Config{
		WindowTitle:  "cyclenes",
		WindowWidth:  width,
		WindowHeight: height,
		Fullscreen:   app.config.Window.Fullscreen,
		VSync:        app.config.Video.VSync,
		Filter:       app.config.Video.Filter,
		Headless:     backendType == graphics.BackendHeadless,
		Debug:        app.config.Debug.EnableLogging,
		KeyMap:       keyMap,
	}

	if err := app.graphicsBackend.Initialize(graphicsConfig); err != nil {
		if backendType != graphics.BackendEbitengine && backendType != "" {
			return fmt.Errorf("failed to initialize graphics backend: %w", err)
		}
		log.Printf("[APP] %s backend failed (%v), falling back to headless mode", app.graphicsBackend.GetName(), err)
		app.graphicsBackend = graphics.NewHeadlessBackend()
		graphicsConfig.Headless = true
		app.headless = true
		if err := app.graphicsBackend.Initialize(graphicsConfig); err != nil {
			return fmt.Errorf("failed to initialize fallback headless backend: %w", err)
		}
	}

	app.window, err = app.graphicsBackend.CreateWindow(graphicsConfig.WindowTitle, width, height)
	if err != nil {
		return fmt.Errorf("failed to create window: %w", err)
	}

	app.videoProcessor = graphics.NewVideoProcessor(
		app.config.Video.Brightness,
		app.config.Video.Contrast,
		app.config.Video.Saturation,
	)
	return nil
}

// LoadROM loads an iNES file and starts the emulator on it
func (app *Application) LoadROM(romPath string) error {
	if !app.initialized {
		return errors.New("application not initialized")
	}

	cart, err := cartridge.LoadFromFile(romPath)
	if err != nil {
		return &ApplicationError{Component: "cartridge", Operation: "load ROM", Err: err}
	}

	b := bus.New(cart)
	if app.config.Emulation.TrapDetection {
		b.SetTrapDetection(true)
	}
	return app.attach(b, romPath)
}

// LoadImage loads a flat program image, as produced by the loader package
func (app *Application) LoadImage(img loader.Image, path string) error {
	if !app.initialized {
		return errors.New("application not initialized")
	}

	b, err := bus.NewFlat(img.Data, img.Load, img.Entry)
	if err != nil {
		return &ApplicationError{Component: "loader", Operation: "load image", Err: err}
	}
	return app.attach(b, path)
}

// attach makes b the running machine and wires tracing, breakpoints and
// audio to it according to the config.
func (app *Application) attach(b *bus.Bus, path string) error {
	app.closeMachine()

	app.bus = b
	app.romPath = path
	app.pads = [2][8]bool{}
	b.SetTolerateIllegal(app.config.Emulation.TolerateIllegal)

	if app.config.Debug.CPUTracing || app.config.Paths.TraceFile != "" {
		tracer := debug.NewTracer(app.config.Debug.TraceDepth)
		if app.config.Paths.TraceFile != "" {
			f, err := os.Create(app.config.Paths.TraceFile)
			if err != nil {
				return &ApplicationError{Component: "tracer", Operation: "open trace file", Err: err}
			}
			app.traceFile = f
			app.traceBuf = bufio.NewWriter(f)
			tracer.SetOutput(app.traceBuf)
		}
		b.SetTracer(tracer)
	}

	for _, s := range app.config.Debug.Breakpoints {
		addr, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "$"), 16, 16)
		if err != nil {
			return &ConfigError{Field: "debug.breakpoints", Value: s, Err: err}
		}
		b.AddBreakpoint(uint16(addr))
	}

	if err := app.setupAudio(); err != nil {
		return err
	}

	app.emulator = NewEmulator(b, app.config)
	app.emulator.Start()

	if app.window != nil {
		app.window.SetTitle(fmt.Sprintf("cyclenes - %s", filepath.Base(path)))
	}
	return nil
}

// setupAudio routes APU samples to the output device and the WAV recorder
func (app *Application) setupAudio() error {
	var sinks []audio.Sink

	if app.config.Audio.Enabled && !app.headless {
		player, err := audio.NewPlayer(app.config.Audio.SampleRate, app.config.Audio.BufferSize, app.config.Audio.Volume)
		if err != nil {
			log.Printf("[AUDIO] Playback disabled: %v", err)
		} else {
			app.player = player
			sinks = append(sinks, player)
		}
	}

	if app.config.Paths.Recording != "" {
		rec, err := audio.NewRecorder(app.config.Paths.Recording, app.config.Audio.SampleRate)
		if err != nil {
			return &ApplicationError{Component: "audio", Operation: "open recording", Err: err}
		}
		app.recorder = rec
		sinks = append(sinks, rec)
	}

	if len(sinks) == 0 {
		app.bus.SetAudioSink(nil)
		return nil
	}
	app.bus.APU.SetSampleRate(app.config.Audio.SampleRate)
	app.bus.SetAudioSink(audio.Tee(sinks...))
	if app.player != nil {
		app.player.Start()
	}
	return nil
}

// SetStopHandler installs the function consulted when the bus stops
func (app *Application) SetStopHandler(h StopHandler) {
	app.onStop = h
}

// Run starts the main application loop and returns when the window closes,
// the user quits or a stop is not handled.
func (app *Application) Run() error {
	if !app.initialized {
		return errors.New("application not initialized")
	}
	if app.bus == nil {
		return errors.New("no program loaded")
	}

	app.running = true
	app.startTime = time.Now()
	if app.config.Debug.EnableLogging {
		log.Printf("[APP] Starting emulator with %s backend", app.graphicsBackend.GetName())
	}

	if runner, ok := app.window.(graphics.Runner); ok {
		var runErr error
		runner.SetUpdateFunc(func() error {
			if err := app.frame(); err != nil {
				runErr = err
				return err
			}
			if !app.running {
				return errQuit
			}
			return nil
		})
		if err := runner.Run(); err != nil {
			return err
		}
		return runErr
	}

	for app.running {
		if err := app.frame(); err != nil {
			return err
		}
		if app.window.ShouldClose() {
			app.Stop()
		}
		app.emulator.Pace()
	}
	return nil
}

var errQuit = errors.New("quit")

// RunFrames runs exactly n frames as fast as possible, presenting each one.
// Used for headless runs.
func (app *Application) RunFrames(n int) error {
	if app.bus == nil {
		return errors.New("no program loaded")
	}
	app.running = true
	for i := 0; i < n && app.running; i++ {
		if err := app.frame(); err != nil {
			return err
		}
	}
	return nil
}

// frame processes input, emulates one frame and presents it
func (app *Application) frame() error {
	app.processInput()

	if !app.paused {
		if err := app.updateEmulator(); err != nil {
			return err
		}
	}
	return app.render()
}

// updateEmulator runs one frame, passing stops to the stop handler
func (app *Application) updateEmulator() error {
	err := app.emulator.Update()
	if err == nil {
		return nil
	}
	if app.onStop == nil {
		return &ApplicationError{Component: "emulator", Operation: "run frame", Err: err}
	}
	if herr := app.onStop(app.bus, err); herr != nil {
		app.Stop()
		return herr
	}
	return nil
}

// processInput applies window events to the controllers
func (app *Application) processInput() {
	if app.window == nil {
		return
	}

	changed := [2]bool{}
	for _, event := range app.window.PollEvents() {
		switch event.Type {
		case graphics.InputEventTypeQuit:
			app.Stop()
		case graphics.InputEventTypeButton:
			port, pad, ok := event.Button.Controller()
			if !ok {
				continue
			}
			app.pads[port-1][bits.TrailingZeros8(uint8(pad))] = event.Pressed
			changed[port-1] = true
		case graphics.InputEventTypeKey:
			if event.Pressed {
				app.handleKeyInput(event.Key)
			}
		}
	}

	for i, c := range changed {
		if c {
			app.bus.SetControllerButtons(i+1, app.pads[i])
		}
	}
}

// handleKeyInput handles the emulator hotkeys
func (app *Application) handleKeyInput(key graphics.Key) {
	switch key {
	case graphics.KeyF1:
		app.TogglePause()
		log.Printf("[APP] Paused: %t", app.paused)
	case graphics.KeyF2:
		app.Reset()
		log.Printf("[APP] Reset")
	case graphics.KeyF12:
		if path, err := app.Screenshot(); err != nil {
			log.Printf("[APP] Screenshot failed: %v", err)
		} else {
			log.Printf("[APP] Screenshot saved to %s", path)
		}
	}
}

// render presents the last completed frame
func (app *Application) render() error {
	if app.window == nil {
		return nil
	}
	frame := app.bus.Frame()
	app.videoProcessor.Process(&frame)
	if err := app.window.RenderFrame(frame); err != nil {
		return &ApplicationError{Component: "graphics", Operation: "render frame", Err: err}
	}
	return nil
}

// Screenshot writes the current frame as a PNG into the screenshot directory
func (app *Application) Screenshot() (string, error) {
	if app.bus == nil {
		return "", errors.New("no program loaded")
	}
	return app.dumper.Dump(app.bus.Frame(), app.bus.Frames())
}

// DumpFrames writes every Nth presented frame as a PNG into dir. Only the
// headless backend supports it.
func (app *Application) DumpFrames(dir string, every uint64) error {
	hw, ok := app.window.(*graphics.HeadlessWindow)
	if !ok {
		return fmt.Errorf("frame dumping needs the headless backend, have %T", app.window)
	}
	dumper := debug.NewFrameDumper(dir)
	dumper.SetDumpInterval(every)
	hw.SetFrameHook(func(frame *[graphics.FrameWidth * graphics.FrameHeight]uint32, n int) error {
		_, err := dumper.Dump(*frame, uint64(n))
		return err
	})
	return nil
}

// DumpLastFrame writes the last presented frame as a PNG into dir
func (app *Application) DumpLastFrame(dir string) (string, error) {
	hw, ok := app.window.(*graphics.HeadlessWindow)
	if !ok {
		return "", fmt.Errorf("frame dumping needs the headless backend, have %T", app.window)
	}
	if hw.GetFrameCount() == 0 {
		return "", errors.New("no frame presented yet")
	}
	return debug.NewFrameDumper(dir).Dump(hw.LastFrame(), uint64(hw.GetFrameCount()))
}

// Stop stops the application
func (app *Application) Stop() {
	app.running = false
}

// Pause pauses the emulator
func (app *Application) Pause() {
	app.paused = true
}

// Resume resumes the emulator
func (app *Application) Resume() {
	app.paused = false
}

// TogglePause toggles pause state
func (app *Application) TogglePause() {
	app.paused = !app.paused
}

// Reset resets the emulator
func (app *Application) Reset() {
	if app.emulator != nil {
		app.emulator.Reset()
	}
}

// IsRunning returns whether the application is running
func (app *Application) IsRunning() bool {
	return app.running
}

// IsPaused returns whether the emulator is paused
func (app *Application) IsPaused() bool {
	return app.paused
}

// GetFrameCount returns the number of frames emulated
func (app *Application) GetFrameCount() uint64 {
	if app.emulator == nil {
		return 0
	}
	return app.emulator.GetFrameCount()
}

// GetUptime returns the application uptime
func (app *Application) GetUptime() time.Duration {
	return time.Since(app.startTime)
}

// GetEmulationSpeed returns the emulation speed relative to real time
func (app *Application) GetEmulationSpeed() float64 {
	if app.emulator == nil {
		return 0
	}
	return app.emulator.GetEmulationSpeed()
}

// GetROMPath returns the currently loaded program path
func (app *Application) GetROMPath() string {
	return app.romPath
}

// GetConfig returns the application configuration
func (app *Application) GetConfig() *Config {
	return app.config
}

// GetBus returns the running machine, or nil before a load
func (app *Application) GetBus() *bus.Bus {
	return app.bus
}

// GetWindow returns the presentation window
func (app *Application) GetWindow() graphics.Window {
	return app.window
}

// closeMachine flushes and closes everything attached to the current bus
func (app *Application) closeMachine() error {
	var lastErr error
	if app.player != nil {
		if err := app.player.Close(); err != nil {
			lastErr = err
			log.Printf("[APP] Audio cleanup error: %v", err)
		}
		app.player = nil
	}
	if app.recorder != nil {
		if err := app.recorder.Close(); err != nil {
			lastErr = err
			log.Printf("[APP] Recording cleanup error: %v", err)
		}
		app.recorder = nil
	}
	if app.traceFile != nil {
		if err := app.traceBuf.Flush(); err != nil {
			lastErr = err
		}
		if err := app.traceFile.Close(); err != nil {
			lastErr = err
		}
		app.traceFile, app.traceBuf = nil, nil
	}
	if app.bus != nil {
		if tr := app.bus.Tracer(); tr != nil && tr.Err() != nil {
			log.Printf("[APP] Trace output failed: %v", tr.Err())
		}
	}
	return lastErr
}

// Cleanup releases all resources and shuts down the application
func (app *Application) Cleanup() error {
	lastErr := app.closeMachine()

	if app.window != nil {
		if err := app.window.Cleanup(); err != nil {
			lastErr = err
			log.Printf("[APP] Window cleanup error: %v", err)
		}
	}
	if app.graphicsBackend != nil {
		if err := app.graphicsBackend.Cleanup(); err != nil {
			lastErr = err
			log.Printf("[APP] Graphics backend cleanup error: %v", err)
		}
	}

	app.initialized = false
	return lastErr
}
