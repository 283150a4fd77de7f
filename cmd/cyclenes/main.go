// Package main implements the cyclenes NES emulator executable.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"cyclenes/internal/app"
	"cyclenes/internal/bus"
	"cyclenes/internal/debugger"
	"cyclenes/internal/loader"
	"cyclenes/internal/version"
)

func main() {
	var (
		romFile    = flag.String("rom", "", "Program image: .nes, .hex/.txt (ASCII hex) or .bin")
		entry      = flag.String("entry", "", "Entry point in hex for flat images (default $0600 ASCII, $0400 binary)")
		configFile = flag.String("config", "", "Path to configuration file")
		backend    = flag.String("backend", "", "Graphics backend: ebitengine, terminal or headless")
		headless   = flag.Bool("headless", false, "Run without a window for -frames frames")
		frames     = flag.Int("frames", 120, "Frames to run in headless mode")
		traceFile  = flag.String("trace", "", "Write a nestest-format trace to this file")
		debugShell = flag.Bool("debug", false, "Open the debugger shell when execution stops")
		breaks     = flag.String("break", "", "Comma-separated hex breakpoint addresses")
		dumpDir    = flag.String("dump", "", "Headless: write the last frame as PNG into this directory")
		dumpEvery  = flag.Uint64("dump-every", 0, "Headless: also write every Nth frame into the -dump directory")
		wavFile    = flag.String("wav", "", "Record audio to this WAV file")
		tolerate   = flag.Bool("tolerate-illegal", false, "Skip illegal opcodes instead of stopping")
		showVer    = flag.Bool("version", false, "Show version information")
	)
	flag.Usage = printUsage
	flag.Parse()

	if *showVer {
		fmt.Println(version.GetDetailedVersion())
		return
	}
	if *romFile == "" {
		printUsage()
		os.Exit(2)
	}

	setupGracefulShutdown()

	configPath := *configFile
	if configPath == "" {
		configPath = app.GetDefaultConfigPath()
	}
	config := app.NewConfig()
	if err := config.LoadFromFile(configPath); err != nil {
		log.Printf("[APP] Could not load config from %s, using defaults: %v", configPath, err)
		config = app.NewConfig()
	}

	// Flags override the config file
	if *backend != "" {
		config.Video.Backend = *backend
	}
	if *traceFile != "" {
		config.Paths.TraceFile = *traceFile
	}
	if *wavFile != "" {
		config.Paths.Recording = *wavFile
	}
	if *breaks != "" {
		config.Debug.Breakpoints = append(config.Debug.Breakpoints, strings.Split(*breaks, ",")...)
	}
	if *debugShell {
		config.Debug.ShellOnStop = true
		config.Debug.EnableLogging = true
	}
	if *tolerate {
		config.Emulation.TolerateIllegal = true
	}

	application, err := app.NewApplicationWithConfig(config, *headless)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	defer func() {
		if err := application.Cleanup(); err != nil {
			log.Printf("Application cleanup error: %v", err)
		}
	}()

	if err := loadProgram(application, *romFile, *entry); err != nil {
		log.Printf("Failed to load %s: %v", *romFile, err)
		application.Cleanup()
		os.Exit(1)
	}

	if config.Debug.ShellOnStop {
		shell := debugger.NewStdin(application.GetBus())
		defer shell.Close()
		application.SetStopHandler(shell.HandleStop)
	}

	if *headless {
		err = runHeadlessMode(application, *frames, *dumpDir, *dumpEvery)
	} else {
		err = application.Run()
	}
	var trap *bus.TrapError
	if errors.As(err, &trap) {
		// Self-checking programs finish in a JMP-to-self loop
		fmt.Println(trap.Error())
		printState(application)
		return
	}
	if err != nil && !errors.Is(err, debugger.ErrQuit) {
		log.Printf("Emulation stopped: %v", err)
		printState(application)
		application.Cleanup()
		os.Exit(1)
	}
}

// loadProgram loads an iNES cartridge or a flat image, by file extension
func loadProgram(application *app.Application, path, entry string) error {
	format, err := loader.Detect(path)
	if err != nil {
		return err
	}
	if format == loader.FormatINES {
		return application.LoadROM(path)
	}

	img, err := loader.LoadFile(path, format)
	if err != nil {
		return err
	}
	if entry != "" {
		v, err := debugger.ParseHex(entry, 16)
		if err != nil {
			return fmt.Errorf("invalid -entry %q: %w", entry, err)
		}
		img.Entry = uint16(v)
	}
	return application.LoadImage(img, path)
}

// runHeadlessMode runs a fixed number of frames, then optionally dumps the
// last one and prints the final machine state
func runHeadlessMode(application *app.Application, frames int, dumpDir string, dumpEvery uint64) error {
	if dumpDir != "" && dumpEvery > 0 {
		if err := application.DumpFrames(dumpDir, dumpEvery); err != nil {
			return err
		}
	}
	if err := application.RunFrames(frames); err != nil {
		return err
	}

	if dumpDir != "" {
		path, err := application.DumpLastFrame(dumpDir)
		if err != nil {
			return fmt.Errorf("frame dump failed: %w", err)
		}
		fmt.Printf("Frame written to %s\n", path)
	}
	printState(application)
	return nil
}

func printState(application *app.Application) {
	b := application.GetBus()
	if b == nil {
		return
	}
	s := b.Snapshot()
	fmt.Printf("%s: %d frames, %d cycles\n", filepath.Base(application.GetROMPath()), s.Frames, s.Cycles)
	fmt.Printf("PC:%04X A:%02X X:%02X Y:%02X P:%02X SP:%02X PPU:%3d,%3d\n",
		s.CPU.PC, s.CPU.A, s.CPU.X, s.CPU.Y, s.CPU.P, s.CPU.SP, s.PPU.Scanline, s.PPU.Cycle)
}

// setupGracefulShutdown sets up signal handling for graceful shutdown
func setupGracefulShutdown() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		fmt.Println("\nInterrupt received, shutting down")
		os.Exit(0)
	}()
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "cyclenes - cycle-accurate NES emulator")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "USAGE:")
	fmt.Fprintln(os.Stderr, "  cyclenes -rom game.nes [options]")
	fmt.Fprintln(os.Stderr, "  cyclenes -rom prog.hex -headless -frames 60 -trace trace.log")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "OPTIONS:")
	flag.PrintDefaults()
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "KEYS:")
	fmt.Fprintln(os.Stderr, "  Arrows D-Pad, J A, K B, Enter Start, Space Select")
	fmt.Fprintln(os.Stderr, "  F1 pause, F2 reset, F12 screenshot, Escape quit")
}
