package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type commandKind int

const (
	cmdTap commandKind = iota
	cmdScan
	cmdReset
	cmdDepth
	cmdVisualize
	cmdInstant
	cmdPlane
	cmdTrack
	cmdStats
	cmdQuit
)

// command is one line of driver input.
type command struct {
	kind commandKind
	x    float32
	y    float32
	z    float32
	size float32
	on   bool
}

var errEmptyCommand = errors.New("empty command")

const usage = `commands:
  tap X Y              tap at view pixel X,Y
  scan                 request object detection
  reset                remove every anchor
  depth on|off         depth-based occlusion
  visualize on|off     depth color visualization
  instant on|off       instant placement
  plane X Y Z SIZE     add a tracked horizontal plane
  track on|off         camera tracking
  stats                print composer counters
  quit                 exit`

// parseCommand parses one line of driver input. Names are case-insensitive.
func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{}, errEmptyCommand
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case "tap":
		v, err := floats(name, args, 2)
		if err != nil {
			return command{}, err
		}
		return command{kind: cmdTap, x: v[0], y: v[1]}, nil
	case "scan":
		return command{kind: cmdScan}, nil
	case "reset":
		return command{kind: cmdReset}, nil
	case "depth", "visualize", "instant", "track":
		on, err := toggle(name, args)
		if err != nil {
			return command{}, err
		}
		kinds := map[string]commandKind{
			"depth":     cmdDepth,
			"visualize": cmdVisualize,
			"instant":   cmdInstant,
			"track":     cmdTrack,
		}
		return command{kind: kinds[name], on: on}, nil
	case "plane":
		v, err := floats(name, args, 4)
		if err != nil {
			return command{}, err
		}
		if v[3] <= 0 {
			return command{}, fmt.Errorf("plane: size must be positive, got %v", v[3])
		}
		return command{kind: cmdPlane, x: v[0], y: v[1], z: v[2], size: v[3]}, nil
	case "stats":
		return command{kind: cmdStats}, nil
	case "quit", "exit":
		return command{kind: cmdQuit}, nil
	default:
		return command{}, fmt.Errorf("unknown command %q", fields[0])
	}
}

func floats(name string, args []string, n int) ([]float32, error) {
	if len(args) != n {
		return nil, fmt.Errorf("%s: expected %d arguments, got %d", name, n, len(args))
	}
	out := make([]float32, n)
	for i, a := range args {
		f, err := strconv.ParseFloat(a, 32)
		if err != nil {
			return nil, fmt.Errorf("%s: argument %d: %w", name, i+1, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}

func toggle(name string, args []string) (bool, error) {
	if len(args) != 1 {
		return false, fmt.Errorf("%s: expected on or off", name)
	}
	switch strings.ToLower(args[0]) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("%s: expected on or off, got %q", name, args[0])
	}
}
