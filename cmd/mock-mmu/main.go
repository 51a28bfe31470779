// mock-mmu simulates a Chamois multi-material unit for testing the host
// without hardware. It speaks the framed TCP protocol: PING, HALT,
// GET_STATUS, HOME, DISABLE, LOAD, UNLOAD, SELECT_TOOL and RELEASE.
//
// Load and unload are modeled as multi-step operations: the status
// report flips only after the configured number of step commands, which
// exercises the host's bounded retry loops.
//
// Usage:
//
//	mock-mmu -addr :5433 [-load-steps 3] [-unload-steps 3] [-jam]
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
)

const (
	cmdPing       = 0x01
	cmdHalt       = 0x02
	cmdGetStatus  = 0xA0
	cmdHome       = 0xA6
	cmdDisable    = 0xA8
	cmdLoad       = 0xA9
	cmdUnload     = 0xAA
	cmdSelectTool = 0xAB
	cmdRelease    = 0xAE

	frameStart = 0xAA
	resultOK   = 0x00
	resultErr  = 0x01
)

// Device holds the simulated MMU state.
type Device struct {
	mu sync.Mutex

	initialized bool
	loaded      bool
	selected    int
	extruded    uint64
	toolChanges uint64

	loadSteps   int
	unloadSteps int
	jam         bool

	loadRemaining   int
	unloadRemaining int
}

func (d *Device) handle(cmd byte, payload []byte) (byte, []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch cmd {
	case cmdPing:
		return resultOK, nil

	case cmdHalt:
		d.initialized = false
		d.loaded = false
		d.selected = 0
		return resultOK, nil

	case cmdHome:
		d.initialized = true
		d.loaded = false
		return resultOK, nil

	case cmdDisable:
		d.initialized = false
		return resultOK, nil

	case cmdSelectTool:
		if len(payload) < 2 {
			return resultErr, []byte("missing tool index")
		}
		d.selected = int(binary.LittleEndian.Uint16(payload))
		d.loadRemaining = d.loadSteps
		return resultOK, nil

	case cmdLoad:
		if d.jam {
			return resultOK, nil // steps never make progress
		}
		if !d.loaded {
			if d.loadRemaining > 0 {
				d.loadRemaining--
			}
			if d.loadRemaining == 0 {
				d.loaded = true
				d.extruded += 100
				d.toolChanges++
			}
		}
		return resultOK, nil

	case cmdUnload:
		if d.jam {
			return resultOK, nil
		}
		if d.loaded {
			if d.unloadRemaining == 0 {
				d.unloadRemaining = d.unloadSteps
			}
			d.unloadRemaining--
			if d.unloadRemaining == 0 {
				d.loaded = false
			}
		}
		return resultOK, nil

	case cmdRelease:
		return resultOK, nil

	case cmdGetStatus:
		status := make([]byte, 19)
		if d.initialized {
			status[0] = 1
		}
		if d.loaded {
			status[1] = 1
		}
		status[2] = byte(d.selected)
		binary.LittleEndian.PutUint64(status[3:11], d.extruded)
		binary.LittleEndian.PutUint64(status[11:19], d.toolChanges)
		return resultOK, status

	default:
		return resultErr, []byte(fmt.Sprintf("unknown command %#02x", cmd))
	}
}

func serveConn(conn net.Conn, dev *Device, trace bool) {
	defer conn.Close()
	for {
		var header [4]byte
		if _, err := io.ReadFull(conn, header[:]); err != nil {
			return
		}
		if header[0] != frameStart {
			return
		}
		length := binary.LittleEndian.Uint16(header[1:3])
		if length == 0 {
			return
		}
		cmd := header[3]
		payload := make([]byte, length-1)
		if _, err := io.ReadFull(conn, payload); err != nil {
			return
		}

		result, resp := dev.handle(cmd, payload)
		if trace {
			fmt.Printf("cmd=%#02x result=%#02x resp=%d bytes\n", cmd, result, len(resp))
		}

		frame := make([]byte, 0, 4+len(resp))
		frame = append(frame, frameStart)
		frame = binary.LittleEndian.AppendUint16(frame, uint16(1+len(resp)))
		frame = append(frame, result)
		frame = append(frame, resp...)
		if _, err := conn.Write(frame); err != nil {
			return
		}
	}
}

func main() {
	addr := flag.String("addr", ":5433", "TCP listen address")
	loadSteps := flag.Int("load-steps", 3, "load step commands until filament caught")
	unloadSteps := flag.Int("unload-steps", 3, "unload step commands until filament clear")
	jam := flag.Bool("jam", false, "simulate a jammed mechanism that never completes")
	trace := flag.Bool("trace", false, "print every command")
	flag.Parse()

	dev := &Device{
		loadSteps:   *loadSteps,
		unloadSteps: *unloadSteps,
		jam:         *jam,
	}

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mock-mmu: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("mock-mmu listening on %s (load-steps=%d unload-steps=%d jam=%v)\n",
		ln.Addr(), *loadSteps, *unloadSteps, *jam)

	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go serveConn(conn, dev, *trace)
	}
}
