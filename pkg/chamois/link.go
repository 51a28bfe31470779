// Network link to the Chamois MMU.
//
// The device speaks a simple framed request/response protocol over TCP:
//
//	request:  <0xAA:1> <length:2 le> <command:1> <payload>
//	response: <0xAA:1> <length:2 le> <result:1> <payload>
//
// where length counts the command/result byte plus the payload. A result
// code of 0x00 is success; anything else carries an optional UTF-8 error
// message in the payload. The protocol is strictly request/response: one
// outstanding command per session, callers await each ack.
//
// Copyright (C) 2026  Chamois Host Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package chamois

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Command codes understood by the Chamois firmware.
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
)

const (
	frameStart = 0xAA
	resultOK   = 0x00

	// statusLen is the fixed size of a GET_STATUS response payload.
	statusLen = 19
)

// HardwareStatus is the device's own report of its state, decoded from a
// GET_STATUS response. It may lag commanded transitions.
type HardwareStatus struct {
	Initialized   bool
	Loaded        bool
	SelectedIndex int
	TotalExtruded uint64
	ToolChanges   uint64
}

// Commander is the request/response surface the life-cycle controller
// drives. No retries happen at this layer; retry policy belongs to the
// controller.
type Commander interface {
	// Send transmits one command and awaits its ack. It returns the
	// response payload, a *DeviceError on a non-OK result code, or a
	// *LinkError on I/O failure.
	Send(cmd byte, payload []byte) ([]byte, error)

	// PollStatus queries the device state.
	PollStatus() (HardwareStatus, error)

	// Reset drops the session and establishes a fresh one.
	Reset() error

	// Close tears down the session.
	Close() error
}

// LinkConfig holds the MMU endpoint and timeout tunables.
type LinkConfig struct {
	Address        string // host:port
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// DefaultLinkConfig returns the default link tunables (address unset).
func DefaultLinkConfig() LinkConfig {
	return LinkConfig{
		ConnectTimeout: 5 * time.Second,
		ReadTimeout:    5 * time.Second,
	}
}

// TCPLink is the production Commander. It owns the connection exclusively
// and serializes commands so at most one is outstanding. The session is
// established lazily on first Send and dropped on any I/O error.
type TCPLink struct {
	cfg LinkConfig
	log zerolog.Logger

	mu   sync.Mutex
	conn net.Conn
	br   *bufio.Reader
}

// NewTCPLink creates a link to the MMU at cfg.Address. No connection is
// made until the first command.
func NewTCPLink(cfg LinkConfig, log zerolog.Logger) *TCPLink {
	return &TCPLink{cfg: cfg, log: log.With().Str("component", "link").Logger()}
}

// ensureConn dials the device if no session is live. Caller holds mu.
func (l *TCPLink) ensureConn() error {
	if l.conn != nil {
		return nil
	}
	conn, err := net.DialTimeout("tcp", l.cfg.Address, l.cfg.ConnectTimeout)
	if err != nil {
		return &LinkError{Op: "connect", Err: err}
	}
	l.log.Debug().Str("address", l.cfg.Address).Msg("session established")
	l.conn = conn
	l.br = bufio.NewReader(conn)
	return nil
}

// dropConn tears down the session after an I/O error. Caller holds mu.
func (l *TCPLink) dropConn() {
	if l.conn != nil {
		l.conn.Close()
		l.conn = nil
		l.br = nil
	}
}

// Send implements Commander.
func (l *TCPLink) Send(cmd byte, payload []byte) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureConn(); err != nil {
		return nil, err
	}

	frame := make([]byte, 0, 4+len(payload))
	frame = append(frame, frameStart)
	frame = binary.LittleEndian.AppendUint16(frame, uint16(1+len(payload)))
	frame = append(frame, cmd)
	frame = append(frame, payload...)

	l.conn.SetWriteDeadline(time.Now().Add(l.cfg.ReadTimeout))
	if _, err := l.conn.Write(frame); err != nil {
		l.dropConn()
		return nil, &LinkError{Op: "send", Err: err}
	}

	result, resp, err := l.readResponse()
	if err != nil {
		l.dropConn()
		return nil, err
	}
	if result != resultOK {
		// The session is still usable, the command just failed.
		return nil, &DeviceError{Code: result, Message: string(resp)}
	}
	return resp, nil
}

// readResponse scans for the next frame start, then reads one complete
// response. Stray bytes before the start marker are discarded, matching
// the firmware's resynchronization behavior. Caller holds mu.
func (l *TCPLink) readResponse() (result byte, payload []byte, err error) {
	l.conn.SetReadDeadline(time.Now().Add(l.cfg.ReadTimeout))

	for {
		b, err := l.br.ReadByte()
		if err != nil {
			return 0, nil, &LinkError{Op: "recv", Err: err}
		}
		if b == frameStart {
			break
		}
	}

	var header [2]byte
	if _, err := io.ReadFull(l.br, header[:]); err != nil {
		return 0, nil, &LinkError{Op: "recv", Err: err}
	}
	length := binary.LittleEndian.Uint16(header[:])
	if length == 0 {
		return 0, nil, &LinkError{Op: "recv", Err: fmt.Errorf("zero-length frame")}
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(l.br, body); err != nil {
		return 0, nil, &LinkError{Op: "recv", Err: err}
	}
	return body[0], body[1:], nil
}

// PollStatus implements Commander.
func (l *TCPLink) PollStatus() (HardwareStatus, error) {
	resp, err := l.Send(cmdGetStatus, nil)
	if err != nil {
		return HardwareStatus{}, err
	}
	return decodeStatus(resp)
}

// decodeStatus unpacks a GET_STATUS response payload.
func decodeStatus(payload []byte) (HardwareStatus, error) {
	if len(payload) < statusLen {
		return HardwareStatus{}, &LinkError{
			Op:  "recv",
			Err: fmt.Errorf("short status payload: %d bytes", len(payload)),
		}
	}
	return HardwareStatus{
		Initialized:   payload[0] != 0,
		Loaded:        payload[1] != 0,
		SelectedIndex: int(payload[2]),
		TotalExtruded: binary.LittleEndian.Uint64(payload[3:11]),
		ToolChanges:   binary.LittleEndian.Uint64(payload[11:19]),
	}, nil
}

// Reset implements Commander. It drops the current session and dials a
// fresh one, verifying the device answers.
func (l *TCPLink) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dropConn()
	return l.ensureConn()
}

// Close implements Commander.
func (l *TCPLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dropConn()
	return nil
}
