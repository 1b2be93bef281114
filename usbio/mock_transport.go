package usbio

import (
	"fmt"
	"sync"
)

const mockIdentity = "USB I/O 24"

// MockTransport emulates a USB I/O 24 module in memory: it keeps the output
// latch, direction and feature masks of all three ports and answers read
// commands from that state. It backs the package tests and the kit's
// fake-device mode, so a full stack can run without hardware attached.
type MockTransport struct {
	Identity string

	lock      sync.Mutex
	mode      byte
	ports     [3]byte
	direction [3]byte
	pullUp    [3]byte
	threshold [3]byte
	schmitt   [3]byte

	// feature holds a received #/@/$ selector until the write-port frame
	// that carries its mask arrives.
	feature byte

	frames    [][]byte
	readQueue []byte
	lineQueue []string
}

func (mt *MockTransport) Write(p []byte) error {
	mt.lock.Lock()
	defer mt.lock.Unlock()

	if len(p) == 0 {
		return fmt.Errorf("mock transport: empty frame")
	}
	mt.frames = append(mt.frames, append([]byte(nil), p...))

	switch {
	case len(p) == 1 && (p[0] == ModeSimple || p[0] == ModePrefixed):
		mt.mode = p[0]

	case len(p) == 1 && p[0] == cmdIdentify:
		identity := mt.Identity
		if len(identity) == 0 {
			identity = mockIdentity
		}
		mt.lineQueue = append(mt.lineQueue, identity+"\r\n")

	case len(p) == 1 && p[0] >= 'a' && p[0] <= 'c':
		mt.readQueue = append(mt.readQueue, mt.ports[p[0]-'a'])

	case len(p) == 1 && (p[0] == cmdPullUp || p[0] == cmdThreshold || p[0] == cmdSchmitt):
		mt.feature = p[0]

	case len(p) == 2 && (p[0] == cmdPinHigh || p[0] == cmdPinLow):
		index := p[1]
		if index >= 24 {
			return fmt.Errorf("mock transport: pin index %d out of range", index)
		}
		if p[0] == cmdPinHigh {
			mt.ports[index/8] |= 1 << (index % 8)
		} else {
			mt.ports[index/8] &^= 1 << (index % 8)
		}

	case len(p) == 2 && p[0] >= 'A' && p[0] <= 'C':
		mt.applyPortWrite(p[0], p[1])

	case len(p) == 3 && p[0] == cmdPinDirection && p[1] >= 'A' && p[1] <= 'C':
		mt.direction[p[1]-'A'] = p[2]

	default:
		return fmt.Errorf("mock transport: unrecognized frame % X", p)
	}

	return nil
}

func (mt *MockTransport) applyPortWrite(selector, data byte) {
	index := selector - 'A'
	switch mt.feature {
	case cmdPullUp:
		mt.pullUp[index] = data
	case cmdThreshold:
		mt.threshold[index] = data
	case cmdSchmitt:
		mt.schmitt[index] = data
	default:
		mt.ports[index] = data
	}
	mt.feature = 0
}

func (mt *MockTransport) ReadExactly(n int) ([]byte, error) {
	mt.lock.Lock()
	defer mt.lock.Unlock()

	if len(mt.readQueue) < n {
		return nil, fmt.Errorf("mock transport: read timeout, %d byte(s) queued, want %d", len(mt.readQueue), n)
	}
	response := append([]byte(nil), mt.readQueue[:n]...)
	mt.readQueue = mt.readQueue[n:]
	return response, nil
}

func (mt *MockTransport) ReadLine() (string, error) {
	mt.lock.Lock()
	defer mt.lock.Unlock()

	if len(mt.lineQueue) == 0 {
		return "", fmt.Errorf("mock transport: read timeout, no line queued")
	}
	line := mt.lineQueue[0]
	mt.lineQueue = mt.lineQueue[1:]
	return line, nil
}

func (mt *MockTransport) Close() error {
	return nil
}

// Frames returns a copy of every frame received so far, in order.
func (mt *MockTransport) Frames() [][]byte {
	mt.lock.Lock()
	defer mt.lock.Unlock()

	frames := make([][]byte, len(mt.frames))
	for i, frame := range mt.frames {
		frames[i] = append([]byte(nil), frame...)
	}
	return frames
}

// PortValue returns the current output latch of a port.
func (mt *MockTransport) PortValue(port Port) byte {
	mt.lock.Lock()
	defer mt.lock.Unlock()
	return mt.ports[port]
}

// SetPortValue overwrites a port latch directly, for simulating inputs.
func (mt *MockTransport) SetPortValue(port Port, value byte) {
	mt.lock.Lock()
	defer mt.lock.Unlock()
	mt.ports[port] = value
}

// DirectionMask returns the last direction mask written to a port.
func (mt *MockTransport) DirectionMask(port Port) byte {
	mt.lock.Lock()
	defer mt.lock.Unlock()
	return mt.direction[port]
}

// PullUpMask returns the last pull-up mask written to a port.
func (mt *MockTransport) PullUpMask(port Port) byte {
	mt.lock.Lock()
	defer mt.lock.Unlock()
	return mt.pullUp[port]
}

// ThresholdMask returns the last threshold mask written to a port.
func (mt *MockTransport) ThresholdMask(port Port) byte {
	mt.lock.Lock()
	defer mt.lock.Unlock()
	return mt.threshold[port]
}

// SchmittMask returns the last Schmitt trigger mask written to a port.
func (mt *MockTransport) SchmittMask(port Port) byte {
	mt.lock.Lock()
	defer mt.lock.Unlock()
	return mt.schmitt[port]
}
