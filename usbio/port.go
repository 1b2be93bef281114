package usbio

import (
	"fmt"
	"strings"
)

// Port identifies one of the three 8-line groups of the IO module.
// The type is a closed enumeration: arithmetic on port values only happens
// after validation, there is no fallthrough for unknown letters.
type Port int

const (
	PortA Port = iota
	PortB
	PortC
)

const pinsPerPort = 8

var portNames = [...]string{PortA: "A", PortB: "B", PortC: "C"}

// portBases maps each port to the offset of its pin 1 in the global pin
// index space (0-23) used by the single-pin commands.
var portBases = [...]int{PortA: 0, PortB: 8, PortC: 16}

// Read commands select a port with its lowercase letter, write commands with
// the uppercase one.
var portReadSelectors = [...]byte{PortA: 'a', PortB: 'b', PortC: 'c'}
var portWriteSelectors = [...]byte{PortA: 'A', PortB: 'B', PortC: 'C'}

// ParsePort resolves a port letter, case-insensitively.
func ParsePort(name string) (Port, error) {
	switch strings.ToUpper(name) {
	case "A":
		return PortA, nil
	case "B":
		return PortB, nil
	case "C":
		return PortC, nil
	}
	return 0, fmt.Errorf("unknown port name %q: %w", name, ErrInvalidPort)
}

func (p Port) Valid() bool {
	return p >= PortA && p <= PortC
}

func (p Port) String() string {
	if !p.Valid() {
		return fmt.Sprintf("Port(%d)", int(p))
	}
	return portNames[p]
}

// Base returns the global pin index of the port's pin 1.
func (p Port) Base() int {
	return portBases[p]
}

func (p Port) readSelector() byte {
	return portReadSelectors[p]
}

func (p Port) writeSelector() byte {
	return portWriteSelectors[p]
}

// The addressing helpers below are pure bit arithmetic, validation of the
// arguments stays with the caller.

// GlobalPinIndex maps a port pin to the 0-23 index the H/L commands take.
func GlobalPinIndex(port Port, pin int) int {
	return port.Base() + pin - 1
}

// PinBit returns the bit carrying the given pin inside a port value.
func PinBit(pin int) byte {
	return 1 << (pin - 1)
}

// MaskFromPins builds a port value with the bits of the listed pins set.
// Listing a pin twice is the same as listing it once.
func MaskFromPins(pins ...int) byte {
	var mask byte
	for _, pin := range pins {
		mask |= PinBit(pin)
	}
	return mask
}

// InvertedMask builds a port value with the bits of all pins NOT listed set.
// The pull-up, threshold and Schmitt trigger commands enable their feature
// on zero bits, so their convenience forms go through here.
func InvertedMask(pins ...int) byte {
	return ^MaskFromPins(pins...)
}
