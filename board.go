package relaykit

import (
	"github.com/pkg/errors"

	"github.com/hubertat/relaykit/usbio"
)

// PortDriver is the slice of the usbio device the relay layer depends on.
type PortDriver interface {
	ReadPort(port usbio.Port) (byte, error)
	WritePort(port usbio.Port, data int) error
	SetPinHigh(port usbio.Port, pin int) error
	SetPinLow(port usbio.Port, pin int) error
	SetPinDirection(port usbio.Port, inputPins ...int) error
}

// RelayBoard drives an 8-relay board wired to one port of the IO module.
// Relay numbers map 1:1 onto the port's pin numbers.
type RelayBoard struct {
	driver PortDriver
	port   usbio.Port
}

// NewRelayBoard binds a board to one port for its lifetime and puts all
// eight lines of that port into output mode. The direction frame is part of
// the construction contract, a board is never handed out without it.
func NewRelayBoard(driver PortDriver, port usbio.Port) (*RelayBoard, error) {
	board := &RelayBoard{driver: driver, port: port}
	err := driver.SetPinDirection(port)
	if err != nil {
		return nil, errors.Wrap(err, "failed to configure relay port for output")
	}
	return board, nil
}

func (rb *RelayBoard) Port() usbio.Port {
	return rb.port
}

// SetState activates exactly the listed relays in a single port write.
// Relays not listed are switched off as a side effect: the whole byte is
// replaced, which makes this the atomic way to set several relays at once.
func (rb *RelayBoard) SetState(activatedRelays ...int) error {
	for _, relay := range activatedRelays {
		if err := usbio.ValidatePin(relay); err != nil {
			return err
		}
	}
	return rb.driver.WritePort(rb.port, int(usbio.MaskFromPins(activatedRelays...)))
}

// Reset switches every relay off.
func (rb *RelayBoard) Reset() error {
	return rb.SetState()
}

// Activate switches the listed relays on, one pin command per relay. Unlike
// SetState this never touches sibling relays, but a multi-relay call is not
// atomic: each relay is a separate frame and a transport failure can leave
// part of the list switched.
func (rb *RelayBoard) Activate(relays ...int) error {
	for _, relay := range relays {
		if err := rb.driver.SetPinHigh(rb.port, relay); err != nil {
			return err
		}
	}
	return nil
}

// Deactivate switches the listed relays off, symmetric to Activate.
func (rb *RelayBoard) Deactivate(relays ...int) error {
	for _, relay := range relays {
		if err := rb.driver.SetPinLow(rb.port, relay); err != nil {
			return err
		}
	}
	return nil
}

// ReadState reads the port value back from the module, bit i-1 carrying
// relay i.
func (rb *RelayBoard) ReadState() (byte, error) {
	return rb.driver.ReadPort(rb.port)
}
