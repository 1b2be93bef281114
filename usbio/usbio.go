// Package usbio implements the command protocol of the USB I/O 24 module's
// standard firmware: a flat command-byte dispatch over a serial transport,
// with fixed-length frames and no response framing markers.
package usbio

import (
	"strings"
)

// Operating modes of the firmware. In the prefixed mode every read and auto
// send carries a port designator before the data; this driver only defines
// the simple mode and sends ModeSimple when a device is brought up.
const (
	ModeSimple   = 1
	ModePrefixed = 2
)

// Command selector bytes of the standard firmware.
const (
	cmdIdentify     = '?'
	cmdPinHigh      = 'H'
	cmdPinLow       = 'L'
	cmdPinDirection = '!'
	cmdPullUp       = '#'
	cmdThreshold    = '@'
	cmdSchmitt      = '$'
)

// Device drives one USB I/O 24 module through a transport it does not own.
// Calls must not be issued concurrently on the same device, the exchange on
// the transport is strictly one frame out, at most one response in.
type Device struct {
	transport Transport
}

// New binds a device to a ready transport and unconditionally issues
// SetMode(ModeSimple) as the first frame of the session.
func New(transport Transport) (*Device, error) {
	device := &Device{transport: transport}
	err := device.SetMode(ModeSimple)
	if err != nil {
		return nil, err
	}
	return device, nil
}

// SetMode sets the operational mode of the module. The mode value itself is
// the whole frame. Reads issued by this driver assume ModeSimple.
func (d *Device) SetMode(mode int) error {
	if err := ValidateMode(mode); err != nil {
		return err
	}
	return d.transport.Write([]byte{byte(mode)})
}

// Identify asks the module for its identity string, expect something similar
// to "USB I/O 24". The trailing newline is stripped.
func (d *Device) Identify() (string, error) {
	if err := d.transport.Write([]byte{cmdIdentify}); err != nil {
		return "", err
	}
	line, err := d.transport.ReadLine()
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ReadPort reads the current value of all eight lines of a port.
func (d *Device) ReadPort(port Port) (byte, error) {
	if err := ValidatePort(port); err != nil {
		return 0, err
	}
	if err := d.transport.Write([]byte{port.readSelector()}); err != nil {
		return 0, err
	}
	response, err := d.transport.ReadExactly(1)
	if err != nil {
		return 0, err
	}
	return response[0], nil
}

// WritePort replaces the value of all eight lines of a port at once.
func (d *Device) WritePort(port Port, data int) error {
	if err := ValidatePort(port); err != nil {
		return err
	}
	if err := ValidateData(data); err != nil {
		return err
	}
	return d.transport.Write([]byte{port.writeSelector(), byte(data)})
}

// SetPinHigh sets a single pin high without touching its siblings.
func (d *Device) SetPinHigh(port Port, pin int) error {
	return d.setPin(cmdPinHigh, port, pin)
}

// SetPinLow sets a single pin low without touching its siblings.
func (d *Device) SetPinLow(port Port, pin int) error {
	return d.setPin(cmdPinLow, port, pin)
}

func (d *Device) setPin(selector byte, port Port, pin int) error {
	if err := ValidatePort(port); err != nil {
		return err
	}
	if err := ValidatePin(pin); err != nil {
		return err
	}
	return d.transport.Write([]byte{selector, byte(GlobalPinIndex(port, pin))})
}

// SetPinDirectionRaw configures the direction of all pins of a port in one
// mask: a bit set to 1 makes that pin an input.
func (d *Device) SetPinDirectionRaw(port Port, mask int) error {
	if err := ValidatePort(port); err != nil {
		return err
	}
	if err := ValidateData(mask); err != nil {
		return err
	}
	return d.transport.Write([]byte{cmdPinDirection, port.writeSelector(), byte(mask)})
}

// SetPinDirection makes the listed pins inputs and every other pin of the
// port an output. With no pins given the whole port becomes outputs.
func (d *Device) SetPinDirection(port Port, inputPins ...int) error {
	if err := validatePins(inputPins); err != nil {
		return err
	}
	return d.SetPinDirectionRaw(port, int(MaskFromPins(inputPins...)))
}

// PortPullUpRaw applies pull-up resistors per the given mask. A zero bit
// enables the pull-up on that line, the opposite of the direction mask.
// Untested against real hardware, as is the whole #/@/$ command group.
func (d *Device) PortPullUpRaw(port Port, mask int) error {
	return d.featureWriteRaw(cmdPullUp, port, mask)
}

// PortPullUp enables pull-up resistors on the listed pins.
func (d *Device) PortPullUp(port Port, pins ...int) error {
	return d.featureWrite(cmdPullUp, port, pins)
}

// SetThresholdRaw configures the input threshold voltage per the given mask:
// a 1 bit selects the 1.4V threshold, a 0 bit the 2.5V one.
func (d *Device) SetThresholdRaw(port Port, mask int) error {
	return d.featureWriteRaw(cmdThreshold, port, mask)
}

// SetThreshold selects the 2.5V input threshold on the listed pins.
func (d *Device) SetThreshold(port Port, pins ...int) error {
	return d.featureWrite(cmdThreshold, port, pins)
}

// SchmittTriggerRaw configures Schmitt trigger inputs per the given mask,
// a zero bit enables the trigger on that line.
func (d *Device) SchmittTriggerRaw(port Port, mask int) error {
	return d.featureWriteRaw(cmdSchmitt, port, mask)
}

// SchmittTrigger enables the Schmitt trigger on the listed pins.
func (d *Device) SchmittTrigger(port Port, pins ...int) error {
	return d.featureWrite(cmdSchmitt, port, pins)
}

// featureWriteRaw sends a feature selector followed by a whole write-port
// frame. Both arguments are validated before the selector byte goes out, so
// a bad mask never strands a lone selector in the device's command stream.
func (d *Device) featureWriteRaw(selector byte, port Port, mask int) error {
	if err := ValidatePort(port); err != nil {
		return err
	}
	if err := ValidateData(mask); err != nil {
		return err
	}
	if err := d.transport.Write([]byte{selector}); err != nil {
		return err
	}
	return d.WritePort(port, mask)
}

func (d *Device) featureWrite(selector byte, port Port, pins []int) error {
	if err := validatePins(pins); err != nil {
		return err
	}
	return d.featureWriteRaw(selector, port, int(InvertedMask(pins...)))
}
