package usbio

import (
	"errors"

	pkgerrors "github.com/pkg/errors"
)

// Validation errors of the command layer. Every public operation checks its
// arguments against these before any byte reaches the transport, so a failed
// call never leaves a partial frame in the device's command stream.
var (
	ErrInvalidMode = errors.New("invalid mode")
	ErrInvalidPort = errors.New("invalid port")
	ErrInvalidPin  = errors.New("invalid pin")
	ErrInvalidData = errors.New("invalid data")
)

// ValidateMode checks the operating mode against the two the firmware knows.
func ValidateMode(mode int) error {
	if mode != ModeSimple && mode != ModePrefixed {
		return pkgerrors.Wrapf(ErrInvalidMode, "mode %d not in {1, 2}", mode)
	}
	return nil
}

// ValidatePort checks that the port is one of the three the module has.
func ValidatePort(port Port) error {
	if !port.Valid() {
		return pkgerrors.Wrapf(ErrInvalidPort, "port value %d unknown", int(port))
	}
	return nil
}

// ValidatePin checks a pin (or relay) number against the 1-8 range.
func ValidatePin(pin int) error {
	if pin < 1 || pin > pinsPerPort {
		return pkgerrors.Wrapf(ErrInvalidPin, "pin %d outside [1, %d]", pin, pinsPerPort)
	}
	return nil
}

func validatePins(pins []int) error {
	for _, pin := range pins {
		if err := ValidatePin(pin); err != nil {
			return err
		}
	}
	return nil
}

// ValidateData checks a port value or mask argument against byte range.
func ValidateData(data int) error {
	if data < 0 || data > 255 {
		return pkgerrors.Wrapf(ErrInvalidData, "data %d outside [0, 255]", data)
	}
	return nil
}
