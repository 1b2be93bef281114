package usbio

// Transport is the byte-oriented duplex channel the device driver talks
// through, typically a serial port. Implementations own the timeout policy:
// both read calls block until satisfied or until the implementation's
// configured timeout expires, in which case they return the underlying
// error. The driver passes transport errors through to its caller unchanged
// and never retries.
type Transport interface {
	Write(p []byte) error

	// ReadExactly returns exactly n bytes or an error.
	ReadExactly(n int) ([]byte, error)

	// ReadLine returns one newline-terminated line of text, including the
	// terminator.
	ReadLine() (string, error)
}
