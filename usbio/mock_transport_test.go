package usbio

import "testing"

func newMockDevice(t testing.TB) (*Device, *MockTransport) {
	t.Helper()

	mock := &MockTransport{}
	device, err := New(mock)
	if err != nil {
		t.Fatalf("New returned err: %v", err)
	}
	return device, mock
}

func TestMockPortWriteReadRoundTrip(t *testing.T) {
	device, mock := newMockDevice(t)

	if err := device.WritePort(PortB, 0xAA); err != nil {
		t.Fatalf("WritePort returned err: %v", err)
	}
	if mock.PortValue(PortB) != 0xAA {
		t.Errorf("port latch = %X, want AA", mock.PortValue(PortB))
	}

	value, err := device.ReadPort(PortB)
	if err != nil {
		t.Fatalf("ReadPort returned err: %v", err)
	}
	if value != 0xAA {
		t.Errorf("ReadPort = %X, want AA", value)
	}
}

func TestMockPinCommands(t *testing.T) {
	device, mock := newMockDevice(t)

	device.SetPinHigh(PortA, 1)
	device.SetPinHigh(PortB, 3)
	device.SetPinHigh(PortC, 8)

	if mock.PortValue(PortA) != 1 {
		t.Errorf("port A = %d, want 1", mock.PortValue(PortA))
	}
	if mock.PortValue(PortB) != 4 {
		t.Errorf("port B = %d, want 4", mock.PortValue(PortB))
	}
	if mock.PortValue(PortC) != 128 {
		t.Errorf("port C = %d, want 128", mock.PortValue(PortC))
	}

	device.SetPinLow(PortB, 3)
	if mock.PortValue(PortB) != 0 {
		t.Errorf("port B after SetPinLow = %d, want 0", mock.PortValue(PortB))
	}
}

func TestMockDirectionAndFeatures(t *testing.T) {
	device, mock := newMockDevice(t)

	device.SetPinDirection(PortC, 1, 2)
	if mock.DirectionMask(PortC) != 3 {
		t.Errorf("direction mask = %d, want 3", mock.DirectionMask(PortC))
	}

	device.WritePort(PortA, 7)
	device.PortPullUp(PortA, 1)
	if mock.PullUpMask(PortA) != 254 {
		t.Errorf("pull up mask = %d, want 254", mock.PullUpMask(PortA))
	}
	// The feature's trailing write-port frame must land in the feature
	// mask, not in the output latch.
	if mock.PortValue(PortA) != 7 {
		t.Errorf("port A latch = %d, want 7 untouched", mock.PortValue(PortA))
	}

	device.SetThreshold(PortB, 1, 2, 3)
	if mock.ThresholdMask(PortB) != 248 {
		t.Errorf("threshold mask = %d, want 248", mock.ThresholdMask(PortB))
	}

	device.SchmittTrigger(PortC, 8)
	if mock.SchmittMask(PortC) != 127 {
		t.Errorf("schmitt mask = %d, want 127", mock.SchmittMask(PortC))
	}
}

func TestMockIdentify(t *testing.T) {
	device, _ := newMockDevice(t)

	identity, err := device.Identify()
	if err != nil {
		t.Fatalf("Identify returned err: %v", err)
	}
	if identity != "USB I/O 24" {
		t.Errorf("Identify = %q", identity)
	}
}

func TestMockReadTimeout(t *testing.T) {
	mock := &MockTransport{}

	if _, err := mock.ReadExactly(1); err == nil {
		t.Error("ReadExactly with nothing queued should fail")
	}
	if _, err := mock.ReadLine(); err == nil {
		t.Error("ReadLine with nothing queued should fail")
	}
}
