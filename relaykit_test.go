package relaykit

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/hubertat/relaykit/usbio"
)

func newFakeKit(t testing.TB) *Kit {
	t.Helper()

	kit := &Kit{
		Name:       "test kit",
		Port:       "b",
		FakeDevice: true,
		Relays: []*Relay{
			{Name: "pump", Number: 1, DisableHomekit: true},
			{Name: "heater", Number: 2, DisableHomekit: true},
		},
	}

	err := kit.InitDevice()
	if err != nil {
		t.Fatalf("InitDevice returned err: %v", err)
	}
	return kit
}

func TestKitInitDevice(t *testing.T) {
	kit := newFakeKit(t)

	if kit.port != usbio.PortB {
		t.Errorf("kit port = %v, want B", kit.port)
	}

	// Mode frame first, identify next, then the all-outputs direction
	// frame for the relay port.
	frames := kit.mock.Frames()
	if len(frames) < 3 {
		t.Fatalf("got %d frame(s), want at least 3", len(frames))
	}
	if frames[0][0] != 1 {
		t.Errorf("first frame = % X, want mode 1", frames[0])
	}
	if kit.mock.DirectionMask(usbio.PortB) != 0 {
		t.Errorf("direction mask = %d, want 0", kit.mock.DirectionMask(usbio.PortB))
	}
}

func TestKitInitDeviceInvalidPort(t *testing.T) {
	kit := &Kit{Port: "x", FakeDevice: true}

	err := kit.InitDevice()
	if !errors.Is(err, usbio.ErrInvalidPort) {
		t.Errorf("err = %v, want ErrInvalidPort", err)
	}
}

func TestKitInitDeviceDuplicateNumbers(t *testing.T) {
	kit := &Kit{
		Port:       "A",
		FakeDevice: true,
		Relays: []*Relay{
			{Name: "one", Number: 3, DisableHomekit: true},
			{Name: "two", Number: 3, DisableHomekit: true},
		},
	}

	err := kit.InitDevice()
	if err == nil || !strings.Contains(err.Error(), "share number") {
		t.Errorf("err = %v, want duplicate number error", err)
	}
}

func TestRelaySetValue(t *testing.T) {
	kit := newFakeKit(t)

	kit.Relays[0].SetValue(true)
	if kit.mock.PortValue(usbio.PortB) != 1 {
		t.Errorf("port value = %d, want 1", kit.mock.PortValue(usbio.PortB))
	}

	kit.Relays[1].SetValue(true)
	if kit.mock.PortValue(usbio.PortB) != 3 {
		t.Errorf("port value = %d, want 3", kit.mock.PortValue(usbio.PortB))
	}

	kit.Relays[0].SetValue(false)
	if kit.mock.PortValue(usbio.PortB) != 2 {
		t.Errorf("port value = %d, want 2", kit.mock.PortValue(usbio.PortB))
	}
}

func TestRelaySetValueKeepsStateOnSwitchError(t *testing.T) {
	kit := newFakeKit(t)

	driver := &fakePortDriver{}
	board, err := NewRelayBoard(driver, kit.port)
	if err != nil {
		t.Fatalf("NewRelayBoard returned err: %v", err)
	}
	kit.board = board
	driver.failWith = errors.New("wire gone")

	relay := kit.Relays[0]
	relay.SetValue(true)
	if on, _ := relay.GetState(); on {
		t.Error("relay state must not change when the switch command fails")
	}

	driver.failWith = nil
	relay.SetValue(true)
	if on, _ := relay.GetState(); !on {
		t.Error("relay state should change once the switch command succeeds")
	}
}

// The sync ticker and the HomeKit/HTTP/MQTT callbacks reach the relays from
// separate goroutines, run with -race.
func TestKitConcurrentSyncAndSetValue(t *testing.T) {
	kit := newFakeKit(t)
	relay := kit.Relays[0]

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			if err := kit.Sync(); err != nil {
				t.Errorf("Sync returned err: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			relay.SetValue(i%2 == 0)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			relay.Toggle()
		}
	}()
	wg.Wait()
}

func TestKitSyncPicksUpExternalChange(t *testing.T) {
	kit := newFakeKit(t)

	kit.mock.SetPortValue(usbio.PortB, 2)

	err := kit.Sync()
	if err != nil {
		t.Fatalf("Sync returned err: %v", err)
	}
	if kit.Relays[0].State {
		t.Error("relay 1 should be off")
	}
	if !kit.Relays[1].State {
		t.Error("relay 2 should be on")
	}
}

func TestRelayGetUniqueId(t *testing.T) {
	one := &Relay{Name: "pump"}
	two := &Relay{Name: "heater"}

	if one.GetUniqueId() == two.GetUniqueId() {
		t.Error("unique ids of differently named relays should differ")
	}
	if one.GetUniqueId() != (&Relay{Name: "pump"}).GetUniqueId() {
		t.Error("unique id should be stable for a name")
	}
}

func TestRelayInitInvalidNumber(t *testing.T) {
	kit := &Kit{}
	relay := &Relay{Name: "bad", Number: 9, DisableHomekit: true}

	err := relay.Init(kit)
	if !errors.Is(err, usbio.ErrInvalidPin) {
		t.Errorf("err = %v, want ErrInvalidPin", err)
	}
}
