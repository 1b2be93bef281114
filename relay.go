package relaykit

import (
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/characteristic"
	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/hubertat/relaykit/usbio"
)

// Relay is one named relay of the kit, exposed over HomeKit as a switch
// accessory unless opted out. State and IsFaulty are reached from the sync
// ticker and from the HomeKit/HTTP/MQTT callbacks concurrently, the relay
// lock guards them.
type Relay struct {
	Name           string
	Number         int
	State          bool
	DisableHomekit bool
	IsFaulty       bool

	lock  sync.Mutex
	kit   *Kit
	hk    *accessory.Switch
	fault *characteristic.StatusFault
}

func (re *Relay) GetUniqueId() uint64 {
	hash := fnv.New64()
	hash.Write([]byte("Relay_" + re.Name))
	return hash.Sum64()
}

func (re *Relay) Init(kit *Kit) error {
	err := usbio.ValidatePin(re.Number)
	if err != nil {
		return errors.Wrapf(err, "relay %s number invalid", re.Name)
	}
	re.kit = kit

	if re.DisableHomekit {
		return nil
	}
	info := accessory.Info{
		Name:         re.Name,
		SerialNumber: fmt.Sprintf("relay:%s:%02d", kit.Port, re.Number),
	}
	re.hk = accessory.NewSwitch(info)

	re.fault = characteristic.NewStatusFault()
	re.fault.SetValue(characteristic.StatusFaultNoFault)
	re.hk.Switch.AddC(re.fault.C)

	re.hk.Switch.On.OnValueRemoteUpdate(re.SetValue)
	return nil
}

func (re *Relay) GetHk() *accessory.A {
	if re.hk == nil {
		return nil
	}
	return re.hk.A
}

// SetValue drives the relay through the kit's single-bit commands, so
// sibling relays keep their state. The in-memory state only changes after
// the hardware confirmed the switch, a transport failure leaves it as it
// was.
func (re *Relay) SetValue(state bool) {
	re.lock.Lock()
	defer re.lock.Unlock()

	err := re.kit.switchRelay(re.Number, state)
	if err != nil {
		log.Error("failed to switch relay", "relay", re.Name, "err", err)
		return
	}
	if re.State == state {
		return
	}
	re.State = state
	re.kit.publishState(re, state)
}

func (re *Relay) Toggle() {
	re.lock.Lock()
	state := !re.State
	re.lock.Unlock()

	re.SetValue(state)
}

// GetState returns a consistent snapshot of the relay.
func (re *Relay) GetState() (on bool, faulty bool) {
	re.lock.Lock()
	defer re.lock.Unlock()

	return re.State, re.IsFaulty
}

// applyPortValue reconciles the relay from a fresh port read and reports
// the resulting state and whether it changed.
func (re *Relay) applyPortValue(value byte) (state bool, changed bool) {
	re.lock.Lock()
	defer re.lock.Unlock()

	oldState := re.State
	re.State = value&usbio.PinBit(re.Number) != 0
	re.IsFaulty = false

	if re.hk != nil {
		re.fault.SetValue(characteristic.StatusFaultNoFault)
		if oldState != re.State {
			re.hk.Switch.On.SetValue(re.State)
		}
	}

	return re.State, oldState != re.State
}

func (re *Relay) markFaulty() {
	re.lock.Lock()
	defer re.lock.Unlock()

	re.IsFaulty = true
	if re.hk != nil {
		re.fault.SetValue(characteristic.StatusFaultGeneralFault)
	}
}
