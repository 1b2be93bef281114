// Package relaykit ties a USB I/O 24 module, a relay board on one of its
// ports and a set of named relays into a config-driven service with
// HomeKit, MQTT and HTTP control surfaces.
package relaykit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"
	hklog "github.com/brutella/hap/log"
	"github.com/eclipse/paho.golang/paho"
	"github.com/pkg/errors"

	"github.com/hubertat/relaykit/mqtt"
	"github.com/hubertat/relaykit/serial"
	"github.com/hubertat/relaykit/statelog"
	"github.com/hubertat/relaykit/usbio"
)

const defaultHomeKitDirectory = "./homekit"
const homeKitBridgeName = "relaykit"
const homeKitBridgeAuthor = "github.com/hubertat"
const defaultReadTimeout = time.Second

type Kit struct {
	Name string

	Device      string
	Baud        int
	ReadTimeout string
	Port        string
	FakeDevice  bool

	Relays []*Relay

	HkPin       string
	HkDirectory string
	HkAddress   string
	HkDebug     bool

	MqttBroker string

	HttpAddr  string
	HttpToken string

	Influx *statelog.Config

	port       usbio.Port
	io         *usbio.Device
	board      *RelayBoard
	closer     io.Closer
	mock       *usbio.MockTransport
	mqttClient *mqtt.Client
	stateLog   *statelog.Writer
	server     *http.Server
	serverErr  chan error
	ticker     *time.Ticker
	lock       sync.Mutex
}

// InitDevice opens the transport, brings up the IO module (the mode frame
// goes out on construction) and configures the relay port for output.
// The kit owns the transport exclusively; every exchange afterwards goes
// through the kit lock, callers of the public surfaces never interleave
// frames.
func (kit *Kit) InitDevice() (err error) {
	kit.port, err = usbio.ParsePort(kit.Port)
	if err != nil {
		return errors.Wrapf(err, "relay port %q", kit.Port)
	}

	var transport usbio.Transport
	if kit.FakeDevice {
		kit.mock = &usbio.MockTransport{}
		kit.closer = kit.mock
		transport = kit.mock
	} else {
		readTimeout := defaultReadTimeout
		if len(kit.ReadTimeout) > 0 {
			readTimeout, err = time.ParseDuration(kit.ReadTimeout)
			if err != nil {
				return errors.Wrap(err, "failed to parse ReadTimeout")
			}
		}
		serialPort, openErr := serial.Open(serial.Config{
			Device:      kit.Device,
			Baud:        kit.Baud,
			ReadTimeout: readTimeout,
		})
		if openErr != nil {
			return errors.Wrap(openErr, "failed to open serial transport")
		}
		kit.closer = serialPort
		transport = serialPort
	}

	kit.io, err = usbio.New(transport)
	if err != nil {
		return errors.Wrap(err, "failed to bring up io module")
	}

	identity, err := kit.io.Identify()
	if err != nil {
		return errors.Wrap(err, "io module identify failed")
	}
	log.Info("io module ready", "identity", identity, "port", kit.port)

	kit.board, err = NewRelayBoard(kit.io, kit.port)
	if err != nil {
		return err
	}

	numbers := make(map[int]*Relay)
	for _, relay := range kit.Relays {
		err = relay.Init(kit)
		if err != nil {
			return errors.Wrap(err, "failed to init relay")
		}
		if other, taken := numbers[relay.Number]; taken {
			return errors.Errorf("relays %s and %s share number %d", other.Name, relay.Name, relay.Number)
		}
		numbers[relay.Number] = relay
	}

	return nil
}

func (kit *Kit) switchRelay(number int, state bool) error {
	kit.lock.Lock()
	defer kit.lock.Unlock()

	if state {
		return kit.board.Activate(number)
	}
	return kit.board.Deactivate(number)
}

func (kit *Kit) readState() (byte, error) {
	kit.lock.Lock()
	defer kit.lock.Unlock()

	return kit.board.ReadState()
}

// Sync reads the relay port once and reconciles every relay, publishing
// state changes to the configured sinks.
func (kit *Kit) Sync() error {
	value, err := kit.readState()
	if err != nil {
		for _, relay := range kit.Relays {
			relay.markFaulty()
		}
		return errors.Wrap(err, "failed to read relay port")
	}

	for _, relay := range kit.Relays {
		if state, changed := relay.applyPortValue(value); changed {
			kit.publishState(relay, state)
		}
	}

	return nil
}

func (kit *Kit) publishState(relay *Relay, state bool) {
	if kit.mqttClient != nil {
		payload := "0"
		if state {
			payload = "1"
		}
		err := kit.mqttClient.Publish(kit.stateTopic(relay), []byte(payload))
		if err != nil {
			log.Error("failed to publish relay state", "relay", relay.Name, "err", err)
		}
	}

	if kit.stateLog != nil {
		kit.stateLog.LogState(kit.mqttName(), relay.Name, relay.Number, state)
	}
}

func (kit *Kit) StartTicker(interval time.Duration) {
	kit.ticker = time.NewTicker(interval)

	for range kit.ticker.C {
		err := kit.Sync()
		if err != nil {
			log.Error("Received error from syncing relays", "err", err)
		}
	}
}

func (kit *Kit) findRelay(name string) *Relay {
	for _, relay := range kit.Relays {
		if strings.EqualFold(relay.Name, name) {
			return relay
		}
	}
	return nil
}

func (kit *Kit) GetHkAccessories(firmwareVersion string) (acc []*accessory.A) {
	acc = []*accessory.A{}

	for _, relay := range kit.Relays {
		accessory := relay.GetHk()
		if accessory != nil {
			if accessory.Info != nil && accessory.Info.FirmwareRevision != nil {
				accessory.Info.FirmwareRevision.SetValue(firmwareVersion)
			}
			accessory.Id = relay.GetUniqueId()
			acc = append(acc, accessory)
		}
	}

	return
}

func (kit *Kit) StartHomeKit(ctx context.Context, firmwareVersion string) error {
	hkName := kit.Name
	if len(hkName) < 1 {
		hkName = homeKitBridgeName
	}
	bridge := accessory.NewBridge(accessory.Info{
		Name:         hkName,
		Manufacturer: homeKitBridgeAuthor,
		Firmware:     firmwareVersion,
	})

	var store hap.Store
	if len(kit.HkDirectory) > 1 {
		store = hap.NewFsStore(kit.HkDirectory)
	} else {
		store = hap.NewFsStore(defaultHomeKitDirectory)
	}
	hkServer, err := hap.NewServer(store, bridge.A, kit.GetHkAccessories(firmwareVersion)...)
	if err != nil {
		return errors.Wrap(err, "failed to create HomeKit server")
	}
	hkServer.Pin = kit.HkPin
	if len(kit.HkAddress) > 0 {
		hkServer.Addr = kit.HkAddress
	}

	if kit.HkDebug {
		hklog.Debug.Enable()
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	signal.Notify(c, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		<-c
		// Stop delivering signals.
		signal.Stop(c)
		// Cancel the context to stop the server.
		cancel()
	}()

	return hkServer.ListenAndServe(ctx)
}

func (kit *Kit) InitMqtt() (err error) {
	if len(kit.MqttBroker) == 0 {
		err = errors.New("mqtt broker not set")
		return
	}

	mc, err := mqtt.NewClient(kit.MqttBroker, kit.mqttName())
	if err != nil {
		err = errors.Wrap(err, "failed to create mqtt client")
		return
	}

	kit.mqttClient = mc

	mqttHandlers := []mqtt.Handler{}
	for _, relay := range kit.Relays {
		mqttHandlers = append(mqttHandlers, &relayCommand{kit: kit, relay: relay})
	}

	err = mc.Connect(mqttHandlers)
	if err != nil {
		err = errors.Wrap(err, "failed to connect to mqtt broker")
	}

	return
}

// InitStateLog wires the InfluxDB state sink if it is configured.
func (kit *Kit) InitStateLog() {
	if kit.Influx == nil {
		return
	}
	kit.stateLog = statelog.New(*kit.Influx)
}

func (kit *Kit) mqttName() string {
	if len(kit.Name) > 0 {
		return kit.Name
	}
	return homeKitBridgeName
}

func (kit *Kit) stateTopic(relay *Relay) string {
	return fmt.Sprintf("relaykit/%s/%s/state", kit.mqttName(), relay.Name)
}

func (kit *Kit) Close() (err error) {
	if kit.server != nil {
		err = collectCloseErr(err, kit.server.Close())
	}

	if kit.mqttClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		err = collectCloseErr(err, kit.mqttClient.Disconnect(ctx))
		cancel()
	}

	if kit.stateLog != nil {
		kit.stateLog.Close()
	}

	if kit.closer != nil {
		err = collectCloseErr(err, kit.closer.Close())
	}

	return
}

func collectCloseErr(err, closeErr error) error {
	if closeErr == nil {
		return err
	}
	if err == nil {
		return closeErr
	}
	return errors.Wrap(err, closeErr.Error())
}

func (kit *Kit) PrintStatus(writer io.Writer) {
	fmt.Fprintln(writer)
	fmt.Fprintf(writer, "=== relay port %s ===\n", kit.port)
	for _, relay := range kit.Relays {
		on, _ := relay.GetState()
		state := "off"
		if on {
			state = "on"
		}
		fmt.Fprintf(writer, "| relay %d: %s (%s)\n", relay.Number, relay.Name, state)
	}
	fmt.Fprintln(writer, "-----------------------------")
	fmt.Fprintln(writer)
}

// relayCommand handles set commands arriving over mqtt for one relay.
type relayCommand struct {
	kit   *Kit
	relay *Relay
}

func (rc *relayCommand) MqttSubscribeTopic() string {
	return fmt.Sprintf("relaykit/%s/%s/set", rc.kit.mqttName(), rc.relay.Name)
}

func (rc *relayCommand) MqttHandle(pub *paho.Publish) {
	switch strings.ToLower(strings.TrimSpace(string(pub.Payload))) {
	case "1", "on", "true":
		rc.relay.SetValue(true)
	case "0", "off", "false":
		rc.relay.SetValue(false)
	case "toggle":
		rc.relay.Toggle()
	default:
		log.Warn("unrecognized relay command payload", "relay", rc.relay.Name, "payload", string(pub.Payload))
	}
}
