package relaykit

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/pkg/errors"
)

const httpTimeoutsMs = 3000

// StartHttpApi serves a small token-guarded control surface:
//
//	GET /status/token/:token
//	GET /relay/:name/set/:state/token/:token
//
// where state is on/off/toggle. The server runs in the background, its
// terminal error lands on the kit's error channel.
func (kit *Kit) StartHttpApi() error {
	if len(kit.HttpToken) == 0 {
		return errors.New("http api requires HttpToken to be set")
	}

	handler := httprouter.New()
	handler.GET("/status/token/:token", kit.handleStatus)
	handler.GET("/relay/:name/set/:state/token/:token", kit.handleSetRelay)

	httpTimeout := httpTimeoutsMs * time.Millisecond

	kit.server = &http.Server{
		Addr:              kit.HttpAddr,
		Handler:           handler,
		ReadTimeout:       httpTimeout,
		ReadHeaderTimeout: httpTimeout,
		WriteTimeout:      httpTimeout,
		IdleTimeout:       2 * httpTimeout,
	}

	kit.serverErr = make(chan error)

	go func() {
		kit.serverErr <- kit.server.ListenAndServe()
	}()

	return nil
}

func (kit *Kit) checkHttpToken(w http.ResponseWriter, p httprouter.Params) bool {
	if !strings.EqualFold(p.ByName("token"), kit.HttpToken) {
		http.Error(w, "token mismatch", http.StatusUnauthorized)
		return false
	}
	return true
}

func (kit *Kit) handleStatus(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	if !kit.checkHttpToken(w, p) {
		return
	}

	value, err := kit.readState()
	if err != nil {
		http.Error(w, "failed to read relay port", http.StatusBadGateway)
		return
	}

	type relayStatus struct {
		Name   string
		Number int
		State  bool
	}
	type kitStatus struct {
		Name      string
		Port      string
		PortValue byte
		Relays    []relayStatus
	}

	status := kitStatus{
		Name:      kit.mqttName(),
		Port:      kit.port.String(),
		PortValue: value,
	}
	for _, relay := range kit.Relays {
		on, _ := relay.GetState()
		status.Relays = append(status.Relays, relayStatus{
			Name:   relay.Name,
			Number: relay.Number,
			State:  on,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (kit *Kit) handleSetRelay(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	if !kit.checkHttpToken(w, p) {
		return
	}

	relay := kit.findRelay(p.ByName("name"))
	if relay == nil {
		http.Error(w, "relay not found", http.StatusNotFound)
		return
	}

	switch strings.ToLower(p.ByName("state")) {
	case "on", "1", "true":
		relay.SetValue(true)
	case "off", "0", "false":
		relay.SetValue(false)
	case "toggle":
		relay.Toggle()
	default:
		http.Error(w, "unknown state, want on/off/toggle", http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
