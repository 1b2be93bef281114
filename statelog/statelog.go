// Package statelog pushes relay state changes to InfluxDB.
package statelog

import (
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

const defaultMeasurement = "relay_state"

type Config struct {
	Host         string
	Token        string
	Organization string
	Bucket       string
	Measurement  string
}

// Writer queues state-change points through the client's non-blocking write
// api, batching is left to the client.
type Writer struct {
	client      influxdb2.Client
	writeApi    api.WriteAPI
	measurement string
}

func New(cfg Config) *Writer {
	measurement := cfg.Measurement
	if len(measurement) == 0 {
		measurement = defaultMeasurement
	}

	client := influxdb2.NewClient(cfg.Host, cfg.Token)
	return &Writer{
		client:      client,
		writeApi:    client.WriteAPI(cfg.Organization, cfg.Bucket),
		measurement: measurement,
	}
}

func (w *Writer) LogState(kitName string, relayName string, number int, state bool) {
	value := 0
	if state {
		value = 1
	}

	point := influxdb2.NewPoint(w.measurement,
		map[string]string{
			"kit":   kitName,
			"relay": relayName,
		},
		map[string]interface{}{
			"number": number,
			"state":  value,
		},
		time.Now())

	w.writeApi.WritePoint(point)
}

func (w *Writer) Close() {
	w.writeApi.Flush()
	w.client.Close()
}
