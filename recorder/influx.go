// Package recorder persists GPIO line transitions to InfluxDB, one point
// per debounced interrupt dispatch.
package recorder

import (
	"context"
	"os"
	"time"

	"github.com/charmbracelet/log"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/pkg/errors"

	"github.com/hubertat/pioline"
)

const writeTimeout = 5 * time.Second
const defaultMeasurement = "gpio"

// Line is the slice of a pioline.Pin the recorder needs.
type Line interface {
	Watch(fn pioline.WatchFunc) error
	Pad() string
}

// InfluxRecorder writes every watched transition as a point tagged with the
// line name and pad. Fields are meant to be filled from config.
type InfluxRecorder struct {
	Host         string
	Organization string
	Bucket       string
	Measurement  string
	Token        string

	client influxdb2.Client
	write  api.WriteAPIBlocking
	logger *log.Logger
}

// Setup connects the client and verifies the server is reachable.
func (ir *InfluxRecorder) Setup() error {
	if ir.Measurement == "" {
		ir.Measurement = defaultMeasurement
	}
	ir.logger = log.NewWithOptions(os.Stderr, log.Options{
		Prefix: "influx recorder: ",
		Level:  log.GetLevel(),
	})

	ir.client = influxdb2.NewClient(ir.Host, ir.Token)
	ir.write = ir.client.WriteAPIBlocking(ir.Organization, ir.Bucket)

	ok, err := ir.client.Ping(context.Background())
	if err != nil {
		return errors.Wrap(err, "failed to ping influx server")
	}
	if !ok {
		return errors.Errorf("influx server %s not ready", ir.Host)
	}
	return nil
}

// Record subscribes to the line's transitions under the given name.
func (ir *InfluxRecorder) Record(name string, line Line) error {
	err := line.Watch(func(value int) {
		point := influxdb2.NewPoint(ir.Measurement,
			map[string]string{"line": name, "pad": line.Pad()},
			map[string]interface{}{"value": value},
			time.Now())

		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := ir.write.WritePoint(ctx, point); err != nil {
			ir.logger.Error("writing transition point", "line", name, "err", err)
		}
	})
	return errors.Wrapf(err, "watching line %s", name)
}

func (ir *InfluxRecorder) Close() {
	if ir.client != nil {
		ir.client.Close()
	}
}
