package mqtt

import (
	"bytes"
	"os"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/eclipse/paho.golang/paho"
	"github.com/pkg/errors"

	"github.com/hubertat/pioline"
)

// Line is the slice of a pioline.Pin the bridge needs.
type Line interface {
	Read() (int, error)
	Write(value int) error
	Watch(fn pioline.WatchFunc) error
}

// PinBridge ties one GPIO line to the broker: debounced transitions go out
// on <prefix>/<name>/state, payloads arriving on <prefix>/<name>/set drive
// the line.
type PinBridge struct {
	Name   string
	Prefix string

	line   Line
	pub    Publisher
	logger *log.Logger
}

func NewPinBridge(name string, line Line, pub Publisher) *PinBridge {
	return &PinBridge{
		Name:   name,
		Prefix: "pioline",
		line:   line,
		pub:    pub,
		logger: log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "mqtt bridge: ",
			Level:  log.GetLevel(),
		}),
	}
}

func (b *PinBridge) stateTopic() string {
	return b.Prefix + "/" + b.Name + "/state"
}

// MqttSubscribeTopic implements Handler.
func (b *PinBridge) MqttSubscribeTopic() string {
	return b.Prefix + "/" + b.Name + "/set"
}

// Attach starts publishing the line's debounced transitions.
func (b *PinBridge) Attach() error {
	err := b.line.Watch(func(value int) {
		if err := b.pub.Publish(b.stateTopic(), []byte(strconv.Itoa(value))); err != nil {
			b.logger.Error("publishing state", "line", b.Name, "err", err)
		}
	})
	return errors.Wrapf(err, "watching line %s", b.Name)
}

// PublishCurrent pushes the present level once, giving subscribers an
// initial state before the first transition.
func (b *PinBridge) PublishCurrent() error {
	value, err := b.line.Read()
	if err != nil {
		return errors.Wrapf(err, "reading line %s", b.Name)
	}
	return b.pub.Publish(b.stateTopic(), []byte(strconv.Itoa(value)))
}

// MqttHandle implements Handler, applying a set command to the line.
func (b *PinBridge) MqttHandle(pub *paho.Publish) {
	var value int
	switch string(bytes.TrimSpace(pub.Payload)) {
	case "0":
		value = 0
	case "1":
		value = 1
	default:
		b.logger.Warn("ignoring set command", "line", b.Name, "payload", string(pub.Payload))
		return
	}
	if err := b.line.Write(value); err != nil {
		b.logger.Error("applying set command", "line", b.Name, "err", err)
	}
}
