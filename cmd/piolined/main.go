package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hubertat/pioline"
	"github.com/hubertat/pioline/mqtt"
	"github.com/hubertat/pioline/recorder"
	"github.com/hubertat/pioline/remote"
)

var configPath = flag.String("config", "config.json", "path of the configuration file")

type LineConfig struct {
	Name       string
	Pin        uint
	Direction  string
	Edge       string
	DebounceMs int
}

type DaemonConfig struct {
	Lines []LineConfig

	MqttBroker   string
	MqttClientId string

	Influx *recorder.InfluxRecorder

	RemoteAddr  string
	RemoteToken string
}

func main() {
	flag.Parse()
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "piolined: "})
	logger.Info("piolined started")

	cfg := DaemonConfig{}
	configFile, err := os.Open(*configPath)
	if err != nil {
		logger.Fatal("can't open config file", "path", *configPath, "err", err)
	}
	buf, err := io.ReadAll(configFile)
	configFile.Close()
	if err != nil {
		logger.Fatal("failed reading config file", "err", err)
	}
	if err := json.Unmarshal(buf, &cfg); err != nil {
		logger.Fatal("failed unmarshalling json config", "err", err)
	}

	pins := map[string]*pioline.Pin{}
	for _, lc := range cfg.Lines {
		pin, err := pioline.New(lc.Pin, pioline.Config{
			Direction:       pioline.Direction(lc.Direction),
			Edge:            pioline.Edge(lc.Edge),
			DebounceTimeout: time.Duration(lc.DebounceMs) * time.Millisecond,
		})
		if err != nil {
			logger.Fatal("setting up line", "name", lc.Name, "pin", lc.Pin, "err", err)
		}
		pins[lc.Name] = pin
		logger.Info("line ready", "name", lc.Name, "pad", pin.Pad())
	}

	var mqttClient *mqtt.Client
	if cfg.MqttBroker != "" {
		clientId := cfg.MqttClientId
		if clientId == "" {
			clientId = "piolined"
		}
		mqttClient, err = mqtt.NewClient(cfg.MqttBroker, clientId)
		if err != nil {
			logger.Fatal("setting up mqtt client", "err", err)
		}

		handlers := []mqtt.Handler{}
		for name, pin := range pins {
			bridge := mqtt.NewPinBridge(name, pin, mqttClient)
			if err := bridge.Attach(); err != nil {
				logger.Fatal("attaching mqtt bridge", "line", name, "err", err)
			}
			handlers = append(handlers, bridge)
		}

		if err := mqttClient.Connect(context.Background(), handlers); err != nil {
			logger.Fatal("connecting to mqtt broker", "broker", cfg.MqttBroker, "err", err)
		}
	}

	if cfg.Influx != nil {
		if err := cfg.Influx.Setup(); err != nil {
			logger.Fatal("setting up influx recorder", "err", err)
		}
		defer cfg.Influx.Close()
		for name, pin := range pins {
			if err := cfg.Influx.Record(name, pin); err != nil {
				logger.Fatal("recording line", "name", name, "err", err)
			}
		}
	}

	var remoteServer *remote.Server
	if cfg.RemoteAddr != "" {
		remoteServer = remote.NewServer(cfg.RemoteAddr, cfg.RemoteToken)
		for name, pin := range pins {
			remoteServer.AddLine(name, pin)
		}
		if err := remoteServer.Start(); err != nil {
			logger.Fatal("starting remote server", "err", err)
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	if remoteServer != nil {
		select {
		case <-sig:
		case err := <-remoteServer.Err():
			logger.Error("remote server stopped", "err", err)
		}
	} else {
		<-sig
	}
	logger.Info("shutting down")

	if remoteServer != nil {
		remoteServer.Close()
	}
	if mqttClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		mqttClient.Disconnect(ctx)
		cancel()
	}
	for name, pin := range pins {
		if err := pin.Unexport(); err != nil {
			logger.Error("unexporting line", "name", name, "err", err)
		}
	}
}
