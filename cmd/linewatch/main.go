// Watches a single GPIO line and logs every debounced transition.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hubertat/pioline"
)

var (
	pin      = flag.Uint("pin", 4, "logical pin id to watch")
	edge     = flag.String("edge", "both", "edge to watch: rising, falling or both")
	debounce = flag.Duration("debounce", 50*time.Millisecond, "debounce settle window, 0 disables")
)

func main() {
	flag.Parse()
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "linewatch: "})

	p, err := pioline.New(*pin, pioline.Config{
		Direction:       pioline.In,
		Edge:            pioline.Edge(*edge),
		DebounceTimeout: *debounce,
	})
	if err != nil {
		logger.Fatal("setting up line", "pin", *pin, "err", err)
	}

	err = p.Watch(func(value int) {
		logger.Info("line changed", "pin", *pin, "pad", p.Pad(), "value", value)
	})
	if err != nil {
		logger.Fatal("watching line", "err", err)
	}

	value, err := p.Read()
	if err != nil {
		logger.Fatal("reading line", "err", err)
	}
	logger.Info("watching", "pin", *pin, "pad", p.Pad(), "value", value)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	if err := p.Unexport(); err != nil {
		logger.Error("unexporting line", "err", err)
	}
}
