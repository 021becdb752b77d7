// Command brokerd is the broker daemon: it scans a models directory for
// packages, brings up the Control Service, and serves JSON-RPC requests on
// whichever transport the configuration selects.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"sync"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/npc-engine/npc-engine/core"
	"github.com/npc-engine/npc-engine/core/bus"
	"github.com/npc-engine/npc-engine/core/config"
	corelog "github.com/npc-engine/npc-engine/core/log"
	"github.com/npc-engine/npc-engine/core/util"
	"github.com/npc-engine/npc-engine/control"
	"github.com/npc-engine/npc-engine/frontend"
	"github.com/npc-engine/npc-engine/metadata"
)

func main() {
	processArgs()

	cfg := config.DefaultBrokerConfig()
	if err := config.LoadConfig("broker", cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	corelog.Initialize(cfg.Log)

	if cfg.ModelsPath == "" {
		cfg.ModelsPath = util.Getenv("NPC_ENGINE_MODELS_PATH", ".")
	}

	meta, err := metadata.Scan(cfg.ModelsPath)
	if err != nil {
		log.WithError(err).Fatal("failed to scan models path")
	}

	workerBin, err := os.Executable()
	if err != nil {
		log.WithError(err).Fatal("failed to resolve own executable path")
	}

	svc := control.NewService(meta, workerBin, cfg.ProbeTimeout, cfg.ProbeInterval)

	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}

	if cfg.BusEndpoint != "" {
		backend := cfg.BusEndpoint + "-backend"
		busFrontend := cfg.BusEndpoint + "-frontend"

		b := bus.NewBus(bus.Config{
			Name:     cfg.Service.ID,
			Unit:     "events",
			Backend:  backend,
			Frontend: busFrontend,
		})
		wg.Add(1)
		go func() {
			if err := b.Start(ctx, wg); err != nil {
				log.WithError(err).Warn("event bus exited with an error")
			}
		}()

		source := bus.NewSource(backend, "slot")
		svc.SetEvents(source)
		wg.Add(1)
		go source.Run(ctx, wg)
	}

	if cfg.StartServices {
		svc.StartAll()
	}

	fe, err := buildFrontEnd(cfg, svc)
	if err != nil {
		log.WithError(err).Fatal("failed to construct front end")
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := fe.Run(ctx); err != nil {
			log.WithError(err).Error("front end exited with an error")
		}
	}()

	log.WithFields(log.Fields{
		"transport": cfg.Transport,
		"public":    cfg.PublicEndpoint,
		"models":    cfg.ModelsPath,
	}).Info("broker started")

	termChan := make(chan os.Signal, 1)
	signal.Notify(termChan, syscall.SIGINT, syscall.SIGTERM)
	<-termChan

	log.Debug("broker terminating")

	cancel()
	svc.Shutdown()
	wg.Wait()

	log.Debug("broker exiting")
}

func buildFrontEnd(cfg *config.BrokerConfig, svc *control.Service) (frontend.FrontEnd, error) {
	switch cfg.Transport {
	case "http":
		return &frontend.HTTP{Dispatcher: svc, Addr: cfg.PublicEndpoint}, nil
	case "socket", "":
		return &frontend.Socket{
			Dispatcher:       svc,
			PublicEndpoint:   cfg.PublicEndpoint,
			InternalEndpoint: cfg.InternalEndpoint,
		}, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

func processArgs() {
	if len(os.Args) > 1 {
		r := regexp.MustCompile("^-V$|(-{2})?version$")
		if r.MatchString(os.Args[1]) {
			fmt.Println(core.VERSION)
			os.Exit(0)
		}
	}
}
