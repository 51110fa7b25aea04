package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mengzhuo/stratumd"
	log "github.com/sirupsen/logrus"
)

var (
	fp = flag.String("c", "stratumd.yaml", "yaml config file")
	fv = flag.Bool("v", false, "print version")
	fd = flag.Bool("d", false, "debug log")

	fpprof = flag.String("pprof", "", "pprof listen")

	Version = "dev"
)

func newClock(cfg *stratumd.Config) stratumd.ClockSource {
	if cfg.Clock == "kernel" {
		return stratumd.NewKernelClock(cfg.GPS)
	}
	return stratumd.NewDeviceClock(time.Now, cfg.GPS, cfg.Manual)
}

func main() {
	flag.Parse()

	if *fv {
		fmt.Println(Version)
		return
	}

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if *fd {
		stratumd.Logger().SetLevel(log.DebugLevel)
	}

	if *fpprof != "" {
		go func() {
			log.WithError(http.ListenAndServe(*fpprof, nil)).Error("pprof stopped")
		}()
	}

	cfg, err := stratumd.NewConfigFromFile(*fp)
	if err != nil {
		log.WithError(err).Fatal("cannot load config")
	}
	log.Infof("%+v", cfg)

	store := stratumd.NewConfigStore(cfg)
	clock := newClock(cfg)
	r := stratumd.NewResponder(store, stratumd.NewUDPTransport(), clock)

	if cfg.Metric != "" {
		stats, err := stratumd.NewStatistic(cfg.GeoDB)
		if err != nil {
			log.WithError(err).Fatal("cannot init metrics")
		}
		defer stats.Close()
		r.Stats = stats
		go func() {
			log.WithError(stats.ListenAndServe(cfg.Metric)).Error("metric server stopped")
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			ncfg, err := store.Reload(*fp)
			if err != nil {
				log.WithError(err).Error("reload config, keep old one")
				continue
			}
			if ncfg.Clock != cfg.Clock {
				log.Warnf("clock %q -> %q needs a restart, keep %q", cfg.Clock, ncfg.Clock, cfg.Clock)
			}
			log.Infof("config reloaded %+v", ncfg)
		}
	}()

	err = r.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("responder stopped")
		os.Exit(1)
	}
	log.Info("responder stopped")
}
