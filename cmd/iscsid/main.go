package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/go-iscsi/initiator/pkg/initiator"
	"github.com/go-iscsi/initiator/pkg/metrics"
	"github.com/go-iscsi/initiator/pkg/session"
	"github.com/go-iscsi/initiator/pkg/settings"
)

var DefaultPortalPort = 3260

func main() {
	log.SetLevel(log.DebugLevel)

	configPath := flag.String("c", "", "path to an initiator settings ini file")
	targetIQN := flag.String("target", "", "target IQN to log into, overrides the config's [portal] sections")
	portalAddr := flag.String("portal", "", "portal address, e.g. 10.0.0.5")
	portalPort := flag.Int("port", DefaultPortalPort, "portal port")
	hostIface := flag.String("iface", "", "bind the connection to this network interface")
	metricsAddr := flag.String("metrics", ":9260", "address to serve Prometheus metrics on")
	flag.Parse()

	cfg := settings.Defaults()
	if *configPath != "" {
		loaded, err := settings.Load(*configPath)
		if err != nil {
			log.Fatalf("failed to load settings from %s: %v", *configPath, err)
		}
		cfg = loaded
	}

	if *targetIQN != "" {
		cfg.Portals = []settings.Portal{{
			TargetIQN: *targetIQN,
			Address:   *portalAddr,
			Port:      uint16(*portalPort),
			Iface:     *hostIface,
		}}
	}
	if len(cfg.Portals) == 0 {
		log.Fatal("no portal configured: pass -target/-portal or a config file with [portal \"iqn\"] sections")
	}

	completer := &loggingCompleter{}
	targetHooks := &loggingTargetHooks{}
	ctl := initiator.New(completer, targetHooks, &loggingDaemonHooks{}, nil)
	ctl.SetTaskTimeout(cfg.TaskTimeout)

	connParams := &session.ConnParams{
		HeaderDigest:             cfg.HeaderDigest,
		DataDigest:               cfg.DataDigest,
		MaxSendDataSegmentLength: cfg.MaxSendDataSegment,
		MaxRecvDataSegmentLength: cfg.MaxRecvDataSegment,
	}

	for _, portal := range cfg.Portals {
		sid, cid, err := ctl.CreateSession(portal.TargetIQN, portal.Address, portal.Port, portal.Iface,
			nil, connParams, cfg.ConnectTimeout)
		if err != nil {
			log.Errorf("failed to create session for %s: %v", portal.TargetIQN, err)
			continue
		}
		if err := ctl.ActivateConnection(sid, cid); err != nil {
			log.Errorf("failed to activate connection for %s: %v", portal.TargetIQN, err)
			continue
		}
		log.Infof("session %d connection %d active: %s at %s:%d", sid, cid, portal.TargetIQN, portal.Address, portal.Port)
		go ctl.RunConnection(sid, cid)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics.NewCollector(ctl.Store))
	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
			log.Errorf("metrics server stopped: %v", err)
		}
	}()

	waitForSignal()
}

func waitForSignal() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")
	time.Sleep(100 * time.Millisecond)
}
