package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/codebreak-services/configs"
	"github.com/avvvet/codebreak-services/internal/comm"
	"github.com/avvvet/codebreak-services/internal/ctlsvc/scheduler"
	"github.com/avvvet/codebreak-services/internal/gamesvc/broker"
	gamecfg "github.com/avvvet/codebreak-services/internal/gamesvc/config"
	"github.com/avvvet/codebreak-services/internal/gamesvc/service"
	"github.com/avvvet/codebreak-services/internal/gamesvc/store"
	natscli "github.com/avvvet/codebreak-services/internal/nats"
)

const SERVICE_NAME = "ctl"

var instanceId string

func init() {
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	cfg, err := gamecfg.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	st, closeStore, err := store.Open(ctx, cfg)
	cancel()
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreBackend, err)
	}
	defer closeStore()

	// Connect to NATS
	n, err := natscli.Connect(SERVICE_NAME + " service " + instanceId)
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(1)
	}
	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	rules := service.DefaultRules()
	rules.HintPrice = cfg.HintPrice
	rounds := service.NewRoundService(st,
		service.WithRules(rules),
		service.WithNotifier(broker.NewEvents(n.Conn)))

	sched := scheduler.New(rounds, cfg.NextRoundDelay, cfg.CheckInterval)

	sub, err := n.Conn.Subscribe(comm.GameTopic, sched.HandleGameEvent)
	if err != nil {
		log.Errorf("Error: unable to subscribe to %s %v", comm.GameTopic, err)
		os.Exit(1)
	}
	defer sub.Unsubscribe()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infof("%s service running, next round delay %s", SERVICE_NAME, cfg.NextRoundDelay)
	sched.Run(ctx)
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
