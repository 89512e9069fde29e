package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/patternhunt/PatternHunt/internal/api"
	"github.com/patternhunt/PatternHunt/internal/bitmap"
	"github.com/patternhunt/PatternHunt/internal/config"
	"github.com/patternhunt/PatternHunt/internal/engine"
	"github.com/patternhunt/PatternHunt/internal/events"
	"github.com/patternhunt/PatternHunt/internal/mqtt"
	"github.com/patternhunt/PatternHunt/internal/payload"
	"github.com/patternhunt/PatternHunt/internal/qrgen"
	"github.com/patternhunt/PatternHunt/internal/storage/postgres"
	"github.com/patternhunt/PatternHunt/internal/version"
)

// fanoutAnnouncer forwards engine announcements to every configured sink.
type fanoutAnnouncer []engine.Announcer

func (f fanoutAnnouncer) AnnounceMatch(rec engine.MatchRecord) {
	for _, a := range f {
		a.AnnounceMatch(rec)
	}
}

func (f fanoutAnnouncer) AnnounceStatus(st engine.Status) {
	for _, a := range f {
		a.AnnounceStatus(st)
	}
}

// webhookAnnouncer pushes discoveries to the alert webhook.
type webhookAnnouncer struct{}

func (webhookAnnouncer) AnnounceMatch(rec engine.MatchRecord) { api.NotifyMatchFound(rec) }
func (webhookAnnouncer) AnnounceStatus(engine.Status)         {}

// pgSink persists discoveries to Postgres.
type pgSink struct {
	client *postgres.Client
	huntID string
}

func (s *pgSink) SaveMatch(rec engine.MatchRecord) error {
	return s.client.InsertMatch(postgres.MatchRow{
		ID:          rec.ID,
		Timestamp:   rec.Timestamp,
		Payload:     rec.Payload,
		PatternName: rec.PatternName,
		X:           rec.Location.X,
		Y:           rec.Location.Y,
		Artifact:    rec.Artifact,
		IsSelfTest:  rec.IsSelfTest,
		HuntID:      s.huntID,
	})
}

func main() {
	configPath := flag.String("config", "hunt.yaml", "path to hunt.yaml")
	flag.Parse()

	cfg, err := config.LoadHuntConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load %s: %v", *configPath, err)
	}

	api.InitAuth()
	api.InitTLS()
	api.InitMetrics()
	api.InitAlerts()
	api.SetHuntName(cfg.Hunt.Name)

	hostname, _ := os.Hostname()
	events.Emit("info", "system.startup", "hunterd starting", map[string]interface{}{
		"hunt":     cfg.Hunt.ID,
		"hostname": hostname,
		"pid":      os.Getpid(),
		"version":  version.Version,
		"workers":  cfg.Workers(),
	})

	var pg *postgres.Client
	if cfg.Storage.Postgres {
		pg, err = postgres.New(cfg.Hunt.ID)
		if err != nil {
			log.Printf("postgres unavailable, continuing without persistence: %v", err)
			api.SetPostgresConnected(false)
		} else {
			events.SetPostgresClient(pg)
			api.SetPostgresConnected(true)
			defer pg.Close()
		}
	}

	store := bitmap.NewStore(cfg.PatternDir())
	source, err := qrgen.New(qrgen.Options{
		ModuleScale: cfg.QR.ModuleScale,
		QuietZone:   cfg.QR.QuietZone,
		ECLevel:     cfg.QR.ECLevel,
	})
	if err != nil {
		log.Fatalf("bad qr config: %v", err)
	}
	payloads := payload.NewGenerator(cfg.Search.PayloadBase, cfg.Search.PayloadLength)

	announcers := fanoutAnnouncer{webhookAnnouncer{}}

	var broker *mqtt.Client
	if cfg.MQTT.Enabled {
		broker = mqtt.NewClient("hunterd-" + cfg.Hunt.ID)
		announcers = append(announcers, mqtt.NewAnnouncer(broker, cfg.TopicPrefix()))
	}

	engCfg := engine.Config{
		Workers:             cfg.Workers(),
		Loader:              store,
		Source:              source,
		Payloads:            payloads,
		DefaultPattern:      cfg.Patterns.Default,
		SelfTestMargin:      cfg.SelfTestMargin(),
		ArtifactDir:         cfg.ArtifactDir(),
		ArtifactScale:       cfg.ArtifactScale(),
		Tick:                cfg.TickInterval(),
		StatusInterval:      cfg.StatusInterval(),
		ShutdownTimeout:     cfg.ShutdownTimeout(),
		ClearHistoryOnStart: cfg.Search.ClearHistoryOnStart,
		Announcer:           announcers,
	}
	if pg != nil {
		engCfg.Sink = &pgSink{client: pg, huntID: cfg.Hunt.ID}
	}
	eng := engine.New(engCfg)

	api.SetEngine(eng)
	api.SetPatternLister(store)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		api.SetEngineReady(true)
		defer api.SetEngineReady(false)
		return eng.Run(ctx)
	})

	if broker != nil {
		listener := mqtt.NewCommandListener(broker, cfg.TopicPrefix(), eng)
		g.Go(func() error {
			if listener.Start() {
				events.Emit("info", "broker.connected", "", map[string]interface{}{
					"url": mqtt.BrokerURL(),
				})
			} else {
				events.Emit("warning", "broker.disconnected", "broker unreachable at startup", map[string]interface{}{
					"url": mqtt.BrokerURL(),
				})
			}
			<-ctx.Done()
			broker.Disconnect()
			return nil
		})
	}

	// Connectivity watchdog feeding /metrics, /health and the alert monitor.
	g.Go(func() error {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if broker != nil {
					api.SetMQTTConnected(broker.IsConnected())
				}
				if pg != nil {
					api.SetPostgresConnected(pg.Ping() == nil)
				}
			}
		}
	})
	api.StartAlertMonitor(10 * time.Second)

	api.Start(cfg.UIPort(), cfg.ArtifactDir())

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Fatalf("hunterd exited: %v", err)
	}
	log.Println("hunterd stopped")
}
