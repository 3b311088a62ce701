package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/oakfield-data/motion.report/internal/api"
	"github.com/oakfield-data/motion.report/internal/config"
	"github.com/oakfield-data/motion.report/internal/db"
	"github.com/oakfield-data/motion.report/internal/ingest"
	"github.com/oakfield-data/motion.report/internal/mqtt"
	"github.com/oakfield-data/motion.report/internal/store"
	"github.com/oakfield-data/motion.report/internal/version"
)

var (
	listen      = flag.String("listen", "", "HTTP listen address (default :8080)")
	udpListen   = flag.String("udp-listen", "", "UDP listen address for sensor datagrams (default :5005)")
	dbFile      = flag.String("db", "", "SQLite database path (default sensor_data.db)")
	history     = flag.Int("history", 0, "Per-sensor history ring capacity (default 200)")
	readTimeout = flag.Duration("read-timeout", 0, "UDP read deadline (default 500ms)")
	angleUnits  = flag.String("units", "", "Angle units for API responses: rad or deg (default deg)")
	staleAfter  = flag.Duration("stale-after", 0, "Window after which sensor data is reported stale (default 3s)")
	mqttBroker  = flag.String("mqtt", "", "MQTT broker URL for republishing readings (disabled if empty)")
	forwardTo   = flag.String("forward", "", "Address to forward raw UDP datagrams to (disabled if empty)")
	configPath  = flag.String("config", "", "Path to JSON config file (flags override file values)")
	noPersist   = flag.Bool("no-persist", false, "Disable SQLite persistence of readings")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func loadConfig() *config.Config {
	if *configPath == "" {
		return config.Empty()
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config %s: %v", *configPath, err)
	}
	return cfg
}

// applyFlags overlays non-empty command-line flags onto the file config.
func applyFlags(cfg *config.Config) {
	if *listen != "" {
		cfg.HTTPListen = listen
	}
	if *udpListen != "" {
		cfg.UDPListen = udpListen
	}
	if *dbFile != "" {
		cfg.DBPath = dbFile
	}
	if *history > 0 {
		cfg.HistoryCapacity = history
	}
	if *readTimeout > 0 {
		s := readTimeout.String()
		cfg.ReadTimeout = &s
	}
	if *staleAfter > 0 {
		s := staleAfter.String()
		cfg.StaleAfter = &s
	}
	if *angleUnits != "" {
		cfg.AngleUnits = angleUnits
	}
	if *mqttBroker != "" {
		cfg.MQTTBroker = mqttBroker
	}
	if *forwardTo != "" {
		cfg.ForwardTo = forwardTo
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
}

// Main
func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("motion %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	cfg := loadConfig()
	applyFlags(cfg)

	// Database migration subcommand: `motion migrate up|down|status|force N`
	if args := flag.Args(); len(args) > 0 && args[0] == "migrate" {
		db.RunMigrateCommand(args[1:], cfg.GetDBPath())
		return
	}

	st := store.New(cfg.GetHistoryCapacity())
	defer st.Close()

	var sdb *db.DB
	var sessionID string
	if !*noPersist {
		var err error
		sdb, err = db.NewDB(cfg.GetDBPath())
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer sdb.Close()

		sessionID, err = sdb.StartSession(cfg.GetUDPListen())
		if err != nil {
			log.Fatalf("Failed to start recording session: %v", err)
		}
		log.Printf("Recording session %s", sessionID)
	}

	stats := ingest.NewPacketStats()

	var forwarder *ingest.PacketForwarder
	if addr := cfg.GetForwardTo(); addr != "" {
		var err error
		forwarder, err = ingest.NewPacketForwarder(addr, stats, time.Minute)
		if err != nil {
			log.Fatalf("Failed to set up packet forwarding to %s: %v", addr, err)
		}
		defer forwarder.Close()
	}

	listenerCfg := ingest.Config{
		Address:     cfg.GetUDPListen(),
		RcvBuf:      cfg.GetRcvBuf(),
		ReadTimeout: cfg.GetReadTimeout(),
		Stats:       stats,
		Forwarder:   forwarder,
		Store:       st,
		SessionID:   sessionID,
	}
	if sdb != nil {
		listenerCfg.Recorder = sdb
	}
	listener := ingest.NewUDPListener(listenerCfg)

	// Create a wait group for the HTTP server, UDP listener, and publisher routines
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// UDP ingestion routine. A bind failure is fatal: without the listener
	// the daemon has nothing to serve.
	wg.Add(1)
	udpErr := make(chan error, 1)
	go func() {
		defer wg.Done()
		if err := listener.Start(ctx); err != nil && err != context.Canceled {
			log.Printf("UDP listener error: %v", err)
			udpErr <- err
			stop()
		}
		log.Print("UDP listener routine terminated")
	}()

	// Optional MQTT republisher
	if broker := cfg.GetMQTTBroker(); broker != "" {
		pub, err := mqtt.NewPublisher(broker, "motion-"+fmt.Sprint(os.Getpid()), st)
		if err != nil {
			log.Fatalf("Failed to connect MQTT publisher: %v", err)
		}
		defer pub.Close()

		wg.Add(1)
		go func() {
			defer wg.Done()
			pub.Run(ctx)
			log.Print("MQTT publisher routine terminated")
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		// mount the API handlers plus admin debugging routes
		srv := api.NewServer(st, sdb, listener, cfg.GetAngleUnits(), cfg.GetStaleAfter())
		mux := srv.ServeMux()
		if sdb != nil {
			sdb.AttachAdminRoutes(mux)
		}

		server := &http.Server{
			Addr:    cfg.GetHTTPListen(),
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			log.Printf("Starting HTTP server on %s", cfg.GetHTTPListen())
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			// Force close the server if graceful shutdown fails
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()

	select {
	case err := <-udpErr:
		log.Fatalf("Exiting: %v", err)
	default:
	}
	log.Printf("Graceful shutdown complete")
}
