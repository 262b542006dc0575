package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pereirasil/corrida-app-sub000/internal/api"
	"github.com/pereirasil/corrida-app-sub000/internal/arbiter"
	"github.com/pereirasil/corrida-app-sub000/internal/db"
	"github.com/pereirasil/corrida-app-sub000/internal/location"
	"github.com/pereirasil/corrida-app-sub000/internal/playback"
	"github.com/pereirasil/corrida-app-sub000/internal/serialmux"
	"github.com/pereirasil/corrida-app-sub000/internal/timeutil"
	"github.com/pereirasil/corrida-app-sub000/internal/tracker"
)

// openReceiver returns the serial mux for the GPS receiver, or a
// NoReceiver when no port is configured.
func openReceiver() (serialmux.SerialMuxInterface, bool, error) {
	if *port == "" {
		return serialmux.NewNoReceiver(), false, nil
	}
	opts, err := serialmux.ParsePortOptions(*serialOpts)
	if err != nil {
		return nil, false, fmt.Errorf("invalid -serial: %w", err)
	}
	m, err := serialmux.NewRealSerialMux(*port, opts)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open GPS receiver: %w", err)
	}
	return m, true, nil
}

func serve() error {
	settings, err := loadSettings(*configPath)
	if err != nil {
		return err
	}
	classifier, err := loadClassifier(settings)
	if err != nil {
		return err
	}

	receiver, attached, err := openReceiver()
	if err != nil {
		return err
	}
	defer receiver.Close()

	clock := timeutil.RealClock{}
	var provider location.Provider
	switch {
	case *replay != "":
		rp, err := location.LoadReplay(clock, *replay)
		if err != nil {
			return err
		}
		provider = rp
		log.Printf("replaying fixes from %s", *replay)
	case attached:
		nmea := location.NewNMEAProvider(receiver, clock)
		if err := nmea.Initialize(settings.GetTimeInterval()); err != nil {
			log.Printf("failed to configure GPS receiver: %v", err)
		}
		provider = nmea
		log.Printf("reading fixes from %s", *port)
	default:
		provider = location.NewNMEAProvider(nil, clock)
		log.Print("no GPS receiver configured, runs cannot start")
	}

	var store api.SessionStore
	var database *db.DB
	if !*noStore {
		database, err = db.NewDB(*dbPath)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()
		store = database
	}

	arb := arbiter.New()
	tr, err := tracker.New(tracker.Config{Provider: provider, Arbiter: arb, Clock: clock, Settings: settings})
	if err != nil {
		return err
	}
	player := playback.New(arb, clock)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := receiver.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("failed to monitor serial port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		srv := api.NewServer(api.Config{
			Tracker: tr,
			Arbiter: arb,
			Player:  player,
			Store:   store,
			Terrain: classifier,
		})
		mux := srv.ServeMux()

		// admin debugging routes, reachable from loopback or over Tailscale
		receiver.AttachAdminRoutes(mux)
		srv.AttachAdminRoutes(mux)
		if database != nil {
			if err := database.AttachAdminRoutes(mux); err != nil {
				log.Printf("failed to attach database admin routes: %v", err)
			}
		}

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()

	// A run still going at shutdown is finished and kept.
	if s, err := tr.Stop(); err == nil && store != nil {
		if err := store.SaveSession(context.Background(), s); err != nil {
			log.Printf("failed to save session %s: %v", s.ID, err)
		} else {
			log.Printf("saved session %s", s.ID)
		}
	}
	log.Printf("Graceful shutdown complete")
	return nil
}
