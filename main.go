package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ghcetraro/pod-forward/internal/broker"
	"github.com/ghcetraro/pod-forward/internal/config"
	"github.com/ghcetraro/pod-forward/internal/database"
	"github.com/ghcetraro/pod-forward/internal/handlers"
	"github.com/ghcetraro/pod-forward/internal/kube"
	"github.com/ghcetraro/pod-forward/internal/logging"
	"github.com/ghcetraro/pod-forward/internal/middleware"
	"github.com/ghcetraro/pod-forward/internal/ports"
	"github.com/ghcetraro/pod-forward/internal/supervisor"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

func main() {
	config.Load()
	logging.Init()

	if err := database.Init(); err != nil {
		log.Fatalf("Database init: %v", err)
	}
	defer database.Close()

	log.Printf("Config: namespace=%s, port_range=%d-%d, forward_timeout=%s",
		config.Cfg.DefaultNamespace, config.Cfg.PortRangeStart, config.Cfg.PortRangeEnd, config.Cfg.SessionLifetime)

	profiles, err := config.LoadProfiles(config.Cfg.ProfilesPath)
	if err != nil {
		log.Printf("WARNING: profiles not loaded: %v", err)
	} else if len(profiles) > 0 {
		log.Printf("Loaded %d forward profiles from %s", len(profiles), config.Cfg.ProfilesPath)
	}
	handlers.Profiles = profiles

	alloc, err := ports.NewAllocator(config.Cfg.PortRangeStart, config.Cfg.PortRangeEnd)
	if err != nil {
		log.Fatalf("Port allocator init: %v", err)
	}

	sup := supervisor.New(config.Cfg.KubectlPath, config.Cfg.StartupWait)

	brk := broker.New(broker.Config{
		Lifetime:    config.Cfg.SessionLifetime,
		GracePeriod: config.Cfg.GracePeriod,
		BindAddress: config.Cfg.BindAddress,
	}, alloc, sup)
	handlers.Broker = brk

	// Validate targets against the cluster when a client is available.
	// kubectl still does the actual forwarding, so startup proceeds without one.
	if kc, err := kube.NewClient(); err != nil {
		log.Printf("WARNING: kubernetes client unavailable, target validation disabled: %v", err)
	} else {
		brk.SetValidator(kc)
		log.Printf("Kubernetes client initialized (in-cluster=%v)", kc.InCluster())
	}

	brk.SetRecorder(func(sessionID, namespace, pod string, remotePort, localPort int, action, detail string) {
		err := database.RecordEvent(&database.ForwardEvent{
			SessionID:  sessionID,
			Namespace:  namespace,
			Pod:        pod,
			RemotePort: remotePort,
			LocalPort:  localPort,
			Action:     action,
			Detail:     detail,
		})
		if err != nil {
			log.Printf("WARNING: audit record failed: %v", err)
		}
	})

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	brk.StartReconciler(sigCtx, config.Cfg.ReconcileInterval)

	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	// Health (no auth)
	r.Get("/health", handlers.HealthCheck)

	r.Route("/api/v1/extensions/pod-forward", func(r chi.Router) {
		r.Use(middleware.RequireToken(config.Cfg.AuthToken))

		r.Get("/forward", handlers.Forward)
		r.Post("/stop/{sessionID}", handlers.StopForward)
		r.Get("/status", handlers.Status)
		r.Get("/profiles", handlers.ListProfiles)
		r.Get("/events", handlers.Events)
		r.Get("/logs", handlers.ServerLogs)
	})

	srv := &http.Server{
		Addr:    config.Cfg.ListenAddr,
		Handler: r,
	}

	go func() {
		log.Printf("Server starting on %s", config.Cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-sigCtx.Done()
	log.Println("Shutting down...")

	brk.StopAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
