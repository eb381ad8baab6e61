// Package serverapp wires the gateway's components into one process
// lifecycle: a sync.Once-guarded Start/Shutdown around one HTTP server
// fronting nonce, session, rate-limit, profile, inbox, callroom, blob,
// and analytics components.
package serverapp

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/httplog"

	"github.com/solace-labs/wallet-messenger/internal/analytics"
	"github.com/solace-labs/wallet-messenger/internal/blobstore"
	"github.com/solace-labs/wallet-messenger/internal/callroom"
	"github.com/solace-labs/wallet-messenger/internal/gateway"
	"github.com/solace-labs/wallet-messenger/internal/inbox"
	"github.com/solace-labs/wallet-messenger/internal/nonce"
	"github.com/solace-labs/wallet-messenger/internal/profile"
	"github.com/solace-labs/wallet-messenger/internal/ratelimit"
)

// App owns every long-lived component and the HTTP server fronting them.
type App struct {
	Cfg    *Config
	Server *gateway.Server

	profileCloser func() error
	limiterCloser func() error
	analyticsCloser func() error

	inboxes *inbox.Manager
	calls   *callroom.Manager
	blobs   *blobstore.Store

	httpSrv *http.Server

	startOnce    sync.Once
	shutdownOnce sync.Once
}

// New builds every component described by cfg, selecting Postgres-backed
// profile storage and call analytics when cfg.DatabaseURL is set and the
// embedded bbolt/no-op equivalents otherwise.
func New(cfg *Config) (*App, error) {
	a := &App{Cfg: cfg}

	profiles, profileCloser, err := openProfileStore(cfg)
	if err != nil {
		return nil, err
	}
	a.profileCloser = profileCloser

	sink, analyticsCloser, err := openAnalyticsSink(cfg)
	if err != nil {
		return nil, err
	}
	a.analyticsCloser = analyticsCloser

	limiter, limiterCloser, err := openLimiter(cfg)
	if err != nil {
		return nil, err
	}
	a.limiterCloser = limiterCloser

	inboxStore, err := inbox.OpenStore(cfg.InboxDBPath)
	if err != nil {
		return nil, err
	}
	a.inboxes = inbox.NewManager(inboxStore, inbox.DefaultTTL)

	callStore, err := callroom.OpenStateStore(cfg.CallStateDBPath)
	if err != nil {
		return nil, err
	}
	a.calls = callroom.NewManager(callStore, func(st callroom.Status) {
		sink.RecordCallEnded(st.RoomID, st.CallerID, st.CalleeID, st.Reason, st.CreatedAt, st.EndedAt)
	})

	blobs, err := blobstore.Open(cfg.BlobDBPath, cfg.BlobDir, cfg.BlobAtRestKey)
	if err != nil {
		return nil, err
	}
	a.blobs = blobs

	a.Server = &gateway.Server{
		Nonces:         nonce.New(nonce.DefaultTTL),
		Limiter:        limiter,
		Profiles:       profiles,
		Inboxes:        a.inboxes,
		Calls:          a.calls,
		Blobs:          blobs,
		Analytics:      sink,
		AllowedOrigins: cfg.AllowedOrigins,
	}
	return a, nil
}

func openProfileStore(cfg *Config) (profile.Store, func() error, error) {
	if cfg.DatabaseURL == "" {
		log.Print("DATABASE_URL not set; profiles backed by embedded bbolt store")
		store, err := profile.OpenBoltStore(cfg.ProfileDBPath)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
	store, err := profile.OpenPostgresStore(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

func openAnalyticsSink(cfg *Config) (gateway.AnalyticsSink, func() error, error) {
	if cfg.DatabaseURL == "" {
		log.Print("DATABASE_URL not set; call analytics disabled")
		return analytics.NoopSink{}, func() error { return nil }, nil
	}
	sink, err := analytics.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return sink, sink.Close, nil
}

func openLimiter(cfg *Config) (gateway.Limiter, func() error, error) {
	if !cfg.RateLimitPersist {
		return ratelimit.New(cfg.RateLimitCount, cfg.RateLimitWindow), func() error { return nil }, nil
	}
	durable, err := ratelimit.OpenDurableLimiter(cfg.RateLimitDBPath, cfg.RateLimitCount, cfg.RateLimitWindow)
	if err != nil {
		return nil, nil, err
	}
	return durable, durable.Close, nil
}

// Start configures the HTTP route tree and begins serving requests.
func (a *App) Start() error {
	var startErr error
	a.startOnce.Do(func() {
		logger := httplog.NewLogger("wallet-messenger", httplog.Options{JSON: true})
		a.httpSrv = &http.Server{
			Addr:    a.Cfg.Addr,
			Handler: httplog.RequestLogger(logger)(a.Server.Router()),
		}
		go func() {
			if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("gateway server stopped: %v", err)
			}
		}()
		log.Printf("gateway server listening on %s", a.Cfg.Addr)
	})
	return startErr
}

// Shutdown stops the HTTP server and closes every owned component, in
// dependency order (server first, so no new work is admitted, then the
// stores it depends on).
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.shutdownOnce.Do(func() {
		if a.httpSrv != nil {
			if err := a.httpSrv.Shutdown(ctx); err != nil {
				shutdownErr = err
			}
		}
		if err := a.calls.Close(); err != nil {
			log.Printf("close callroom manager: %v", err)
		}
		if err := a.inboxes.Close(); err != nil {
			log.Printf("close inbox manager: %v", err)
		}
		if err := a.blobs.Close(); err != nil {
			log.Printf("close blob store: %v", err)
		}
		if a.profileCloser != nil {
			if err := a.profileCloser(); err != nil {
				log.Printf("close profile store: %v", err)
			}
		}
		if a.limiterCloser != nil {
			if err := a.limiterCloser(); err != nil {
				log.Printf("close rate limiter: %v", err)
			}
		}
		if a.analyticsCloser != nil {
			if err := a.analyticsCloser(); err != nil {
				log.Printf("close analytics sink: %v", err)
			}
		}
	})
	return shutdownErr
}

// WaitForShutdown blocks on SIGINT/SIGTERM and then shuts the app down.
func WaitForShutdown(app *App) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("gateway server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
