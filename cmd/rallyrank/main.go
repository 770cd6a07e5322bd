// Command rallyrank runs the rating engine's operational daemon: it sweeps
// inactive ratings on a schedule and serves health, metrics, and read-only
// rating queries. Match processing itself is invoked by callers holding an
// engine instance; this process is the scheduled and observable surface.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/rallyrank/rallyrank/internal/adapters/repository"
	"github.com/rallyrank/rallyrank/internal/config"
	"github.com/rallyrank/rallyrank/internal/domain/model"
	"github.com/rallyrank/rallyrank/internal/engine"
	"github.com/rallyrank/rallyrank/pkg/logger"
	"github.com/rallyrank/rallyrank/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
	gaugeInterval     = 30 * time.Second
)

func main() {
	// A missing .env is fine; env vars may come from the environment.
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "failed to open rating store", logger.Error(err))
		return
	}

	eng := engine.New(store, cfg.Engine, engine.WithLogger(log.Named("engine")))

	go runSweeper(ctx, eng, cfg, log)
	go runGaugeUpdater(ctx, store)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(eng),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting ops server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "ops server failed", logger.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "stopped")
}

// openStore selects Postgres when a DSN is configured, else in-memory.
func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.Store, error) {
	if cfg.DatabaseDSN == "" {
		log.Warn(ctx, "no database_dsn configured, using in-memory store")
		return repository.NewMemStore(), nil
	}
	return repository.OpenPostgres(cfg.DatabaseDSN)
}

// runSweeper runs the inactivity adjustment on the configured interval.
func runSweeper(ctx context.Context, eng *engine.Engine, cfg *config.Config, log logger.Logger) {
	interval := time.Duration(cfg.SweepIntervalHours) * time.Hour
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := eng.AdjustForInactivity(ctx, ""); err != nil {
				log.Error(ctx, "inactivity sweep failed", logger.Error(err))
			}
		}
	}
}

// runGaugeUpdater keeps the tracked-ratings gauge current.
func runGaugeUpdater(ctx context.Context, store repository.Store) {
	ticker := time.NewTicker(gaugeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := store.Count(ctx); err == nil {
				metrics.UpdateRatingsTracked(n)
			}
		}
	}
}

func newRouter(eng *engine.Engine) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Get("/v1/winprob", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		ratingA, err1 := strconv.ParseFloat(q.Get("rating_a"), 64)
		rdA, err2 := strconv.ParseFloat(q.Get("rd_a"), 64)
		ratingB, err3 := strconv.ParseFloat(q.Get("rating_b"), 64)
		rdB, err4 := strconv.ParseFloat(q.Get("rd_b"), 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			http.Error(w, "rating_a, rd_a, rating_b, rd_b are required floats", http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]float64{
			"probability_a": eng.WinProbability(ratingA, rdA, ratingB, rdB),
			"probability_b": eng.WinProbability(ratingB, rdB, ratingA, rdA),
		})
	})

	r.Get("/v1/leaderboard", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		n, err := strconv.Atoi(q.Get("limit"))
		if err != nil || n <= 0 {
			n = 25
		}
		sport := model.Sport(q.Get("sport"))
		if sport == "" {
			sport = model.SportPickleball
		}
		gameType := model.GameType(q.Get("game_type"))
		if gameType == "" {
			gameType = model.GameTypeSingles
		}
		rows, err := eng.Leaderboard(req.Context(), q.Get("season_id"), sport, gameType, n)
		if err != nil {
			http.Error(w, "leaderboard query failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, rows)
	})

	return r
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
