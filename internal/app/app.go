package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	server "hearth-and-harm/server"
	"hearth-and-harm/server/hotspots/catalog"
	"hearth-and-harm/server/internal/telemetry"
	"hearth-and-harm/server/logging"
	loggingsinks "hearth-and-harm/server/logging/sinks"
)

// Config carries the process-level knobs app.Run accepts from main.
type Config struct {
	ConfigPath string
	Logger     telemetry.Logger
}

// Run wires config, logging, world, and hub together and serves until the
// context is cancelled.
func Run(ctx context.Context, cfg Config) error {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}

	serverCfg, err := server.LoadServerConfig(cfg.ConfigPath)
	if err != nil {
		return err
	}

	logCfg := logging.DefaultConfig()
	logCfg.EnabledSinks = serverCfg.Logging.Sinks
	logCfg.MinimumSeverity = parseSeverity(serverCfg.Logging.MinSeverity)
	logCfg.Fields = map[string]any{"seed": serverCfg.World.Seed}

	sinks := map[string]logging.Sink{
		"console": loggingsinks.NewConsole(os.Stdout),
	}
	if serverCfg.Logging.JSONPath != "" {
		file, err := os.OpenFile(serverCfg.Logging.JSONPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("app: open json log: %w", err)
		}
		defer file.Close()
		sinks["json"] = loggingsinks.NewJSON(file, logCfg.JSON.FlushInterval)
	}

	router, err := logging.NewRouter(logCfg, logging.SystemClock{}, log.Default(), sinks)
	if err != nil {
		return fmt.Errorf("app: construct logging router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			logger.Printf("app: close logging router: %v", cerr)
		}
	}()

	world := server.NewWorld(serverCfg.World, router)

	cat, err := catalog.Load(serverCfg.CatalogPath)
	if err != nil {
		return err
	}
	for _, entry := range cat.Entries() {
		if _, err := world.SpawnHotspot(entry); err != nil {
			return err
		}
	}
	logger.Printf("app: spawned %d hotspots from %s", len(cat.IDs()), serverCfg.CatalogPath)

	hub := server.NewHub(world, logger)

	mux := http.NewServeMux()
	registerRoutes(mux, hub, logger)

	httpServer := &http.Server{
		Addr:    serverCfg.ListenAddr,
		Handler: mux,
	}

	stop := make(chan struct{})
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		hub.RunSimulation(stop)
		return nil
	})
	group.Go(func() error {
		logger.Printf("app: listening on %s", serverCfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		close(stop)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func parseSeverity(raw string) logging.Severity {
	switch raw {
	case "debug":
		return logging.SeverityDebug
	case "warn":
		return logging.SeverityWarn
	case "error":
		return logging.SeverityError
	default:
		return logging.SeverityInfo
	}
}

func registerRoutes(mux *http.ServeMux, hub *server.Hub, logger telemetry.Logger) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w http.ResponseWriter, r *http.Request) {
		tick, actorCount, counters := hub.Diagnostics()
		payload := struct {
			Status     string                 `json:"status"`
			ServerTime int64                  `json:"serverTime"`
			Tick       uint64                 `json:"tick"`
			Actors     int                    `json:"actors"`
			Counters   server.CounterSnapshot `json:"counters"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			Tick:       tick,
			Actors:     actorCount,
			Counters:   counters,
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			logger.Printf("app: encode diagnostics: %v", err)
		}
	})

	mux.HandleFunc("/join", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(hub.Join()); err != nil {
			logger.Printf("app: encode join: %v", err)
		}
	})

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		playerID := r.URL.Query().Get("id")
		if playerID == "" {
			http.Error(w, "missing id", http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Printf("app: upgrade failed for %s: %v", playerID, err)
			return
		}
		if _, ok := hub.Subscribe(playerID, conn); !ok {
			message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unknown player")
			conn.WriteMessage(websocket.CloseMessage, message)
			conn.Close()
			return
		}
		go readLoop(hub, playerID, conn, logger)
	})
}

func readLoop(hub *server.Hub, playerID string, conn *websocket.Conn, logger telemetry.Logger) {
	defer hub.Disconnect(playerID)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Printf("app: read loop for %s: %v", playerID, err)
			}
			return
		}
		hub.HandleClientMessage(playerID, data)
	}
}
