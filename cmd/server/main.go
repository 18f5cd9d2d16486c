package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	persistlog "blec.dev/internal/persistence/log"
	"blec.dev/internal/persistence/snapshot"
	"blec.dev/internal/sim/tuning"
	"blec.dev/internal/sim/world"
	"blec.dev/internal/sim/world/block"
	"blec.dev/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "world_1", "world id")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index (tick/audit + palette + snapshot metadata)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")

		savesDir = flag.String("saves", "saves", "directory for named saves")
		saveName = flag.String("save", "", "named save to load at startup and write at shutdown (optional)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	// Optional: read-model index backend (does not affect sim determinism).
	idx, err := openRuntimeIndex(worldDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertPalette(tune); err != nil {
			logger.Printf("index backend: upsert palette: %v", err)
		}
	}

	mirror, err := openBackupMirror(*dataDir, os.Getenv, log.New(os.Stdout, "[backup] ", log.LstdFlags|log.Lmicroseconds))
	if err != nil {
		logger.Fatalf("init backup: %v", err)
	}
	// Closed after the loggers so their last files are uploaded.
	defer mirror.Close()

	w := world.New(world.ConfigFromTuning(*worldID, tune))
	saves := snapshot.NewSaves(*savesDir)
	name := strings.TrimSpace(*saveName)
	if err := loadInitialState(w, saves, name, *snapPath, *loadLatest, worldDir, tune, logger); err != nil {
		logger.Fatalf("%v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	tickLog := persistlog.NewTickLogger(worldDir)
	auditLog := persistlog.NewAuditLogger(worldDir)
	defer tickLog.Close()
	defer auditLog.Close()
	if mirror != nil {
		tickLog.OnClose(mirror.Enqueue)
		auditLog.OnClose(mirror.Enqueue)
	}
	w.SetTickLogger(multiTickLogger{a: tickLog, b: idx})
	w.SetAuditLogger(multiAuditLogger{a: auditLog, b: idx})

	// Snapshot writer.
	snapCh := make(chan snapshot.SnapshotV1, 2)
	w.SetSnapshotSink(snapCh)
	snapDone := make(chan struct{})
	go func() {
		defer close(snapDone)
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				path := snapshot.Path(worldDir, snap.Header.Tick)
				if err := snapshot.WriteSnapshot(path, snap); err != nil {
					logger.Printf("snapshot write: %v", err)
					continue
				}
				if idx != nil {
					idx.RecordSnapshot(path, snap)
				}
				mirror.Enqueue(path)
			}
		}
	}()

	worldDone := make(chan struct{})
	go func() {
		defer close(worldDone)
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	reg := prometheus.NewRegistry()
	var bk backupStats
	if mirror != nil {
		bk = mirror
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		newWorldCollector(w, idx, bk),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		resp := struct {
			WorldID string             `json:"world_id"`
			Tick    uint64             `json:"tick"`
			Metrics world.WorldMetrics `json:"metrics"`
		}{
			WorldID: *worldID,
			Tick:    w.CurrentTick(),
			Metrics: w.Metrics(),
		}
		_ = json.NewEncoder(rw).Encode(resp)
	})
	mux.HandleFunc("/admin/v1/snapshot", snapshotHandler(w))
	mux.HandleFunc("/v1/ws", ws.NewServer(w, log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lmicroseconds)).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	// The world loop owns its state until Run returns.
	<-worldDone
	<-snapDone
	if name != "" {
		if err := saves.Save(name, w.ExportSnapshot()); err != nil {
			logger.Printf("save %q: %v", name, err)
		} else {
			logger.Printf("saved %q at tick=%d", name, w.CurrentTick())
		}
	}
}

// loadInitialState resumes from a named save, then an explicit or latest
// snapshot, and otherwise generates the spawn area.
func loadInitialState(w *world.World, saves snapshot.Saves, name, snapPath string, loadLatest bool, worldDir string, tune tuning.Tuning, logger *log.Logger) error {
	if name != "" && saves.Exists(name) {
		snap, err := saves.Load(name)
		if err != nil {
			return err
		}
		if err := w.ImportSnapshot(snap); err != nil {
			return err
		}
		w.DropSessions()
		logger.Printf("resumed from save=%s tick=%d", name, w.CurrentTick())
		return nil
	}

	path := strings.TrimSpace(snapPath)
	if path == "" && loadLatest {
		path = snapshot.Latest(worldDir)
	}
	if path != "" {
		snap, err := snapshot.ReadSnapshot(path)
		if err != nil {
			return err
		}
		if snap.Header.WorldID != "" && snap.Header.WorldID != w.ID() {
			return &worldIDMismatchError{Want: w.ID(), Got: snap.Header.WorldID}
		}
		if err := w.ImportSnapshot(snap); err != nil {
			return err
		}
		w.DropSessions()
		logger.Printf("resumed from snapshot=%s tick=%d", filepath.Base(path), w.CurrentTick())
		return nil
	}

	fill, _ := block.ParseType(tune.SpawnFill)
	w.Initialize(tune.SpawnRadiusChunks, fill)
	logger.Printf("fresh world %s: %d chunks", w.ID(), w.LoadedChunks())
	return nil
}

type worldIDMismatchError struct {
	Want, Got string
}

func (e *worldIDMismatchError) Error() string {
	return "snapshot world id mismatch: flag=" + e.Want + " snap=" + e.Got
}

func snapshotHandler(w *world.World) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel2()
		tick, err := w.RequestSnapshot(ctx2)
		rw.Header().Set("Content-Type", "application/json")
		if err != nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "tick": tick, "error": err.Error()})
			return
		}
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "tick": tick})
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
