package main

import (
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"blec.dev/internal/persistence/backup"
	"blec.dev/internal/persistence/indexdb"
	"blec.dev/internal/persistence/snapshot"
	"blec.dev/internal/sim/tuning"
	"blec.dev/internal/sim/world"
	"blec.dev/internal/sim/world/block"
)

func TestLoadInitialStateFreshAndSave(t *testing.T) {
	dir := t.TempDir()
	logger := log.New(io.Discard, "", 0)
	tune := tuning.Defaults()
	tune.SpawnRadiusChunks = 1
	saves := snapshot.NewSaves(filepath.Join(dir, "saves"))

	w := world.New(world.ConfigFromTuning("w1", tune))
	if err := loadInitialState(w, saves, "demo", "", true, filepath.Join(dir, "world"), tune, logger); err != nil {
		t.Fatalf("fresh: %v", err)
	}
	if w.LoadedChunks() != 9 {
		t.Fatalf("loaded=%d want 9", w.LoadedChunks())
	}
	w.SetBlock(3, 4, 5, block.New(block.Light))
	if err := saves.Save("demo", w.ExportSnapshot()); err != nil {
		t.Fatalf("save: %v", err)
	}

	w2 := world.New(world.ConfigFromTuning("w1", tune))
	if err := loadInitialState(w2, saves, "demo", "", true, filepath.Join(dir, "world"), tune, logger); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if b := w2.GetBlock(3, 4, 5); b == nil || b.Type != block.Light {
		t.Fatalf("save not restored: %+v", b)
	}
}

func TestLoadInitialStateRejectsOtherWorld(t *testing.T) {
	dir := t.TempDir()
	tune := tuning.Defaults()
	other := world.New(world.ConfigFromTuning("other", tune))
	path := filepath.Join(dir, "snap.zst")
	if err := snapshot.WriteSnapshot(path, other.ExportSnapshot()); err != nil {
		t.Fatalf("write: %v", err)
	}

	w := world.New(world.ConfigFromTuning("w1", tune))
	err := loadInitialState(w, snapshot.NewSaves(filepath.Join(dir, "saves")), "", path, false, dir, tune, log.New(io.Discard, "", 0))
	if err == nil {
		t.Fatalf("expected world id mismatch")
	}
}

type fakeIndexStats struct{ s indexdb.Stats }

func (f fakeIndexStats) Stats() indexdb.Stats { return f.s }

type fakeBackupStats struct{ s backup.Stats }

func (f fakeBackupStats) Stats() backup.Stats { return f.s }

func TestWorldCollector(t *testing.T) {
	w := world.New(world.WorldConfig{ID: "m"})
	w.Initialize(0, block.Air)
	w.StepFrame(nil, nil, nil, 0)

	reg := prometheus.NewRegistry()
	reg.MustRegister(newWorldCollector(w,
		fakeIndexStats{s: indexdb.Stats{QueueDepth: 3, DropAuditTotal: 2}},
		fakeBackupStats{s: backup.Stats{QueueDepth: 1, UploadedTotal: 4, FailedTotal: 1}},
	))
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	got := map[string]float64{}
	for _, f := range families {
		for _, m := range f.GetMetric() {
			switch {
			case m.GetGauge() != nil:
				got[f.GetName()] += m.GetGauge().GetValue()
			case m.GetCounter() != nil:
				got[f.GetName()] += m.GetCounter().GetValue()
			}
		}
	}
	if got["blec_world_loaded_chunks"] != 1 {
		t.Fatalf("loaded_chunks=%v", got["blec_world_loaded_chunks"])
	}
	if got["blec_index_queue_depth"] != 3 || got["blec_index_dropped_total"] != 2 {
		t.Fatalf("index metrics=%v", got)
	}
	if got["blec_backup_queue_depth"] != 1 || got["blec_backup_files_total"] != 5 {
		t.Fatalf("backup metrics=%v", got)
	}
}

func TestSnapshotHandlerRejectsGet(t *testing.T) {
	w := world.New(world.WorldConfig{ID: "h"})
	rec := httptest.NewRecorder()
	snapshotHandler(w)(rec, httptest.NewRequest(http.MethodGet, "/admin/v1/snapshot", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("code=%d", rec.Code)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	if !isLoopbackRemote("127.0.0.1:5555") || !isLoopbackRemote("[::1]:80") {
		t.Fatalf("loopback not detected")
	}
	if isLoopbackRemote("10.0.0.1:80") {
		t.Fatalf("non-loopback accepted")
	}
}

func TestOpenBackupMirror(t *testing.T) {
	env := map[string]string{}
	getenv := func(k string) string { return env[k] }
	logger := log.New(io.Discard, "", 0)

	m, err := openBackupMirror(t.TempDir(), getenv, logger)
	if err != nil || m != nil {
		t.Fatalf("disabled: m=%v err=%v", m, err)
	}

	env["BLEC_BACKUP"] = "true"
	env["BLEC_BACKUP_ENDPOINT"] = "http://127.0.0.1:9"
	if _, err := openBackupMirror(t.TempDir(), getenv, logger); err == nil {
		t.Fatalf("expected error for missing bucket and keys")
	}

	env["BLEC_BACKUP_BUCKET"] = "b"
	env["BLEC_BACKUP_ACCESS_KEY_ID"] = "a"
	env["BLEC_BACKUP_SECRET_ACCESS_KEY"] = "s"
	env["BLEC_BACKUP_PREFIX"] = "prod"
	dataDir := t.TempDir()
	m, err = openBackupMirror(dataDir, getenv, logger)
	if err != nil || m == nil {
		t.Fatalf("enabled: m=%v err=%v", m, err)
	}
	defer m.Close()
	snap := filepath.Join(dataDir, "worlds", "w1", "snapshots", "1.snap.zst")
	if err := snapshot.WriteSnapshot(snap, world.New(world.WorldConfig{ID: "w1"}).ExportSnapshot()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if key, err := m.ObjectKey(snap); err != nil || key != "prod/worlds/w1/snapshots/1.snap.zst" {
		t.Fatalf("key=%q err=%v", key, err)
	}
}
