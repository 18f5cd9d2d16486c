package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	TickRate          int   `json:"tick_rate_hz"`
	AccumulatorNS     int64 `json:"accumulator_ns"`
	MaxTicksPerUpdate int   `json:"max_ticks_per_update,omitempty"`

	Chunks   []ChunkV1   `json:"chunks"`
	Sessions []SessionV1 `json:"sessions,omitempty"`
}

type ChunkV1 struct {
	CX int `json:"cx"`
	CY int `json:"cy"`
	CZ int `json:"cz"`

	// Blocks holds every block of the chunk in storage order (len = 4096).
	Blocks []BlockV1 `json:"blocks"`
}

// SessionV1 is a connected player's selection, view, cooldown and rate state.
type SessionV1 struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Hotbar      []uint8 `json:"hotbar"`
	Slot        int     `json:"slot"`
	Selected    uint8   `json:"selected"`
	MenuVisible bool    `json:"menu_visible,omitempty"`
	View        *[3]int `json:"view,omitempty"`

	LastPlace   time.Time `json:"last_place"`
	LastDestroy time.Time `json:"last_destroy"`

	// Action budget window.
	RateStart uint64 `json:"rate_start,omitempty"`
	RateCount int    `json:"rate_count,omitempty"`
}

type BlockV1 struct {
	Type           uint8 `json:"type"`
	Powered        bool  `json:"powered,omitempty"`
	PowerLevel     uint8 `json:"power_level,omitempty"`
	Rotation       uint8 `json:"rotation,omitempty"`
	Active         bool  `json:"active,omitempty"`
	TicksRemaining uint8 `json:"ticks_remaining,omitempty"`
	DelayTicks     uint8 `json:"delay_ticks"`
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	hb, err := br.ReadBytes('\n')
	if err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(hb, &h); err != nil {
		return snap, fmt.Errorf("decode header: %w", err)
	}
	if h.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", h.Version)
	}

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// Path returns the periodic snapshot location for tick under worldDir.
func Path(worldDir string, tick uint64) string {
	return filepath.Join(worldDir, "snapshots", fmt.Sprintf("%d.snap.zst", tick))
}

// Latest returns the highest-tick snapshot under worldDir, or "" if there is none.
func Latest(worldDir string) string {
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			best = filepath.Join(dir, name)
			bestTick = tick
		}
	}
	return best
}
