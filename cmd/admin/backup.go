package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"blec.dev/internal/persistence/backup"
	"blec.dev/internal/persistence/snapshot"
)

// fetchCmd downloads a backed-up snapshot using the server's BLEC_BACKUP_*
// settings and checks that it decodes.
func fetchCmd(args []string) {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	key := fs.String("key", "", "object key, e.g. worlds/world_1/snapshots/1200.snap.zst (required)")
	out := fs.String("out", "", "local path (default: base name of key)")
	timeout := fs.Duration("timeout", 2*time.Minute, "download timeout")
	_ = fs.Parse(args)

	if strings.TrimSpace(*key) == "" {
		fmt.Fprintln(os.Stderr, "missing -key")
		os.Exit(2)
	}
	dst := strings.TrimSpace(*out)
	if dst == "" {
		dst = filepath.Base(*key)
	}

	cfg := backup.ClientConfig{
		Endpoint:        os.Getenv("BLEC_BACKUP_ENDPOINT"),
		Bucket:          os.Getenv("BLEC_BACKUP_BUCKET"),
		Region:          os.Getenv("BLEC_BACKUP_REGION"),
		AccessKeyID:     os.Getenv("BLEC_BACKUP_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("BLEC_BACKUP_SECRET_ACCESS_KEY"),
	}
	snap, n, err := fetchSnapshot(cfg, *key, dst, *timeout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fetch:", err)
		os.Exit(1)
	}
	fmt.Printf("fetched %s -> %s (%d bytes) world=%s tick=%d chunks=%d\n",
		*key, dst, n, snap.Header.WorldID, snap.Header.Tick, len(snap.Chunks))
}

func fetchSnapshot(cfg backup.ClientConfig, key, dst string, timeout time.Duration) (snapshot.SnapshotV1, int64, error) {
	client, err := backup.NewClient(cfg)
	if err != nil {
		return snapshot.SnapshotV1{}, 0, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	n, err := client.GetFile(ctx, key, dst)
	if err != nil {
		return snapshot.SnapshotV1{}, 0, err
	}
	snap, err := snapshot.ReadSnapshot(dst)
	if err != nil {
		return snapshot.SnapshotV1{}, n, fmt.Errorf("downloaded %s does not decode: %w", dst, err)
	}
	return snap, n, nil
}
