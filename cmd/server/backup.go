package main

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"blec.dev/internal/persistence/backup"
)

// openBackupMirror builds the object storage mirror from BLEC_BACKUP_* settings.
// It returns nil when BLEC_BACKUP is not true.
func openBackupMirror(dataDir string, getenv func(string) string, logger *log.Logger) (*backup.Mirror, error) {
	if !envBool(getenv, "BLEC_BACKUP", false) {
		return nil, nil
	}
	client, err := backup.NewClient(backup.ClientConfig{
		Endpoint:        getenv("BLEC_BACKUP_ENDPOINT"),
		Bucket:          getenv("BLEC_BACKUP_BUCKET"),
		Region:          getenv("BLEC_BACKUP_REGION"),
		AccessKeyID:     getenv("BLEC_BACKUP_ACCESS_KEY_ID"),
		SecretAccessKey: getenv("BLEC_BACKUP_SECRET_ACCESS_KEY"),
	})
	if err != nil {
		return nil, fmt.Errorf("BLEC_BACKUP=true: %w", err)
	}
	return backup.NewMirror(client, dataDir, backup.MirrorOptions{
		Prefix:  getenv("BLEC_BACKUP_PREFIX"),
		Workers: envInt(getenv, "BLEC_BACKUP_WORKERS", 2),
	}, logger), nil
}

func envBool(getenv func(string) string, key string, def bool) bool {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(getenv func(string) string, key string, def int) int {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
