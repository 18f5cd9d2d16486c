package backup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	auth    []string
}

func (b *fakeBucket) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.auth = append(b.auth, r.Header.Get("Authorization"))
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		sum := sha256.Sum256(body)
		if r.Header.Get("x-amz-content-sha256") != hex.EncodeToString(sum[:]) {
			http.Error(rw, "bad payload hash", http.StatusBadRequest)
			return
		}
		b.objects[r.URL.Path] = body
	case http.MethodGet:
		body, ok := b.objects[r.URL.Path]
		if !ok {
			http.Error(rw, "NoSuchKey", http.StatusNotFound)
			return
		}
		_, _ = rw.Write(body)
	default:
		rw.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := NewClient(ClientConfig{Endpoint: url, Bucket: "worlds", AccessKeyID: "AK", SecretAccessKey: "SK"})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	c.now = func() time.Time { return time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestClientPutGetRoundTrip(t *testing.T) {
	bucket := &fakeBucket{objects: map[string][]byte{}}
	srv := httptest.NewServer(bucket)
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	dir := t.TempDir()
	src := filepath.Join(dir, "12.snap.zst")
	if err := os.WriteFile(src, []byte("snapshot bytes"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := c.PutFile(context.Background(), "/w1/snapshots/12.snap.zst", src); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok := bucket.objects["/worlds/w1/snapshots/12.snap.zst"]; !ok {
		t.Fatalf("objects=%v", bucket.objects)
	}
	auth := bucket.auth[0]
	if !strings.HasPrefix(auth, "AWS4-HMAC-SHA256 Credential=AK/20261001/auto/s3/aws4_request, SignedHeaders=host;x-amz-content-sha256;x-amz-date, Signature=") {
		t.Fatalf("auth=%q", auth)
	}

	dst := filepath.Join(dir, "restored.snap.zst")
	n, err := c.GetFile(context.Background(), "w1/snapshots/12.snap.zst", dst)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got, _ := os.ReadFile(dst)
	if n != int64(len(got)) || string(got) != "snapshot bytes" {
		t.Fatalf("n=%d got=%q", n, got)
	}

	if _, err := c.GetFile(context.Background(), "missing", filepath.Join(dir, "x")); err == nil || !strings.Contains(err.Error(), "status=404") {
		t.Fatalf("err=%v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "x")); !os.IsNotExist(err) {
		t.Fatalf("failed download left a file: %v", err)
	}
}

func TestClientSignatureIsStable(t *testing.T) {
	c := newTestClient(t, "https://example.com")
	r1, err := c.newRequest(context.Background(), http.MethodGet, "a/b c", nil, emptyPayloadHash)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	r2, _ := c.newRequest(context.Background(), http.MethodGet, "a/b c", nil, emptyPayloadHash)
	if r1.Header.Get("Authorization") != r2.Header.Get("Authorization") {
		t.Fatalf("signature differs for identical requests")
	}
	if r1.URL.EscapedPath() != "/worlds/a/b%20c" {
		t.Fatalf("path=%s", r1.URL.EscapedPath())
	}
	c.secretAccessKey = "other"
	r3, _ := c.newRequest(context.Background(), http.MethodGet, "a/b c", nil, emptyPayloadHash)
	if r3.Header.Get("Authorization") == r1.Header.Get("Authorization") {
		t.Fatalf("signature ignores the secret")
	}
}

func TestNewClientValidates(t *testing.T) {
	if _, err := NewClient(ClientConfig{Endpoint: "x", Bucket: "b"}); err == nil {
		t.Fatalf("expected error for missing keys")
	}
	c, err := NewClient(ClientConfig{Endpoint: "r2.example.com/", Bucket: "b", AccessKeyID: "a", SecretAccessKey: "s", Region: "eu"})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if c.endpoint != "https://r2.example.com" || c.region != "eu" {
		t.Fatalf("endpoint=%s region=%s", c.endpoint, c.region)
	}
}

func TestNormalizeKey(t *testing.T) {
	cases := map[string]string{
		"/a/b":        "a/b",
		`a\b`:         "a/b",
		"a/../../b":   "b",
		"./":          "",
		"  ":          "",
		"w/./ticks/x": "w/ticks/x",
	}
	for in, want := range cases {
		if got := normalizeKey(in); got != want {
			t.Fatalf("normalizeKey(%q)=%q want %q", in, got, want)
		}
	}
}

type recordingUploader struct {
	mu    sync.Mutex
	keys  []string
	fails int
}

func (u *recordingUploader) PutFile(_ context.Context, key, _ string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.fails > 0 {
		u.fails--
		return errors.New("transient")
	}
	u.keys = append(u.keys, key)
	return nil
}

func TestMirrorUploadsWithPrefixAndRetries(t *testing.T) {
	dataDir := t.TempDir()
	file := filepath.Join(dataDir, "worlds", "w1", "snapshots", "40.snap.zst")
	_ = os.MkdirAll(filepath.Dir(file), 0o755)
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	up := &recordingUploader{fails: 2}
	m := NewMirror(up, dataDir, MirrorOptions{Prefix: "/prod/", Backoff: time.Millisecond}, nil)
	m.Enqueue(file)
	m.Enqueue(filepath.Join(t.TempDir(), "outside"))
	m.Close()

	if len(up.keys) != 1 || up.keys[0] != "prod/worlds/w1/snapshots/40.snap.zst" {
		t.Fatalf("keys=%v", up.keys)
	}
	s := m.Stats()
	if s.EnqueuedTotal != 2 || s.UploadedTotal != 1 || s.FailedTotal != 0 || s.LastUploadUnix == 0 {
		t.Fatalf("stats=%+v", s)
	}
}

func TestMirrorCountsFailures(t *testing.T) {
	dataDir := t.TempDir()
	file := filepath.Join(dataDir, "a")
	_ = os.WriteFile(file, []byte("x"), 0o644)

	up := &recordingUploader{fails: 10}
	m := NewMirror(up, dataDir, MirrorOptions{Attempts: 2, Backoff: time.Millisecond}, nil)
	m.Enqueue(file)
	m.Close()
	if s := m.Stats(); s.FailedTotal != 1 || s.UploadedTotal != 0 || s.LastErrorUnix == 0 {
		t.Fatalf("stats=%+v", s)
	}
	if up.fails != 8 {
		t.Fatalf("attempts=%d want 2", 10-up.fails)
	}
}

func TestNilMirrorIsNoop(t *testing.T) {
	var m *Mirror
	m.Enqueue("x")
	m.Close()
	if s := m.Stats(); s != (Stats{}) {
		t.Fatalf("stats=%+v", s)
	}
}
