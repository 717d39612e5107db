package node

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"streamd/internal/stream"
	"streamd/internal/testutil"
)

func startNode(t *testing.T, dataDir, relayURL string) *Node {
	t.Helper()
	n, err := Start(Options{
		DataDir:  dataDir,
		Listen:   "127.0.0.1:0",
		RelayURL: relayURL,
		Logger:   stream.NewNopLogger(),
		Clock:    testutil.FixedClock(),
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { n.Close() })
	return n
}

func TestNode_Start(t *testing.T) {
	t.Run("identity survives restarts", func(t *testing.T) {
		dir := t.TempDir()

		first := startNode(t, dir, "")
		firstID := first.ID()
		if err := first.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}

		second := startNode(t, dir, "")
		if second.ID() != firstID {
			t.Errorf("ID changed across restarts: %s vs %s", second.ID(), firstID)
		}
	})

	t.Run("serves imported content end to end", func(t *testing.T) {
		n := startNode(t, t.TempDir(), "")

		src := filepath.Join(t.TempDir(), "movie.mp4")
		if err := os.WriteFile(src, []byte("movie bytes"), 0o644); err != nil {
			t.Fatalf("writing source: %v", err)
		}

		hash, err := n.ImportReference(context.Background(), src)
		if err != nil {
			t.Fatalf("ImportReference() error = %v", err)
		}

		resp, err := http.Get("http://" + n.Addr() + "/" + hash.String())
		if err != nil {
			t.Fatalf("GET error = %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("reading body: %v", err)
		}
		if string(body) != "movie bytes" {
			t.Errorf("body = %q, want %q", body, "movie bytes")
		}
	})

	t.Run("taken port aborts startup", func(t *testing.T) {
		first := startNode(t, t.TempDir(), "")

		_, err := Start(Options{
			DataDir: t.TempDir(),
			Listen:  first.Addr(),
			Logger:  stream.NewNopLogger(),
			Clock:   testutil.FixedClock(),
		})
		if !errors.Is(err, stream.ErrNetwork) {
			t.Fatalf("Start() error = %v, want ErrNetwork", err)
		}
	})
}

func TestNode_CreateCollection(t *testing.T) {
	t.Run("stores the concatenated digests", func(t *testing.T) {
		n := startNode(t, t.TempDir(), "")

		members := []stream.Hash{
			testutil.HashOf([]byte("episode one")),
			testutil.HashOf([]byte("episode two")),
		}
		collection, err := n.CreateCollection(context.Background(), members)
		if err != nil {
			t.Fatalf("CreateCollection() error = %v", err)
		}

		rc, size, err := n.store.Open(collection)
		if err != nil {
			t.Fatalf("Open(collection) error = %v", err)
		}
		defer rc.Close()

		if size != int64(len(members)*stream.DigestSize) {
			t.Errorf("manifest size = %d, want %d", size, len(members)*stream.DigestSize)
		}

		manifest, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("ReadAll() error = %v", err)
		}
		for i, member := range members {
			digest, err := member.Digest()
			if err != nil {
				t.Fatalf("Digest() error = %v", err)
			}
			got := manifest[i*stream.DigestSize : (i+1)*stream.DigestSize]
			if string(got) != string(digest[:]) {
				t.Errorf("manifest member %d = %x, want %x", i, got, digest)
			}
		}
	})

	t.Run("rejects a malformed member", func(t *testing.T) {
		n := startNode(t, t.TempDir(), "")

		_, err := n.CreateCollection(context.Background(), []stream.Hash{"not-a-hash"})
		if !errors.Is(err, stream.ErrInvalidHash) {
			t.Errorf("CreateCollection() error = %v, want ErrInvalidHash", err)
		}
	})

	t.Run("cancelled context fails", func(t *testing.T) {
		n := startNode(t, t.TempDir(), "")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := n.CreateCollection(ctx, nil)
		if !errors.Is(err, stream.ErrNetwork) {
			t.Errorf("CreateCollection() error = %v, want ErrNetwork", err)
		}
	})
}

func TestNode_GenerateTicket(t *testing.T) {
	n := startNode(t, t.TempDir(), "")

	hash := testutil.HashOf([]byte("movie bytes"))
	ticket := n.GenerateTicket(hash, "movie.mp4")

	if ticket.NodeID != n.ID() {
		t.Errorf("NodeID = %s, want %s", ticket.NodeID, n.ID())
	}
	if ticket.RelayURL != "" {
		t.Errorf("RelayURL = %q, want empty with no relay", ticket.RelayURL)
	}
	if ticket.Hash != hash {
		t.Errorf("Hash = %s, want %s", ticket.Hash, hash)
	}
	if ticket.Name != "movie.mp4" {
		t.Errorf("Name = %q, want %q", ticket.Name, "movie.mp4")
	}
	if want := testutil.FixedClock().Now().Unix(); ticket.CreatedAt != want {
		t.Errorf("CreatedAt = %d, want %d", ticket.CreatedAt, want)
	}
}

func TestProbeRelay(t *testing.T) {
	t.Run("confirmed relay is kept", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		if got := probeRelay(srv.URL, stream.NewNopLogger()); got != srv.URL {
			t.Errorf("probeRelay() = %q, want %q", got, srv.URL)
		}
	})

	t.Run("any response counts, even an error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		if got := probeRelay(srv.URL, stream.NewNopLogger()); got != srv.URL {
			t.Errorf("probeRelay() = %q, want %q", got, srv.URL)
		}
	})

	t.Run("unreachable relay downgrades to none", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := srv.URL
		srv.Close()

		logger := testutil.NewCaptureLogger()
		if got := probeRelay(url, logger); got != "" {
			t.Errorf("probeRelay() = %q, want empty", got)
		}
		if !logger.Contains("relay not confirmed, continuing without one") {
			t.Errorf("missing downgrade warning, got: %s", logger.String())
		}
	})

	t.Run("no relay configured", func(t *testing.T) {
		if got := probeRelay("", stream.NewNopLogger()); got != "" {
			t.Errorf("probeRelay() = %q, want empty", got)
		}
	})
}

func TestNode_TicketCarriesConfirmedRelay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := startNode(t, t.TempDir(), srv.URL)

	if n.RelayAddr() != srv.URL {
		t.Errorf("RelayAddr() = %q, want %q", n.RelayAddr(), srv.URL)
	}
	ticket := n.GenerateTicket(testutil.HashOf([]byte("x")), "x")
	if ticket.RelayURL != srv.URL {
		t.Errorf("ticket relay = %q, want %q", ticket.RelayURL, srv.URL)
	}
}
