package operator

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/dmitro3/jeju-sub018/blob"
	"github.com/dmitro3/jeju-sub018/kzg"
	"github.com/dmitro3/jeju-sub018/log"
	"github.com/dmitro3/jeju-sub018/metrics"
)

type failSigner struct{}

func (failSigner) Sign(ctx context.Context, msg []byte) ([]byte, error) {
	return nil, errors.New("kms unreachable")
}

func newTestStore(t *testing.T, cfg Config) *Store {
	t.Helper()
	if cfg.Signer == nil {
		cfg.Signer = NewDevSigner([]byte("test-operator-key"))
	}
	cfg.Logger = log.NewNop()
	cfg.Metrics = metrics.NewRegistry()
	s, err := NewStore(cfg)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() {
		if s.State() == StateActive {
			s.Stop()
		}
	})
	return s
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.GCInterval = 0 // tests drive CollectGarbage explicitly
	return cfg
}

// testBlob builds a blob record plus verified chunks for store tests.
func testBlob(t *testing.T, size int) (*blob.Blob, []blob.Chunk) {
	t.Helper()
	a, err := blob.NewAssembler(4, 2)
	if err != nil {
		t.Fatalf("NewAssembler: %v", err)
	}
	rng := rand.New(rand.NewSource(int64(size)))
	data := make([]byte, size)
	rng.Read(data)

	b, chunks, err := a.Assemble(data, time.Now(), time.Hour)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	return b, chunks
}

func storeAll(t *testing.T, s *Store, b *blob.Blob, chunks []blob.Chunk) {
	t.Helper()
	for i, c := range chunks {
		if !s.StoreChunk(c, b.Commitment, b.MerkleRoot) {
			t.Fatalf("chunk %d rejected", i)
		}
	}
}

func TestNewStoreValidation(t *testing.T) {
	if _, err := NewStore(Config{RetentionPeriod: time.Hour}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("missing signer: got %v", err)
	}
	cfg := DefaultConfig()
	cfg.Signer = NewDevSigner(nil)
	cfg.RetentionPeriod = 0
	if _, err := NewStore(cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("zero retention: got %v", err)
	}
}

func TestLifecycleStates(t *testing.T) {
	s := newTestStore(t, testConfig())
	if s.State() != StateStarting {
		t.Fatalf("initial state %v, want starting", s.State())
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.State() != StateActive {
		t.Fatalf("state %v, want active", s.State())
	}
	if err := s.Start(); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("second Start: got %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if s.State() != StateStopped {
		t.Fatalf("state %v, want stopped", s.State())
	}
	if err := s.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("second Stop: got %v", err)
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateStarting: "starting",
		StateActive:   "active",
		StateStopping: "stopping",
		StateStopped:  "stopped",
		State(99):     "unknown",
	}
	for state, want := range cases {
		if state.String() != want {
			t.Fatalf("State(%d).String() = %q, want %q", state, state.String(), want)
		}
	}
}

func TestStoreChunkAcceptsAndAccounts(t *testing.T) {
	s := newTestStore(t, testConfig())
	s.Start()

	b, chunks := testBlob(t, 4000)
	storeAll(t, s, b, chunks)

	var total int64
	for _, c := range chunks {
		total += int64(len(c.Data))
	}
	if s.BytesStored() != total {
		t.Fatalf("BytesStored = %d, want %d", s.BytesStored(), total)
	}
	if s.BlobCount() != 1 {
		t.Fatalf("BlobCount = %d, want 1", s.BlobCount())
	}
	for i := range chunks {
		if !s.HasChunk(b.ID, i) {
			t.Fatalf("chunk %d not held", i)
		}
	}
	if got, ok := s.Commitment(b.ID); !ok || got != b.Commitment {
		t.Fatal("recorded commitment mismatch")
	}
}

func TestStoreChunkRejectsSwappedShard(t *testing.T) {
	// A valid shard at the wrong position must be rejected with no
	// byte-accounting change.
	s := newTestStore(t, testConfig())
	s.Start()

	b, chunks := testBlob(t, 3000)
	before := s.BytesStored()

	swapped := chunks[0]
	swapped.Data = chunks[1].Data
	if s.StoreChunk(swapped, b.Commitment, b.MerkleRoot) {
		t.Fatal("swapped-shard chunk accepted")
	}
	if s.BytesStored() != before {
		t.Fatal("rejected chunk changed byte accounting")
	}
	if s.HasChunk(b.ID, 0) {
		t.Fatal("rejected chunk was persisted")
	}
}

func TestStoreChunkIdempotent(t *testing.T) {
	s := newTestStore(t, testConfig())
	s.Start()

	b, chunks := testBlob(t, 2000)
	if !s.StoreChunk(chunks[0], b.Commitment, b.MerkleRoot) {
		t.Fatal("first store rejected")
	}
	after := s.BytesStored()
	if !s.StoreChunk(chunks[0], b.Commitment, b.MerkleRoot) {
		t.Fatal("idempotent re-store rejected")
	}
	if s.BytesStored() != after {
		t.Fatal("re-store double-counted bytes")
	}
}

func TestStoreChunkRejectsConflictingAdvertisement(t *testing.T) {
	s := newTestStore(t, testConfig())
	s.Start()

	b, chunks := testBlob(t, 2000)
	if !s.StoreChunk(chunks[0], b.Commitment, b.MerkleRoot) {
		t.Fatal("first store rejected")
	}

	var otherCommit kzg.Commitment
	otherCommit[0] = 0xFF
	if s.StoreChunk(chunks[1], otherCommit, b.MerkleRoot) {
		t.Fatal("chunk with a different commitment for a known blob accepted")
	}
}

func TestStoreChunkInactiveStore(t *testing.T) {
	s := newTestStore(t, testConfig())
	b, chunks := testBlob(t, 1000)
	if s.StoreChunk(chunks[0], b.Commitment, b.MerkleRoot) {
		t.Fatal("chunk accepted before Start")
	}
}

func TestHandleSampleRequest(t *testing.T) {
	s := newTestStore(t, testConfig())
	s.Start()

	b, chunks := testBlob(t, 4000)
	// Hold only a subset.
	for _, i := range []int{0, 2, 5} {
		if !s.StoreChunk(chunks[i], b.Commitment, b.MerkleRoot) {
			t.Fatalf("chunk %d rejected", i)
		}
	}

	req := &blob.SampleRequest{
		BlobID:       b.ID,
		ChunkIndices: []int{0, 1, 2}, // index 1 not held
		Requester:    "sampler-1",
		Nonce:        42,
		Timestamp:    time.Now().UnixMilli(),
	}
	resp, err := s.HandleSampleRequest(context.Background(), req)
	if err != nil {
		t.Fatalf("HandleSampleRequest: %v", err)
	}
	if len(resp.Chunks) != 2 {
		t.Fatalf("got %d chunks, want 2 (index 1 omitted)", len(resp.Chunks))
	}
	for _, c := range resp.Chunks {
		if c.Index != 0 && c.Index != 2 {
			t.Fatalf("unexpected chunk index %d", c.Index)
		}
		if !blob.VerifyChunk(c, b.MerkleRoot) {
			t.Fatalf("served chunk %d no longer verifies", c.Index)
		}
	}

	// Signature covers the request's binding message.
	msg := SampleMessage(req.BlobID, req.Nonce, req.Timestamp)
	want, _ := s.signer.Sign(context.Background(), msg)
	if !bytes.Equal(resp.Signature, want) {
		t.Fatal("signature does not cover the binding message")
	}

	if s.SamplesResponded() != 1 || s.SamplesFailed() != 0 {
		t.Fatalf("counters responded=%d failed=%d", s.SamplesResponded(), s.SamplesFailed())
	}
}

func TestHandleSampleRequestUnknownBlob(t *testing.T) {
	s := newTestStore(t, testConfig())
	s.Start()

	req := &blob.SampleRequest{
		BlobID:       blob.DeriveID([]byte("never stored")),
		ChunkIndices: []int{0, 1},
		Nonce:        7,
		Timestamp:    time.Now().UnixMilli(),
	}
	resp, err := s.HandleSampleRequest(context.Background(), req)
	if err != nil {
		t.Fatalf("HandleSampleRequest: %v", err)
	}
	if len(resp.Chunks) != 0 {
		t.Fatal("unknown blob returned chunks")
	}
	if len(resp.Signature) == 0 {
		t.Fatal("empty response must still be signed")
	}
	if s.SamplesFailed() != 1 || s.SamplesResponded() != 0 {
		t.Fatalf("counters responded=%d failed=%d", s.SamplesResponded(), s.SamplesFailed())
	}
}

func TestHandleSampleRequestSigningFailure(t *testing.T) {
	cfg := testConfig()
	cfg.Signer = failSigner{}
	s := newTestStore(t, cfg)
	s.Start()

	b, chunks := testBlob(t, 2000)
	storeAll(t, s, b, chunks)

	req := &blob.SampleRequest{BlobID: b.ID, ChunkIndices: []int{0}}
	resp, err := s.HandleSampleRequest(context.Background(), req)
	if !errors.Is(err, ErrSigningFailed) {
		t.Fatalf("got %v, want ErrSigningFailed", err)
	}
	if resp != nil {
		t.Fatal("signing failure must not produce a response")
	}
	if s.SamplesFailed() != 1 {
		t.Fatalf("SamplesFailed = %d, want 1", s.SamplesFailed())
	}
}

func TestHandleSampleRequestNotRunning(t *testing.T) {
	s := newTestStore(t, testConfig())
	req := &blob.SampleRequest{BlobID: blob.DeriveID([]byte("x"))}
	if _, err := s.HandleSampleRequest(context.Background(), req); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("got %v, want ErrNotRunning", err)
	}
}

func TestRemoveBlob(t *testing.T) {
	s := newTestStore(t, testConfig())
	s.Start()

	b, chunks := testBlob(t, 2500)
	storeAll(t, s, b, chunks)

	if !s.RemoveBlob(b.ID) {
		t.Fatal("RemoveBlob returned false for a held blob")
	}
	if s.RemoveBlob(b.ID) {
		t.Fatal("second RemoveBlob returned true")
	}
	if s.BytesStored() != 0 {
		t.Fatalf("BytesStored = %d after removal", s.BytesStored())
	}

	req := &blob.SampleRequest{BlobID: b.ID, ChunkIndices: []int{0}}
	resp, err := s.HandleSampleRequest(context.Background(), req)
	if err != nil {
		t.Fatalf("HandleSampleRequest: %v", err)
	}
	if len(resp.Chunks) != 0 {
		t.Fatal("removed blob still served chunks")
	}
}

func TestCollectGarbageExpiry(t *testing.T) {
	cfg := testConfig()
	cfg.RetentionPeriod = 100 * time.Millisecond
	s := newTestStore(t, cfg)
	s.Start()

	sub := s.Events().Subscribe(EventBlobExpired)
	defer sub.Unsubscribe()

	b, chunks := testBlob(t, 3000)
	storeAll(t, s, b, chunks)

	// Before the deadline nothing is evicted.
	if n := s.CollectGarbage(time.Now()); n != 0 {
		t.Fatalf("premature eviction of %d blobs", n)
	}

	// Past the deadline the blob is evicted and announced exactly once.
	past := time.Now().Add(time.Second)
	if n := s.CollectGarbage(past); n != 1 {
		t.Fatalf("evicted %d blobs, want 1", n)
	}
	if n := s.CollectGarbage(past); n != 0 {
		t.Fatalf("second sweep evicted %d blobs", n)
	}

	select {
	case ev := <-sub.Chan():
		if ev.Type != EventBlobExpired {
			t.Fatalf("event type %q", ev.Type)
		}
		if id, ok := ev.Data.(blob.ID); !ok || id != b.ID {
			t.Fatal("expired event does not carry the blob ID")
		}
	case <-time.After(time.Second):
		t.Fatal("no blob.expired event")
	}
	select {
	case <-sub.Chan():
		t.Fatal("blob.expired emitted more than once")
	default:
	}

	if s.BytesStored() != 0 {
		t.Fatalf("BytesStored = %d after eviction", s.BytesStored())
	}
	if s.BlobCount() != 0 {
		t.Fatalf("BlobCount = %d after eviction", s.BlobCount())
	}

	// Late samples see an empty blob, counted as failed.
	req := &blob.SampleRequest{BlobID: b.ID, ChunkIndices: []int{0}}
	resp, err := s.HandleSampleRequest(context.Background(), req)
	if err != nil {
		t.Fatalf("HandleSampleRequest: %v", err)
	}
	if len(resp.Chunks) != 0 {
		t.Fatal("expired blob still served chunks")
	}
}

func TestCollectGarbageSparesFreshBlobs(t *testing.T) {
	cfg := testConfig()
	cfg.RetentionPeriod = time.Hour
	s := newTestStore(t, cfg)
	s.Start()

	b, chunks := testBlob(t, 1500)
	storeAll(t, s, b, chunks)

	if n := s.CollectGarbage(time.Now().Add(time.Minute)); n != 0 {
		t.Fatalf("fresh blob evicted (%d)", n)
	}
	if s.BlobCount() != 1 {
		t.Fatal("fresh blob missing after sweep")
	}
}

func TestBackgroundGCSweep(t *testing.T) {
	cfg := testConfig()
	cfg.RetentionPeriod = time.Millisecond
	cfg.GCInterval = 5 * time.Millisecond
	s := newTestStore(t, cfg)
	s.Start()

	b, chunks := testBlob(t, 1000)
	storeAll(t, s, b, chunks)

	deadline := time.Now().Add(2 * time.Second)
	for s.BlobCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("background sweep never evicted the blob")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Stop must wait for the sweep goroutine.
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestSampleMessageBinding(t *testing.T) {
	id := blob.DeriveID([]byte("payload"))
	base := SampleMessage(id, 1, 1000)

	if bytes.Equal(base, SampleMessage(id, 2, 1000)) {
		t.Fatal("message ignores nonce")
	}
	if bytes.Equal(base, SampleMessage(id, 1, 2000)) {
		t.Fatal("message ignores timestamp")
	}
	other := blob.DeriveID([]byte("other"))
	if bytes.Equal(base, SampleMessage(other, 1, 1000)) {
		t.Fatal("message ignores blob ID")
	}
	if !bytes.Equal(base, SampleMessage(id, 1, 1000)) {
		t.Fatal("message is not deterministic")
	}
}

func TestDevSignerHonorsContext(t *testing.T) {
	signer := NewDevSigner([]byte("k"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := signer.Sign(ctx, []byte("m")); err == nil {
		t.Fatal("cancelled context must fail the signer")
	}
}
