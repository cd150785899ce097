// Package operator implements the storage-operator side of the
// availability core: a chunk store with verify-then-persist admission, a
// sampler answering signed availability queries, and a garbage collector
// evicting blobs past their retention deadline.
package operator

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/dmitro3/jeju-sub018/blob"
	"github.com/dmitro3/jeju-sub018/kzg"
	"github.com/dmitro3/jeju-sub018/log"
	"github.com/dmitro3/jeju-sub018/merkle"
	"github.com/dmitro3/jeju-sub018/metrics"
)

var (
	ErrInvalidConfig = errors.New("operator: invalid configuration")
	ErrNotRunning    = errors.New("operator: store is not running")
	ErrAlreadyActive = errors.New("operator: store already started")
)

// State is the store lifecycle state.
type State int32

const (
	StateStarting State = iota
	StateActive
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Config holds the store's tunables.
type Config struct {
	// RetentionPeriod is how long a blob is kept after its first chunk is
	// accepted.
	RetentionPeriod time.Duration

	// GCInterval is the period of the background eviction sweep. Zero
	// disables the background sweep; CollectGarbage can still be driven
	// manually.
	GCInterval time.Duration

	// EventBufferSize is the channel buffer for event-bus subscriptions.
	EventBufferSize int

	// Signer signs sample responses. Required.
	Signer Signer

	// Logger, when nil, defaults to the process logger's "operator" module.
	Logger *log.Logger

	// Metrics, when nil, defaults to metrics.DefaultRegistry.
	Metrics *metrics.Registry
}

// DefaultConfig returns the default store configuration. The signer must
// still be supplied by the caller.
func DefaultConfig() Config {
	return Config{
		RetentionPeriod: 24 * time.Hour,
		GCInterval:      time.Minute,
		EventBufferSize: 64,
	}
}

// blobEntry is the per-blob storage record. Each entry carries its own
// mutex so eviction and sampling of one blob never block operations on
// another; the store's outer lock only guards the blob map itself.
type blobEntry struct {
	mu sync.Mutex

	commitment kzg.Commitment
	merkleRoot merkle.Hash
	chunks     map[int]blob.Chunk
	bytes      int64

	storedAt time.Time
	deadline time.Time

	// evicted marks the entry dead between GC marking and map removal, so
	// expiry is observed exactly once and late samples see an empty blob.
	evicted bool
}

// Store is an operator's in-memory chunk store and sampler.
type Store struct {
	cfg    Config
	logger *log.Logger
	bus    *EventBus
	signer Signer

	state atomic.Int32

	mu    sync.RWMutex
	blobs map[blob.ID]*blobEntry

	samplesResponded *metrics.Counter
	samplesFailed    *metrics.Counter
	chunksStored     *metrics.Counter
	chunksRejected   *metrics.Counter
	bytesStored      *metrics.Gauge
	blobsHeld        *metrics.Gauge

	gcStop chan struct{}
	gcDone chan struct{}
}

// NewStore creates a store in the starting state. Start must be called
// before chunks are accepted or samples served.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Signer == nil {
		return nil, fmt.Errorf("%w: signer is required", ErrInvalidConfig)
	}
	if cfg.RetentionPeriod <= 0 {
		return nil, fmt.Errorf("%w: retention period %v", ErrInvalidConfig, cfg.RetentionPeriod)
	}
	if cfg.GCInterval < 0 {
		return nil, fmt.Errorf("%w: gc interval %v", ErrInvalidConfig, cfg.GCInterval)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default().Module("operator")
	}
	reg := cfg.Metrics
	if reg == nil {
		reg = metrics.DefaultRegistry
	}

	s := &Store{
		cfg:    cfg,
		logger: logger,
		bus:    NewEventBus(cfg.EventBufferSize),
		signer: cfg.Signer,
		blobs:  make(map[blob.ID]*blobEntry),

		samplesResponded: reg.Counter("operator.samples.responded"),
		samplesFailed:    reg.Counter("operator.samples.failed"),
		chunksStored:     reg.Counter("operator.chunks.stored"),
		chunksRejected:   reg.Counter("operator.chunks.rejected"),
		bytesStored:      reg.Gauge("operator.bytes.stored"),
		blobsHeld:        reg.Gauge("operator.blobs.held"),
	}
	s.state.Store(int32(StateStarting))
	return s, nil
}

// State returns the current lifecycle state.
func (s *Store) State() State {
	return State(s.state.Load())
}

// Events returns the store's event bus for lifecycle observation.
func (s *Store) Events() *EventBus {
	return s.bus
}

// Start moves the store to active and launches the background GC sweep
// when an interval is configured.
func (s *Store) Start() error {
	if !s.state.CompareAndSwap(int32(StateStarting), int32(StateActive)) {
		return ErrAlreadyActive
	}
	if s.cfg.GCInterval > 0 {
		s.gcStop = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.gcLoop()
	}
	s.logger.Info("store started",
		"retention", s.cfg.RetentionPeriod.String(),
		"gcInterval", s.cfg.GCInterval.String())
	return nil
}

// Stop halts the GC goroutine, waits for it to exit, and closes the event
// bus. Safe to call once after Start.
func (s *Store) Stop() error {
	if !s.state.CompareAndSwap(int32(StateActive), int32(StateStopping)) {
		return ErrNotRunning
	}
	if s.gcStop != nil {
		close(s.gcStop)
		<-s.gcDone
	}
	s.bus.Close()
	s.state.Store(int32(StateStopped))
	s.logger.Info("store stopped")
	return nil
}

// StoreChunk verifies a chunk against the blob's advertised commitment and
// Merkle root, then persists it. Returns false, with no partial write and
// no byte-accounting change, when verification fails or the store is not
// active. Accepting the first chunk of a blob records the commitment and
// starts the retention clock.
func (s *Store) StoreChunk(c blob.Chunk, commitment kzg.Commitment, root merkle.Hash) bool {
	if s.State() != StateActive {
		return false
	}

	if !blob.VerifyChunk(c, root) {
		s.chunksRejected.Inc()
		s.logger.Warn("chunk rejected", "blob", c.BlobID.String(), "index", c.Index)
		s.bus.PublishAsync(EventChunkRejected, c.BlobID)
		return false
	}

	entry := s.entryOrCreate(c.BlobID, commitment, root)

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.evicted {
		return false
	}
	// A blob advertises exactly one commitment and root; a chunk claiming
	// different ones for a known blob is rejected even with a valid path.
	if entry.commitment != commitment || entry.merkleRoot != root {
		s.chunksRejected.Inc()
		s.bus.PublishAsync(EventChunkRejected, c.BlobID)
		return false
	}
	if _, exists := entry.chunks[c.Index]; exists {
		return true // idempotent re-store
	}

	entry.chunks[c.Index] = c
	entry.bytes += int64(len(c.Data))
	s.bytesStored.Add(int64(len(c.Data)))
	s.chunksStored.Inc()
	return true
}

// entryOrCreate returns the blob's entry, creating and announcing it on
// first contact.
func (s *Store) entryOrCreate(id blob.ID, commitment kzg.Commitment, root merkle.Hash) *blobEntry {
	s.mu.RLock()
	entry, ok := s.blobs[id]
	s.mu.RUnlock()
	if ok {
		return entry
	}

	s.mu.Lock()
	if entry, ok = s.blobs[id]; ok {
		s.mu.Unlock()
		return entry
	}
	now := time.Now()
	entry = &blobEntry{
		commitment: commitment,
		merkleRoot: root,
		chunks:     make(map[int]blob.Chunk),
		storedAt:   now,
		deadline:   now.Add(s.cfg.RetentionPeriod),
	}
	s.blobs[id] = entry
	s.mu.Unlock()

	s.blobsHeld.Inc()
	s.logger.Info("blob stored", "blob", id.String())
	s.bus.PublishAsync(EventBlobStored, id)
	return entry
}

// SampleMessage is the deterministic byte string an operator signs for a
// sample response: keccak256(blobID || nonce || timestamp), both integers
// big-endian. Requesters verify the returned signature over the same
// message.
func SampleMessage(id blob.ID, nonce uint64, timestamp int64) []byte {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], nonce)
	binary.BigEndian.PutUint64(buf[8:], uint64(timestamp))

	h := sha3.NewLegacyKeccak256()
	h.Write(id[:])
	h.Write(buf[:])
	return h.Sum(nil)
}

// HandleSampleRequest answers an availability query: it signs the
// request's binding message, gathers the requested indices the store
// holds (silently omitting the rest), and returns the signed response.
// A signing failure returns an error and never an unsigned response.
func (s *Store) HandleSampleRequest(ctx context.Context, req *blob.SampleRequest) (*blob.SampleResponse, error) {
	if s.State() != StateActive {
		return nil, ErrNotRunning
	}

	msg := SampleMessage(req.BlobID, req.Nonce, req.Timestamp)
	sig, err := s.signer.Sign(ctx, msg)
	if err != nil {
		s.samplesFailed.Inc()
		s.bus.PublishAsync(EventSampleFailed, req.BlobID)
		return nil, fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}

	chunks := s.lookupChunks(req.BlobID, req.ChunkIndices)
	if len(chunks) > 0 {
		s.samplesResponded.Inc()
		s.bus.PublishAsync(EventSampleServed, req.BlobID)
	} else {
		s.samplesFailed.Inc()
		s.bus.PublishAsync(EventSampleFailed, req.BlobID)
	}

	return &blob.SampleResponse{Chunks: chunks, Signature: sig}, nil
}

func (s *Store) lookupChunks(id blob.ID, indices []int) []blob.Chunk {
	s.mu.RLock()
	entry, ok := s.blobs[id]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.evicted {
		return nil
	}
	chunks := make([]blob.Chunk, 0, len(indices))
	for _, idx := range indices {
		if c, held := entry.chunks[idx]; held {
			chunks = append(chunks, c)
		}
	}
	return chunks
}

// RemoveBlob explicitly removes a blob and its chunks. Subsequent samples
// for it return empty responses. Returns false if the blob is unknown.
func (s *Store) RemoveBlob(id blob.ID) bool {
	s.mu.Lock()
	entry, ok := s.blobs[id]
	if ok {
		delete(s.blobs, id)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}

	entry.mu.Lock()
	released := int64(0)
	if !entry.evicted {
		entry.evicted = true
		released = entry.bytes
		entry.chunks = nil
	}
	entry.mu.Unlock()

	s.bytesStored.Add(-released)
	s.blobsHeld.Dec()
	s.logger.Info("blob removed", "blob", id.String())
	s.bus.PublishAsync(EventBlobRemoved, id)
	return true
}

// CollectGarbage evicts every blob whose retention deadline is at or
// before now, releasing its chunks and byte accounting and emitting
// blob.expired exactly once per blob. Returns the number of evictions.
func (s *Store) CollectGarbage(now time.Time) int {
	s.mu.RLock()
	candidates := make(map[blob.ID]*blobEntry, len(s.blobs))
	for id, entry := range s.blobs {
		candidates[id] = entry
	}
	s.mu.RUnlock()

	evictedCount := 0
	for id, entry := range candidates {
		entry.mu.Lock()
		expired := !entry.evicted && !now.Before(entry.deadline)
		released := int64(0)
		if expired {
			entry.evicted = true
			released = entry.bytes
			entry.chunks = nil
		}
		entry.mu.Unlock()
		if !expired {
			continue
		}

		s.mu.Lock()
		delete(s.blobs, id)
		s.mu.Unlock()

		s.bytesStored.Add(-released)
		s.blobsHeld.Dec()
		evictedCount++
		s.logger.Info("blob expired", "blob", id.String(), "released", released)
		s.bus.PublishAsync(EventBlobExpired, id)
	}
	return evictedCount
}

func (s *Store) gcLoop() {
	defer close(s.gcDone)
	ticker := time.NewTicker(s.cfg.GCInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.gcStop:
			return
		case <-ticker.C:
			s.CollectGarbage(time.Now())
		}
	}
}

// Commitment returns the commitment recorded for a blob, if held.
func (s *Store) Commitment(id blob.ID) (kzg.Commitment, bool) {
	s.mu.RLock()
	entry, ok := s.blobs[id]
	s.mu.RUnlock()
	if !ok {
		return kzg.Commitment{}, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.evicted {
		return kzg.Commitment{}, false
	}
	return entry.commitment, true
}

// HasChunk reports whether the store holds the chunk at (blob, index).
func (s *Store) HasChunk(id blob.ID, index int) bool {
	s.mu.RLock()
	entry, ok := s.blobs[id]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.evicted {
		return false
	}
	_, held := entry.chunks[index]
	return held
}

// BlobCount returns the number of blobs currently held.
func (s *Store) BlobCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

// BytesStored returns the store's current byte accounting.
func (s *Store) BytesStored() int64 {
	return s.bytesStored.Value()
}

// SamplesResponded returns the number of sample requests answered with at
// least one chunk.
func (s *Store) SamplesResponded() int64 {
	return s.samplesResponded.Value()
}

// SamplesFailed returns the number of sample requests answered empty or
// failed outright.
func (s *Store) SamplesFailed() int64 {
	return s.samplesFailed.Value()
}
