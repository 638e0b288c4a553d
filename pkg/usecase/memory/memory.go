package memory

import (
	"sync"

	"github.com/m-mizutani/recall/pkg/adapter"
	"github.com/m-mizutani/recall/pkg/repository"
)

const (
	// DefaultTopK is the number of memories returned by retrieval
	DefaultTopK = 3
	// DefaultThreshold is the minimum relevance score for retrieval results
	DefaultThreshold = 0.5
	// DefaultRelatedness is the minimum score for a stored memory to be
	// considered related to an incoming fact during reconciliation
	DefaultRelatedness = 0.5
)

// UseCase provides memory operations: retrieval, reconciliation and
// maintenance of a user's versioned memory set.
type UseCase struct {
	ledger     *repository.Ledger
	embedder   adapter.Embedder
	oracle     Oracle
	extractor  Extractor
	summarizer Summarizer

	topK        int
	threshold   float64
	relatedness float64

	locks *userLocks
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithTopK sets the number of results returned by retrieval
func WithTopK(n int) Option {
	return func(uc *UseCase) {
		uc.topK = n
	}
}

// WithThreshold sets the minimum relevance score for retrieval
func WithThreshold(v float64) Option {
	return func(uc *UseCase) {
		uc.threshold = v
	}
}

// WithRelatedness sets the minimum score for reconciliation matching
func WithRelatedness(v float64) Option {
	return func(uc *UseCase) {
		uc.relatedness = v
	}
}

// New creates a new memory UseCase instance
func New(
	ledger *repository.Ledger,
	embedder adapter.Embedder,
	oracle Oracle,
	extractor Extractor,
	opts ...Option,
) *UseCase {
	uc := &UseCase{
		ledger:      ledger,
		embedder:    embedder,
		oracle:      oracle,
		extractor:   extractor,
		summarizer:  NewLocalSummarizer(),
		topK:        DefaultTopK,
		threshold:   DefaultThreshold,
		relatedness: DefaultRelatedness,
		locks:       newUserLocks(),
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// userLocks serializes reconciliation per user. Reconciliation reads the
// current memory set and then writes based on what it saw; two writers
// for the same user could otherwise both supersede the same record or
// insert conflicting updates.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *userLocks) get(userID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[userID] = lock
	}
	return lock
}
