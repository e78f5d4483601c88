// Package lifecycle orchestrates when scanning, reconciliation, and
// persistence happen: on display, on save, and on remote refresh. It owns
// the reference store and serializes all work per document URI so a
// save-triggered purge and a display-triggered rescan can never interleave
// on the same document. Work on different documents runs concurrently.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"clickref/internal/anchor"
	"clickref/internal/clickup"
	"clickref/internal/logging"
	"clickref/internal/refstore"
)

// Document is the scan input for one trigger: the document's identity, the
// language the host reports for it, and its full current text.
type Document struct {
	URI        string
	LanguageID string
	Text       string
}

// ChangeNotifier receives the zero-payload signal fired whenever the active
// reference set of any document changes. Presentation layers subscribe to
// redraw; the payload is always "re-read the store".
type ChangeNotifier interface {
	NotifyChanged()
}

// NotifierFunc adapts a plain function to ChangeNotifier.
type NotifierFunc func()

// NotifyChanged calls f.
func (f NotifierFunc) NotifyChanged() { f() }

// Config wires a Coordinator. Store and KV are required; Repo is only
// needed for Refresh; Notifier, Logger, and Resolver may be nil (a nil
// Resolver means the built-in comment-syntax tables).
type Config struct {
	Store    *refstore.Store
	KV       refstore.KV
	Repo     clickup.Repository
	Notifier ChangeNotifier
	Logger   *slog.Logger
	Resolver *anchor.Resolver

	// RefreshParallelism bounds concurrent metadata fetches. Zero means
	// the default of 4.
	RefreshParallelism int
}

const defaultRefreshParallelism = 4

var (
	errNilStore = errors.New("lifecycle: store is nil")
	errNilKV    = errors.New("lifecycle: kv backend is nil")
	errNoRepo   = errors.New("lifecycle: no task repository configured")
	errEmptyURI = errors.New("lifecycle: document uri is empty")
)

// Coordinator runs the scan → reconcile → store → persist pipeline.
// Stateless across calls apart from the store it owns; safe to invoke
// repeatedly and concurrently.
type Coordinator struct {
	store    *refstore.Store
	kv       refstore.KV
	repo     clickup.Repository
	notifier ChangeNotifier
	logger   *slog.Logger
	resolver *anchor.Resolver
	parallel int

	mu      sync.Mutex
	byURI   map[string]*sync.Mutex
	pinning map[string]int // waiters per URI, for lock teardown
}

// New creates a Coordinator.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Store == nil {
		return nil, errNilStore
	}

	if cfg.KV == nil {
		return nil, errNilKV
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	resolver := cfg.Resolver
	if resolver == nil {
		resolver = anchor.NewResolver(nil)
	}

	parallel := cfg.RefreshParallelism
	if parallel <= 0 {
		parallel = defaultRefreshParallelism
	}

	return &Coordinator{
		store:    cfg.Store,
		kv:       cfg.KV,
		repo:     cfg.Repo,
		notifier: cfg.Notifier,
		logger:   logger,
		resolver: resolver,
		parallel: parallel,
		byURI:    make(map[string]*sync.Mutex),
		pinning:  make(map[string]int),
	}, nil
}

// Store exposes the owned store for read-side consumers (listing UIs).
func (c *Coordinator) Store() *refstore.Store {
	return c.store
}

// Display handles an open/became-visible trigger: scan, reconcile, write
// the result back, persist. Orphaned references stay in the store — they
// are only discarded by Save. Returns the reconciliation result so a caller
// can render both partitions.
func (c *Coordinator) Display(ctx context.Context, doc Document) (anchor.Result, error) {
	return c.runScan(ctx, doc, false)
}

// Save handles a save trigger: like Display, but orphaned references are
// hard-deleted from the stored set. This is the only purge point.
func (c *Coordinator) Save(ctx context.Context, doc Document) (anchor.Result, error) {
	return c.runScan(ctx, doc, true)
}

func (c *Coordinator) runScan(ctx context.Context, doc Document, purge bool) (anchor.Result, error) {
	if doc.URI == "" {
		return anchor.Result{}, errEmptyURI
	}

	if err := ctx.Err(); err != nil {
		return anchor.Result{}, fmt.Errorf("scan %s: %w", doc.URI, err)
	}

	unlock := c.lockURI(doc.URI)
	defer unlock()

	// Reconcile against the store as it is *now*, not as it was when the
	// trigger was queued; a later-arriving scan must supersede an earlier
	// one.
	prior := c.store.Get(doc.URI)

	pats := c.resolver.Patterns(doc.LanguageID, doc.URI)
	markers := anchor.Scan(doc.Text, pats)
	result := anchor.Reconcile(markers, prior)

	stored := result.Active
	if !purge {
		// Orphans stay retrievable until the next save.
		stored = append(append([]anchor.Reference(nil), result.Active...), result.Orphaned...)
	}

	c.store.SetActive(doc.URI, stored)

	err := refstore.Save(c.kv, c.store)
	if err != nil {
		return result, fmt.Errorf("scan %s: %w", doc.URI, err)
	}

	if !refsEqual(prior, stored) {
		c.notify()
	}

	return result, nil
}

// lockURI acquires the per-document mutex, creating it on first use and
// tearing it down when the last waiter releases it.
func (c *Coordinator) lockURI(uri string) func() {
	c.mu.Lock()

	m, ok := c.byURI[uri]
	if !ok {
		m = &sync.Mutex{}
		c.byURI[uri] = m
	}

	c.pinning[uri]++
	c.mu.Unlock()

	m.Lock()

	return func() {
		m.Unlock()

		c.mu.Lock()
		c.pinning[uri]--

		if c.pinning[uri] == 0 {
			delete(c.pinning, uri)
			delete(c.byURI, uri)
		}

		c.mu.Unlock()
	}
}

func (c *Coordinator) notify() {
	if c.notifier != nil {
		c.notifier.NotifyChanged()
	}
}

// refsEqual compares two reference sets ignoring order.
func refsEqual(a, b []anchor.Reference) bool {
	if len(a) != len(b) {
		return false
	}

	match := func(ref anchor.Reference, in []anchor.Reference) bool {
		for _, other := range in {
			if ref.Span == other.Span && ref.TaskID == other.TaskID &&
				ref.OriginWorkspace == other.OriginWorkspace && metaEqual(ref.Meta, other.Meta) {
				return true
			}
		}

		return false
	}

	for _, ref := range a {
		if !match(ref, b) {
			return false
		}
	}

	return true
}

func metaEqual(a, b *anchor.Metadata) bool {
	switch {
	case a == nil && b == nil:
		return true
	case a == nil || b == nil:
		return false
	default:
		return *a == *b
	}
}
