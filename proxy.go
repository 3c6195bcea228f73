// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/square/writeproxy/master/LICENSE

package writeproxy

import (
	"context"
	"fmt"
	"sync"

	"github.com/square/writeproxy/docval"
	"github.com/square/writeproxy/engine"
	"github.com/square/writeproxy/events"
	"github.com/square/writeproxy/gate"
	"github.com/square/writeproxy/lifecycle"
	"github.com/square/writeproxy/logging"
	"github.com/square/writeproxy/stats"
)

// Mode selects, once at construction, whether a proxy applies admission
// control or passes every write straight through. There is no per-call
// probing of optional collaborators.
type Mode int

const (
	PassThrough Mode = iota
	AdmissionControlled
)

func (m Mode) String() string {
	switch m {
	case PassThrough:
		return "PassThrough"
	case AdmissionControlled:
		return "AdmissionControlled"
	default:
		return "Unknown"
	}
}

// Config configures a Proxy.
type Config struct {
	Mode Mode
	// Gate and Store are required in AdmissionControlled mode and must be
	// absent in PassThrough mode.
	Gate  gate.Gate
	Store Store
	// EventQueueBufSize sizes the event fan-out buffer. Defaults to 100.
	EventQueueBufSize int
}

// Proxy is the admission-controlled write proxy. It wraps a document engine,
// classifies each operation, rate limits write-class operations per tenant,
// and parks rejected writes in the deferred store. Reads bypass admission
// entirely. A single Proxy instance is safe for concurrent use by callers
// acting as different tenants; tenant identity travels on the request
// context, never on the proxy.
type Proxy struct {
	currentStatus     lifecycle.Status
	mode              Mode
	e                 engine.Engine
	gate              gate.Gate
	store             Store
	chain             recoveryChain
	listener          events.Listener
	statsListener     stats.Listener
	eventQueueBufSize int
	producer          *events.EventProducer
	sync.RWMutex      // Embedded mutex
}

// New constructs a Proxy over an engine. The mode is validated eagerly: an
// admission-controlled proxy without both a gate and a store is a fatal
// configuration error, never a silent pass-through.
func New(e engine.Engine, cfg Config) (*Proxy, error) {
	if e == nil {
		return nil, newError("an engine is required", ER_MISCONFIGURED)
	}

	switch cfg.Mode {
	case AdmissionControlled:
		if cfg.Gate == nil {
			return nil, newError("admission-controlled mode requires a gate", ER_MISCONFIGURED)
		}
		if cfg.Store == nil {
			return nil, newError("admission-controlled mode requires a deferred store", ER_MISCONFIGURED)
		}
	case PassThrough:
		if cfg.Gate != nil || cfg.Store != nil {
			return nil, newError("pass-through mode must not carry a gate or store", ER_MISCONFIGURED)
		}
	default:
		return nil, newError(fmt.Sprintf("unknown mode %v", cfg.Mode), ER_MISCONFIGURED)
	}

	bufSize := cfg.EventQueueBufSize
	if bufSize < 1 {
		bufSize = 100
	}

	return &Proxy{
		mode:              cfg.Mode,
		e:                 e,
		gate:              cfg.Gate,
		store:             cfg.Store,
		eventQueueBufSize: bufSize}, nil
}

func (p *Proxy) String() string {
	return fmt.Sprintf("Write proxy in mode %v with status %v", p.mode, p.status())
}

func (p *Proxy) Mode() Mode {
	return p.mode
}

// Engine exposes the raw engine handle for operations the proxy does not
// cover. Writes issued through it are invisible to admission control.
func (p *Proxy) Engine() engine.Engine {
	return p.e
}

// Start sets up the event fan-out and marks the proxy ready. Handler and
// listener registration must happen before Start.
func (p *Proxy) Start() {
	p.Lock()
	defer p.Unlock()

	p.producer = events.RegisterListener(func(e events.Event) {
		if p.listener != nil {
			p.listener(e)
		}

		if p.statsListener != nil {
			p.statsListener.HandleEvent(e)
		}
	}, p.eventQueueBufSize)

	p.currentStatus = lifecycle.Started
}

func (p *Proxy) Stop() {
	p.Lock()
	defer p.Unlock()

	p.currentStatus = lifecycle.Stopped
}

func (p *Proxy) status() lifecycle.Status {
	p.RLock()
	defer p.RUnlock()

	return p.currentStatus
}

func (p *Proxy) SetLogger(logger logging.Logger) {
	if p.status() == lifecycle.Started {
		panic("Cannot set logger after proxy has started!")
	}

	logging.SetLogger(logger)
}

func (p *Proxy) SetListener(listener events.Listener) {
	if p.status() == lifecycle.Started {
		panic("Cannot add listener after proxy has started!")
	}

	p.listener = listener
}

func (p *Proxy) SetStatsListener(listener stats.Listener) {
	if p.status() == lifecycle.Started {
		panic("Cannot add listener after proxy has started!")
	}

	p.statsListener = listener
}

// RegisterErrorHandler appends a recoverability predicate to the recovery
// chain. Registration order is evaluation order.
func (p *Proxy) RegisterErrorHandler(f RecoveryFunc) {
	if p.status() == lifecycle.Started {
		panic("Cannot register error handlers after proxy has started!")
	}

	p.chain.register(f)
}

// RegisterDLQHandler sets the terminal dead-letter sink. Only one may be
// active; the last registration wins.
func (p *Proxy) RegisterDLQHandler(f DLQFunc) {
	if p.status() == lifecycle.Started {
		panic("Cannot register DLQ handlers after proxy has started!")
	}

	p.chain.registerDLQ(f)
}

func (p *Proxy) Emit(e events.Event) {
	p.RLock()
	producer := p.producer
	p.RUnlock()

	if producer != nil {
		producer.Emit(e)
	}
}

// Collection returns a traced navigation handle for a collection path.
func (p *Proxy) Collection(path string) *CollectionRef {
	logging.Printf("[writeproxy] collection: %v", path)
	return &CollectionRef{e: p.e, path: path}
}

// Doc returns a traced navigation handle for a document path.
func (p *Proxy) Doc(path string) *DocumentRef {
	logging.Printf("[writeproxy] doc: %v", path)
	return &DocumentRef{e: p.e, path: path}
}

// Get reads a document. Reads always bypass admission control.
func (p *Proxy) Get(ctx context.Context, path string) (*engine.Snapshot, error) {
	return p.e.Get(ctx, path)
}

// Query scans a collection. Reads always bypass admission control.
func (p *Proxy) Query(ctx context.Context, collectionPath string, pred func(*engine.Snapshot) bool) ([]*engine.Snapshot, error) {
	return p.e.Query(ctx, collectionPath, pred)
}

// Add creates a document with a generated ID in collectionPath, or defers
// the creation when the tenant is over quota.
func (p *Proxy) Add(ctx context.Context, collectionPath string, data docval.Map) (*Outcome, error) {
	tenant, admitted, err := p.admit(ctx, 1)
	if err != nil {
		return nil, err
	}

	if admitted {
		path, wr, err := p.e.Create(ctx, collectionPath, data)
		if err != nil {
			p.failed(tenant, NewDeferredWrite(tenant, OpCreate, collectionPath, data, nil), err)
			return nil, err
		}

		p.Emit(events.NewWriteAdmittedEvent(tenant, string(OpCreate), collectionPath, 1))
		return committedOutcome(wr, &DocumentRef{e: p.e, path: path}), nil
	}

	r, err := p.defer1(tenant, OpCreate, collectionPath, data, nil)
	if err != nil {
		return nil, err
	}

	placeholder := &DocumentRef{e: p.e, path: DeferredPathPrefix + "/" + r.ID}
	return deferredOutcome(r, placeholder), nil
}

// Set writes a document, or defers the write when the tenant is over quota.
func (p *Proxy) Set(ctx context.Context, path string, data docval.Map, opts engine.SetOptions) (*Outcome, error) {
	tenant, admitted, err := p.admit(ctx, 1)
	if err != nil {
		return nil, err
	}

	if admitted {
		wr, err := p.e.Set(ctx, path, data, opts)
		if err != nil {
			o := opts
			p.failed(tenant, NewDeferredWrite(tenant, OpSet, path, data, &o), err)
			return nil, err
		}

		p.Emit(events.NewWriteAdmittedEvent(tenant, string(OpSet), path, 1))
		return committedOutcome(wr, nil), nil
	}

	o := opts
	r, err := p.defer1(tenant, OpSet, path, data, &o)
	if err != nil {
		return nil, err
	}

	return deferredOutcome(r, nil), nil
}

// Update merges fields into an existing document, or defers the update when
// the tenant is over quota.
func (p *Proxy) Update(ctx context.Context, path string, data docval.Map) (*Outcome, error) {
	tenant, admitted, err := p.admit(ctx, 1)
	if err != nil {
		return nil, err
	}

	if admitted {
		wr, err := p.e.Update(ctx, path, data)
		if err != nil {
			p.failed(tenant, NewDeferredWrite(tenant, OpUpdate, path, data, nil), err)
			return nil, err
		}

		p.Emit(events.NewWriteAdmittedEvent(tenant, string(OpUpdate), path, 1))
		return committedOutcome(wr, nil), nil
	}

	r, err := p.defer1(tenant, OpUpdate, path, data, nil)
	if err != nil {
		return nil, err
	}

	return deferredOutcome(r, nil), nil
}

// Delete removes a document, or defers the deletion when the tenant is over
// quota.
func (p *Proxy) Delete(ctx context.Context, path string) (*Outcome, error) {
	tenant, admitted, err := p.admit(ctx, 1)
	if err != nil {
		return nil, err
	}

	if admitted {
		wr, err := p.e.Delete(ctx, path)
		if err != nil {
			p.failed(tenant, NewDeferredWrite(tenant, OpDelete, path, nil, nil), err)
			return nil, err
		}

		p.Emit(events.NewWriteAdmittedEvent(tenant, string(OpDelete), path, 1))
		return committedOutcome(wr, nil), nil
	}

	r, err := p.defer1(tenant, OpDelete, path, nil, nil)
	if err != nil {
		return nil, err
	}

	return deferredOutcome(r, nil), nil
}

// Batch returns a write batch whose admission decision covers all of its
// operations at once.
func (p *Proxy) Batch() *WriteBatch {
	return &WriteBatch{
		e:        p.e,
		admit:    p.admit,
		fallback: p.deferBatch,
		onCommit: p.batchCommitted}
}

// RunTransaction runs fn inside an engine transaction, handing it the
// restricted Transaction surface. Transactions are not admission
// controlled: the engine already serializes and retries them.
func (p *Proxy) RunTransaction(ctx context.Context, fn func(*Transaction) error) error {
	return p.e.RunTransaction(ctx, func(t engine.Txn) error {
		return fn(&Transaction{t: t})
	})
}

// Apply executes a previously deferred record directly against the engine,
// with no admission check. This is the callback replay workers drive.
func (p *Proxy) Apply(ctx context.Context, r *DeferredWrite) error {
	if err := r.Validate(); err != nil {
		return err
	}

	var err error
	switch r.Verb() {
	case OpCreate:
		_, _, err = p.e.Create(ctx, r.Path, r.Payload)
	case OpSet:
		opts := engine.SetOptions{}
		if r.Options != nil {
			opts = *r.Options
		}
		_, err = p.e.Set(ctx, r.Path, r.Payload, opts)
	case OpUpdate:
		_, err = p.e.Update(ctx, r.Path, r.Payload)
	case OpDelete:
		_, err = p.e.Delete(ctx, r.Path)
	}

	if err != nil {
		return err
	}

	p.Emit(events.NewRecordReplayedEvent(r.CustomerID, string(r.Verb()), r.Path))
	return nil
}

// admit resolves the tenant and asks the gate whether numOps operations may
// proceed now. Gate failures admit: the limiter being unavailable must
// never block the write path.
func (p *Proxy) admit(ctx context.Context, numOps int64) (string, bool, error) {
	tenant, _ := TenantFromContext(ctx)

	if p.mode == PassThrough {
		return tenant, true, nil
	}

	if tenant == "" {
		return "", false, newError("no tenant on context; use WithTenant", ER_NO_TENANT)
	}

	limited, err := p.gate.IsRateLimited(tenant, numOps)
	if err != nil {
		logging.Printf("Admission gate error for tenant %v; failing open: %v", tenant, err)
		return tenant, true, nil
	}

	return tenant, !limited, nil
}

// defer1 parks one rejected write in the store.
func (p *Proxy) defer1(tenant string, op OpKind, path string, payload docval.Map, opts *engine.SetOptions) (*DeferredWrite, error) {
	r := NewDeferredWrite(tenant, op, path, payload, opts)
	if err := p.store.Append(r); err != nil {
		return nil, ProxyError{
			error:  fmt.Errorf("cannot defer %v %v for tenant %v: %v", op, path, tenant, err),
			Reason: ER_STORE_FAILED}
	}

	p.Emit(events.NewWriteDeferredEvent(tenant, string(op), path, 1))
	return r, nil
}

// deferBatch is the rejected-batch fallback: it drains the batch into one
// deferred record per operation, never a single batch-shaped record.
func (p *Proxy) deferBatch(tenant string, intents []intent) (*BatchOutcome, error) {
	recordIDs := make([]string, 0, len(intents))
	for _, it := range intents {
		r := NewBatchMemberWrite(tenant, it.kind, it.path, it.payload, it.opts)
		if err := p.store.Append(r); err != nil {
			return nil, ProxyError{
				error:  fmt.Errorf("cannot defer batch member %v %v for tenant %v: %v", it.kind, it.path, tenant, err),
				Reason: ER_STORE_FAILED}
		}

		recordIDs = append(recordIDs, r.ID)
	}

	p.Emit(events.NewWriteDeferredEvent(tenant, "batch", "", int64(len(intents))))
	return &BatchOutcome{Status: Deferred, RecordIDs: recordIDs}, nil
}

// batchCommitted handles the aftermath of a delegated batch commit: events
// on success, per-member triage on failure.
func (p *Proxy) batchCommitted(tenant string, intents []intent, err error) {
	if err == nil {
		p.Emit(events.NewWriteAdmittedEvent(tenant, "batch", "", int64(len(intents))))
		return
	}

	for _, it := range intents {
		p.failed(tenant, NewBatchMemberWrite(tenant, it.kind, it.path, it.payload, it.opts), err)
	}
}

// failed routes a delegate failure through the recovery chain. The chain
// only decides dead-letter routing; the original error is surfaced to the
// caller regardless.
func (p *Proxy) failed(tenant string, r *DeferredWrite, err error) {
	p.Emit(events.NewWriteFailedEvent(tenant, string(r.Verb()), r.Path))

	if !p.chain.triage(err, r) && p.chain.dlq != nil {
		p.Emit(events.NewDeadLetteredEvent(tenant, string(r.Verb()), r.Path))
	}
}
