package cart

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/scoopshop-backend/pkg/debounce"
	"github.com/angelmondragon/scoopshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/scoopshop-backend/pkg/errors"
	"github.com/angelmondragon/scoopshop-backend/pkg/events"
	"github.com/angelmondragon/scoopshop-backend/pkg/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

const (
	defaultDebounceWindow = 300 * time.Millisecond
	defaultIdleTTL        = 30 * time.Minute
	defaultSweepInterval  = 5 * time.Minute
	flushTimeout          = 5 * time.Second
)

// Mutation results reported to metrics.
const (
	resultApplied  = "applied"
	resultNoop     = "noop"
	resultRejected = "rejected"
)

// Publisher broadcasts cart events.
type Publisher interface {
	Publish(event events.Event) events.Event
}

// Recorder receives cart metrics.
type Recorder interface {
	IncMutation(op, result string)
	ObserveFlush(store string, duration time.Duration)
	IncStoreFailure(op string)
}

// Service owns the carts of every live session.
type Service interface {
	Get(ctx context.Context, sessionID string) (*Snapshot, error)
	Add(ctx context.Context, sessionID string, key LineKey, quantity int) (*Snapshot, error)
	Remove(ctx context.Context, sessionID string, key LineKey) (*Snapshot, error)
	UpdateQuantity(ctx context.Context, sessionID string, key LineKey, quantity int) (*Snapshot, error)
	Clear(ctx context.Context, sessionID string) (*Snapshot, error)
	Count(ctx context.Context, sessionID string) (int, error)
	Total(ctx context.Context, sessionID string, catalog Catalog) (decimal.Decimal, error)
	Quote(ctx context.Context, sessionID string, catalog Catalog) (*Quote, error)
	Flush(sessionID string) bool
	Run(ctx context.Context) error
	Close(ctx context.Context) error
}

// Options tunes the service. Zero values fall back to defaults.
type Options struct {
	MaxQuantity    int
	DebounceWindow time.Duration
	IdleTTL        time.Duration
	SweepInterval  time.Duration
}

// Snapshot is a point-in-time copy of a session's cart.
type Snapshot struct {
	SessionID string     `json:"sessionId"`
	Items     []LineItem `json:"items"`
	Count     int        `json:"count"`
}

// CartUpdatedPayload is the data of a cart.updated event.
type CartUpdatedPayload struct {
	SessionID string     `json:"session_id"`
	Count     int        `json:"count"`
	Items     []LineItem `json:"items"`
}

// OrdersUpdatedPayload is the data of an orders.updated event. It carries no
// order id because it is inferred from the cart becoming empty.
type OrdersUpdatedPayload struct {
	SessionID string `json:"session_id"`
}

type session struct {
	id        string
	cart      *Cart
	debouncer *debounce.Debouncer
	flushMu   sync.Mutex
	lastSeen  time.Time
}

type service struct {
	store   SessionStore
	bus     Publisher
	metrics Recorder
	logg    *logger.Logger
	opts    Options
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool
}

// NewService builds a cart service on top of the given store.
func NewService(store SessionStore, bus Publisher, metrics Recorder, logg *logger.Logger, opts Options) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("session store required")
	}
	if bus == nil {
		return nil, fmt.Errorf("event publisher required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	if opts.MaxQuantity <= 0 {
		opts.MaxQuantity = DefaultMaxQuantity
	}
	if opts.DebounceWindow <= 0 {
		opts.DebounceWindow = defaultDebounceWindow
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = defaultIdleTTL
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = defaultSweepInterval
	}
	return &service{
		store:    store,
		bus:      bus,
		metrics:  metrics,
		logg:     logg,
		opts:     opts,
		now:      time.Now,
		sessions: map[string]*session{},
	}, nil
}

func (s *service) Get(ctx context.Context, sessionID string) (*Snapshot, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return snapshotOf(sess), nil
}

func (s *service) Add(ctx context.Context, sessionID string, key LineKey, quantity int) (*Snapshot, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.cart.Add(key, quantity); err != nil {
		s.reject(ctx, enums.CartOperationAdd, err)
		return nil, err
	}
	s.accepted(sess, enums.CartOperationAdd, true)
	return snapshotOf(sess), nil
}

func (s *service) Remove(ctx context.Context, sessionID string, key LineKey) (*Snapshot, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	removed, err := sess.cart.Remove(key)
	if err != nil {
		s.reject(ctx, enums.CartOperationRemove, err)
		return nil, err
	}
	s.accepted(sess, enums.CartOperationRemove, removed)
	return snapshotOf(sess), nil
}

func (s *service) UpdateQuantity(ctx context.Context, sessionID string, key LineKey, quantity int) (*Snapshot, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	changed, err := sess.cart.UpdateQuantity(key, quantity)
	if err != nil {
		s.reject(ctx, enums.CartOperationUpdateQuantity, err)
		return nil, err
	}
	s.accepted(sess, enums.CartOperationUpdateQuantity, changed)
	return snapshotOf(sess), nil
}

func (s *service) Clear(ctx context.Context, sessionID string) (*Snapshot, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	dropped := sess.cart.Clear()
	s.accepted(sess, enums.CartOperationClear, dropped > 0)
	return snapshotOf(sess), nil
}

func (s *service) Count(ctx context.Context, sessionID string) (int, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return sess.cart.Count(), nil
}

func (s *service) Total(ctx context.Context, sessionID string, catalog Catalog) (decimal.Decimal, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return decimal.Zero, err
	}
	return sess.cart.Total(catalog), nil
}

func (s *service) Quote(ctx context.Context, sessionID string, catalog Catalog) (*Quote, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	q := sess.cart.Quote(catalog)
	return &q, nil
}

// Flush writes a session's pending changes now and reports whether any were pending.
func (s *service) Flush(sessionID string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	return sess.debouncer.Flush()
}

// Run evicts idle sessions until ctx is done.
func (s *service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if evicted := s.evictIdle(); evicted > 0 {
				s.logg.Debug(s.logg.WithField(ctx, "evicted", evicted), "evicted idle cart sessions")
			}
		}
	}
}

// Close flushes every pending write. Further operations fail.
func (s *service) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	pending := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		pending = append(pending, sess)
	}
	s.mu.Unlock()

	var errs error
	for _, sess := range pending {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		if !sess.debouncer.Pending() {
			continue
		}
		sess.flushMu.Lock()
		_, err := s.write(ctx, sess)
		sess.flushMu.Unlock()
		sess.debouncer.Cancel()
		errs = multierr.Append(errs, err)
	}
	return errs
}

func (s *service) session(ctx context.Context, sessionID string) (*session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cart service is shutting down")
	}
	if sess, ok := s.sessions[sessionID]; ok {
		sess.lastSeen = s.now()
		s.mu.Unlock()
		return sess, nil
	}
	s.mu.Unlock()

	lines, err := s.store.Load(ctx, sessionID)
	if err != nil {
		s.metrics.IncStoreFailure("load")
		s.logg.Error(s.logg.WithSessionID(ctx, sessionID), "failed to hydrate cart", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cart unavailable")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cart service is shutting down")
	}
	if sess, ok := s.sessions[sessionID]; ok {
		sess.lastSeen = s.now()
		return sess, nil
	}
	sess := &session{
		id:        sessionID,
		cart:      NewCart(s.opts.MaxQuantity, lines),
		debouncer: debounce.New(s.opts.DebounceWindow),
		lastSeen:  s.now(),
	}
	s.sessions[sessionID] = sess
	return sess, nil
}

func (s *service) accepted(sess *session, op enums.CartOperation, changed bool) {
	result := resultApplied
	if !changed {
		result = resultNoop
	}
	s.metrics.IncMutation(op.String(), result)
	sess.debouncer.Debounce(func() { s.flush(sess) })
}

func (s *service) reject(ctx context.Context, op enums.CartOperation, err error) {
	s.metrics.IncMutation(op.String(), resultRejected)
	if pkgerrors.Is(err, pkgerrors.CodeCapacity) {
		s.logg.Warn(s.logg.WithField(ctx, "op", op.String()), err.Error())
	}
}

// flush runs on the debounce timer. Store failures are logged and counted;
// events are published either way since the in-memory cart is authoritative.
func (s *service) flush(sess *session) {
	sess.flushMu.Lock()
	defer sess.flushMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	lines, _ := s.write(ctx, sess)
	s.publish(sess.id, lines)
}

func (s *service) write(ctx context.Context, sess *session) ([]LineItem, error) {
	lines := sess.cart.Lines()
	ctx = s.logg.WithSessionID(ctx, sess.id)

	op := "save"
	start := time.Now()
	var err error
	if len(lines) == 0 {
		op = "clear"
		err = s.store.Clear(ctx, sess.id)
	} else {
		err = s.store.Save(ctx, sess.id, lines)
	}
	s.metrics.ObserveFlush(s.store.Name(), time.Since(start))

	if err != nil {
		s.metrics.IncStoreFailure(op)
		s.logg.Error(s.logg.WithField(ctx, "op", op), "cart flush failed", err)
		return lines, err
	}
	s.logg.Debug(s.logg.WithField(ctx, "lines", len(lines)), "cart flushed")
	return lines, nil
}

func (s *service) publish(sessionID string, lines []LineItem) {
	s.bus.Publish(events.Event{
		Type:      enums.CartEventTypeCartUpdated,
		SessionID: sessionID,
		Data: CartUpdatedPayload{
			SessionID: sessionID,
			Count:     CountUnits(lines),
			Items:     lines,
		},
	})
	if len(lines) == 0 {
		s.bus.Publish(events.Event{
			Type:      enums.CartEventTypeOrdersUpdated,
			SessionID: sessionID,
			Data:      OrdersUpdatedPayload{SessionID: sessionID},
		})
	}
}

func (s *service) evictIdle() int {
	cutoff := s.now().Add(-s.opts.IdleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, sess := range s.sessions {
		if sess.lastSeen.After(cutoff) || sess.debouncer.Pending() {
			continue
		}
		// a flush still writing keeps the session until it lands
		if !sess.flushMu.TryLock() {
			continue
		}
		sess.flushMu.Unlock()
		delete(s.sessions, id)
		evicted++
	}
	return evicted
}

func snapshotOf(sess *session) *Snapshot {
	lines := sess.cart.Lines()
	return &Snapshot{SessionID: sess.id, Items: lines, Count: CountUnits(lines)}
}

type nopRecorder struct{}

func (nopRecorder) IncMutation(string, string)         {}
func (nopRecorder) ObserveFlush(string, time.Duration) {}
func (nopRecorder) IncStoreFailure(string)             {}
