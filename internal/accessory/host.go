package accessory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// namespace seeds accessory UUIDs so they never collide with other
// name-based UUIDs.
var namespace = uuid.MustParse("6f6b0b9e-5a8b-4f44-9a36-6b2c1d8e0a51")

// Logger is the logging interface used by the host.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// cacheTimeout bounds each cache write.
const cacheTimeout = 5 * time.Second

// Host keeps the registered accessories and publishes their changes.
type Host struct {
	mu          sync.RWMutex
	accessories map[string]*Accessory

	cache  Cache
	logger Logger

	listenersMu sync.RWMutex
	listeners   map[int]func(Change)
	nextID      int
}

// NewHost creates a host. cache may be nil to run without persistence.
func NewHost(cache Cache) *Host {
	return &Host{
		accessories: make(map[string]*Accessory),
		cache:       cache,
		logger:      noopLogger{},
		listeners:   make(map[int]func(Change)),
	}
}

// SetLogger sets the host logger.
func (h *Host) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	h.logger = logger
}

// UUID returns the stable accessory UUID for an identifier.
func (h *Host) UUID(id string) string {
	return uuid.NewSHA1(namespace, []byte(id)).String()
}

// Restore loads cached accessories. Call before any device registers.
func (h *Host) Restore(ctx context.Context) (int, error) {
	if h.cache == nil {
		return 0, nil
	}

	snaps, err := h.cache.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading accessory cache: %w", err)
	}

	h.mu.Lock()
	for _, snap := range snaps {
		acc := FromSnapshot(snap)
		acc.setNotify(h.publish)
		h.accessories[acc.UUID] = acc
	}
	h.mu.Unlock()

	h.logger.Info("restored cached accessories", "count", len(snaps))
	return len(snaps), nil
}

// Lookup returns the registered accessory with the UUID, or nil.
func (h *Host) Lookup(id string) *Accessory {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.accessories[id]
}

// Accessories returns the registered accessories sorted by name.
func (h *Host) Accessories() []*Accessory {
	h.mu.RLock()
	out := make([]*Accessory, 0, len(h.accessories))
	for _, a := range h.accessories {
		out = append(out, a)
	}
	h.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		ni, nj := out[i].DisplayName(), out[j].DisplayName()
		if ni != nj {
			return ni < nj
		}
		return out[i].UUID < out[j].UUID
	})
	return out
}

// Register publishes accessories and persists them.
func (h *Host) Register(accs ...*Accessory) {
	h.mu.Lock()
	for _, a := range accs {
		a.setNotify(h.publish)
		h.accessories[a.UUID] = a
	}
	h.mu.Unlock()

	h.persist(accs...)
}

// Update persists the current shape of already registered accessories.
func (h *Host) Update(accs ...*Accessory) {
	h.persist(accs...)
}

// Unregister withdraws accessories and drops them from the cache.
func (h *Host) Unregister(accs ...*Accessory) {
	ids := make([]string, 0, len(accs))

	h.mu.Lock()
	for _, a := range accs {
		if a == nil {
			continue
		}
		a.setNotify(nil)
		delete(h.accessories, a.UUID)
		ids = append(ids, a.UUID)
	}
	h.mu.Unlock()

	if h.cache == nil || len(ids) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()

	if err := h.cache.Delete(ctx, ids...); err != nil {
		h.logger.Error("failed to remove cached accessories", "error", err)
	}
}

// SetValue writes a characteristic from outside, running its set handler.
func (h *Host) SetValue(id string, svcType ServiceType, subtype string, charType CharacteristicType, value any) error {
	acc := h.Lookup(id)
	if acc == nil {
		return ErrAccessoryNotFound
	}

	svc := acc.Service(svcType, subtype)
	if svc == nil {
		return ErrServiceNotFound
	}

	c := svc.Lookup(charType)
	if c == nil {
		return ErrCharacteristicNotFound
	}

	return c.write(value)
}

// Subscribe registers fn for every change on any registered accessory and
// returns a function that removes it. fn must not block.
func (h *Host) Subscribe(fn func(Change)) func() {
	h.listenersMu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	h.listenersMu.Unlock()

	return func() {
		h.listenersMu.Lock()
		delete(h.listeners, id)
		h.listenersMu.Unlock()
	}
}

func (h *Host) publish(c Change) {
	h.listenersMu.RLock()
	fns := make([]func(Change), 0, len(h.listeners))
	for _, fn := range h.listeners {
		fns = append(fns, fn)
	}
	h.listenersMu.RUnlock()

	for _, fn := range fns {
		fn(c)
	}
}

func (h *Host) persist(accs ...*Accessory) {
	if h.cache == nil || len(accs) == 0 {
		return
	}

	snaps := make([]Snapshot, 0, len(accs))
	for _, a := range accs {
		if a != nil {
			snaps = append(snaps, a.Snapshot())
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()

	if err := h.cache.Save(ctx, snaps...); err != nil {
		h.logger.Error("failed to persist accessories", "error", err)
	}
}
