package unifi

import (
	"sync"

	"github.com/nerrad567/gray-logic-access/internal/access"
)

type routeKind int

const (
	routeType routeKind = iota
	routeDevice
	routeTypeDevice
)

// Route selects packets by event type, device id, or both.
type Route struct {
	kind   routeKind
	event  string
	device string
}

// ByType matches every packet of an event type.
func ByType(event string) Route {
	return Route{kind: routeType, event: event}
}

// ByDevice matches every packet addressed to a device.
func ByDevice(deviceID string) Route {
	return Route{kind: routeDevice, device: deviceID}
}

// ByTypeAndDevice matches packets of one event type for one device.
func ByTypeAndDevice(event, deviceID string) Route {
	return Route{kind: routeTypeDevice, event: event, device: deviceID}
}

// Handler receives routed packets.
type Handler func(access.Packet)

// Subscription identifies one registered handler.
type Subscription struct {
	route Route
	id    uint64
}

type subscriber struct {
	id uint64
	fn Handler
}

// Router fans notification packets out to subscribers.
//
// Dispatch order for a packet: type listeners (prepended ones first),
// device listeners, then type+device listeners. A handler removed during a
// dispatch is not called for the rest of it.
type Router struct {
	mu      sync.Mutex
	nextID  uint64
	subs    map[Route][]subscriber
	live    map[uint64]struct{}
	forward func(access.Packet)
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{
		subs: make(map[Route][]subscriber),
		live: make(map[uint64]struct{}),
	}
}

// On appends fn to route's listeners.
func (r *Router) On(route Route, fn Handler) Subscription {
	return r.add(route, fn, false)
}

// Prepend registers fn ahead of route's existing listeners.
func (r *Router) Prepend(route Route, fn Handler) Subscription {
	return r.add(route, fn, true)
}

func (r *Router) add(route Route, fn Handler, front bool) Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	s := subscriber{id: r.nextID, fn: fn}
	if front {
		r.subs[route] = append([]subscriber{s}, r.subs[route]...)
	} else {
		r.subs[route] = append(r.subs[route], s)
	}
	r.live[s.id] = struct{}{}

	return Subscription{route: route, id: s.id}
}

// Off removes subscriptions. Unknown ones are ignored.
func (r *Router) Off(subs ...Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sub := range subs {
		list := r.subs[sub.route]
		for i, s := range list {
			if s.id == sub.id {
				list = append(list[:i:i], list[i+1:]...)
				break
			}
		}
		if len(list) == 0 {
			delete(r.subs, sub.route)
		} else {
			r.subs[sub.route] = list
		}
		delete(r.live, sub.id)
	}
}

// SetForwarder installs fn to receive every packet before the listeners.
// nil disables forwarding.
func (r *Router) SetForwarder(fn func(access.Packet)) {
	r.mu.Lock()
	r.forward = fn
	r.mu.Unlock()
}

// Count returns the number of registered handlers.
func (r *Router) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// Dispatch delivers pkt. The packet's ObjectID addresses the device.
func (r *Router) Dispatch(pkt access.Packet) {
	r.mu.Lock()
	forward := r.forward
	var queue []subscriber
	queue = append(queue, r.subs[ByType(pkt.Event)]...)
	if pkt.ObjectID != "" {
		queue = append(queue, r.subs[ByDevice(pkt.ObjectID)]...)
		queue = append(queue, r.subs[ByTypeAndDevice(pkt.Event, pkt.ObjectID)]...)
	}
	r.mu.Unlock()

	if forward != nil {
		forward(pkt)
	}

	for _, s := range queue {
		if !r.subscribed(s.id) {
			continue
		}
		s.fn(pkt)
	}
}

func (r *Router) subscribed(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.live[id]
	return ok
}
