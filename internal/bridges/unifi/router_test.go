package unifi

import (
	"reflect"
	"testing"

	"github.com/nerrad567/gray-logic-access/internal/access"
)

func TestRouter_DispatchOrder(t *testing.T) {
	r := NewRouter()
	var got []string

	r.On(ByTypeAndDevice(access.EventDeviceUpdate, "dev1"), func(access.Packet) { got = append(got, "type+device") })
	r.On(ByDevice("dev1"), func(access.Packet) { got = append(got, "device") })
	r.On(ByType(access.EventDeviceUpdate), func(access.Packet) { got = append(got, "type") })
	r.Prepend(ByType(access.EventDeviceUpdate), func(access.Packet) { got = append(got, "type first") })
	r.SetForwarder(func(access.Packet) { got = append(got, "forward") })

	r.Dispatch(access.Packet{Event: access.EventDeviceUpdate, ObjectID: "dev1"})

	want := []string{"forward", "type first", "type", "device", "type+device"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestRouter_Selectivity(t *testing.T) {
	r := NewRouter()
	calls := map[string]int{}

	r.On(ByType(access.EventLogsAdd), func(access.Packet) { calls["type"]++ })
	r.On(ByDevice("dev1"), func(access.Packet) { calls["device"]++ })
	r.On(ByTypeAndDevice(access.EventLogsAdd, "dev1"), func(access.Packet) { calls["both"]++ })

	r.Dispatch(access.Packet{Event: access.EventLogsAdd, ObjectID: "dev2"})
	r.Dispatch(access.Packet{Event: access.EventDeviceUpdate, ObjectID: "dev1"})
	r.Dispatch(access.Packet{Event: access.EventLogsAdd})

	want := map[string]int{"type": 2, "device": 1}
	if !reflect.DeepEqual(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestRouter_OffDuringDispatch(t *testing.T) {
	r := NewRouter()
	var later Subscription
	laterCalled := false

	r.On(ByType(access.EventDeviceDelete), func(access.Packet) { r.Off(later) })
	later = r.On(ByTypeAndDevice(access.EventDeviceDelete, "dev1"), func(access.Packet) { laterCalled = true })

	r.Dispatch(access.Packet{Event: access.EventDeviceDelete, ObjectID: "dev1"})

	if laterCalled {
		t.Error("handler removed mid-dispatch was still called")
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
}

func TestRouter_OffRemovesOnlyThatHandler(t *testing.T) {
	r := NewRouter()
	var got []int

	first := r.On(ByType("x"), func(access.Packet) { got = append(got, 1) })
	r.On(ByType("x"), func(access.Packet) { got = append(got, 2) })

	r.Off(first)
	r.Off(first) // unknown by now
	r.Dispatch(access.Packet{Event: "x"})

	if !reflect.DeepEqual(got, []int{2}) {
		t.Errorf("got = %v, want [2]", got)
	}
}

func TestRouter_ForwarderCleared(t *testing.T) {
	r := NewRouter()
	forwarded := 0
	r.SetForwarder(func(access.Packet) { forwarded++ })
	r.Dispatch(access.Packet{Event: "x"})
	r.SetForwarder(nil)
	r.Dispatch(access.Packet{Event: "x"})

	if forwarded != 1 {
		t.Errorf("forwarded = %d, want 1", forwarded)
	}
}
