package unifi

import (
	"errors"
	"reflect"
	"testing"

	"github.com/nerrad567/gray-logic-access/internal/access"
	"github.com/nerrad567/gray-logic-access/internal/accessory"
)

func doorbellHub() access.Device {
	dev := hubDevice("UAH", cfg(lockKey, "off"))
	dev.Capabilities = append(dev.Capabilities, doorbellCapability)
	return dev
}

// ring sends a remote view addressed to the controller, as the event stream
// does, naming the hub in its payload.
func ring(t *testing.T, f *fixture, requestID string) {
	t.Helper()
	f.send(packet(t, access.EventRemoteView, "controller-object", access.RemoteView{
		DeviceID:  "hub1",
		RequestID: requestID,
		DoorName:  "Front Door",
	}))
}

func ringing(f *fixture) bool {
	return f.value(testHubID, accessory.ServiceSwitch, subtypeDoorbellTrigger, accessory.CharOn) == true
}

func TestDoorbell_RingAndAnswer(t *testing.T) {
	f := newFixture(t, "Enable.Hub.Doorbell.Trigger")
	f.sync(doorbellHub())

	ring(t, f, "r1")

	if !ringing(f) {
		t.Fatal("trigger not on after ring")
	}
	if got := f.value(testHubID, accessory.ServiceDoorbell, "", accessory.CharProgrammableSwitchEvent); got != accessory.SinglePress {
		t.Errorf("ProgrammableSwitchEvent = %v, want single press", got)
	}

	// A change for someone else's ring is ignored.
	f.send(packet(t, access.EventRemoteViewChange, "", access.RemoteViewChange{RequestID: "r2", Reason: "answered"}))
	if !ringing(f) {
		t.Fatal("unrelated change ended the ring")
	}

	f.send(packet(t, access.EventRemoteViewChange, "", access.RemoteViewChange{RequestID: "r1", Reason: "answered"}))
	if ringing(f) {
		t.Error("trigger still on after the ring was answered")
	}

	msgs := f.telemetry.messages(topicDoorbell)
	if !reflect.DeepEqual(msgs, []string{"true", "false"}) {
		t.Errorf("doorbell messages = %s, want [true false]", joinMessages(msgs))
	}
}

func TestDoorbell_Timeout(t *testing.T) {
	f := newFixture(t, "Enable.Hub.Doorbell.Trigger")
	f.sync(doorbellHub())

	ring(t, f, "r1")
	f.clock.Add(doorbellTimeout)

	waitFor(t, "ring to time out", func() bool { return !ringing(f) })
}

func TestDoorbell_DismissFromTrigger(t *testing.T) {
	f := newFixture(t, "Enable.Hub.Doorbell.Trigger")
	f.sync(doorbellHub())
	ring(t, f, "r1")

	err := f.write(testHubID, accessory.ServiceSwitch, subtypeDoorbellTrigger, accessory.CharOn, true)
	if !errors.Is(err, accessory.ErrInvalidValue) {
		t.Errorf("write(true) error = %v, want ErrInvalidValue", err)
	}

	if err := f.write(testHubID, accessory.ServiceSwitch, subtypeDoorbellTrigger, accessory.CharOn, false); err != nil {
		t.Fatalf("write(false) error = %v", err)
	}
	if ringing(f) {
		t.Error("trigger still on after dismiss")
	}

	h := f.hub(testHubID)
	f.ctrl.mu.Lock()
	pending := h.pending(timerDoorbell)
	f.ctrl.mu.Unlock()
	if pending {
		t.Error("doorbell timeout still pending after dismiss")
	}
}

func TestDoorbell_NeedsCapability(t *testing.T) {
	f := newFixture(t)
	f.sync(hubDevice("UAH", cfg(lockKey, "off")))

	if f.hasService(testHubID, accessory.ServiceDoorbell, "") {
		t.Error("hub without door_bell capability has a doorbell")
	}

	ring(t, f, "r1")
	if msgs := f.telemetry.messages(topicDoorbell); len(msgs) != 0 {
		t.Errorf("doorbell messages = %s, want none", joinMessages(msgs))
	}
}

func TestDoorbell_OptionOff(t *testing.T) {
	f := newFixture(t, "Disable.Hub.Doorbell")
	f.sync(doorbellHub())

	if f.hasService(testHubID, accessory.ServiceDoorbell, "") {
		t.Error("doorbell present with Hub.Doorbell disabled")
	}
}
