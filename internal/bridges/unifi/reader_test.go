package unifi

import (
	"errors"
	"net/http"
	"reflect"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-access/internal/access"
	"github.com/nerrad567/gray-logic-access/internal/accessory"
)

func methodReader() access.Device {
	dev := readerDevice("support_nfc", "pin_code")
	dev.Configs = []access.ConfigEntry{
		{Key: "nfc", Tag: openDoorModeTag, Value: configEnabled},
		{Key: "pin_code", Tag: openDoorModeTag, Value: configDisabled},
	}
	return dev
}

func methodOn(f *fixture, name string) any {
	return f.value(testReaderID, accessory.ServiceSwitch, "method-"+name, accessory.CharOn)
}

func TestReader_AccessMethodSwitches(t *testing.T) {
	f := newFixture(t)
	f.sync(methodReader())

	if got := methodOn(f, "nfc"); got != true {
		t.Errorf("NFC = %v, want true", got)
	}
	if got := methodOn(f, "pin"); got != false {
		t.Errorf("PIN = %v, want false", got)
	}
	if f.hasService(testReaderID, accessory.ServiceSwitch, "method-face") {
		t.Error("face switch present without the capability")
	}
	if f.hasService(testReaderID, accessory.ServiceLockMechanism, "") {
		t.Error("reader has a lock")
	}
}

func TestReader_SetAccessMethod(t *testing.T) {
	f := newFixture(t)
	f.sync(methodReader())

	if err := f.write(testReaderID, accessory.ServiceSwitch, "method-pin", accessory.CharOn, true); err != nil {
		t.Fatalf("write error = %v", err)
	}

	reqs := f.transport.getRequests()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(reqs))
	}
	if reqs[0].Endpoint != access.DeviceConfigEndpoint("reader1") || reqs[0].Opts.Method != http.MethodPut {
		t.Errorf("request = %s %s", reqs[0].Opts.Method, reqs[0].Endpoint)
	}
	want := []access.ConfigEntry{{Key: "pin_code", Tag: "open_door_mode", Value: "yes"}}
	if !reflect.DeepEqual(reqs[0].Opts.Body, want) {
		t.Errorf("body = %+v, want %+v", reqs[0].Opts.Body, want)
	}
	if got := methodOn(f, "pin"); got != true {
		t.Errorf("PIN = %v after write, want true", got)
	}
}

func TestReader_SetAccessMethodFailureReverts(t *testing.T) {
	f := newFixture(t)
	f.transport.status = http.StatusInternalServerError
	f.sync(methodReader())

	if err := f.write(testReaderID, accessory.ServiceSwitch, "method-pin", accessory.CharOn, true); err != nil {
		t.Fatalf("write error = %v", err)
	}

	f.clock.Add(LockRevertDelay)
	waitFor(t, "PIN switch to revert", func() bool { return methodOn(f, "pin") == false })
}

func TestReader_SetAccessMethodOffline(t *testing.T) {
	f := newFixture(t)
	dev := methodReader()
	dev.IsAdopted = false
	f.sync(dev)

	rec := f.ctrl.registry[testReaderID].base()
	if err := rec.setAccessMethod(accessMethods[1], false); !errors.Is(err, ErrOffline) {
		t.Errorf("setAccessMethod() error = %v, want ErrOffline", err)
	}
	if n := len(f.transport.getRequests()); n != 0 {
		t.Errorf("requests = %d, want 0", n)
	}
}

func TestReader_MethodFollowsController(t *testing.T) {
	f := newFixture(t)
	f.sync(methodReader())

	dev := methodReader()
	dev.Configs[0].Value = configDisabled
	f.send(deviceUpdate(t, dev))

	if got := methodOn(f, "nfc"); got != false {
		t.Errorf("NFC = %v, want false", got)
	}
}

func TestReader_MethodOptionOff(t *testing.T) {
	f := newFixture(t, "Disable.Reader.AccessMethod.NFC."+testReaderID)
	f.sync(methodReader())

	if f.hasService(testReaderID, accessory.ServiceSwitch, "method-nfc") {
		t.Error("NFC switch present with the option disabled")
	}
	if !f.hasService(testReaderID, accessory.ServiceSwitch, "method-pin") {
		t.Error("PIN switch missing")
	}
}

func accessLog(t *testing.T, targetIDs ...string) access.Packet {
	t.Helper()
	var entry access.LogEntry
	entry.Source.Actor.DisplayName = "Ada"
	entry.Source.Event.Result = "ACCESS"
	entry.Source.Authentication.CredentialProvider = "NFC"
	for _, id := range targetIDs {
		entry.Source.Target = append(entry.Source.Target, access.LogTarget{Type: "device", ID: id})
	}
	return packet(t, access.EventLogsAdd, "log-1", entry)
}

func TestReader_AccessEventSensors(t *testing.T) {
	f := newFixture(t, "Enable.Device.Motion", "Enable.Device.Occupancy", "Enable.Device.Motion.Duration.5")
	f.sync(methodReader())

	f.send(accessLog(t, "door1", "reader1"))

	if got := f.value(testReaderID, accessory.ServiceMotionSensor, "", accessory.CharMotionDetected); got != true {
		t.Errorf("MotionDetected = %v, want true", got)
	}
	if got := f.value(testReaderID, accessory.ServiceOccupancySensor, "", accessory.CharOccupancyDetected); got != accessory.OccupancyDetected {
		t.Errorf("OccupancyDetected = %v, want detected", got)
	}
	if n := f.logger.count("access event"); n != 1 {
		t.Errorf("access event logs = %d, want 1", n)
	}

	f.clock.Add(5 * time.Second)
	waitFor(t, "motion to clear", func() bool {
		return f.value(testReaderID, accessory.ServiceMotionSensor, "", accessory.CharMotionDetected) == false
	})
	if got := f.value(testReaderID, accessory.ServiceOccupancySensor, "", accessory.CharOccupancyDetected); got != accessory.OccupancyDetected {
		t.Errorf("occupancy cleared after %v, want held", 5*time.Second)
	}

	f.clock.Add(defaultOccupancyDuration)
	waitFor(t, "occupancy to clear", func() bool {
		return f.value(testReaderID, accessory.ServiceOccupancySensor, "", accessory.CharOccupancyDetected) == accessory.OccupancyNotDetected
	})
}

func TestReader_AccessLogForOtherDevice(t *testing.T) {
	f := newFixture(t, "Enable.Device.Motion")
	f.sync(methodReader())

	f.send(accessLog(t, "someone-else"))

	if got := f.value(testReaderID, accessory.ServiceMotionSensor, "", accessory.CharMotionDetected); got != false {
		t.Errorf("MotionDetected = %v, want false", got)
	}
}
