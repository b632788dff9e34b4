package mqtt

import "testing"

func TestTopicBuilders(t *testing.T) {
	topics := NewTopics("unifi/access")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"Status", topics.Status(), "unifi/access/status"},
		{"Health", topics.Health(), "unifi/access/health"},
		{"Device", topics.Device("f4:e2:c6:aa:00:01", "lock"), "unifi/access/F4E2C6AA0001/lock"},
		{"Get", topics.Get("F4E2C6AA0001", "lock"), "unifi/access/F4E2C6AA0001/lock/get"},
		{"Set", topics.Set("f4-e2-c6-aa-00-01", "sidedoor/lock"), "unifi/access/F4E2C6AA0001/sidedoor/lock/set"},
		{"Telemetry", topics.Telemetry("aa:bb:cc:dd:ee:ff"), "unifi/access/AABBCCDDEEFF/telemetry"},
		{"AllDevices", topics.AllDevices(), "unifi/access/+/#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestNewTopics_Root(t *testing.T) {
	tests := []struct {
		root string
		want string
	}{
		{"", "unifi/access/status"},
		{"  ", "unifi/access/status"},
		{"/site/doors/", "site/doors/status"},
		{"home", "home/status"},
	}

	for _, tt := range tests {
		if got := NewTopics(tt.root).Status(); got != tt.want {
			t.Errorf("NewTopics(%q).Status() = %q, want %q", tt.root, got, tt.want)
		}
	}

	if got := (Topics{}).Status(); got != "unifi/access/status" {
		t.Errorf("zero Topics.Status() = %q", got)
	}
}

func TestNormaliseID(t *testing.T) {
	tests := map[string]string{
		"f4:e2:c6:aa:00:01": "F4E2C6AA0001",
		"F4-E2-C6-AA-00-01": "F4E2C6AA0001",
		"f4e2.c6aa.0001":    "F4E2C6AA0001",
		"":                  "",
	}
	for in, want := range tests {
		if got := NormaliseID(in); got != want {
			t.Errorf("NormaliseID(%q) = %q, want %q", in, got, want)
		}
	}
}
