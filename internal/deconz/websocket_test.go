package deconz

import "testing"

func TestProcessMessage_LightState(t *testing.T) {
	p := NewPushStream("localhost", 443, DefaultPushStreamConfig())

	var gotID string
	var gotState *LightState
	p.processMessage([]byte(`{
		"t": "event",
		"e": "changed",
		"r": "lights",
		"id": "3",
		"state": {"on": true, "bri": 180}
	}`), func(id string, state *LightState) {
		gotID = id
		gotState = state
	})

	if gotID != "3" {
		t.Fatalf("id = %q, want %q", gotID, "3")
	}
	if gotState == nil || gotState.On == nil || !*gotState.On {
		t.Errorf("state not delivered: %+v", gotState)
	}
	if gotState.Bri == nil || *gotState.Bri != 180 {
		t.Errorf("bri = %+v, want 180", gotState.Bri)
	}
}

func TestProcessMessage_IgnoresUnrelatedFrames(t *testing.T) {
	p := NewPushStream("localhost", 443, DefaultPushStreamConfig())

	frames := []string{
		`{"t":"event","e":"changed","r":"sensors","id":"1","state":{"on":true}}`,
		`{"t":"event","e":"added","r":"lights","id":"1","state":{"on":true}}`,
		`{"t":"event","e":"changed","r":"lights","id":"1"}`,
		`not json at all`,
		`{"t":"other"}`,
	}

	for _, frame := range frames {
		called := false
		p.processMessage([]byte(frame), func(string, *LightState) {
			called = true
		})
		if called {
			t.Errorf("frame %q delivered a state", frame)
		}
	}
}
