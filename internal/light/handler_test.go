package light

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mlutz/deconzd/internal/deconz"
)

// fakeTransport records sent deltas and serves canned fetch responses.
type fakeTransport struct {
	mu      sync.Mutex
	sent    []*deconz.LightState
	sendErr error
	light   *deconz.LightMessage
	getErr  error
}

func (f *fakeTransport) SetLightState(ctx context.Context, id string, state *deconz.LightState) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.mu.Lock()
	f.sent = append(f.sent, state)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) GetLight(ctx context.Context, id string) (*deconz.LightMessage, error) {
	return f.light, f.getErr
}

type emission struct {
	channel ChannelKind
	value   Value
}

// fakeEmitter records emitted channel values.
type fakeEmitter struct {
	mu        sync.Mutex
	emissions []emission
}

func (f *fakeEmitter) EmitChannelValue(lightID string, channel ChannelKind, value Value) {
	f.mu.Lock()
	f.emissions = append(f.emissions, emission{channel, value})
	f.mu.Unlock()
}

func (f *fakeEmitter) byChannel(ch ChannelKind) (Value, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.emissions {
		if e.channel == ch {
			return e.value, true
		}
	}
	return nil, false
}

// testClock is a manually advanced clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestHandler(channels []ChannelKind, transport *fakeTransport, emitter *fakeEmitter, clock *testClock) *Handler {
	conv := &fakeConverter{hsb: HSB{Hue: 120, Sat: 90, Bri: 80}}
	return NewHandler("1", channels, NewTranslator(conv), transport, emitter, conv, Options{
		Clock: clock.Now,
	})
}

func TestHandleCommandArmsSuppressionWindow(t *testing.T) {
	transport := &fakeTransport{}
	emitter := &fakeEmitter{}
	clock := &testClock{now: time.Unix(1000, 0)}
	h := newTestHandler([]ChannelKind{ChannelSwitch}, transport, emitter, clock)

	if err := h.HandleCommand(context.Background(), ChannelSwitch, OnOff(true)); err != nil {
		t.Fatal(err)
	}
	if len(transport.sent) != 1 {
		t.Fatalf("sent %d deltas, want 1", len(transport.sent))
	}

	// A differing update inside the window is dropped
	h.UpdateReceived(&deconz.LightState{On: boolPtr(false)})
	if len(emitter.emissions) != 0 {
		t.Errorf("differing update inside window was emitted: %+v", emitter.emissions)
	}

	// A matching update inside the window is accepted
	h.UpdateReceived(&deconz.LightState{On: boolPtr(true)})
	if v, ok := emitter.byChannel(ChannelSwitch); !ok || v != OnOff(true) {
		t.Errorf("matching update not emitted, got %v", v)
	}
}

func TestUpdateAcceptedAfterWindowExpiry(t *testing.T) {
	transport := &fakeTransport{}
	emitter := &fakeEmitter{}
	clock := &testClock{now: time.Unix(1000, 0)}
	h := newTestHandler([]ChannelKind{ChannelSwitch}, transport, emitter, clock)

	if err := h.HandleCommand(context.Background(), ChannelSwitch, OnOff(true)); err != nil {
		t.Fatal(err)
	}

	clock.Advance(DefaultSuppressionWindow + time.Millisecond)

	// Conflicting or not, updates after expiry are accepted
	h.UpdateReceived(&deconz.LightState{On: boolPtr(false)})
	if v, ok := emitter.byChannel(ChannelSwitch); !ok || v != OnOff(false) {
		t.Errorf("update after expiry not emitted, got %v", v)
	}
}

func TestTransitionTimeExtendsWindow(t *testing.T) {
	transport := &fakeTransport{}
	emitter := &fakeEmitter{}
	clock := &testClock{now: time.Unix(1000, 0)}
	conv := &fakeConverter{}
	tt := 60.0 // 600 deciseconds -> 600ms window
	h := NewHandler("1", []ChannelKind{ChannelBrightness}, NewTranslator(conv), transport, emitter, conv, Options{
		TransitionTime: &tt,
		Clock:          clock.Now,
	})

	// prime the cache so brightness commands don't force the on flag
	h.Seed(deconz.LightState{On: boolPtr(true)})

	if err := h.HandleCommand(context.Background(), ChannelBrightness, Percent(50)); err != nil {
		t.Fatal(err)
	}

	clock.Advance(400 * time.Millisecond)
	h.UpdateReceived(&deconz.LightState{On: boolPtr(true), Bri: ptr(10)})
	if len(emitter.emissions) != 0 {
		t.Fatalf("conflicting update inside extended window was emitted")
	}

	clock.Advance(300 * time.Millisecond)
	h.UpdateReceived(&deconz.LightState{On: boolPtr(true), Bri: ptr(10)})
	if len(emitter.emissions) == 0 {
		t.Fatal("update after extended window expiry was dropped")
	}
}

func TestFailedSendDoesNotArmWindow(t *testing.T) {
	transport := &fakeTransport{sendErr: errors.New("gateway down")}
	emitter := &fakeEmitter{}
	clock := &testClock{now: time.Unix(1000, 0)}
	h := newTestHandler([]ChannelKind{ChannelSwitch}, transport, emitter, clock)

	if err := h.HandleCommand(context.Background(), ChannelSwitch, OnOff(true)); err == nil {
		t.Fatal("expected send error")
	}

	// Window is not armed, any update goes through immediately
	h.UpdateReceived(&deconz.LightState{On: boolPtr(false)})
	if v, ok := emitter.byChannel(ChannelSwitch); !ok || v != OnOff(false) {
		t.Errorf("update after failed send not emitted, got %v", v)
	}
}

func TestDroppedUpdateLeavesCacheUntouched(t *testing.T) {
	transport := &fakeTransport{}
	emitter := &fakeEmitter{}
	clock := &testClock{now: time.Unix(1000, 0)}
	h := newTestHandler([]ChannelKind{ChannelSwitch, ChannelBrightness}, transport, emitter, clock)

	h.UpdateReceived(&deconz.LightState{On: boolPtr(true), Bri: ptr(100)})
	emitter.emissions = nil

	if err := h.HandleCommand(context.Background(), ChannelSwitch, OnOff(true)); err != nil {
		t.Fatal(err)
	}

	// dropped push must not touch the cache
	h.UpdateReceived(&deconz.LightState{On: boolPtr(false), Bri: ptr(0)})

	emitter.emissions = nil
	if err := h.HandleCommand(context.Background(), ChannelBrightness, Refresh{}); err != nil {
		t.Fatal(err)
	}
	v, ok := emitter.byChannel(ChannelBrightness)
	if !ok {
		t.Fatal("refresh emitted nothing")
	}
	if v != ToPercent(100) {
		t.Errorf("refresh after dropped update = %v, want %v", v, ToPercent(100))
	}
}

func TestUpdateEmitsAllChannels(t *testing.T) {
	transport := &fakeTransport{}
	emitter := &fakeEmitter{}
	clock := &testClock{now: time.Unix(1000, 0)}
	h := newTestHandler([]ChannelKind{ChannelSwitch, ChannelBrightness, ChannelColor}, transport, emitter, clock)

	h.UpdateReceived(&deconz.LightState{
		On:  boolPtr(true),
		Bri: ptr(128),
		Hue: ptr(100),
		Sat: ptr(200),
	})

	if v, ok := emitter.byChannel(ChannelSwitch); !ok || v != OnOff(true) {
		t.Errorf("switch = %v, want ON", v)
	}
	if v, ok := emitter.byChannel(ChannelBrightness); !ok || v != ToPercent(128) {
		t.Errorf("brightness = %v, want %v", v, ToPercent(128))
	}
	v, ok := emitter.byChannel(ChannelColor)
	if !ok {
		t.Fatal("color not emitted")
	}
	hsb, ok := v.(HSB)
	if !ok {
		t.Fatalf("color value is %T, want HSB", v)
	}
	if hsb.Hue != HueToDegrees(100) || hsb.Sat != int(ToPercent(200)) || hsb.Bri != int(ToPercent(128)) {
		t.Errorf("color = %+v", hsb)
	}
}

func TestBrightnessEmitsOffWhenLightOff(t *testing.T) {
	transport := &fakeTransport{}
	emitter := &fakeEmitter{}
	clock := &testClock{now: time.Unix(1000, 0)}
	h := newTestHandler([]ChannelKind{ChannelBrightness}, transport, emitter, clock)

	// a stale non-zero brightness on an off light must not show
	h.UpdateReceived(&deconz.LightState{On: boolPtr(false), Bri: ptr(200)})

	v, ok := emitter.byChannel(ChannelBrightness)
	if !ok {
		t.Fatal("brightness not emitted")
	}
	if v != OnOff(false) {
		t.Errorf("brightness = %v, want OFF", v)
	}
}

func TestColorFallsBackToXY(t *testing.T) {
	transport := &fakeTransport{}
	emitter := &fakeEmitter{}
	clock := &testClock{now: time.Unix(1000, 0)}
	h := newTestHandler([]ChannelKind{ChannelColor}, transport, emitter, clock)

	// no hue/sat/bri triple, xy pair present
	h.UpdateReceived(&deconz.LightState{XY: []float64{0.3, 0.3}})

	v, ok := emitter.byChannel(ChannelColor)
	if !ok {
		t.Fatal("color not emitted")
	}
	hsb := v.(HSB)
	if hsb.Hue != 120 || hsb.Sat != 90 || hsb.Bri != 80 {
		t.Errorf("color from xy = %+v, want converter output", hsb)
	}
}

func TestColorEmitsNothingWithoutColorFields(t *testing.T) {
	transport := &fakeTransport{}
	emitter := &fakeEmitter{}
	clock := &testClock{now: time.Unix(1000, 0)}
	h := newTestHandler([]ChannelKind{ChannelColor, ChannelColorTemperature}, transport, emitter, clock)

	h.UpdateReceived(&deconz.LightState{On: boolPtr(true)})
	if len(emitter.emissions) != 0 {
		t.Errorf("unexpected emissions: %+v", emitter.emissions)
	}
}

func TestColorTemperatureAndPositionEmission(t *testing.T) {
	transport := &fakeTransport{}
	emitter := &fakeEmitter{}
	clock := &testClock{now: time.Unix(1000, 0)}
	h := newTestHandler([]ChannelKind{ChannelColorTemperature, ChannelPosition}, transport, emitter, clock)

	h.UpdateReceived(&deconz.LightState{Ct: ptr(327), Bri: ptr(127)})

	v, ok := emitter.byChannel(ChannelColorTemperature)
	if !ok {
		t.Fatal("color temperature not emitted")
	}
	if d := v.(Decimal); d < 50.0 || d > 50.2 {
		t.Errorf("ct = %v, want about 50", d)
	}
	if v, ok := emitter.byChannel(ChannelPosition); !ok || v != ToPercent(127) {
		t.Errorf("position = %v, want %v", v, ToPercent(127))
	}
}

func TestFetchToleratesNoState(t *testing.T) {
	transport := &fakeTransport{light: nil} // gateway said 403
	emitter := &fakeEmitter{}
	clock := &testClock{now: time.Unix(1000, 0)}
	h := newTestHandler([]ChannelKind{ChannelSwitch}, transport, emitter, clock)

	if err := h.Fetch(context.Background()); err != nil {
		t.Fatalf("fetch with no state should not error: %v", err)
	}
	if len(emitter.emissions) != 0 {
		t.Errorf("unexpected emissions: %+v", emitter.emissions)
	}
}

func TestFetchReconcilesState(t *testing.T) {
	transport := &fakeTransport{light: &deconz.LightMessage{
		ID:    "1",
		State: &deconz.LightState{On: boolPtr(true)},
	}}
	emitter := &fakeEmitter{}
	clock := &testClock{now: time.Unix(1000, 0)}
	h := newTestHandler([]ChannelKind{ChannelSwitch}, transport, emitter, clock)

	if err := h.Fetch(context.Background()); err != nil {
		t.Fatal(err)
	}
	if v, ok := emitter.byChannel(ChannelSwitch); !ok || v != OnOff(true) {
		t.Errorf("fetch did not emit switch state, got %v", v)
	}
}

func TestFetchPropagatesErrors(t *testing.T) {
	transport := &fakeTransport{getErr: errors.New("unexpected status code 500")}
	emitter := &fakeEmitter{}
	clock := &testClock{now: time.Unix(1000, 0)}
	h := newTestHandler([]ChannelKind{ChannelSwitch}, transport, emitter, clock)

	if err := h.Fetch(context.Background()); err == nil {
		t.Fatal("expected fetch error")
	}
}

func TestOnAcceptedHook(t *testing.T) {
	transport := &fakeTransport{}
	emitter := &fakeEmitter{}
	clock := &testClock{now: time.Unix(1000, 0)}
	conv := &fakeConverter{}

	var accepted []deconz.LightState
	h := NewHandler("1", []ChannelKind{ChannelSwitch}, NewTranslator(conv), transport, emitter, conv, Options{
		Clock: clock.Now,
		OnAccepted: func(id string, state deconz.LightState) {
			accepted = append(accepted, state)
		},
	})

	h.UpdateReceived(&deconz.LightState{On: boolPtr(true)})
	if len(accepted) != 1 {
		t.Fatalf("accepted hook called %d times, want 1", len(accepted))
	}

	// arm the window, then push a conflicting update: hook must not fire
	if err := h.HandleCommand(context.Background(), ChannelSwitch, OnOff(false)); err != nil {
		t.Fatal(err)
	}
	h.UpdateReceived(&deconz.LightState{On: boolPtr(true)})
	if len(accepted) != 1 {
		t.Errorf("accepted hook fired for a dropped update")
	}
}
