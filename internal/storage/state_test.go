package storage

import (
	"path/filepath"
	"testing"

	"github.com/mlutz/deconzd/internal/db"
	"github.com/mlutz/deconzd/internal/deconz"
)

func boolPtr(b bool) *bool { return &b }

func intPtr(v int) *int { return &v }

func openStore(t *testing.T) *LightStateStore {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })
	return NewLightStateStore(database.DB)
}

func TestStoreRoundTrip(t *testing.T) {
	store := openStore(t)

	state := deconz.LightState{
		On:  boolPtr(true),
		Bri: intPtr(180),
		XY:  []float64{0.3, 0.4},
	}
	if err := store.Set("1", state); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get("1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("state not found after Set")
	}
	if got.On == nil || !*got.On || got.Bri == nil || *got.Bri != 180 {
		t.Errorf("round trip = %+v", got)
	}
	if len(got.XY) != 2 || got.XY[0] != 0.3 {
		t.Errorf("xy = %v", got.XY)
	}
}

func TestStoreGetMissing(t *testing.T) {
	store := openStore(t)

	got, err := store.Get("nope")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("missing id returned %+v", got)
	}
}

func TestStoreOverwrite(t *testing.T) {
	store := openStore(t)

	if err := store.Set("1", deconz.LightState{On: boolPtr(true)}); err != nil {
		t.Fatal(err)
	}
	if err := store.Set("1", deconz.LightState{On: boolPtr(false), Bri: intPtr(10)}); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get("1")
	if err != nil {
		t.Fatal(err)
	}
	if got.On == nil || *got.On {
		t.Errorf("overwrite lost: %+v", got)
	}
}

func TestStoreAllAndClear(t *testing.T) {
	store := openStore(t)

	if err := store.Set("1", deconz.LightState{On: boolPtr(true)}); err != nil {
		t.Fatal(err)
	}
	if err := store.Set("2", deconz.LightState{Bri: intPtr(50)}); err != nil {
		t.Fatal(err)
	}

	all, err := store.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("All() = %d entries, want 2", len(all))
	}

	if err := store.Clear(); err != nil {
		t.Fatal(err)
	}
	all, err = store.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Errorf("Clear() left %d entries", len(all))
	}
}
