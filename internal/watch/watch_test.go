package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/npipolicy/internal/model"
)

const v1 = `
leisure:
  "2020-03-16": {fraction: 0.4}
`

const v2 = `
leisure:
  "2020-03-16": {fraction: 0.2}
`

func writePolicy(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func fractionAt(t *testing.T, w *Watcher) float64 {
	t.Helper()
	p, _ := w.Policy()
	r, err := p.Resolve(model.MustDate("2020-04-01"), "leisure")
	if err != nil {
		t.Fatal(err)
	}
	return r.RemainingFraction()
}

func TestNewRequiresValidPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if _, err := New(path); err == nil {
		t.Error("expected error for missing file")
	}
	writePolicy(t, path, "leisure: {\"2020-03-16\": {fraction: 2}}")
	if _, err := New(path); err == nil {
		t.Error("expected error for invalid fraction")
	}
}

func TestReloadSwapsPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	writePolicy(t, path, v1)

	var got []Reload
	w, err := New(path, OnReload(func(r Reload) { got = append(got, r) }))
	if err != nil {
		t.Fatal(err)
	}

	changed, err := w.Reload()
	if err != nil || changed {
		t.Fatalf("expected unchanged reload, got %v, %v", changed, err)
	}

	writePolicy(t, path, v2)
	changed, err = w.Reload()
	if err != nil || !changed {
		t.Fatalf("expected reload, got %v, %v", changed, err)
	}
	if f := fractionAt(t, w); f != 0.2 {
		t.Errorf("expected 0.2, got %v", f)
	}
	if len(got) != 1 || len(got[0].Diff.EntryChanges) != 1 {
		t.Fatalf("expected one callback with one entry change, got %+v", got)
	}
	if got[0].Diff.EntryChanges[0].Comment != "stricter" {
		t.Errorf("expected stricter, got %q", got[0].Diff.EntryChanges[0].Comment)
	}
}

func TestReloadRejectsInvalidEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	writePolicy(t, path, v1)
	w, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	_, before := w.Policy()

	writePolicy(t, path, "leisure: [not, a, map]")
	if _, err := w.Reload(); err == nil {
		t.Error("expected error for invalid document")
	}
	if _, after := w.Policy(); after != before {
		t.Errorf("expected hash to stay %s, got %s", before, after)
	}
	if f := fractionAt(t, w); f != 0.4 {
		t.Errorf("expected previous policy to stay in effect, got %v", f)
	}
}

func TestRunPicksUpWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	writePolicy(t, path, v1)

	var mu sync.Mutex
	reloads := 0
	w, err := New(path,
		WithDebounce(50*time.Millisecond),
		OnReload(func(Reload) {
			mu.Lock()
			reloads++
			mu.Unlock()
		}))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()

	// Give watcher time to start.
	time.Sleep(100 * time.Millisecond)

	// A burst of writes collapses into one reload.
	writePolicy(t, path, v1+"\n")
	writePolicy(t, path, v2)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if fractionAt(t, w) == 0.2 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	cancel()
	<-done

	if f := fractionAt(t, w); f != 0.2 {
		t.Fatalf("expected watcher to reload, fraction %v", f)
	}
	mu.Lock()
	defer mu.Unlock()
	if reloads != 1 {
		t.Errorf("expected 1 reload, got %d", reloads)
	}
}
