package useragent

import (
	"strings"
	"sync"
	"testing"
)

func TestPool_GetSequential(t *testing.T) {
	p := NewPool([]string{"A", "B", "C"})

	for i, want := range []string{"A", "B", "C", "A"} {
		if got := p.GetSequential(); got != want {
			t.Errorf("call %d: expected %s, got %s", i, want, got)
		}
	}
}

func TestPool_DefaultsWhenEmpty(t *testing.T) {
	p := NewPool(nil)
	if p.Len() != len(DefaultPool) {
		t.Errorf("expected pool length %d, got %d", len(DefaultPool), p.Len())
	}
	if got := p.GetSequential(); got != DefaultPool[0] {
		t.Errorf("expected %s, got %s", DefaultPool[0], got)
	}
}

func TestDefaults_MatchBrowserFamily(t *testing.T) {
	tests := []struct {
		browser string
		marker  string
	}{
		{Chrome, "Chrome/"},
		{"FIREFOX", "Firefox/"},
		{Safari, "Version/"},
	}
	for _, tt := range tests {
		uas := Defaults(tt.browser)
		if len(uas) == 0 {
			t.Fatalf("%s: no user agents", tt.browser)
		}
		for _, ua := range uas {
			if !strings.Contains(ua, tt.marker) {
				t.Errorf("%s: %q does not look like %s", tt.browser, ua, tt.marker)
			}
		}
	}

	if got := Defaults("go"); len(got) != len(DefaultPool) {
		t.Errorf("expected every default for an unknown family, got %d", len(got))
	}
}

func TestDefaults_ReturnsCopy(t *testing.T) {
	uas := Defaults(Chrome)
	uas[0] = "mutated"
	if Defaults(Chrome)[0] == "mutated" {
		t.Error("Defaults exposed the built-in list")
	}
}

func TestForBrowser(t *testing.T) {
	p := ForBrowser(Firefox)
	if p.Len() != len(Defaults(Firefox)) {
		t.Errorf("unexpected pool size %d", p.Len())
	}
	if !strings.Contains(p.GetRandom(), "Firefox/") {
		t.Error("expected a Firefox user agent")
	}
}

func TestPool_GetRandom(t *testing.T) {
	p := NewPool([]string{"A", "B"})

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		got := p.GetRandom()
		if got != "A" && got != "B" {
			t.Fatalf("unexpected UA: %s", got)
		}
		seen[got] = true
	}
	if len(seen) != 2 {
		t.Errorf("expected both entries over 100 draws, saw %v", seen)
	}
}

func TestPool_ConcurrentRoundRobinIsEven(t *testing.T) {
	uas := []string{"X", "Y", "Z"}
	p := NewPool(uas)

	const routines, iterations = 50, 600
	var (
		mu     sync.Mutex
		counts = map[string]int{}
		wg     sync.WaitGroup
	)
	for i := 0; i < routines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := map[string]int{}
			for j := 0; j < iterations; j++ {
				local[p.GetSequential()]++
			}
			mu.Lock()
			for k, v := range local {
				counts[k] += v
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	want := routines * iterations / len(uas)
	for _, ua := range uas {
		if counts[ua] != want {
			t.Errorf("expected %d hits for %s, got %d", want, ua, counts[ua])
		}
	}
}

func TestPool_Empty(t *testing.T) {
	p := &Pool{}
	if p.Len() != 0 || p.GetSequential() != "" || p.GetRandom() != "" {
		t.Error("expected an empty pool to yield empty strings")
	}
}
