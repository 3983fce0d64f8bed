package generator_test

import (
	"regexp"
	"sync"
	"testing"

	"github.com/glizzus/encore/internal/generator"
)

func TestUUIDV4Generator_Next_Concurrent(t *testing.T) {
	regex := regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	gen := generator.UUIDV4Generator{}

	var mu sync.Mutex
	seen := make(map[string]struct{})

	total := 100000
	concurrency := 10
	batchSize := total / concurrency

	var wg sync.WaitGroup
	wg.Add(concurrency)

	for range concurrency {
		go func() {
			defer wg.Done()
			for range batchSize {
				id, err := gen.Next()
				if err != nil {
					t.Error("expected no error, got:", err)
					return
				}
				mu.Lock()
				if _, ok := seen[id]; ok {
					mu.Unlock()
					t.Errorf("expected a unique ID, got duplicate: %s", id)
					return
				}
				seen[id] = struct{}{}
				mu.Unlock()

				if !regex.MatchString(id) {
					t.Errorf("expected valid UUID format, got %s", id)
					return
				}
			}
		}()
	}

	wg.Wait()
}

func TestSequenceGenerator_Next(t *testing.T) {
	gen := &generator.SequenceGenerator{Prefix: "job-"}
	for _, want := range []string{"job-1", "job-2", "job-3"} {
		got, err := gen.Next()
		if err != nil {
			t.Fatal("expected no error, got:", err)
		}
		if got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	}
}

func TestSequenceGenerator_Next_Concurrent(t *testing.T) {
	gen := &generator.SequenceGenerator{}

	var mu sync.Mutex
	seen := make(map[string]struct{})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 500 {
				id, _ := gen.Next()
				mu.Lock()
				if _, ok := seen[id]; ok {
					t.Errorf("expected a unique ID, got duplicate: %s", id)
				}
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != 4000 {
		t.Errorf("expected 4000 IDs, got %d", len(seen))
	}
}
