package host

import (
	"sync"
	"testing"
)

// TestTransferEngineEstimates checks both directions against the default
// bandwidth model's fixed setup terms.
func TestTransferEngineEstimates(t *testing.T) {
	transfers := NewTransferEngine(nil)

	if cycles := transfers.EstimateCycles(TransferHostToGrid, 0, 4, 4); cycles != 500 {
		t.Fatalf("h2d setup: got %d, want 500", cycles)
	}
	if cycles := transfers.EstimateCycles(TransferGridToHost, 0, 4, 4); cycles != 1000 {
		t.Fatalf("d2h setup: got %d, want 1000", cycles)
	}

	recorded := transfers.Record(TransferHostToGrid, 1000, 4, 4)
	if recorded != transfers.H2DCycles() {
		t.Fatalf("recorded %d cycles but totals say %d", recorded, transfers.H2DCycles())
	}
}

// TestTransferEngineConcurrentRecord hammers Record from many goroutines, the
// way concurrent A/B staging does, and checks no increment is lost.
func TestTransferEngineConcurrentRecord(t *testing.T) {
	const (
		workers   = 8
		perWorker = 200
		words     = 100
	)

	transfers := NewTransferEngine(nil)
	perTransfer := transfers.EstimateCycles(TransferHostToGrid, words, 4, 4)

	var waitGroup sync.WaitGroup
	for worker := 0; worker < workers; worker++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			for i := 0; i < perWorker; i++ {
				transfers.Record(TransferHostToGrid, words, 4, 4)
			}
		}()
	}
	waitGroup.Wait()

	want := int64(workers*perWorker) * perTransfer
	if got := transfers.H2DCycles(); got != want {
		t.Fatalf("h2d cycles: got %d, want %d", got, want)
	}
	if transfers.D2HCycles() != 0 {
		t.Fatalf("d2h cycles moved: %d", transfers.D2HCycles())
	}
}
