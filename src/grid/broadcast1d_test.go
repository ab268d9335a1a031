package grid

import "testing"

// TestBroadcast1D runs the reference configuration: four cells, six elements
// each, seeded with consecutive values. After four rounds every cell holds the
// last owner's buffer, [18..23].
func TestBroadcast1D(t *testing.T) {
	const (
		p = 4
		n = 6
	)

	seeds := make([][]float32, p)
	for index := range seeds {
		seeds[index] = make([]float32, n)
		for j := range seeds[index] {
			seeds[index][j] = float32(index*n + j)
		}
	}

	results, err := Broadcast1D(p, n, seeds, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != p {
		t.Fatalf("expected %d result buffers, got %d", p, len(results))
	}

	for index, result := range results {
		for j, value := range result {
			want := float32((p-1)*n + j)
			if value != want {
				t.Fatalf("cell %d element %d: got %g, want %g", index, j, value, want)
			}
		}
	}
}

// TestBroadcast1DSingleCell checks the degenerate one-cell line: no links, the
// cell keeps its own seed.
func TestBroadcast1DSingleCell(t *testing.T) {
	results, err := Broadcast1D(1, 3, [][]float32{{5, 6, 7}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for j, want := range []float32{5, 6, 7} {
		if results[0][j] != want {
			t.Fatalf("element %d: got %g, want %g", j, results[0][j], want)
		}
	}
}

// TestBroadcast1DRejectsBadSeeds checks the precondition errors.
func TestBroadcast1DRejectsBadSeeds(t *testing.T) {
	if _, err := Broadcast1D(0, 4, nil, nil); err == nil {
		t.Fatal("expected error for P=0")
	}
	if _, err := Broadcast1D(2, 4, [][]float32{{1, 2, 3, 4}}, nil); err == nil {
		t.Fatal("expected error for missing seed buffer")
	}
	if _, err := Broadcast1D(2, 4, [][]float32{{1, 2, 3, 4}, {1, 2}}, nil); err == nil {
		t.Fatal("expected error for short seed buffer")
	}
}
