package main

import "testing"

// TestSummaSeedDefault pins the default operand seed to 7, matching the
// reference runs so default invocations reproduce their inputs.
func TestSummaSeedDefault(t *testing.T) {
	cmd := newSummaCommand()
	flag := cmd.Flags().Lookup("seed")
	if flag == nil {
		t.Fatal("summa command has no seed flag")
	}
	if flag.DefValue != "7" {
		t.Fatalf("default seed: got %s, want 7", flag.DefValue)
	}
}

// TestResolveStrategyNames checks the closed strategy flag set.
func TestResolveStrategyNames(t *testing.T) {
	manifest, err := resolveManifest("", 4, 14, 14, 14)
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"auto", "sequential", "pipelined"} {
		if _, err := resolveStrategy(name, manifest); err != nil {
			t.Fatalf("strategy %q rejected: %v", name, err)
		}
	}
	if _, err := resolveStrategy("eager", manifest); err == nil {
		t.Fatal("unknown strategy accepted")
	}
}
