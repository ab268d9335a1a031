package misc

import (
	"errors"
	"testing"
)

// TestParseManifest verifies a complete artifact manifest parses, including
// string-encoded params and streaming channel IDs.
func TestParseManifest(t *testing.T) {
	data := []byte(`{
		"params": {
			"P": "4",
			"Mt": 14,
			"Kt": "14",
			"Nt": 14,
			"MEMCPYH2D_DATA_1_ID": 0,
			"MEMCPYH2D_DATA_2_ID": 1,
			"MEMCPYD2H_DATA_1_ID": 2
		}
	}`)

	manifest, err := ParseManifest(data)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if manifest.P != 4 || manifest.Mt != 14 || manifest.Kt != 14 || manifest.Nt != 14 {
		t.Fatalf("unexpected dims: %+v", manifest)
	}
	if manifest.M() != 56 || manifest.K() != 56 || manifest.N() != 56 {
		t.Fatalf("unexpected matrix dims: M=%d K=%d N=%d",
			manifest.M(), manifest.K(), manifest.N())
	}
	if len(manifest.H2DChannels) != 2 || len(manifest.D2HChannels) != 1 {
		t.Fatalf("unexpected channels: h2d=%v d2h=%v",
			manifest.H2DChannels, manifest.D2HChannels)
	}
	if manifest.NumCells() != 16 || manifest.CTileElements() != 196 {
		t.Fatalf("unexpected cell geometry: cells=%d cTile=%d",
			manifest.NumCells(), manifest.CTileElements())
	}
}

// TestParseManifestFailFast verifies that every malformed manifest is rejected
// before any data movement could happen.
func TestParseManifestFailFast(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"no params", `{}`},
		{"missing Nt", `{"params": {"P": 4, "Mt": 14, "Kt": 14}}`},
		{"non-integer P", `{"params": {"P": "four", "Mt": 14, "Kt": 14, "Nt": 14}}`},
		{"zero P", `{"params": {"P": 0, "Mt": 14, "Kt": 14, "Nt": 14}}`},
		{"negative tile", `{"params": {"P": 4, "Mt": -1, "Kt": 14, "Nt": 14}}`},
		{"not json", `nope`},
	}

	for _, testCase := range cases {
		if _, err := ParseManifest([]byte(testCase.data)); err == nil {
			t.Fatalf("%s: expected a parse error", testCase.name)
		}
	}
}

// TestValidateRejectsNegativeChannel exercises the channel ID check that only
// streaming manifests hit.
func TestValidateRejectsNegativeChannel(t *testing.T) {
	manifest := &Manifest{P: 2, Mt: 2, Kt: 2, Nt: 2, D2HChannels: []int{-3}}
	err := manifest.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	var configErr *ConfigurationError
	if !errors.As(err, &configErr) {
		t.Fatalf("expected ConfigurationError, got %T", err)
	}
}
