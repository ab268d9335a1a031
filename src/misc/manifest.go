package misc

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
)

// Manifest is the run configuration produced once per compiled binary. It is
// parsed and validated in one shot at load time; the rest of the system only
// ever sees this immutable struct, never the raw key-value params.
type Manifest struct {
	P  int // grid is P x P cells
	Mt int // A tile is Mt x Kt
	Kt int // B tile is Kt x Nt
	Nt int // C tile is Mt x Nt

	// Optional streaming channel identifiers, present only for streaming
	// variants of the host protocol.
	H2DChannels []int
	D2HChannels []int
}

// rawManifest mirrors the on-disk artifact metadata layout.
type rawManifest struct {
	Params map[string]json.RawMessage `json:"params"`
}

// LoadManifest reads <artifactDir>/out.json and converts it into a validated
// Manifest. Malformed or incomplete params are rejected here, before any data
// movement.
func LoadManifest(artifactDir string) (*Manifest, error) {
	path := filepath.Join(artifactDir, "out.json")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading manifest %s", path)
	}

	return ParseManifest(data)
}

// ParseManifest decodes manifest bytes. Split out from LoadManifest so tests
// can feed literals.
func ParseManifest(data []byte) (*Manifest, error) {
	var raw rawManifest
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "decoding manifest")
	}
	if raw.Params == nil {
		return nil, NewConfigurationError("manifest has no params section")
	}

	manifest := new(Manifest)

	var err error
	if manifest.P, err = intParam(raw.Params, "P"); err != nil {
		return nil, err
	}
	if manifest.Mt, err = intParam(raw.Params, "Mt"); err != nil {
		return nil, err
	}
	if manifest.Kt, err = intParam(raw.Params, "Kt"); err != nil {
		return nil, err
	}
	if manifest.Nt, err = intParam(raw.Params, "Nt"); err != nil {
		return nil, err
	}

	manifest.H2DChannels = channelParams(raw.Params, "MEMCPYH2D_DATA_")
	manifest.D2HChannels = channelParams(raw.Params, "MEMCPYD2H_DATA_")

	if err := manifest.Validate(); err != nil {
		return nil, err
	}

	return manifest, nil
}

// intParam accepts both JSON numbers and quoted decimal strings; compile
// metadata writes params as strings.
func intParam(params map[string]json.RawMessage, key string) (int, error) {
	raw, ok := params[key]
	if !ok {
		return 0, NewConfigurationError("manifest param %q missing", key)
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		value, err := strconv.Atoi(asString)
		if err != nil {
			return 0, NewConfigurationError("manifest param %q is not an integer: %q", key, asString)
		}
		return value, nil
	}

	var asNumber int
	if err := json.Unmarshal(raw, &asNumber); err != nil {
		return 0, NewConfigurationError("manifest param %q is not an integer", key)
	}
	return asNumber, nil
}

// channelParams collects streaming color IDs named <prefix>1_ID, <prefix>2_ID, ...
// in index order, stopping at the first gap.
func channelParams(params map[string]json.RawMessage, prefix string) []int {
	var channels []int
	for index := 1; ; index++ {
		key := prefix + strconv.Itoa(index) + "_ID"
		if _, ok := params[key]; !ok {
			break
		}
		value, err := intParam(params, key)
		if err != nil {
			break
		}
		channels = append(channels, value)
	}
	return channels
}

// Validate rejects manifests that cannot describe a runnable grid.
func (manifest *Manifest) Validate() error {
	if manifest.P <= 0 {
		return NewConfigurationError("grid size P must be positive, got %d", manifest.P)
	}
	if manifest.Mt <= 0 || manifest.Kt <= 0 || manifest.Nt <= 0 {
		return NewConfigurationError(
			"tile dims must be positive, got Mt=%d Kt=%d Nt=%d",
			manifest.Mt, manifest.Kt, manifest.Nt)
	}
	for _, channel := range append(append([]int{}, manifest.H2DChannels...), manifest.D2HChannels...) {
		if channel < 0 {
			return NewConfigurationError("negative streaming channel id %d", channel)
		}
	}
	return nil
}

// M, K, N are the full matrix dimensions implied by the manifest.
func (manifest *Manifest) M() int {
	return manifest.P * manifest.Mt
}

func (manifest *Manifest) K() int {
	return manifest.P * manifest.Kt
}

func (manifest *Manifest) N() int {
	return manifest.P * manifest.Nt
}

// NumCells returns the number of grid cells.
func (manifest *Manifest) NumCells() int {
	return manifest.P * manifest.P
}

// CTileElements is the per-cell C accumulator size; the gather precondition
// checks NumCells()*CTileElements() against what the grid actually returns.
func (manifest *Manifest) CTileElements() int {
	return manifest.Mt * manifest.Nt
}
