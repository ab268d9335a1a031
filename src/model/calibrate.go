package model

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Bandwidth sample files are named <dir>_<w>x<h>_k<words>_ch<n>.txt, e.g.
// h2d_4x4_k196_ch1.txt, and contain a "cycles_send = N" line from the
// measurement harness.
var (
	gridPattern    = regexp.MustCompile(`(\d+)x(\d+)`)
	wordsPattern   = regexp.MustCompile(`k(\d+)`)
	channelPattern = regexp.MustCompile(`ch(\d+)`)
	cyclesPattern  = regexp.MustCompile(`cycles_send\s*=\s*(\d+)`)
)

// ParseSampleFile extracts one Sample from a measurement result file.
func ParseSampleFile(path string) (Sample, error) {
	var sample Sample

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	parts := strings.SplitN(name, "_", 2)
	if parts[0] != DirectionH2D && parts[0] != DirectionD2H {
		return sample, errors.Errorf("sample %s: unknown direction %q", name, parts[0])
	}
	sample.Direction = parts[0]

	grid := gridPattern.FindStringSubmatch(name)
	words := wordsPattern.FindStringSubmatch(name)
	if grid == nil || words == nil {
		return sample, errors.Errorf("sample %s: missing grid or word count in filename", name)
	}
	sample.Width, _ = strconv.Atoi(grid[1])
	sample.Height, _ = strconv.Atoi(grid[2])
	sample.Words, _ = strconv.Atoi(words[1])
	if channel := channelPattern.FindStringSubmatch(name); channel != nil {
		sample.Channels, _ = strconv.Atoi(channel[1])
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return sample, errors.Wrapf(err, "reading sample %s", path)
	}
	cycles := cyclesPattern.FindStringSubmatch(string(content))
	if cycles == nil {
		return sample, errors.Errorf("sample %s: no cycles_send line", name)
	}
	parsed, _ := strconv.ParseInt(cycles[1], 10, 64)
	sample.Cycles = parsed

	return sample, nil
}

// LoadSamples reads every .txt result file in a directory, skipping the ones
// that fail to parse. Skips are logged, not fatal: calibration is advisory.
func LoadSamples(dir string) ([]Sample, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading sample directory %s", dir)
	}

	var samples []Sample
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".txt" {
			continue
		}
		sample, err := ParseSampleFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			klog.Warningf("skipping bandwidth sample: %v", err)
			continue
		}
		samples = append(samples, sample)
	}

	return samples, nil
}
