// Package trace emits the diagnostic timeline format consumed by the external
// timeline-reconstruction tools:
//
//	@<cycle> P<x>.<y> <event-tag> ...
//
// The core only writes these lines; it never parses them back.
package trace

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Emitter serializes trace lines from many cells onto one writer. A nil
// Emitter discards everything, so hot paths can emit unconditionally.
type Emitter struct {
	mutex  sync.Mutex
	writer io.Writer
}

func NewEmitter(writer io.Writer) *Emitter {
	if writer == nil {
		return nil
	}
	return &Emitter{writer: writer}
}

// Coord formats a cell coordinate the way the timeline tools expect.
func Coord(x int, y int) string {
	return fmt.Sprintf("P%d.%d", x, y)
}

// Emit writes one timeline line. Extra args are appended space-separated
// after the tag.
func (emitter *Emitter) Emit(cycle uint64, coord string, tag string, args ...interface{}) {
	if emitter == nil {
		return
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "@%d %s %s", cycle, coord, tag)
	for _, arg := range args {
		fmt.Fprintf(&builder, " %v", arg)
	}
	builder.WriteByte('\n')

	emitter.mutex.Lock()
	defer emitter.mutex.Unlock()
	io.WriteString(emitter.writer, builder.String())
}
