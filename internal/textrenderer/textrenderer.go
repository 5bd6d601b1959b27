// Package textrenderer implements an observer.Observer that prints a
// single status line per edge to the terminal as the build progresses,
// colored the way RobAntunes-TigVCS's cmd/tig/main.go colors its CLI
// output: green for success, red for failure, a plain progress counter
// while running.
package textrenderer

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/n2go/n2go/internal/observer"
)

// Renderer prints one progress line per started edge, a FAILED line (plus
// any stderr) per failed edge, and a final summary line. It implements
// observer.Observer.
type Renderer struct {
	mu     sync.Mutex
	w      io.Writer
	wanted int
	done   int
	green  *color.Color
	red    *color.Color
	yellow *color.Color
}

// New creates a Renderer writing to w.
func New(w io.Writer) *Renderer {
	return &Renderer{
		w:      w,
		green:  color.New(color.FgGreen),
		red:    color.New(color.FgRed),
		yellow: color.New(color.FgYellow),
	}
}

func displayName(e observer.EdgeInfo) string {
	if len(e.Outputs) == 0 {
		return e.Rule
	}
	return strings.Join(e.Outputs, " ")
}

func (r *Renderer) OnEdgeWanted(int64, observer.EdgeInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wanted++
}

func (r *Renderer) OnEdgeStarted(_ int64, e observer.EdgeInfo, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "[%d/%d] %s\n", r.done+1, r.wanted, r.yellow.Sprint(displayName(e)))
}

func (r *Renderer) OnEdgeFinished(_ int64, e observer.EdgeInfo, at time.Time, dur time.Duration, success bool, stdout, stderr []byte) {
	r.mu.Lock()
	r.done++
	r.mu.Unlock()

	if success {
		return
	}
	fmt.Fprintf(r.w, "%s %s (%s)\n", r.red.Sprint("FAILED:"), displayName(e), dur.Round(time.Millisecond))
	if len(stderr) > 0 {
		fmt.Fprintln(r.w, string(stderr))
	}
}

func (r *Renderer) OnBuildDone(built, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if failed > 0 {
		fmt.Fprintln(r.w, r.red.Sprintf("build failed: %d built, %d failed", built, failed))
		return
	}
	fmt.Fprintln(r.w, r.green.Sprintf("build succeeded: %d built", built))
}
