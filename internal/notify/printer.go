package notify

import (
	"fmt"
	"io"
	"sync"
)

var kindLabels = map[Kind]string{
	KindInfo:    "info",
	KindSuccess: "ok",
	KindWarning: "warn",
	KindError:   "error",
}

// Printer writes notifications as single lines, for the command line.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPrinter creates a printer writing to w
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Notify writes "[kind] message"
func (p *Printer) Notify(kind Kind, message string) {
	label, ok := kindLabels[kind]
	if !ok {
		label = string(kind)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "[%s] %s\n", label, message)
}
