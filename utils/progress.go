package utils

import (
	"sync"

	"github.com/cheggaaa/pb/v3"
)

// PackagingProgress displays the remote packaging progress reported by the
// download-status endpoint while the resolver waits for readiness. Progress
// is a percentage (0-100); the bar never moves backwards even when the
// remote service reports a lower value after a retry.
type PackagingProgress struct {
	bar     *pb.ProgressBar
	quiet   bool
	current int64
	mutex   sync.Mutex
}

// NewPackagingProgress creates a progress display for a readiness poll.
// In quiet mode nothing is rendered.
func NewPackagingProgress(quiet bool) *PackagingProgress {
	p := &PackagingProgress{quiet: quiet}

	if !quiet {
		tmpl := `{{string . "prefix"}}{{bar . }} {{percent . }}`
		bar := pb.ProgressBarTemplate(tmpl).Start64(100)
		bar.Set("prefix", "Packaging: ")
		p.bar = bar
	}

	return p
}

// Update moves the bar to pctComplete
func (p *PackagingProgress) Update(pctComplete float64) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	pct := int64(pctComplete)
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	if pct < p.current {
		return
	}
	p.current = pct

	if p.bar != nil {
		p.bar.SetCurrent(pct)
	}
}

// Finish fills and stops the bar
func (p *PackagingProgress) Finish() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.bar != nil {
		p.bar.SetCurrent(100)
		p.bar.Finish()
		p.bar = nil
	}
}
