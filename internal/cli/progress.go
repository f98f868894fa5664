package cli

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/fmueller/silkconv/internal/convert"
)

type stopFunc func()

func startSpinner(enabled bool, description string) stopFunc {
	if !enabled {
		return func() {}
	}

	bar := progressbar.NewOptions(
		-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(80*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)

	stopCh := make(chan struct{})
	doneCh := make(chan struct{})

	go func() {
		defer close(doneCh)
		ticker := time.NewTicker(120 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-stopCh:
				_ = bar.Finish()
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stopCh)
			<-doneCh
		})
	}
}

// conversionProgress shows a spinner for a single file and a determinate bar
// for a batch. Its methods match convert.Hooks and are safe for concurrent
// use.
type conversionProgress struct {
	enabled bool
	batch   bool

	mu       sync.Mutex
	bar      *progressbar.ProgressBar
	stopSpin stopFunc
}

func newConversionProgress(enabled, batch bool) *conversionProgress {
	return &conversionProgress{enabled: enabled, batch: batch}
}

func (p *conversionProgress) fileStarted(_ int, total int, source string) {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	description := "Converting " + filepath.Base(source)
	if !p.batch {
		if p.stopSpin == nil {
			p.stopSpin = startSpinner(true, description)
		}
		return
	}

	if p.bar == nil {
		p.bar = progressbar.NewOptions(
			total,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(20),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}
	p.bar.Describe(description)
}

func (p *conversionProgress) fileDone(convert.Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_ = p.bar.Add(1)
	}
}

func (p *conversionProgress) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopSpin != nil {
		p.stopSpin()
		p.stopSpin = nil
	}
	if p.bar != nil {
		_ = p.bar.Finish()
		p.bar = nil
	}
}
