// Package display redraws a block of terminal text at a fixed interval,
// used to show the progress of long read passes.
package display

import (
	"bytes"
	"io"
	"sync"
	"time"

	"github.com/gosuri/uilive"
)

// Displayer writes the current text of a display.  It returns false once
// there is nothing more to show.
type Displayer interface {
	Display(io.Writer) bool
}

type Display struct {
	live     *uilive.Writer
	interval time.Duration
	updater  Displayer
	buffer   bytes.Buffer
	close    chan struct{}
	once     sync.Once
	done     sync.WaitGroup
}

func New(updater Displayer, interval time.Duration, w io.Writer) *Display {
	live := uilive.New()
	live.Out = w
	return &Display{
		live:     live,
		interval: interval,
		updater:  updater,
		close:    make(chan struct{}),
	}
}

func (d *Display) update() bool {
	d.buffer.Reset()
	cont := d.updater.Display(&d.buffer)
	// Ignore any errors.
	_, _ = io.Copy(d.live, &d.buffer)
	_ = d.live.Flush()
	return cont
}

// Start runs the display until Close is called or the Displayer is done.
func (d *Display) Start() {
	d.done.Add(1)
	go func() {
		defer d.done.Done()
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		for d.update() {
			select {
			case <-d.close:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Close stops the display after a final update.
func (d *Display) Close() {
	d.once.Do(func() { close(d.close) })
	d.done.Wait()
	d.update()
}
