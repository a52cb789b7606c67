package display

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/paulbellamy/ratecounter"
)

// Progress shows how much of a read pass is staged and how fast entries
// are processed.  Update is safe to call from the goroutine running the
// pass while the display reads it.
type Progress struct {
	mu       sync.Mutex
	title    string
	fraction float64
	entries  int64
	rate     *ratecounter.RateCounter
	finished bool
}

func NewProgress(title string) *Progress {
	return &Progress{
		title: title,
		rate:  ratecounter.NewRateCounter(time.Second),
	}
}

// Update records the staged fraction and the number of entries processed
// so far.
func (p *Progress) Update(fraction float64, entries int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if entries > p.entries {
		p.rate.Incr(entries - p.entries)
		p.entries = entries
	}
	p.fraction = fraction
}

// Finish makes the next Display the last one.
func (p *Progress) Finish() {
	p.mu.Lock()
	p.finished = true
	p.mu.Unlock()
}

// (tree) 45.0% 120000 entries 35000/s

func (p *Progress) Display(w io.Writer) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(w, "(%s) %5.1f%% %d entries %d/s\n", p.title, p.fraction*100, p.entries, p.rate.Rate())
	return !p.finished
}
