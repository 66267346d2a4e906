package metrics

import (
	"sync"
	"time"
)

// Recorded is one metric call captured by Recorder.
type Recorded struct {
	Kind  string
	Name  string
	Value float64
	Tags  map[string]string
}

// Recorder is an in-memory Sink for tests.
type Recorder struct {
	mu      sync.Mutex
	records []Recorded
}

var _ Sink = (*Recorder)(nil)

func (r *Recorder) Count(name string, value int64, tags map[string]string) {
	r.add(Recorded{Kind: "count", Name: name, Value: float64(value), Tags: CloneTags(tags)})
}

func (r *Recorder) Gauge(name string, value float64, tags map[string]string) {
	r.add(Recorded{Kind: "gauge", Name: name, Value: value, Tags: CloneTags(tags)})
}

func (r *Recorder) Timing(name string, value time.Duration, tags map[string]string) {
	r.add(Recorded{Kind: "timing", Name: name, Value: float64(value), Tags: CloneTags(tags)})
}

func (r *Recorder) add(rec Recorded) {
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
}

// Records returns a copy of everything recorded so far.
func (r *Recorder) Records() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Recorded(nil), r.records...)
}

// CountOf sums the counter values recorded under name.
func (r *Recorder) CountOf(name string) int64 {
	var total int64
	for _, rec := range r.Records() {
		if rec.Kind == "count" && rec.Name == name {
			total += int64(rec.Value)
		}
	}
	return total
}
