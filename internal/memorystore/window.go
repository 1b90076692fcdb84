package memorystore

// window is a fixed-capacity FIFO ring of samples. The zero value is not usable;
// construct with newWindow.
type window struct {
	buf   []Sample
	start int // index of the oldest sample
	n     int
	seq   uint64
}

func newWindow(capacity int) *window {
	return &window{buf: make([]Sample, capacity)}
}

// push appends v, evicting the oldest sample when full.
func (w *window) push(v float64) {
	w.seq++
	s := Sample{Value: v, Seq: w.seq}
	if w.n < len(w.buf) {
		w.buf[(w.start+w.n)%len(w.buf)] = s
		w.n++
		return
	}
	w.buf[w.start] = s
	w.start = (w.start + 1) % len(w.buf)
}

// back returns the sample offset positions before the latest (0 = latest).
func (w *window) back(offset int) (Sample, bool) {
	if offset < 0 || offset >= w.n {
		return Sample{}, false
	}
	idx := (w.start + w.n - 1 - offset) % len(w.buf)
	return w.buf[idx], true
}

func (w *window) snapshot() []Sample {
	out := make([]Sample, w.n)
	for i := 0; i < w.n; i++ {
		out[i] = w.buf[(w.start+i)%len(w.buf)]
	}
	return out
}
