package crawler

// entry is one unit of crawl work: a canonical URL and its link distance
// from the seed.
type entry struct {
	url   string
	depth int
}

// frontier is a FIFO queue of crawl entries.
// It is not safe for concurrent use on its own; the scheduler accesses it
// under its state mutex together with the visited set and the page counter.
type frontier struct {
	entries []entry
}

// push appends an entry to the back of the queue.
func (f *frontier) push(e entry) {
	f.entries = append(f.entries, e)
}

// pop removes and returns the front entry. ok is false when the queue is
// empty.
func (f *frontier) pop() (e entry, ok bool) {
	if len(f.entries) == 0 {
		return entry{}, false
	}
	e = f.entries[0]
	f.entries = f.entries[1:]
	return e, true
}

// len returns the number of queued entries.
func (f *frontier) len() int {
	return len(f.entries)
}
