package dedupe

// Option configures the in-memory deduper.
type Option func(*inMemoryDeduper)

// WithMaxSize caps how many ids are remembered. Once full, the id seen
// longest ago is forgotten first. Zero or less remembers every id.
func WithMaxSize(ids int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = ids
	}
}
