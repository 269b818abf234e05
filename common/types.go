package common

// Comparator orders two byte strings the same way bytes.Compare does:
// negative if a < b, zero if equal, positive if a > b. Buckets default to
// bytes.Compare but may be created with a different total order.
type Comparator func(a, b []byte) int

// Iterator is the cursor contract exposed by a bucket: positioned at a
// record, advanced forward-only, holding no latches between calls. See
// spec §4.6.
type Iterator interface {
	// Done reports whether the cursor has been advanced past the last record.
	Done() bool
	// Next advances the cursor by one record.
	Next()
	// Key returns the key at the cursor. Must not be called when Done.
	Key() []byte
	// Val returns the value at the cursor. Must not be called when Done.
	Val() []byte
}

// Stats summarizes a database's resource usage, surfaced by the CLI's
// `stats` command.
type Stats struct {
	NumPages      uint32
	CachePages    int
	CacheHits     int64
	CacheMisses   int64
	PageReads     int64
	PageWrites    int64
	FreeExtents   int
	FreeBytes     int64
	FileSizeBytes int64
}
