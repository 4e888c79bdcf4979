package match

// Bucket classifies a DiffError as an addition, removal or change.
type Bucket string

const (
	BucketAdded   Bucket = "added"
	BucketRemoved Bucket = "removed"
	BucketChanged Bucket = "changed"
)

// ErrorBucket groups diff findings by direction.
type ErrorBucket struct {
	Added   []DiffError `json:"added"`
	Removed []DiffError `json:"removed"`
	Changed []DiffError `json:"changed"`
}

// Count returns the total number of findings.
func (b ErrorBucket) Count() int {
	return len(b.Added) + len(b.Removed) + len(b.Changed)
}

// Empty reports whether there are no findings.
func (b ErrorBucket) Empty() bool {
	return b.Count() == 0
}

// In returns the findings of one bucket.
func (b ErrorBucket) In(bucket Bucket) []DiffError {
	switch bucket {
	case BucketAdded:
		return b.Added
	case BucketRemoved:
		return b.Removed
	case BucketChanged:
		return b.Changed
	default:
		return nil
	}
}

// Has reports whether bucket contains a finding of the given kind.
func (b ErrorBucket) Has(bucket Bucket, kind Kind) bool {
	for _, e := range b.In(bucket) {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

// Collector accumulates findings during a single match.
// The zero value is ready to use. A Collector is not safe for concurrent use.
type Collector struct {
	bucket ErrorBucket
}

// Add records err in the given bucket.
func (c *Collector) Add(bucket Bucket, err DiffError) {
	switch bucket {
	case BucketAdded:
		c.bucket.Added = append(c.bucket.Added, err)
	case BucketRemoved:
		c.bucket.Removed = append(c.bucket.Removed, err)
	default:
		c.bucket.Changed = append(c.bucket.Changed, err)
	}
}

// Count returns the number of findings collected so far.
func (c *Collector) Count() int {
	return c.bucket.Count()
}

// Drain returns the collected findings and resets the collector.
func (c *Collector) Drain() ErrorBucket {
	out := c.bucket
	c.bucket = ErrorBucket{}
	return out
}
