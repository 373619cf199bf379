package queue

// SetTagBatchSize overrides the tag query batch size until restore is called.
func SetTagBatchSize(n int) (restore func()) {
	prev := tagBatchSize
	tagBatchSize = n
	return func() { tagBatchSize = prev }
}
