package processing

// Source streams records in their natural order.
// ReadRecords must not close the channel, the pipeline does that when ReadRecords returns.
type Source interface {
	ReadRecords(records chan<- Record) error
}

// Target receives the complete, ordered set of row results once the source is exhausted.
type Target interface {
	WriteResults(results []Result, columns Columns) error
}
