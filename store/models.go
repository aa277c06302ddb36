package store

type AppSettings struct {
	Source                 string `json:"source"`
	ShuffleEnabled         bool   `json:"shuffle_enabled"`
	PreloadBatchSize       int    `json:"preload_batch_size"`
	AdvanceIntervalSeconds int    `json:"advance_interval_seconds"`
}

// Differences returns the json names of the fields where s and other disagree.
func (s AppSettings) Differences(other AppSettings) []string {
	var fields []string
	if s.Source != other.Source {
		fields = append(fields, "source")
	}
	if s.ShuffleEnabled != other.ShuffleEnabled {
		fields = append(fields, "shuffle_enabled")
	}
	if s.PreloadBatchSize != other.PreloadBatchSize {
		fields = append(fields, "preload_batch_size")
	}
	if s.AdvanceIntervalSeconds != other.AdvanceIntervalSeconds {
		fields = append(fields, "advance_interval_seconds")
	}
	return fields
}
