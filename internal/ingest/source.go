package ingest

// LineFunc receives one complete line from a source.
type LineFunc func(source, text string)

// SourceKind tags the concrete source type in SourceStats.
type SourceKind string

const (
	KindFile      SourceKind = "file"
	KindDirectory SourceKind = "directory"
	KindQueue     SourceKind = "queue"
)

// Source is an ingestion source owned by a Controller.
type Source interface {
	Name() string
	Start() error
	Stop()
	Stats() SourceStats
}

// SourceStats is a tagged snapshot. Exactly one of Tailer, Watcher and
// Queue is set, matching Kind.
type SourceStats struct {
	Kind       SourceKind    `json:"kind"`
	Name       string        `json:"name"`
	Running    bool          `json:"running"`
	ErrorCount int           `json:"error_count"`
	Tailer     *TailerStats  `json:"tailer,omitempty"`
	Watcher    *WatcherStats `json:"watcher,omitempty"`
	Queue      *QueueStats   `json:"queue,omitempty"`
}

// QueueStats describes a queue-backed source.
type QueueStats struct {
	Key    string `json:"key"`
	Popped uint64 `json:"popped"`
	Errors uint64 `json:"errors"`
}

func stopSource(s Source) (panicked interface{}) {
	defer func() {
		panicked = recover()
	}()
	s.Stop()
	return nil
}
