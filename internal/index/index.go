package index

// NoteIndex defines the interface for daily-note indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type NoteIndex interface {
	UpsertNote(n NoteRow, body string, tasks []TaskRow) error
	DeleteNote(date string) error
	GetChecksum(date string) (string, error)
	GetNote(date string) (*NoteRow, error)
	AllChecksums() (map[string]string, error)
	MeaningfulDates(from, to string) (map[string]bool, error)
	MeaningfulUpTo(date string) ([]string, error)
	OpenTasks(from, to string) ([]TaskRow, error)
	Search(query string, limit int) ([]SearchResult, error)
	Close() error
}

// Verify *DB satisfies NoteIndex at compile time.
var _ NoteIndex = (*DB)(nil)
