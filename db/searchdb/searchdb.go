package searchdb

type DB interface {
	BuildIndex(documents []Document) error
	DeleteDocuments(documentIDs []string) error
	Search(query Query) (*Response, error)
	CityCounts() ([]FacetCount, error)
	GetDocCount() (uint64, error)
	Close() error
}
