package index

import "github.com/meghashyamc/playfinder/db"

// StatusStore keeps import progress per request id. kvdb.DB satisfies it.
type StatusStore interface {
	Set(bucket string, key string, value string) error
	Get(bucket string, key string) (string, error)
}

// ListingStore is where imported listings are written.
type ListingStore interface {
	Save(listings []db.Listing) error
	Delete(ids []int64) error
	IDs() ([]int64, error)
}
