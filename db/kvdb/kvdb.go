package kvdb

const (
	ListingsBucket  = "listings"
	RequestsBucket  = "requests"
	PostcodesBucket = "postcodes"
)

var buckets = []string{ListingsBucket, RequestsBucket, PostcodesBucket}

type DB interface {
	Set(bucket string, key string, value string) error
	Get(bucket string, key string) (string, error)
	Delete(bucket string, key string) error
	GetAllKeys(bucket string) ([]string, error)
	Close() error
}
