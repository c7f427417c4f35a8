package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrListingNotFound = errors.New("listing not found")

// Collection is the queryable listing store the search subsystem reads from.
type Collection interface {
	Find(ctx context.Context, query CandidateQuery) ([]Listing, error)
	Get(ctx context.Context, id int64) (*Listing, error)
	CityCounts(ctx context.Context) ([]CityCount, error)
}

// CacheKey identifies the query for result caching. Equal queries give equal keys.
func (q CandidateQuery) CacheKey() string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "kw=%s|loc=%s|cat=%s|city=%s",
		strings.ToLower(strings.TrimSpace(q.Keyword)),
		strings.ToLower(strings.TrimSpace(q.LocationText)),
		strings.TrimSpace(q.Category),
		strings.ToLower(strings.TrimSpace(q.City)))
	if q.Near != nil {
		fmt.Fprintf(&builder, "|near=%.6f,%.6f|r=%.4f", q.Near.Latitude, q.Near.Longitude, q.RadiusKm)
	}
	if q.NearestTo != nil {
		fmt.Fprintf(&builder, "|from=%.6f,%.6f", q.NearestTo.Latitude, q.NearestTo.Longitude)
	}
	fmt.Fprintf(&builder, "|ex=%d|sort=%s|limit=%d", q.ExcludeID, q.SortBy, q.Limit)
	return builder.String()
}
