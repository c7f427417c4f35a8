package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/meghashyamc/playfinder/db/kvdb"
	"github.com/meghashyamc/playfinder/db/searchdb"
	"github.com/meghashyamc/playfinder/logger"
)

// ListingStore keeps listing documents in the kv store and narrows candidates with the search index.
type ListingStore struct {
	logger        logger.Logger
	index         searchdb.DB
	kv            kvdb.DB
	maxCandidates int
}

func NewListingStore(logger logger.Logger, index searchdb.DB, kv kvdb.DB, maxCandidates int) *ListingStore {
	return &ListingStore{
		logger:        logger,
		index:         index,
		kv:            kv,
		maxCandidates: maxCandidates,
	}
}

// Save writes listings to the kv store and then to the index, so every indexed ID resolves.
func (s *ListingStore) Save(listings []Listing) error {
	documents := make([]searchdb.Document, 0, len(listings))
	for _, listing := range listings {
		data, err := json.Marshal(listing)
		if err != nil {
			s.logger.Error("failed to marshal listing", "id", listing.ID, "err", err.Error())
			return fmt.Errorf("failed to marshal listing %d: %w", listing.ID, err)
		}
		if err := s.kv.Set(kvdb.ListingsBucket, listingKey(listing.ID), string(data)); err != nil {
			return fmt.Errorf("failed to store listing %d: %w", listing.ID, err)
		}
		documents = append(documents, toDocument(listing))
	}

	if err := s.index.BuildIndex(documents); err != nil {
		s.logger.Error("failed to index listings", "count", len(documents), "err", err.Error())
		return fmt.Errorf("failed to index listings: %w", err)
	}

	return nil
}

func (s *ListingStore) Delete(ids []int64) error {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = listingKey(id)
	}
	if err := s.index.DeleteDocuments(keys); err != nil {
		return fmt.Errorf("failed to delete listings from index: %w", err)
	}
	for _, key := range keys {
		if err := s.kv.Delete(kvdb.ListingsBucket, key); err != nil {
			s.logger.Error("failed to delete listing document", "id", key, "err", err.Error())
		}
	}
	return nil
}

func (s *ListingStore) IDs() ([]int64, error) {
	keys, err := s.kv.GetAllKeys(kvdb.ListingsBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to list listing ids: %w", err)
	}
	ids := make([]int64, 0, len(keys))
	for _, key := range keys {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			s.logger.Warn("skipping malformed listing key", "key", key)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *ListingStore) Find(ctx context.Context, query CandidateQuery) ([]Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	limit := query.Limit
	if limit <= 0 || limit > s.maxCandidates {
		limit = s.maxCandidates
	}

	indexQuery := searchdb.Query{
		Keyword:      query.Keyword,
		LocationText: query.LocationText,
		Category:     query.Category,
		City:         query.City,
		RadiusKm:     query.RadiusKm,
		ByRating:     query.SortBy == SortRatingDesc,
		Limit:        limit,
	}
	if query.Near != nil {
		indexQuery.Near = &searchdb.GeoPoint{Lat: query.Near.Latitude, Lon: query.Near.Longitude}
	}
	if query.NearestTo != nil {
		indexQuery.SortFrom = &searchdb.GeoPoint{Lat: query.NearestTo.Latitude, Lon: query.NearestTo.Longitude}
	}
	if query.ExcludeID != 0 {
		indexQuery.ExcludeID = listingKey(query.ExcludeID)
	}

	response, err := s.index.Search(indexQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to search listings: %w", err)
	}

	listings := make([]Listing, 0, len(response.IDs))
	for _, id := range response.IDs {
		listing, err := s.load(id)
		if err != nil {
			// the index can briefly run ahead of a delete
			if errors.Is(err, kvdb.ErrNotFound) {
				s.logger.Warn("indexed listing has no document", "id", id)
				continue
			}
			return nil, err
		}
		listings = append(listings, *listing)
	}

	return listings, nil
}

func (s *ListingStore) Get(ctx context.Context, id int64) (*Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	listing, err := s.load(listingKey(id))
	if err != nil {
		if errors.Is(err, kvdb.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrListingNotFound, id)
		}
		return nil, err
	}
	return listing, nil
}

func (s *ListingStore) CityCounts(ctx context.Context) ([]CityCount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	facets, err := s.index.CityCounts()
	if err != nil {
		return nil, fmt.Errorf("failed to count listings per city: %w", err)
	}

	counts := make([]CityCount, len(facets))
	for i, facet := range facets {
		counts[i] = CityCount{City: facet.Term, Count: facet.Count}
	}
	return counts, nil
}

func (s *ListingStore) load(key string) (*Listing, error) {
	value, err := s.kv.Get(kvdb.ListingsBucket, key)
	if err != nil {
		return nil, err
	}

	var listing Listing
	if err := json.Unmarshal([]byte(value), &listing); err != nil {
		s.logger.Error("failed to unmarshal listing", "id", key, "err", err.Error())
		return nil, fmt.Errorf("failed to unmarshal listing %s: %w", key, err)
	}
	return &listing, nil
}

func listingKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

func toDocument(listing Listing) searchdb.Document {
	doc := searchdb.Document{
		ID:            listingKey(listing.ID),
		Seq:           float64(listing.ID),
		NameLower:     strings.ToLower(listing.Name),
		DescLower:     strings.ToLower(listing.Description),
		City:          listing.City,
		CityLower:     strings.ToLower(listing.City),
		PostcodeLower: strings.ToLower(listing.Postcode),
		Features:      listing.Features,
		Rating:        listing.Rating,
	}
	if listing.Coordinates != nil {
		doc.Location = map[string]interface{}{
			"lat": listing.Coordinates.Latitude,
			"lon": listing.Coordinates.Longitude,
		}
	}
	return doc
}
