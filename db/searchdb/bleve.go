package searchdb

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/meghashyamc/playfinder/config"
	"github.com/meghashyamc/playfinder/logger"
)

const IndexingBatchSize = 100

const (
	indexFieldSeq         = "seq"
	indexFieldName        = "name_lc"
	indexFieldDescription = "description_lc"
	indexFieldCity        = "city"
	indexFieldCityLower   = "city_lc"
	indexFieldPostcode    = "postcode_lc"
	indexFieldFeatures    = "features"
	indexFieldRating      = "rating"
	indexFieldLocation    = "location"
)

const (
	defaultSearchLimit = 1000
	maxFacetTerms      = 500
	// bleve's geo distance uses its own earth model, so narrow a little wider
	// than asked and let the caller apply the exact radius.
	geoRadiusSlack = 1.01
)

type BleveDB struct {
	indexPath string
	logger    logger.Logger
	index     bleve.Index
}

func New(logger logger.Logger, cfg *config.Config) (*BleveDB, error) {
	return Open(logger, cfg.GetIndexPath())
}

func Open(logger logger.Logger, indexPath string) (*BleveDB, error) {
	index, err := bleve.New(indexPath, createIndexMapping())
	if err != nil {
		index, err = bleve.Open(indexPath)
		if err != nil {
			logger.Error("could not open index", "path", indexPath, "err", err.Error())
			return nil, err
		}
	}
	return &BleveDB{indexPath: indexPath, logger: logger, index: index}, nil
}

func (b *BleveDB) BuildIndex(documents []Document) error {

	batch := b.index.NewBatch()

	for i, doc := range documents {

		if err := batch.Index(doc.ID, doc); err != nil {
			b.logger.Error("could not index document", "id", doc.ID, "err", err.Error())
			return err
		}

		// Execute batch when it reaches the batch size
		if (i+1)%IndexingBatchSize == 0 {
			if err := b.index.Batch(batch); err != nil {
				return err
			}
			batch = b.index.NewBatch()
		}
	}

	if batch.Size() > 0 {
		if err := b.index.Batch(batch); err != nil {
			b.logger.Error("could not index documents", "err", err.Error())
			return err
		}
	}

	return nil
}

func createIndexMapping() mapping.IndexMapping {

	indexMapping := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	// Lowercased copies are indexed whole so wildcard queries give substring matches
	for _, field := range []string{indexFieldName, indexFieldDescription, indexFieldCity, indexFieldCityLower, indexFieldPostcode, indexFieldFeatures} {
		fieldMapping := bleve.NewTextFieldMapping()
		fieldMapping.Analyzer = keyword.Name
		fieldMapping.Store = false
		docMapping.AddFieldMappingsAt(field, fieldMapping)
	}

	docMapping.AddFieldMappingsAt(indexFieldSeq, bleve.NewNumericFieldMapping())
	docMapping.AddFieldMappingsAt(indexFieldRating, bleve.NewNumericFieldMapping())
	docMapping.AddFieldMappingsAt(indexFieldLocation, bleve.NewGeoPointFieldMapping())

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}

// Search returns matching document IDs in collection order: ascending seq,
// rating descending when ByRating is set, or nearest first to SortFrom.
// Documents without a location sort after located ones.
func (b *BleveDB) Search(q Query) (*Response, error) {
	start := time.Now()

	limit := q.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	searchRequest := bleve.NewSearchRequestOptions(b.buildSearchQuery(q), limit, 0, false)
	switch {
	case q.ByRating:
		searchRequest.SortBy([]string{"-" + indexFieldRating, indexFieldSeq})
	case q.SortFrom != nil:
		distanceSort, err := search.NewSortGeoDistance(indexFieldLocation, "km", q.SortFrom.Lon, q.SortFrom.Lat, false)
		if err != nil {
			b.logger.Error("could not build distance sort", "err", err.Error())
			return nil, fmt.Errorf("invalid distance sort: %w", err)
		}
		searchRequest.SortByCustom(search.SortOrder{distanceSort, &search.SortField{Field: indexFieldSeq}})
	default:
		searchRequest.SortBy([]string{indexFieldSeq})
	}

	searchResult, err := b.index.Search(searchRequest)
	if err != nil {
		b.logger.Error("search failed", "err", err.Error())
		return nil, fmt.Errorf("search failed: %w", err)
	}

	ids := make([]string, len(searchResult.Hits))
	for i, hit := range searchResult.Hits {
		ids[i] = hit.ID
	}

	return &Response{
		IDs:        ids,
		Total:      searchResult.Total,
		SearchTime: time.Since(start).String(),
	}, nil
}

func (b *BleveDB) buildSearchQuery(q Query) query.Query {

	booleanQuery := bleve.NewBooleanQuery()
	clauses := 0

	if keywordQuery := substringQuery(q.Keyword, indexFieldName, indexFieldDescription); keywordQuery != nil {
		booleanQuery.AddMust(keywordQuery)
		clauses++
	}

	if locationQuery := substringQuery(q.LocationText, indexFieldCityLower, indexFieldPostcode); locationQuery != nil {
		booleanQuery.AddMust(locationQuery)
		clauses++
	}

	if category := strings.TrimSpace(q.Category); category != "" {
		categoryQuery := bleve.NewTermQuery(category)
		categoryQuery.SetField(indexFieldFeatures)
		booleanQuery.AddMust(categoryQuery)
		clauses++
	}

	if city := strings.ToLower(strings.TrimSpace(q.City)); city != "" {
		cityQuery := bleve.NewTermQuery(city)
		cityQuery.SetField(indexFieldCityLower)
		booleanQuery.AddMust(cityQuery)
		clauses++
	}

	if q.Near != nil && q.RadiusKm > 0 {
		distance := strconv.FormatFloat(q.RadiusKm*1000*geoRadiusSlack, 'f', 1, 64) + "m"
		geoQuery := bleve.NewGeoDistanceQuery(q.Near.Lon, q.Near.Lat, distance)
		geoQuery.SetField(indexFieldLocation)
		booleanQuery.AddMust(geoQuery)
		clauses++
	}

	if clauses == 0 {
		booleanQuery.AddMust(bleve.NewMatchAllQuery())
	}

	if q.ExcludeID != "" {
		booleanQuery.AddMustNot(bleve.NewDocIDQuery([]string{q.ExcludeID}))
	}

	return booleanQuery
}

// substringQuery matches documents where any of fields contains text, ignoring case.
// Text carrying wildcard syntax is not pushed down; callers filter it themselves.
func substringQuery(text string, fields ...string) query.Query {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" || strings.ContainsAny(text, `*?\`) {
		return nil
	}

	disjunctQuery := bleve.NewDisjunctionQuery()
	for _, field := range fields {
		wildcardQuery := bleve.NewWildcardQuery("*" + text + "*")
		wildcardQuery.SetField(field)
		disjunctQuery.AddQuery(wildcardQuery)
	}

	return disjunctQuery
}

// CityCounts returns how many documents each city has, most populated first.
func (b *BleveDB) CityCounts() ([]FacetCount, error) {
	searchRequest := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), 0, 0, false)
	searchRequest.AddFacet(indexFieldCity, bleve.NewFacetRequest(indexFieldCity, maxFacetTerms))

	searchResult, err := b.index.Search(searchRequest)
	if err != nil {
		b.logger.Error("city facet search failed", "err", err.Error())
		return nil, fmt.Errorf("city facet search failed: %w", err)
	}

	counts := make([]FacetCount, 0)
	facet, ok := searchResult.Facets[indexFieldCity]
	if !ok || facet.Terms == nil {
		return counts, nil
	}

	for _, term := range facet.Terms.Terms() {
		counts = append(counts, FacetCount{Term: term.Term, Count: term.Count})
	}
	sort.SliceStable(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Term < counts[j].Term
	})

	return counts, nil
}

func (b *BleveDB) DeleteDocuments(documentIDs []string) error {
	batch := b.index.NewBatch()

	for i, docID := range documentIDs {
		batch.Delete(docID)

		// Execute batch when it reaches the batch size
		if (i+1)%IndexingBatchSize == 0 {
			if err := b.index.Batch(batch); err != nil {
				return err
			}
			batch = b.index.NewBatch()
		}
	}

	if batch.Size() > 0 {
		if err := b.index.Batch(batch); err != nil {
			b.logger.Error("could not delete documents", "err", err.Error())
			return err
		}
	}

	return nil
}

func (b *BleveDB) GetDocCount() (uint64, error) {
	return b.index.DocCount()
}

func (b *BleveDB) Close() error {

	if b.index != nil {
		if err := b.index.Close(); err != nil {
			b.logger.Error("could not close search index", "err", err.Error())
			return err
		}
	}
	return nil
}
