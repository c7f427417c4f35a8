package searchdb

// Document is the indexed projection of a listing. The full listing lives in the kv store.
type Document struct {
	ID            string                 `json:"id"`
	Seq           float64                `json:"seq"`
	NameLower     string                 `json:"name_lc"`
	DescLower     string                 `json:"description_lc"`
	City          string                 `json:"city"`
	CityLower     string                 `json:"city_lc"`
	PostcodeLower string                 `json:"postcode_lc"`
	Features      []string               `json:"features"`
	Rating        float64                `json:"rating"`
	Location      map[string]interface{} `json:"location,omitempty"`
}

type Query struct {
	Keyword      string
	LocationText string
	Category     string
	City         string
	Near         *GeoPoint
	RadiusKm     float64
	ExcludeID    string
	ByRating     bool
	SortFrom     *GeoPoint
	Limit        int
}

type GeoPoint struct {
	Lat float64
	Lon float64
}

type Response struct {
	IDs        []string `json:"ids"`
	Total      uint64   `json:"total"`
	SearchTime string   `json:"search_time"`
}

type FacetCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}
