package ingestion

// Source names recorded in landing envelopes and staged rows.
const (
	SourcePrices    = "coingecko"
	SourceSentiment = "feargreed_index"
)

// RawPriceRecord is one coin's market snapshot as returned by the CoinGecko
// /coins/markets endpoint. Numeric fields are pointers because the API emits
// null for coins it cannot price; the staging transform drops rows whose
// current_price never arrived.
type RawPriceRecord struct {
	ID                       string   `json:"id"`
	Symbol                   string   `json:"symbol"`
	Name                     string   `json:"name"`
	CurrentPrice             *float64 `json:"current_price"`
	MarketCap                *float64 `json:"market_cap"`
	MarketCapRank            *int64   `json:"market_cap_rank"`
	TotalVolume              *float64 `json:"total_volume"`
	High24h                  *float64 `json:"high_24h"`
	Low24h                   *float64 `json:"low_24h"`
	PriceChange24h           *float64 `json:"price_change_24h"`
	PriceChangePercentage24h *float64 `json:"price_change_percentage_24h"`
	MarketCapChange24h       *float64 `json:"market_cap_change_24h"`
	CirculatingSupply        *float64 `json:"circulating_supply"`
	TotalSupply              *float64 `json:"total_supply"`
	MaxSupply                *float64 `json:"max_supply"`
	LastUpdated              string   `json:"last_updated"`
}

// RawSentimentRecord is one Fear & Greed Index reading. The API returns every
// field as a string, including the numeric value and the unix timestamp; the
// staging loader coerces them.
type RawSentimentRecord struct {
	Value               string `json:"value"`
	ValueClassification string `json:"value_classification"`
	Timestamp           string `json:"timestamp"`
	TimeUntilUpdate     string `json:"time_until_update,omitempty"`
}
