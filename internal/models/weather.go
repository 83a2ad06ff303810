package models

// WeatherQuery identifies one lookup: a city and the UTC calendar day it is for.
type WeatherQuery struct {
	City string
	Date string // YYYY-MM-DD
}

// CacheKey returns the store key for the query. City and date are concatenated
// without a delimiter, so "Ab1"+"2-01" and "Ab"+"12-01" share a key.
func (q WeatherQuery) CacheKey() string {
	return q.City + q.Date
}

// WeatherResult is the normalized shape that is cached and returned to clients.
type WeatherResult struct {
	City        string  `json:"city"`
	Temperature float64 `json:"temperature"`
	Condition   string  `json:"condition"`
	Humidity    float64 `json:"humidity"`
}
