package models

import (
	"encoding/json"
	"testing"
)

func TestWeatherQuery_CacheKey(t *testing.T) {
	tests := []struct {
		name string
		q    WeatherQuery
		want string
	}{
		{"plain", WeatherQuery{City: "Cairo", Date: "2026-10-18"}, "Cairo2026-10-18"},
		{"with space", WeatherQuery{City: "New York", Date: "2026-01-02"}, "New York2026-01-02"},
		{"empty date", WeatherQuery{City: "paris"}, "paris"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.q.CacheKey(); got != tt.want {
				t.Errorf("CacheKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestWeatherQuery_CacheKey_Collision documents that undelimited keys can collide.
func TestWeatherQuery_CacheKey_Collision(t *testing.T) {
	a := WeatherQuery{City: "Ab", Date: "12-01"}
	b := WeatherQuery{City: "Ab1", Date: "2-01"}
	if a.CacheKey() != b.CacheKey() {
		t.Errorf("expected collision, got %q and %q", a.CacheKey(), b.CacheKey())
	}
}

func TestWeatherResult_JSONFieldNames(t *testing.T) {
	raw, err := json.Marshal(WeatherResult{City: "Cairo", Temperature: 31.2, Condition: "Clear", Humidity: 40.1})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"city":"Cairo","temperature":31.2,"condition":"Clear","humidity":40.1}`
	if string(raw) != want {
		t.Errorf("Marshal() = %s, want %s", raw, want)
	}

	var back WeatherResult
	if err := json.Unmarshal([]byte(`{"humidity":40.1,"condition":"Clear","temperature":31.2,"city":"Cairo"}`), &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if back != (WeatherResult{City: "Cairo", Temperature: 31.2, Condition: "Clear", Humidity: 40.1}) {
		t.Errorf("Unmarshal() = %+v", back)
	}
}
