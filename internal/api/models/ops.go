package models

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ProviderStatus represents the status of a routing provider.
type ProviderStatus struct {
	Provider      string       `json:"provider"`
	Status        HealthStatus `json:"status"`
	CircuitState  string       `json:"circuitState"`
	LastSuccessAt *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp   `json:"lastFailureAt,omitempty"`
	Message       *string      `json:"message,omitempty"`
}

// ProvidersResponse lists provider health.
type ProvidersResponse struct {
	Providers []ProviderStatus `json:"providers"`
}

// CacheStats reports one cache's counters.
type CacheStats struct {
	Name    string `json:"name"`
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits,omitempty"`
	Misses  uint64 `json:"misses,omitempty"`
}

// CachesResponse reports the process caches.
type CachesResponse struct {
	Caches []CacheStats `json:"caches"`
}

// ReloadDistrictsResponse reports the outcome of a district reload.
type ReloadDistrictsResponse struct {
	Districts  int       `json:"districts"`
	ReloadedAt Timestamp `json:"reloadedAt"`
}
