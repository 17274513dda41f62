package googlemaps

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saferoute/saferoute/internal/geo"
	"github.com/saferoute/saferoute/internal/routing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(ClientConfig{
		APIKey:     "test-key",
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
	})
}

func mustCoord(t *testing.T, lat, lon float64) geo.Coordinate {
	t.Helper()
	c, err := geo.NewCoordinate(lat, lon)
	require.NoError(t, err)
	return c
}

func TestGetDirections(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/directions/json", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "true", r.URL.Query().Get("alternatives"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "OK",
			"routes": [{
				"summary": "Anna Salai",
				"overview_polyline": {"points": "_p~iF~ps|U_ulLnnqC"},
				"legs": [{
					"distance": {"value": 4200, "text": "4.2 km"},
					"duration": {"value": 780, "text": "13 mins"},
					"steps": [{
						"html_instructions": "Turn <b>left</b> onto Anna Salai",
						"distance": {"value": 4200},
						"duration": {"value": 780}
					}]
				}]
			}]
		}`))
	})

	candidates, err := client.GetDirections(context.Background(), routing.DirectionsRequest{
		Origin:       mustCoord(t, 13.0827, 80.2707),
		Destination:  mustCoord(t, 13.0500, 80.2121),
		Alternatives: true,
	})
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	assert.Equal(t, ProviderName, candidates[0].Provider)
	assert.Equal(t, "Anna Salai", candidates[0].Summary)
	assert.Equal(t, 4200, candidates[0].DistanceMeters)
	assert.Equal(t, 780, candidates[0].DurationSeconds)
	require.Len(t, candidates[0].Instructions, 1)
	assert.Equal(t, "Turn left onto Anna Salai", candidates[0].Instructions[0].Text)
}

func TestGetDirectionsStatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		wantErr error
	}{
		{"zero results", "ZERO_RESULTS", routing.ErrNoRouteFound},
		{"not found", "NOT_FOUND", routing.ErrNoRouteFound},
		{"over query limit", "OVER_QUERY_LIMIT", routing.ErrRateLimited},
		{"request denied", "REQUEST_DENIED", routing.ErrProviderUnavailable},
		{"unknown status", "UNKNOWN_ERROR", routing.ErrProviderUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"status": "` + tt.status + `", "routes": []}`))
			})

			_, err := client.GetDirections(context.Background(), routing.DirectionsRequest{
				Origin:      mustCoord(t, 13.0827, 80.2707),
				Destination: mustCoord(t, 13.0500, 80.2121),
			})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestGetDirectionsHTTPRateLimit(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.GetDirections(context.Background(), routing.DirectionsRequest{
		Origin:      mustCoord(t, 13.0827, 80.2707),
		Destination: mustCoord(t, 13.0500, 80.2121),
	})
	assert.ErrorIs(t, err, routing.ErrRateLimited)
}

func TestGeocode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/geocode/json", r.URL.Path)
		assert.Equal(t, "Chennai Central", r.URL.Query().Get("address"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "OK",
			"results": [{"geometry": {"location": {"lat": 13.0827, "lng": 80.2757}}}]
		}`))
	})

	coord, err := client.Geocode(context.Background(), "Chennai Central")
	require.NoError(t, err)
	assert.InDelta(t, 13.0827, coord.Lat, 1e-6)
	assert.InDelta(t, 80.2757, coord.Lon, 1e-6)
}

func TestGeocodeNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "ZERO_RESULTS", "results": []}`))
	})

	_, err := client.Geocode(context.Background(), "nowhere at all")
	assert.ErrorIs(t, err, routing.ErrAddressNotFound)
}

func TestStripTags(t *testing.T) {
	assert.Equal(t, "Turn left onto Anna Salai", stripTags("Turn <b>left</b> onto <div>Anna Salai</div>"))
	assert.Equal(t, "plain", stripTags("plain"))
}
