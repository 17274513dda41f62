package osrm

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
		// Coordinates go in the path as lon,lat pairs.
		assert.Contains(t, r.URL.Path, "/route/v1/driving/80.270700,13.082700;80.212100,13.050000")
		assert.Equal(t, "true", r.URL.Query().Get("alternatives"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"code": "Ok",
			"routes": [{
				"geometry": "_p~iF~ps|U_ulLnnqC",
				"distance": 9800.5,
				"duration": 1240.0,
				"legs": [{
					"summary": "EVR Periyar Salai",
					"steps": [{
						"name": "EVR Periyar Salai",
						"distance": 9800.5,
						"duration": 1240.0,
						"maneuver": {"type": "turn", "modifier": "left"}
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
	assert.Equal(t, "EVR Periyar Salai", candidates[0].Summary)
	assert.Equal(t, 9800, candidates[0].DistanceMeters)
	assert.Equal(t, 1240, candidates[0].DurationSeconds)
	require.Len(t, candidates[0].Instructions, 1)
	assert.Equal(t, "turn left onto EVR Periyar Salai", candidates[0].Instructions[0].Text)
}

func TestGetDirectionsNoRoute(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code": "NoRoute", "message": "Impossible route between points", "routes": []}`))
	})

	_, err := client.GetDirections(context.Background(), routing.DirectionsRequest{
		Origin:      mustCoord(t, 13.0827, 80.2707),
		Destination: mustCoord(t, 13.0500, 80.2121),
	})
	assert.ErrorIs(t, err, routing.ErrNoRouteFound)
}

func TestGetDirectionsServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code": "InvalidQuery", "message": "unrecognised option"}`))
	})

	_, err := client.GetDirections(context.Background(), routing.DirectionsRequest{
		Origin:      mustCoord(t, 13.0827, 80.2707),
		Destination: mustCoord(t, 13.0500, 80.2121),
	})
	assert.ErrorIs(t, err, routing.ErrProviderUnavailable)
}

func TestGeocodeUnsupported(t *testing.T) {
	client := NewClient(ClientConfig{BaseURL: "http://osrm.local"})

	_, err := client.Geocode(context.Background(), "Chennai Central")
	assert.ErrorIs(t, err, routing.ErrAddressNotFound)
}
