package googlemaps

// directionsResponse is the Google Directions API response envelope.
type directionsResponse struct {
	Status       string     `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Routes       []gmsRoute `json:"routes"`
}

type gmsRoute struct {
	Summary          string      `json:"summary"`
	OverviewPolyline gmsPolyline `json:"overview_polyline"`
	Legs             []gmsLeg    `json:"legs"`
}

type gmsPolyline struct {
	Points string `json:"points"`
}

type gmsLeg struct {
	Distance gmsValue  `json:"distance"`
	Duration gmsValue  `json:"duration"`
	Steps    []gmsStep `json:"steps"`
}

type gmsValue struct {
	Value int    `json:"value"`
	Text  string `json:"text"`
}

type gmsStep struct {
	HTMLInstructions string   `json:"html_instructions"`
	Distance         gmsValue `json:"distance"`
	Duration         gmsValue `json:"duration"`
}

// geocodeResponse is the Google Geocoding API response envelope.
type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Google API status values this client branches on.
const (
	statusOK             = "OK"
	statusZeroResults    = "ZERO_RESULTS"
	statusNotFound       = "NOT_FOUND"
	statusOverQueryLimit = "OVER_QUERY_LIMIT"
	statusRequestDenied  = "REQUEST_DENIED"
)
