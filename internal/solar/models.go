package solar

import "encoding/json"

// Hourly field names as they appear in the ensemble API's "hourly" object.
const (
	FieldTime                   = "time"
	FieldShortwaveRadiation     = "shortwave_radiation"
	FieldDirectRadiation        = "direct_radiation"
	FieldDiffuseRadiation       = "diffuse_radiation"
	FieldDirectNormalIrradiance = "direct_normal_irradiance"
	FieldGlobalTiltedIrradiance = "global_tilted_irradiance"
)

// Top-level coordinate field names.
const (
	FieldLatitude  = "latitude"
	FieldLongitude = "longitude"
)

// TimeLayout is the local timestamp format returned with timezone=auto.
const TimeLayout = "2006-01-02T15:04"

// RadiationFields lists the requested hourly radiation fields in column order.
var RadiationFields = []string{
	FieldShortwaveRadiation,
	FieldDirectRadiation,
	FieldDiffuseRadiation,
	FieldDirectNormalIrradiance,
	FieldGlobalTiltedIrradiance,
}

// Location is the coordinate the forecast is requested for.
type Location struct {
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
}

// ForecastResponse is the raw ensemble payload. Coordinates are pointers and
// hourly columns stay as raw JSON so that missing or malformed data is
// reported by Transform rather than by the HTTP decoder.
type ForecastResponse struct {
	Latitude  *float64                   `json:"latitude"`
	Longitude *float64                   `json:"longitude"`
	Timezone  string                     `json:"timezone,omitempty"`
	Hourly    map[string]json.RawMessage `json:"hourly"`
}

// Record is one flattened hourly observation. Radiation values are nil when
// the upstream reported no value for that hour.
type Record struct {
	Latitude               float64  `json:"latitude"`
	Longitude              float64  `json:"longitude"`
	Time                   string   `json:"time"`
	ShortwaveRadiation     *float64 `json:"shortwave_radiation"`
	DirectRadiation        *float64 `json:"direct_radiation"`
	DiffuseRadiation       *float64 `json:"diffuse_radiation"`
	DirectNormalIrradiance *float64 `json:"direct_normal_irradiance"`
	GlobalTiltedIrradiance *float64 `json:"global_tilted_irradiance"`
}

// setRadiation assigns v to the field named by a RadiationFields entry.
func (r *Record) setRadiation(field string, v *float64) {
	switch field {
	case FieldShortwaveRadiation:
		r.ShortwaveRadiation = v
	case FieldDirectRadiation:
		r.DirectRadiation = v
	case FieldDiffuseRadiation:
		r.DiffuseRadiation = v
	case FieldDirectNormalIrradiance:
		r.DirectNormalIrradiance = v
	case FieldGlobalTiltedIrradiance:
		r.GlobalTiltedIrradiance = v
	}
}
