package validator

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/septivank/farm-telemetry/internal/apperr"
	"github.com/septivank/farm-telemetry/internal/model"
	"github.com/septivank/farm-telemetry/tools/timeparser"
)

// Canonical measurement field names.
const (
	FieldSoil        = "soil"
	FieldTemperature = "temperature"
	FieldHumidity    = "humidity"
	FieldGas         = "gas"
	FieldLight       = "light"
)

// Accepted payload keys per canonical field, in lookup order. Devices in the
// field send both the short and the long spellings.
var fieldAliases = map[string][]string{
	FieldSoil:        {"soil", "soilMoisture", "soil_moisture", "moisture"},
	FieldTemperature: {"temperature", "temp"},
	FieldHumidity:    {"humidity", "hum"},
	FieldGas:         {"gas", "gasLevel", "gas_level"},
	FieldLight:       {"light", "lightLevel", "light_level"},
}

var (
	actuatorAliases  = []string{"motor", "relay", "actuatorState", "actuator_state"}
	timestampAliases = []string{"timestamp", "time"}
	alwaysRequired   = []string{FieldSoil, FieldTemperature, FieldHumidity}
)

// Validator turns raw per-zone payloads into Readings
type Validator struct {
	zones                     *model.Zones
	required                  map[string]bool
	timestampToleranceMinutes int
	loc                       *time.Location
	now                       func() time.Time
}

// NewValidator creates a new validator. Soil, temperature and humidity are
// always required; requiredFields may add gas and light.
func NewValidator(zones *model.Zones, requiredFields []string, timestampToleranceMinutes int, loc *time.Location) (*Validator, error) {
	required := make(map[string]bool, len(fieldAliases))
	for _, f := range alwaysRequired {
		required[f] = true
	}
	for _, f := range requiredFields {
		f = strings.ToLower(strings.TrimSpace(f))
		if _, ok := fieldAliases[f]; !ok {
			return nil, fmt.Errorf("unknown required field %q", f)
		}
		required[f] = true
	}
	if loc == nil {
		loc = time.Local
	}
	return &Validator{
		zones:                     zones,
		required:                  required,
		timestampToleranceMinutes: timestampToleranceMinutes,
		loc:                       loc,
		now:                       time.Now,
	}, nil
}

// WithClock replaces the clock used for defaulted timestamps.
func (v *Validator) WithClock(now func() time.Time) *Validator {
	v.now = now
	return v
}

// Zones returns the zone set the validator checks against.
func (v *Validator) Zones() *model.Zones {
	return v.zones
}

// ValidateReading validates the payload of one zone. When zone is empty the
// zone is read from the payload's "zone" key.
func (v *Validator) ValidateReading(zone string, raw map[string]any) (model.Reading, error) {
	if raw == nil {
		return model.Reading{}, invalid("payload must be an object")
	}

	if zone == "" {
		ref, ok := zoneRef(raw["zone"])
		if !ok {
			return model.Reading{}, invalid("zone is required")
		}
		zone = ref
	}
	name, ok := v.zones.Resolve(zone)
	if !ok {
		return model.Reading{}, invalid(fmt.Sprintf("unknown zone %q", zone))
	}

	values := make(map[string]*float64, len(fieldAliases))
	for field, aliases := range fieldAliases {
		key, value, present := lookup(raw, aliases)
		if !present {
			if v.required[field] {
				return model.Reading{}, invalid(fmt.Sprintf("%s is required", field))
			}
			continue
		}
		n, err := toFloat(value)
		if err != nil {
			return model.Reading{}, invalid(fmt.Sprintf("%s: %v", key, err))
		}
		values[field] = &n
	}

	state := model.ActuatorOff
	if key, value, present := lookup(raw, actuatorAliases); present {
		s, isString := value.(string)
		parsed, ok := model.ParseActuatorState(s)
		if !isString || !ok {
			return model.Reading{}, invalid(fmt.Sprintf("%s must be ON or OFF", key))
		}
		state = parsed
	}

	now := v.now()
	ts := now
	if key, value, present := lookup(raw, timestampAliases); present {
		parsed, err := v.parseTimestamp(value)
		if err != nil {
			return model.Reading{}, invalid(fmt.Sprintf("%s: %v", key, err))
		}
		if !timeparser.InReadingRange(parsed) {
			return model.Reading{}, invalid(fmt.Sprintf("%s: year must be between %d and %d", key, timeparser.MinReadingYear, timeparser.MaxReadingYear))
		}
		if v.timestampToleranceMinutes > 0 && !timeparser.IsWithinTolerance(parsed, now, v.timestampToleranceMinutes) {
			return model.Reading{}, invalid(fmt.Sprintf("timestamp outside tolerance window (±%d minutes)", v.timestampToleranceMinutes))
		}
		ts = parsed
	}

	return model.Reading{
		Zone:          name,
		ZoneID:        v.zones.ID(name),
		SoilMoisture:  *values[FieldSoil],
		Temperature:   *values[FieldTemperature],
		Humidity:      *values[FieldHumidity],
		GasLevel:      values[FieldGas],
		LightLevel:    values[FieldLight],
		ActuatorState: state,
		// storage keeps microseconds
		Timestamp: ts.Truncate(time.Microsecond),
	}, nil
}

func (v *Validator) parseTimestamp(value any) (time.Time, error) {
	switch t := value.(type) {
	case string:
		return timeparser.ParseReadingTimestamp(t, v.loc)
	case float64:
		return timeparser.FromEpoch(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return time.Time{}, err
		}
		return timeparser.FromEpoch(f), nil
	case time.Time:
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp type %T", value)
}

// lookup returns the first alias present with a non-null value.
func lookup(raw map[string]any, aliases []string) (string, any, bool) {
	for _, key := range aliases {
		if value, ok := raw[key]; ok && value != nil {
			return key, value, true
		}
	}
	return "", nil, false
}

func zoneRef(value any) (string, bool) {
	switch z := value.(type) {
	case string:
		return z, z != ""
	case float64:
		if z == math.Trunc(z) {
			return strconv.Itoa(int(z)), true
		}
	case json.Number:
		return z.String(), true
	}
	return "", false
}

func toFloat(value any) (float64, error) {
	var f float64
	switch n := value.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("not a number")
		}
		f = parsed
	default:
		return 0, fmt.Errorf("must be numeric, got %T", value)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("must be finite")
	}
	return f, nil
}

func invalid(reason string) error {
	return apperr.New(apperr.InvalidPayload, reason)
}
