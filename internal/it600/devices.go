package it600

// Device is implemented by every snapshot type.
type Device interface {
	// Kind returns the device category.
	Kind() Kind

	// Info returns the fields shared by all kinds.
	Info() DeviceInfo
}

// DeviceInfo holds the fields common to all snapshots.
type DeviceInfo struct {
	UniqueID     string     `json:"unique_id"`
	Name         string     `json:"name"`
	Available    bool       `json:"available"`
	Manufacturer string     `json:"manufacturer"`
	Model        string     `json:"model"`
	SWVersion    string     `json:"sw_version,omitempty"`
	Data         DataHandle `json:"-"`
}

// Info returns the common fields.
func (d DeviceInfo) Info() DeviceInfo { return d }

// GatewayDevice describes the gateway itself.
type GatewayDevice struct {
	DeviceInfo
}

// Kind implements Device.
func (GatewayDevice) Kind() Kind { return KindGateway }

// ClimateDevice is a single-setpoint heating thermostat.
type ClimateDevice struct {
	DeviceInfo

	CurrentTemperature float64        `json:"current_temperature"`
	TargetTemperature  float64        `json:"target_temperature"`
	MaxTemperature     float64        `json:"max_temperature"`
	MinTemperature     float64        `json:"min_temperature"`
	Precision          float64        `json:"precision"`
	TemperatureUnit    string         `json:"temperature_unit"`
	CurrentHumidity    *float64       `json:"current_humidity,omitempty"`
	HVACMode           HVACMode       `json:"hvac_mode"`
	HVACAction         HVACAction     `json:"hvac_action"`
	HVACModes          []HVACMode     `json:"hvac_modes"`
	Preset             Preset         `json:"preset_mode"`
	Presets            []Preset       `json:"preset_modes"`
	SupportedFeatures  ClimateFeature `json:"supported_features"`
}

// Kind implements Device.
func (ClimateDevice) Kind() Kind { return KindClimate }

// FanCoilDevice is a heat/cool fan-coil controller with two setpoints.
type FanCoilDevice struct {
	DeviceInfo

	CurrentTemperature float64        `json:"current_temperature"`
	TargetTemperature  float64        `json:"target_temperature"`
	MaxTemperature     float64        `json:"max_temperature"`
	MinTemperature     float64        `json:"min_temperature"`
	Precision          float64        `json:"precision"`
	TemperatureUnit    string         `json:"temperature_unit"`
	HVACMode           HVACMode       `json:"hvac_mode"`
	HVACAction         HVACAction     `json:"hvac_action"`
	HVACModes          []HVACMode     `json:"hvac_modes"`
	Preset             Preset         `json:"preset_mode"`
	Presets            []Preset       `json:"preset_modes"`
	FanMode            FanMode        `json:"fan_mode"`
	FanModes           []FanMode      `json:"fan_modes"`
	Locked             bool           `json:"locked"`
	SupportedFeatures  ClimateFeature `json:"supported_features"`
}

// Kind implements Device.
func (FanCoilDevice) Kind() Kind { return KindFanCoil }

// BinarySensorDevice is a contact-style sensor.
type BinarySensorDevice struct {
	DeviceInfo

	IsOn bool `json:"is_on"`
	// DeviceClass is window, moisture, smoke, valve, receiver or empty.
	DeviceClass string `json:"device_class,omitempty"`
}

// Kind implements Device.
func (BinarySensorDevice) Kind() Kind { return KindBinarySensor }

// SwitchDevice is one on/off endpoint.
type SwitchDevice struct {
	DeviceInfo

	IsOn        bool   `json:"is_on"`
	DeviceClass string `json:"device_class"`
}

// Kind implements Device.
func (SwitchDevice) Kind() Kind { return KindSwitch }

// CoverDevice is a roller shutter or blind.
type CoverDevice struct {
	DeviceInfo

	CurrentPosition   int          `json:"current_cover_position"`
	TargetPosition    *int         `json:"target_cover_position,omitempty"`
	IsOpening         *bool        `json:"is_opening,omitempty"`
	IsClosing         *bool        `json:"is_closing,omitempty"`
	IsClosed          bool         `json:"is_closed"`
	SupportedFeatures CoverFeature `json:"supported_features"`
}

// Kind implements Device.
func (CoverDevice) Kind() Kind { return KindCover }

// SensorDevice is a temperature probe.
type SensorDevice struct {
	DeviceInfo

	State       float64 `json:"state"`
	Unit        string  `json:"unit_of_measurement"`
	DeviceClass string  `json:"device_class"`
}

// Kind implements Device.
func (SensorDevice) Kind() Kind { return KindSensor }
