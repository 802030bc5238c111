package it600

// Kind identifies a device category. Each kind has its own registry and
// callback list.
type Kind string

// Device kinds, in refresh order.
const (
	KindGateway      Kind = "gateway"
	KindClimate      Kind = "climate"
	KindFanCoil      Kind = "fan_coil"
	KindBinarySensor Kind = "binary_sensor"
	KindSensor       Kind = "sensor"
	KindSwitch       Kind = "switch"
	KindCover        Kind = "cover"
)

// Kinds returns every kind in refresh order.
func Kinds() []Kind {
	return []Kind{KindGateway, KindClimate, KindFanCoil, KindBinarySensor, KindSensor, KindSwitch, KindCover}
}

// ParseKind converts a string to a Kind.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// HVACMode is the operating mode of a thermostat.
type HVACMode string

const (
	HVACModeOff  HVACMode = "off"
	HVACModeHeat HVACMode = "heat"
	HVACModeCool HVACMode = "cool"
	HVACModeAuto HVACMode = "auto"
)

// HVACAction is what a thermostat is doing right now.
type HVACAction string

const (
	HVACActionOff         HVACAction = "off"
	HVACActionHeating     HVACAction = "heating"
	HVACActionHeatingIdle HVACAction = "heating (idling)"
	HVACActionCooling     HVACAction = "cooling"
	HVACActionCoolingIdle HVACAction = "cooling (idling)"
	HVACActionIdle        HVACAction = "idle"
)

// Preset is a thermostat schedule override.
type Preset string

const (
	PresetFollowSchedule Preset = "Follow Schedule"
	PresetPermanentHold  Preset = "Permanent Hold"
	PresetTemporaryHold  Preset = "Temporary Hold"
	PresetEco            Preset = "Eco"
	PresetOff            Preset = "Off"
)

// FanMode is a fan-coil fan speed.
type FanMode string

const (
	FanModeAuto   FanMode = "Auto"
	FanModeHigh   FanMode = "High"
	FanModeMedium FanMode = "Medium"
	FanModeLow    FanMode = "Low"
	FanModeOff    FanMode = "Off"
)

// ClimateFeature is a bitmask of thermostat capabilities.
type ClimateFeature int

const (
	SupportTargetTemperature ClimateFeature = 1
	SupportFanMode           ClimateFeature = 8
	SupportPresetMode        ClimateFeature = 16
)

// CoverFeature is a bitmask of cover capabilities.
type CoverFeature int

const (
	SupportOpen        CoverFeature = 1
	SupportClose       CoverFeature = 2
	SupportSetPosition CoverFeature = 4
)

// Profile selects how precisely setpoints are reported.
type Profile string

const (
	// ProfileBasic reports setpoints in half degrees.
	ProfileBasic Profile = "basic"
	// ProfileExtended reports setpoints in tenths of a degree.
	ProfileExtended Profile = "extended"
)

// Precision returns the setpoint step for the profile.
func (p Profile) Precision() float64 {
	if p == ProfileBasic {
		return 0.5
	}
	return 0.1
}

// Gateway attribute codes.
const (
	holdTypeFollowSchedule = 0
	holdTypeTemporary      = 1
	holdTypePermanent      = 2
	holdTypeEco            = 10
	holdTypeOff            = 7

	systemModeAuto = 1
	systemModeCool = 3
	systemModeHeat = 4

	runningStateHeating = 33
	runningStateCooling = 66

	fanCodeOff    = 0
	fanCodeLow    = 1
	fanCodeMedium = 2
	fanCodeHigh   = 3
	fanCodeAuto   = 5

	onlineStatusOnline = 1
)

// Model identifiers with special handling.
const (
	modelMiniTRV     = "it600MINITRV"
	modelReceiver    = "it600Receiver"
	modelSB600       = "SB600"
	modelHumiditySQ6 = "SQ610"
)

const (
	defaultManufacturer = "SALUS"
	defaultDeviceName   = "Unknown"
	temperatureUnit     = "°C"
)
