package it600

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Defaults applied when a thermostat omits its bounds, in hundredths of a degree.
const (
	defaultMaxHeat        = 3500
	defaultMinHeat        = 500
	defaultFanCoilMaxTemp = 4000
	defaultFanCoilMinTemp = 500
)

// binarySensorClasses maps models to device classes. Models not listed have no class.
var binarySensorClasses = map[string]string{
	"SW600":          "window",
	"OS600":          "window",
	"WLS600":         "moisture",
	"SmokeSensor-EM": "smoke",
	modelMiniTRV:     "valve",
	modelReceiver:    "receiver",
}

// DecodeDevice converts a record into a snapshot of the given kind.
// It returns (nil, nil) when the record does not describe a device of that
// kind, and an error wrapping ErrMissingAttribute when it does but a
// required attribute is absent.
func DecodeDevice(kind Kind, rec *RawDeviceRecord, profile Profile) (Device, error) {
	if rec == nil || rec.Data == nil || rec.Data.UniID == "" {
		return nil, nil
	}

	switch kind {
	case KindGateway:
		return decodeGateway(rec)
	case KindClimate:
		return decodeClimate(rec, profile)
	case KindFanCoil:
		return decodeFanCoil(rec, profile)
	case KindBinarySensor:
		return decodeBinarySensor(rec)
	case KindSensor:
		return decodeSensor(rec)
	case KindSwitch:
		return decodeSwitch(rec)
	case KindCover:
		return decodeCover(rec)
	default:
		return nil, fmt.Errorf("unknown device kind %q", kind)
	}
}

// selects reports whether a readall inventory record belongs to kind.
func selects(kind Kind, rec *RawDeviceRecord) bool {
	switch kind {
	case KindGateway:
		return rec.Gateway != nil
	case KindClimate:
		return rec.IT600TH != nil
	case KindFanCoil:
		return rec.TherS != nil && rec.IT600TH == nil
	case KindBinarySensor:
		if rec.IASZone != nil {
			return true
		}
		if rec.Basic != nil {
			m := string(rec.Basic.ModelIdentifier)
			return m == modelMiniTRV || m == modelReceiver
		}
		return false
	case KindSensor:
		return rec.TempS != nil
	case KindSwitch:
		return rec.OnOff != nil
	case KindCover:
		return rec.Level != nil
	default:
		return false
	}
}

// commonInfo fills the fields every snapshot shares.
func commonInfo(rec *RawDeviceRecord, uniqueID, fallbackName string) DeviceInfo {
	info := DeviceInfo{
		UniqueID:     uniqueID,
		Name:         fallbackName,
		Available:    true,
		Manufacturer: defaultManufacturer,
		Data:         *rec.Data,
	}

	if rec.ZDOInfo != nil && rec.ZDOInfo.OnlineStatus != nil {
		info.Available = *rec.ZDOInfo.OnlineStatus == onlineStatusOnline
	}
	if rec.ZDO != nil {
		if rec.ZDO.DeviceName != nil {
			info.Name = parseDeviceName(*rec.ZDO.DeviceName, fallbackName)
		}
		info.SWVersion = string(rec.ZDO.FirmwareVersion)
	}
	if rec.Basic != nil && rec.Basic.ManufactureName != "" {
		info.Manufacturer = string(rec.Basic.ManufactureName)
	}
	if rec.DeviceL != nil {
		info.Model = string(rec.DeviceL.ModelIdentifier)
	}
	return info
}

// parseDeviceName extracts deviceName from the JSON document stored in
// sZDO.DeviceName.
func parseDeviceName(doc, fallback string) string {
	var v struct {
		DeviceName *string `json:"deviceName"`
	}
	if err := json.Unmarshal([]byte(doc), &v); err != nil || v.DeviceName == nil {
		return fallback
	}
	return *v.DeviceName
}

func missing(cluster, attr string) error {
	return fmt.Errorf("%w: %s.%s", ErrMissingAttribute, cluster, attr)
}

func celsius(x100 float64) float64 { return x100 / 100 }

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func decodeGateway(rec *RawDeviceRecord) (Device, error) {
	if rec.Gateway == nil || rec.Gateway.NetworkLANMAC == "" {
		return nil, nil
	}

	model := string(rec.Gateway.ModelIdentifier)
	info := commonInfo(rec, string(rec.Gateway.NetworkLANMAC), model)
	info.Name = model
	info.Model = model
	info.SWVersion = ""
	if rec.OTA != nil {
		info.SWVersion = string(rec.OTA.FirmwareVersion)
	}
	return GatewayDevice{DeviceInfo: info}, nil
}

func decodeClimate(rec *RawDeviceRecord, profile Profile) (Device, error) {
	th := rec.IT600TH
	if th == nil {
		return nil, nil
	}
	switch {
	case th.LocalTemperature == nil:
		return nil, missing("sIT600TH", "LocalTemperature_x100")
	case th.HeatingSetpoint == nil:
		return nil, missing("sIT600TH", "HeatingSetpoint_x100")
	case th.HoldType == nil:
		return nil, missing("sIT600TH", "HoldType")
	case th.RunningState == nil:
		return nil, missing("sIT600TH", "RunningState")
	}

	d := ClimateDevice{
		DeviceInfo:         commonInfo(rec, rec.Data.UniID, defaultDeviceName),
		CurrentTemperature: celsius(*th.LocalTemperature),
		TargetTemperature:  celsius(*th.HeatingSetpoint),
		MaxTemperature:     celsius(orDefault(th.MaxHeatSetpoint, defaultMaxHeat)),
		MinTemperature:     celsius(orDefault(th.MinHeatSetpoint, defaultMinHeat)),
		Precision:          profile.Precision(),
		TemperatureUnit:    temperatureUnit,
		HVACModes:          []HVACMode{HVACModeOff, HVACModeHeat, HVACModeAuto},
		Presets:            []Preset{PresetFollowSchedule, PresetPermanentHold, PresetOff},
		SupportedFeatures:  SupportTargetTemperature | SupportPresetMode,
	}

	if strings.Contains(d.Model, modelHumiditySQ6) && th.SunnySetpoint != nil {
		h := *th.SunnySetpoint
		d.CurrentHumidity = &h
	}

	action := HVACActionIdle
	if *th.RunningState%2 != 0 {
		action = HVACActionHeating
	}

	switch *th.HoldType {
	case holdTypeOff:
		d.HVACMode, d.HVACAction, d.Preset = HVACModeOff, HVACActionOff, PresetOff
	case holdTypePermanent:
		d.HVACMode, d.HVACAction, d.Preset = HVACModeHeat, action, PresetPermanentHold
	default:
		d.HVACMode, d.HVACAction, d.Preset = HVACModeAuto, action, PresetFollowSchedule
	}

	return d, nil
}

func decodeFanCoil(rec *RawDeviceRecord, profile Profile) (Device, error) {
	ts := rec.TherS
	if ts == nil || rec.Comm == nil || rec.Fan == nil || rec.IT600TH != nil {
		return nil, nil
	}
	switch {
	case ts.SystemMode == nil:
		return nil, missing("sTherS", "SystemMode")
	case ts.LocalTemperature == nil:
		return nil, missing("sTherS", "LocalTemperature_x100")
	case ts.RunningState == nil:
		return nil, missing("sTherS", "RunningState")
	case rec.Comm.HoldType == nil:
		return nil, missing("sComm", "HoldType")
	}

	heating := *ts.SystemMode == systemModeHeat

	var target, upper, lower *float64
	if heating {
		target, upper, lower = ts.HeatingSetpoint, ts.MaxHeatSetpoint, ts.MinHeatSetpoint
		if target == nil {
			return nil, missing("sTherS", "HeatingSetpoint_x100")
		}
	} else {
		target, upper, lower = ts.CoolingSetpoint, ts.MaxCoolSetpoint, ts.MinCoolSetpoint
		if target == nil {
			return nil, missing("sTherS", "CoolingSetpoint_x100")
		}
	}

	d := FanCoilDevice{
		DeviceInfo:         commonInfo(rec, rec.Data.UniID, defaultDeviceName),
		CurrentTemperature: celsius(*ts.LocalTemperature),
		TargetTemperature:  celsius(*target),
		MaxTemperature:     celsius(orDefault(upper, defaultFanCoilMaxTemp)),
		MinTemperature:     celsius(orDefault(lower, defaultFanCoilMinTemp)),
		Precision:          profile.Precision(),
		TemperatureUnit:    temperatureUnit,
		HVACModes:          []HVACMode{HVACModeHeat, HVACModeCool, HVACModeAuto},
		Presets: []Preset{
			PresetFollowSchedule, PresetPermanentHold, PresetTemporaryHold, PresetEco, PresetOff,
		},
		FanModes:          []FanMode{FanModeAuto, FanModeHigh, FanModeMedium, FanModeLow, FanModeOff},
		SupportedFeatures: SupportTargetTemperature | SupportFanMode | SupportPresetMode,
	}

	switch *ts.SystemMode {
	case systemModeHeat:
		d.HVACMode = HVACModeHeat
	case systemModeCool:
		d.HVACMode = HVACModeCool
	default:
		d.HVACMode = HVACModeAuto
	}

	hold := *rec.Comm.HoldType
	running := *ts.RunningState
	switch {
	case hold == holdTypeOff:
		d.HVACAction = HVACActionOff
	case running == 0:
		d.HVACAction = HVACActionIdle
	case heating && running == runningStateHeating:
		d.HVACAction = HVACActionHeating
	case heating:
		d.HVACAction = HVACActionHeatingIdle
	case running == runningStateCooling:
		d.HVACAction = HVACActionCooling
	default:
		d.HVACAction = HVACActionCoolingIdle
	}

	switch hold {
	case holdTypeOff:
		d.Preset = PresetOff
	case holdTypePermanent:
		d.Preset = PresetPermanentHold
	case holdTypeEco:
		d.Preset = PresetEco
	case holdTypeTemporary:
		d.Preset = PresetTemporaryHold
	default:
		d.Preset = PresetFollowSchedule
	}

	fan := fanCodeAuto
	if rec.Fan.FanMode != nil {
		fan = *rec.Fan.FanMode
	}
	switch fan {
	case fanCodeOff:
		d.FanMode = FanModeOff
	case fanCodeLow:
		d.FanMode = FanModeLow
	case fanCodeMedium:
		d.FanMode = FanModeMedium
	case fanCodeHigh:
		d.FanMode = FanModeHigh
	default:
		d.FanMode = FanModeAuto
	}

	d.Locked = rec.TherUI != nil && rec.TherUI.LockKey != nil && *rec.TherUI.LockKey == 1

	return d, nil
}

func decodeBinarySensor(rec *RawDeviceRecord) (Device, error) {
	info := commonInfo(rec, rec.Data.UniID, defaultDeviceName)

	var value *int
	switch info.Model {
	case modelMiniTRV, modelReceiver:
		if rec.IT600I != nil {
			value = rec.IT600I.RelayStatus
		}
	default:
		if rec.IASZone != nil {
			value = rec.IASZone.Alarmed
		}
	}
	if value == nil || info.Model == modelSB600 {
		return nil, nil
	}

	return BinarySensorDevice{
		DeviceInfo:  info,
		IsOn:        *value == 1,
		DeviceClass: binarySensorClasses[info.Model],
	}, nil
}

func decodeSensor(rec *RawDeviceRecord) (Device, error) {
	if rec.TempS == nil || rec.TempS.MeasuredValue == nil {
		return nil, nil
	}

	return SensorDevice{
		DeviceInfo:  commonInfo(rec, rec.Data.UniID+"_temp", defaultDeviceName),
		State:       celsius(*rec.TempS.MeasuredValue),
		Unit:        temperatureUnit,
		DeviceClass: "temperature",
	}, nil
}

func decodeSwitch(rec *RawDeviceRecord) (Device, error) {
	if rec.Level != nil || rec.OnOff == nil || rec.OnOff.OnOff == nil {
		return nil, nil
	}
	if disabledEndpoint(rec) {
		return nil, nil
	}
	if rec.Data.Endpoint == nil {
		return nil, missing("data", "Endpoint")
	}

	id := rec.Data.UniID + "_" + rec.Data.EndpointString()
	info := commonInfo(rec, id, id)

	class := "switch"
	if info.Model == "SP600" || info.Model == "SPE600" {
		class = "outlet"
	}

	return SwitchDevice{
		DeviceInfo:  info,
		IsOn:        *rec.OnOff.OnOff == 1,
		DeviceClass: class,
	}, nil
}

func decodeCover(rec *RawDeviceRecord) (Device, error) {
	if rec.Level == nil || disabledEndpoint(rec) {
		return nil, nil
	}
	if rec.Level.CurrentLevel == nil {
		return nil, missing("sLevelS", "CurrentLevel")
	}

	current := *rec.Level.CurrentLevel
	d := CoverDevice{
		DeviceInfo:        commonInfo(rec, rec.Data.UniID, defaultDeviceName),
		CurrentPosition:   current,
		IsClosed:          current == 0,
		SupportedFeatures: SupportOpen | SupportClose | SupportSetPosition,
	}

	if mv := rec.Level.MoveToLevel; mv != nil && len(*mv) >= 2 {
		target, err := strconv.ParseUint((*mv)[:2], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("parsing sLevelS.MoveToLevel_f %q: %w", *mv, err)
		}
		t := int(target)
		opening := current < t
		closing := current > t
		d.TargetPosition = &t
		d.IsOpening = &opening
		d.IsClosing = &closing
	}

	return d, nil
}

// disabledEndpoint reports whether sButtonS.Mode marks the endpoint as unused.
func disabledEndpoint(rec *RawDeviceRecord) bool {
	return rec.Button != nil && rec.Button.Mode != nil && *rec.Button.Mode == 0
}
