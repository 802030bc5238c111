package it600

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// flexString accepts either a JSON string or a JSON number. Firmware
// versions and identifiers are reported as both depending on the device.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*s = flexString(n.String())
	return nil
}

// DataHandle is the opaque addressing object the gateway attaches to every
// device. It is echoed back byte-for-byte in deviceid reads and writes.
type DataHandle struct {
	UniID    string
	Endpoint *int

	raw json.RawMessage
}

// UnmarshalJSON keeps the raw bytes and extracts the addressing fields.
func (h *DataHandle) UnmarshalJSON(b []byte) error {
	var fields struct {
		UniID    flexString `json:"UniID"`
		Endpoint *int       `json:"Endpoint"`
	}
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	h.UniID = string(fields.UniID)
	h.Endpoint = fields.Endpoint
	h.raw = bytes.Clone(b)
	return nil
}

// MarshalJSON re-emits the handle exactly as the gateway sent it.
func (h DataHandle) MarshalJSON() ([]byte, error) {
	if len(h.raw) > 0 {
		return h.raw, nil
	}
	m := map[string]any{"UniID": h.UniID}
	if h.Endpoint != nil {
		m["Endpoint"] = *h.Endpoint
	}
	return json.Marshal(m)
}

// EndpointString returns the endpoint as text, or "" when absent.
func (h DataHandle) EndpointString() string {
	if h.Endpoint == nil {
		return ""
	}
	return strconv.Itoa(*h.Endpoint)
}

// RawDeviceRecord is one entry of the gateway's id list. Each field is one
// cluster; absent clusters are nil. Unknown clusters are ignored.
type RawDeviceRecord struct {
	Data *DataHandle `json:"data"`

	Gateway *GatewayCluster     `json:"sGateway,omitempty"`
	Basic   *BasicCluster       `json:"sBasicS,omitempty"`
	OTA     *OTACluster         `json:"sOTA,omitempty"`
	DeviceL *DeviceLCluster     `json:"DeviceL,omitempty"`
	ZDO     *ZDOCluster         `json:"sZDO,omitempty"`
	ZDOInfo *ZDOInfoCluster     `json:"sZDOInfo,omitempty"`
	IT600TH *IT600THCluster     `json:"sIT600TH,omitempty"`
	TherS   *TherSCluster       `json:"sTherS,omitempty"`
	Comm    *CommCluster        `json:"sComm,omitempty"`
	Fan     *FanCluster         `json:"sFanS,omitempty"`
	TherUI  *TherUICluster      `json:"sTherUIS,omitempty"`
	IASZone *IASZoneCluster     `json:"sIASZS,omitempty"`
	IT600I  *IT600ICluster      `json:"sIT600I,omitempty"`
	TempS   *TemperatureCluster `json:"sTempS,omitempty"`
	OnOff   *OnOffCluster       `json:"sOnOffS,omitempty"`
	Level   *LevelCluster       `json:"sLevelS,omitempty"`
	Button  *ButtonCluster      `json:"sButtonS,omitempty"`
}

// UniqueID returns data.UniID, or "" when the record has no handle.
func (r *RawDeviceRecord) UniqueID() string {
	if r.Data == nil {
		return ""
	}
	return r.Data.UniID
}

// GatewayCluster is sGateway.
type GatewayCluster struct {
	NetworkLANMAC   flexString `json:"NetworkLANMAC"`
	ModelIdentifier flexString `json:"ModelIdentifier"`
}

// BasicCluster is sBasicS.
type BasicCluster struct {
	ManufactureName flexString `json:"ManufactureName"`
	ModelIdentifier flexString `json:"ModelIdentifier"`
}

// OTACluster is sOTA.
type OTACluster struct {
	FirmwareVersion flexString `json:"OTAFirmwareVersion_d"`
}

// DeviceLCluster is DeviceL.
type DeviceLCluster struct {
	ModelIdentifier flexString `json:"ModelIdentifier_i"`
}

// ZDOCluster is sZDO. DeviceName holds a JSON document such as
// {"deviceName":"Kitchen"}.
type ZDOCluster struct {
	DeviceName      *string    `json:"DeviceName"`
	FirmwareVersion flexString `json:"FirmwareVersion"`
}

// ZDOInfoCluster is sZDOInfo.
type ZDOInfoCluster struct {
	OnlineStatus *int `json:"OnlineStatus_i"`
}

// IT600THCluster is sIT600TH, the single-setpoint thermostat cluster.
type IT600THCluster struct {
	LocalTemperature *float64 `json:"LocalTemperature_x100"`
	HeatingSetpoint  *float64 `json:"HeatingSetpoint_x100"`
	MaxHeatSetpoint  *float64 `json:"MaxHeatSetpoint_x100"`
	MinHeatSetpoint  *float64 `json:"MinHeatSetpoint_x100"`
	SunnySetpoint    *float64 `json:"SunnySetpoint_x100"`
	HoldType         *int     `json:"HoldType"`
	RunningState     *int     `json:"RunningState"`
}

// TherSCluster is sTherS, the dual-setpoint thermostat cluster.
type TherSCluster struct {
	LocalTemperature *float64 `json:"LocalTemperature_x100"`
	HeatingSetpoint  *float64 `json:"HeatingSetpoint_x100"`
	CoolingSetpoint  *float64 `json:"CoolingSetpoint_x100"`
	MaxHeatSetpoint  *float64 `json:"MaxHeatSetpoint_x100"`
	MinHeatSetpoint  *float64 `json:"MinHeatSetpoint_x100"`
	MaxCoolSetpoint  *float64 `json:"MaxCoolSetpoint_x100"`
	MinCoolSetpoint  *float64 `json:"MinCoolSetpoint_x100"`
	SystemMode       *int     `json:"SystemMode"`
	RunningState     *int     `json:"RunningState"`
}

// CommCluster is sComm.
type CommCluster struct {
	HoldType *int `json:"HoldType"`
}

// FanCluster is sFanS.
type FanCluster struct {
	FanMode *int `json:"FanMode"`
}

// TherUICluster is sTherUIS.
type TherUICluster struct {
	LockKey *int `json:"LockKey"`
}

// IASZoneCluster is sIASZS.
type IASZoneCluster struct {
	Alarmed *int `json:"ErrorIASZSAlarmed1"`
}

// IT600ICluster is sIT600I.
type IT600ICluster struct {
	RelayStatus *int `json:"RelayStatus"`
}

// TemperatureCluster is sTempS.
type TemperatureCluster struct {
	MeasuredValue *float64 `json:"MeasuredValue_x100"`
}

// OnOffCluster is sOnOffS.
type OnOffCluster struct {
	OnOff *int `json:"OnOff"`
}

// LevelCluster is sLevelS. MoveToLevel carries the target position as the
// first two hex digits.
type LevelCluster struct {
	CurrentLevel *int    `json:"CurrentLevel"`
	MoveToLevel  *string `json:"MoveToLevel_f"`
}

// ButtonCluster is sButtonS. Mode 0 marks a disabled endpoint.
type ButtonCluster struct {
	Mode *int `json:"Mode"`
}

// decodeRecords parses each raw entry independently. Entries that fail to
// parse are reported through skip and left out.
func decodeRecords(raw []json.RawMessage, skip func(index int, err error)) []*RawDeviceRecord {
	records := make([]*RawDeviceRecord, 0, len(raw))
	for i, r := range raw {
		var rec RawDeviceRecord
		if err := json.Unmarshal(r, &rec); err != nil {
			skip(i, err)
			continue
		}
		records = append(records, &rec)
	}
	return records
}
