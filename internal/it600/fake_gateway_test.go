package it600

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strconv"
	"sync"
	"testing"
	"time"
)

const testEUID = "0123456789abcdef"

// Inventory used across session tests: one device of every kind.
const (
	recGateway = `{"data":{"UniID":"gw1"},"sGateway":{"NetworkLANMAC":"001E5E0D3290","ModelIdentifier":"SAU2AG1-GW"},` +
		`"sOTA":{"OTAFirmwareVersion_d":"030B"}}`
	recClimate = `{"data":{"UniID":"th1"},"DeviceL":{"ModelIdentifier_i":"SQ610RF"},` +
		`"sZDO":{"DeviceName":"{\"deviceName\":\"Living Room\"}","FirmwareVersion":"0105"},"sZDOInfo":{"OnlineStatus_i":1},` +
		`"sIT600TH":{"LocalTemperature_x100":2150,"HeatingSetpoint_x100":2100,"SunnySetpoint_x100":45,"HoldType":2,"RunningState":1}}`
	recFanCoil = `{"data":{"UniID":"fc1"},"DeviceL":{"ModelIdentifier_i":"FC600"},` +
		`"sTherS":{"LocalTemperature_x100":2300,"HeatingSetpoint_x100":2200,"CoolingSetpoint_x100":2500,"SystemMode":3,"RunningState":66},` +
		`"sComm":{"HoldType":10},"sFanS":{"FanMode":2},"sTherUIS":{"LockKey":1}}`
	recWindow = `{"data":{"UniID":"ws1"},"DeviceL":{"ModelIdentifier_i":"SW600"},"sIASZS":{"ErrorIASZSAlarmed1":1}}`
	recSensor = `{"data":{"UniID":"ts1"},"sTempS":{"MeasuredValue_x100":1875}}`
	recSwitch = `{"data":{"UniID":"sp1","Endpoint":9},"DeviceL":{"ModelIdentifier_i":"SP600"},"sOnOffS":{"OnOff":1}}`
	recCover  = `{"data":{"UniID":"rs1","Endpoint":1},"DeviceL":{"ModelIdentifier_i":"RS600"},` +
		`"sLevelS":{"CurrentLevel":20,"MoveToLevel_f":"50FFFF"},"sButtonS":{"Mode":1}}`
)

func allRecords() []string {
	return []string{recGateway, recClimate, recFanCoil, recWindow, recSensor, recSwitch, recCover}
}

// fakeGateway speaks the encrypted gateway protocol over httptest.
type fakeGateway struct {
	t      *testing.T
	cipher *Cipher
	server *httptest.Server

	mu            sync.Mutex
	records       []json.RawMessage
	failUniIDs    map[string]bool
	rejectWrites  bool
	writes        []map[string]json.RawMessage
	deviceIDReads int
}

type fakeRequest struct {
	RequestAttr string                       `json:"requestAttr"`
	ID          []map[string]json.RawMessage `json:"id"`
}

func newFakeGateway(t *testing.T, records ...string) *fakeGateway {
	t.Helper()

	c, err := NewCipher(testEUID)
	if err != nil {
		t.Fatalf("NewCipher() error = %v", err)
	}

	f := &fakeGateway{t: t, cipher: c, failUniIDs: make(map[string]bool)}
	f.setRecords(records...)
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeGateway) setRecords(records ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = f.records[:0]
	for _, r := range records {
		f.records = append(f.records, json.RawMessage(r))
	}
}

func (f *fakeGateway) failFor(uniID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failUniIDs[uniID] = true
}

func (f *fakeGateway) lastWrite() map[string]json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.writes) == 0 {
		return nil
	}
	return f.writes[len(f.writes)-1]
}

func (f *fakeGateway) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func (f *fakeGateway) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet && r.URL.Path == "/" {
		_, _ = io.WriteString(w, "<html>Salus</html>")
		return
	}

	body, _ := io.ReadAll(r.Body)
	plain, err := f.cipher.Decrypt(body)
	if err != nil {
		http.Error(w, "bad ciphertext", http.StatusBadRequest)
		return
	}
	if got := r.Header.Get("content-type"); got != "application/json" {
		f.t.Errorf("content-type = %q, want application/json", got)
	}

	var req fakeRequest
	if err := json.Unmarshal(plain, &req); err != nil {
		f.t.Errorf("request is not JSON: %v", err)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.URL.Path == "/deviceid/read" && req.RequestAttr == "readall":
		f.reply(w, "success", f.records)

	case r.URL.Path == "/deviceid/read" && req.RequestAttr == "deviceid":
		f.deviceIDReads++
		var out []json.RawMessage
		for _, entry := range req.ID {
			rec, uniID := f.find(entry["data"])
			if f.failUniIDs[uniID] {
				_, _ = io.WriteString(w, "not encrypted")
				return
			}
			if rec != nil {
				out = append(out, rec)
			}
		}
		f.reply(w, "success", out)

	case r.URL.Path == "/deviceid/write" && req.RequestAttr == "write":
		if len(req.ID) == 1 {
			f.writes = append(f.writes, req.ID[0])
		}
		if f.rejectWrites {
			f.reply(w, "failed", nil)
			return
		}
		f.reply(w, "success", nil)

	default:
		f.t.Errorf("unexpected request %s %s", r.URL.Path, plain)
		f.reply(w, "failed", nil)
	}
}

// find returns the record whose data object equals data.
func (f *fakeGateway) find(data json.RawMessage) (json.RawMessage, string) {
	var want map[string]any
	_ = json.Unmarshal(data, &want)
	uniID, _ := want["UniID"].(string)

	for _, rec := range f.records {
		var r struct {
			Data map[string]any `json:"data"`
		}
		_ = json.Unmarshal(rec, &r)
		if reflect.DeepEqual(r.Data, want) {
			return rec, uniID
		}
	}
	return nil, uniID
}

func (f *fakeGateway) reply(w http.ResponseWriter, status string, ids []json.RawMessage) {
	if ids == nil {
		ids = []json.RawMessage{}
	}
	payload, _ := json.Marshal(map[string]any{"status": status, "id": ids})
	_, _ = w.Write(f.cipher.Encrypt(payload))
}

// options returns session options pointing at the fake.
func (f *fakeGateway) options() Options {
	u, _ := url.Parse(f.server.URL)
	port, _ := strconv.Atoi(u.Port())
	return Options{
		Host:       u.Hostname(),
		EUID:       testEUID,
		Port:       port,
		Timeout:    2 * time.Second,
		HTTPClient: f.server.Client(),
	}
}

// newConnectedGateway returns a session that has connected and polled once.
func newConnectedGateway(t *testing.T, f *fakeGateway) *Gateway {
	t.Helper()

	gw, err := NewGateway(f.options())
	if err != nil {
		t.Fatalf("NewGateway() error = %v", err)
	}
	t.Cleanup(func() { gw.Close() })

	ctx := context.Background()
	if _, err := gw.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := gw.PollStatus(ctx, false); err != nil {
		t.Fatalf("PollStatus() error = %v", err)
	}
	return gw
}

// recordingLogger captures log messages for assertions.
type recordingLogger struct {
	mu       sync.Mutex
	warnings []string
	errors   []string
}

func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Info(string, ...any)  {}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = append(l.warnings, msg)
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) errorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errors)
}
