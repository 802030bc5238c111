package it600

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewGateway_Validation(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"missing host", Options{EUID: testEUID}},
		{"missing euid", Options{Host: "192.168.1.20"}},
		{"bad port", Options{Host: "192.168.1.20", EUID: testEUID, Port: 70000}},
		{"bad profile", Options{Host: "192.168.1.20", EUID: testEUID, Profile: "fancy"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGateway(tt.opts)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("NewGateway() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestGateway_Connect(t *testing.T) {
	f := newFakeGateway(t, allRecords()...)

	gw, err := NewGateway(f.options())
	if err != nil {
		t.Fatalf("NewGateway() error = %v", err)
	}
	defer gw.Close()

	if gw.State() != StateDisconnected {
		t.Errorf("State() = %v, want disconnected", gw.State())
	}

	mac, err := gw.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if mac != "001E5E0D3290" {
		t.Errorf("Connect() = %q, want 001E5E0D3290", mac)
	}
	if gw.MAC() != mac {
		t.Errorf("MAC() = %q, want %q", gw.MAC(), mac)
	}
	if gw.State() != StateConnected {
		t.Errorf("State() = %v, want connected", gw.State())
	}
}

func TestGateway_ConnectWithoutGatewayRecord(t *testing.T) {
	f := newFakeGateway(t, recSensor)

	gw, _ := NewGateway(f.options())
	defer gw.Close()

	_, err := gw.Connect(context.Background())
	if !errors.Is(err, ErrCommand) {
		t.Errorf("Connect() error = %v, want ErrCommand", err)
	}
	if gw.State() != StateDisconnected {
		t.Errorf("State() = %v, want disconnected", gw.State())
	}
}

func TestGateway_ConnectWrongEUID(t *testing.T) {
	// Plain HTTP answers, the encrypted endpoint never does.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusOK)
			return
		}
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	port, _ := strconv.Atoi(u.Port())
	gw, _ := NewGateway(Options{
		Host:       u.Hostname(),
		Port:       port,
		EUID:       testEUID,
		Timeout:    100 * time.Millisecond,
		HTTPClient: srv.Client(),
	})
	defer gw.Close()

	_, err := gw.Connect(context.Background())
	if !errors.Is(err, ErrAuthentication) {
		t.Errorf("Connect() error = %v, want ErrAuthentication", err)
	}
}

func TestGateway_ConnectUnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	u, _ := url.Parse(srv.URL)
	port, _ := strconv.Atoi(u.Port())
	srv.Close()

	gw, _ := NewGateway(Options{Host: u.Hostname(), Port: port, EUID: testEUID, Timeout: time.Second})
	defer gw.Close()

	_, err := gw.Connect(context.Background())
	if !errors.Is(err, ErrConnectivity) {
		t.Errorf("Connect() error = %v, want ErrConnectivity", err)
	}
	if errors.Is(err, ErrAuthentication) {
		t.Errorf("Connect() error = %v, should not be ErrAuthentication", err)
	}
}

func TestGateway_PollBeforeConnect(t *testing.T) {
	f := newFakeGateway(t, allRecords()...)
	gw, _ := NewGateway(f.options())
	defer gw.Close()

	if err := gw.PollStatus(context.Background(), false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("PollStatus() error = %v, want ErrNotConnected", err)
	}
}

func TestGateway_PollStatusPopulatesRegistries(t *testing.T) {
	f := newFakeGateway(t, allRecords()...)
	gw := newConnectedGateway(t, f)

	if gd, ok := gw.GatewayDevice(); !ok || gd.UniqueID != "001E5E0D3290" || gd.Model != "SAU2AG1-GW" || gd.SWVersion != "030B" {
		t.Errorf("GatewayDevice() = %+v, %v", gd, ok)
	}

	th, ok := gw.ClimateDevice("th1")
	if !ok {
		t.Fatal("ClimateDevice(th1) not found")
	}
	if th.Name != "Living Room" || th.CurrentTemperature != 21.5 || th.HVACMode != HVACModeHeat {
		t.Errorf("ClimateDevice(th1) = %+v", th)
	}

	if fc, ok := gw.FanCoilDevice("fc1"); !ok || fc.HVACAction != HVACActionCooling || fc.Preset != PresetEco {
		t.Errorf("FanCoilDevice(fc1) = %+v, %v", fc, ok)
	}
	if _, ok := gw.ClimateDevice("fc1"); ok {
		t.Error("fan coil also listed as a single-setpoint thermostat")
	}

	if bs, ok := gw.BinarySensorDevice("ws1"); !ok || !bs.IsOn || bs.DeviceClass != "window" {
		t.Errorf("BinarySensorDevice(ws1) = %+v, %v", bs, ok)
	}
	if s, ok := gw.SensorDevice("ts1_temp"); !ok || s.State != 18.75 {
		t.Errorf("SensorDevice(ts1_temp) = %+v, %v", s, ok)
	}
	if sw, ok := gw.SwitchDevice("sp1_9"); !ok || !sw.IsOn || sw.DeviceClass != "outlet" {
		t.Errorf("SwitchDevice(sp1_9) = %+v, %v", sw, ok)
	}
	if cv, ok := gw.CoverDevice("rs1"); !ok || cv.CurrentPosition != 20 || cv.TargetPosition == nil || *cv.TargetPosition != 0x50 {
		t.Errorf("CoverDevice(rs1) = %+v, %v", cv, ok)
	}

	if n := gw.DeviceCount(); n != 7 {
		t.Errorf("DeviceCount() = %d, want 7", n)
	}
	if gw.State() != StateConnected {
		t.Errorf("State() after poll = %v, want connected", gw.State())
	}
}

func TestGateway_PollIsolatesFailingKind(t *testing.T) {
	f := newFakeGateway(t, allRecords()...)
	log := &recordingLogger{}
	opts := f.options()
	opts.Logger = log

	gw, _ := NewGateway(opts)
	defer gw.Close()
	ctx := context.Background()
	if _, err := gw.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := gw.PollStatus(ctx, false); err != nil {
		t.Fatalf("PollStatus() error = %v", err)
	}

	// Switch goes off and the sensor warms up, but the switch read fails.
	f.setRecords(
		recGateway, recClimate, recFanCoil, recWindow, recCover,
		`{"data":{"UniID":"ts1"},"sTempS":{"MeasuredValue_x100":2000}}`,
		`{"data":{"UniID":"sp1","Endpoint":9},"DeviceL":{"ModelIdentifier_i":"SP600"},"sOnOffS":{"OnOff":0}}`,
	)
	f.failFor("sp1")

	if err := gw.PollStatus(ctx, false); err != nil {
		t.Fatalf("PollStatus() error = %v", err)
	}

	if sw, ok := gw.SwitchDevice("sp1_9"); !ok || !sw.IsOn {
		t.Errorf("switch registry changed after failed refresh: %+v, %v", sw, ok)
	}
	if s, _ := gw.SensorDevice("ts1_temp"); s.State != 20 {
		t.Errorf("sensor State = %v, want 20", s.State)
	}
	if _, ok := gw.CoverDevice("rs1"); !ok {
		t.Error("cover refresh after the failing switch kind did not run")
	}
	if log.errorCount() == 0 {
		t.Error("failed kind refresh was not logged")
	}
}

func TestGateway_PollSkipsUndecodableDevice(t *testing.T) {
	f := newFakeGateway(t,
		recGateway,
		recClimate,
		`{"data":{"UniID":"th2"},"sIT600TH":{"HoldType":0}}`,
	)
	gw := newConnectedGateway(t, f)

	if _, ok := gw.ClimateDevice("th1"); !ok {
		t.Error("th1 missing")
	}
	if _, ok := gw.ClimateDevice("th2"); ok {
		t.Error("th2 without temperatures should be skipped")
	}
}

func TestGateway_PollDropsRemovedDevices(t *testing.T) {
	f := newFakeGateway(t, allRecords()...)
	gw := newConnectedGateway(t, f)

	f.setRecords(recGateway)
	if err := gw.PollStatus(context.Background(), false); err != nil {
		t.Fatalf("PollStatus() error = %v", err)
	}
	if n := len(gw.SwitchDevices()); n != 0 {
		t.Errorf("len(SwitchDevices()) = %d, want 0", n)
	}
}

func TestGateway_PollNotifiesInRegistrationOrder(t *testing.T) {
	f := newFakeGateway(t, allRecords()...)
	gw, _ := NewGateway(f.options())
	defer gw.Close()

	var mu sync.Mutex
	var calls []string
	gw.AddUpdateCallback(KindSwitch, func(_ context.Context, kind Kind, id string) {
		mu.Lock()
		defer mu.Unlock()
		// The device is visible before callbacks run.
		if _, ok := gw.SwitchDevice(id); !ok {
			t.Errorf("callback for %s ran before the device was published", id)
		}
		calls = append(calls, "first:"+id)
	})
	gw.AddUpdateCallback(KindSwitch, func(_ context.Context, kind Kind, id string) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, "second:"+id)
	})

	ctx := context.Background()
	if _, err := gw.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := gw.PollStatus(ctx, true); err != nil {
		t.Fatalf("PollStatus() error = %v", err)
	}

	want := "first:sp1_9,second:sp1_9"
	if got := strings.Join(calls, ","); got != want {
		t.Errorf("callbacks = %s, want %s", got, want)
	}
}

func TestGateway_PollSurvivesPanickingCallback(t *testing.T) {
	f := newFakeGateway(t,
		recGateway,
		recSwitch,
		`{"data":{"UniID":"sp2","Endpoint":9},"DeviceL":{"ModelIdentifier_i":"SP600"},"sOnOffS":{"OnOff":0}}`,
	)
	log := &recordingLogger{}
	opts := f.options()
	opts.Logger = log

	gw, _ := NewGateway(opts)
	defer gw.Close()

	var mu sync.Mutex
	var notified []string
	gw.AddUpdateCallback(KindSwitch, func(_ context.Context, _ Kind, id string) {
		if id == "sp1_9" {
			panic("subscriber bug")
		}
		mu.Lock()
		notified = append(notified, id)
		mu.Unlock()
	})

	ctx := context.Background()
	if _, err := gw.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := gw.PollStatus(ctx, true); err != nil {
		t.Fatalf("PollStatus() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if strings.Join(notified, ",") != "sp2_9" {
		t.Errorf("notified = %v, want [sp2_9]", notified)
	}
	if n := len(gw.SwitchDevices()); n != 2 {
		t.Errorf("len(SwitchDevices()) = %d, want 2", n)
	}
	if log.errorCount() == 0 {
		t.Error("panicking callback was not logged")
	}
}

func TestGateway_PollWithoutNotifySkipsCallbacks(t *testing.T) {
	f := newFakeGateway(t, allRecords()...)
	gw, _ := NewGateway(f.options())
	defer gw.Close()

	called := false
	gw.AddUpdateCallback(KindCover, func(context.Context, Kind, string) { called = true })

	ctx := context.Background()
	_, _ = gw.Connect(ctx)
	if err := gw.PollStatus(ctx, false); err != nil {
		t.Fatalf("PollStatus() error = %v", err)
	}
	if called {
		t.Error("callback ran on a non-notifying poll")
	}
}

func TestGateway_NotifyWithoutSubscribersWarns(t *testing.T) {
	f := newFakeGateway(t, recGateway, recSensor)
	log := &recordingLogger{}
	opts := f.options()
	opts.Logger = log

	gw, _ := NewGateway(opts)
	defer gw.Close()

	ctx := context.Background()
	_, _ = gw.Connect(ctx)
	if err := gw.PollStatus(ctx, true); err != nil {
		t.Fatalf("PollStatus() error = %v", err)
	}

	log.mu.Lock()
	defer log.mu.Unlock()
	if len(log.warnings) == 0 {
		t.Error("expected a warning for updates with no subscribers")
	}
}

func TestGateway_GettersReturnCopies(t *testing.T) {
	f := newFakeGateway(t, allRecords()...)
	gw := newConnectedGateway(t, f)

	devs := gw.Devices(KindSwitch)
	delete(devs, "sp1_9")

	if _, ok := gw.SwitchDevice("sp1_9"); !ok {
		t.Error("mutating a returned registry changed the session")
	}
}

func TestGateway_CloseDisconnects(t *testing.T) {
	f := newFakeGateway(t, allRecords()...)
	gw := newConnectedGateway(t, f)

	if err := gw.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if gw.State() != StateDisconnected {
		t.Errorf("State() = %v, want disconnected", gw.State())
	}
	if err := gw.TurnOnSwitch(context.Background(), "sp1_9"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("TurnOnSwitch() after Close error = %v, want ErrNotConnected", err)
	}
	if _, ok := gw.SwitchDevice("sp1_9"); !ok {
		t.Error("registries should stay readable after Close")
	}
}
