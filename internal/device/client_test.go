package device

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const mockInfoResponse = `{"chipID":"a4cf12fe","coreCount":"2","siliconRevision":"1","flash":"4MB","macAddress":"A4:CF:12:FE:00:01"}`

const mockReadingsResponse = `{"co2":"415","voc":42,"pm1.0":1.2,"pm2.5":3.4,"pm10.0":5.6}`

// newDeviceServer starts a fake sensor and returns it with per-path hit counters.
func newDeviceServer(t *testing.T, info, readings string) (*httptest.Server, *int32, *int32) {
	t.Helper()
	var infoHits, readingsHits int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Request method = %s, want GET", r.Method)
		}
		switch r.URL.Path {
		case "/":
			atomic.AddInt32(&infoHits, 1)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(info))
		case "/readings":
			atomic.AddInt32(&readingsHits, 1)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(readings))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	return server, &infoHits, &readingsHits
}

func hostOf(server *httptest.Server) string {
	return strings.TrimPrefix(server.URL, "http://")
}

func TestNewClient(t *testing.T) {
	client := NewClient("192.168.1.40")

	if client.Host() != "192.168.1.40" {
		t.Errorf("Host() = %s, want 192.168.1.40", client.Host())
	}
	if client.url("/readings") != "http://192.168.1.40/readings" {
		t.Errorf("url() = %s, want http://192.168.1.40/readings", client.url("/readings"))
	}
	if client.Connected() {
		t.Error("new client should not be connected")
	}
	if client.http.GetClient().Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", client.http.GetClient().Timeout, DefaultTimeout)
	}
}

func TestWithTimeout(t *testing.T) {
	client := NewClient("192.168.1.40", WithTimeout(3*time.Second))

	if client.http.GetClient().Timeout != 3*time.Second {
		t.Errorf("Timeout = %v, want 3s", client.http.GetClient().Timeout)
	}
}

func TestConnect_Success(t *testing.T) {
	server, _, _ := newDeviceServer(t, mockInfoResponse, mockReadingsResponse)
	client := NewClient(hostOf(server))

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !client.Connected() {
		t.Error("Connected() = false after successful Connect")
	}

	info, err := client.DeviceInfo()
	if err != nil {
		t.Fatalf("DeviceInfo() error = %v", err)
	}

	want := DeviceInfo{
		ChipID:          "a4cf12fe",
		CoreCount:       "2",
		SiliconRevision: "1",
		Flash:           "4MB",
		MACAddress:      "A4:CF:12:FE:00:01",
	}
	if info != want {
		t.Errorf("DeviceInfo() = %+v, want %+v", info, want)
	}
}

func TestConnect_Idempotent(t *testing.T) {
	server, infoHits, _ := newDeviceServer(t, mockInfoResponse, mockReadingsResponse)
	client := NewClient(hostOf(server))

	for i := 0; i < 2; i++ {
		if err := client.Connect(context.Background()); err != nil {
			t.Fatalf("Connect() #%d error = %v", i+1, err)
		}
	}

	if got := atomic.LoadInt32(infoHits); got != 1 {
		t.Errorf("device root fetched %d times, want 1", got)
	}
}

func TestDeviceInfo_NotConnected(t *testing.T) {
	client := NewClient("192.168.1.40")

	info, err := client.DeviceInfo()
	if err == nil {
		t.Fatal("DeviceInfo() should fail before Connect")
	}

	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("DeviceInfo() error type = %T, want *DeviceError", err)
	}
	if devErr.Cause != CauseNotConnected {
		t.Errorf("Cause = %v, want %v", devErr.Cause, CauseNotConnected)
	}
	if info != (DeviceInfo{}) {
		t.Errorf("DeviceInfo() returned %+v alongside an error", info)
	}
}

func TestConnect_MissingKey(t *testing.T) {
	server, _, _ := newDeviceServer(t, `{"chipID":"a4cf12fe","coreCount":"2","siliconRevision":"1","flash":"4MB"}`, mockReadingsResponse)
	client := NewClient(hostOf(server))

	err := client.Connect(context.Background())
	if err == nil {
		t.Fatal("Connect() should fail when macAddress is missing")
	}

	var devErr *DeviceError
	if !errors.As(err, &devErr) || devErr.Cause != CauseParse {
		t.Errorf("Connect() error = %v, want parse DeviceError", err)
	}
	if client.Connected() {
		t.Error("client should stay disconnected after a failed Connect")
	}
	if _, err := client.DeviceInfo(); err == nil {
		t.Error("DeviceInfo() should still fail after a failed Connect")
	}
}

func TestConnect_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(hostOf(server), WithTimeout(50*time.Millisecond))

	err := client.Connect(context.Background())
	if err == nil {
		t.Fatal("Connect() should fail on timeout")
	}

	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("Connect() error type = %T, want *DeviceError", err)
	}
	if devErr.Cause != CauseTimeout {
		t.Errorf("Cause = %v, want %v", devErr.Cause, CauseTimeout)
	}
	if client.Connected() {
		t.Error("client should stay disconnected after a timeout")
	}
}

func TestConnect_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	host := hostOf(server)
	server.Close()

	client := NewClient(host, WithTimeout(time.Second))

	err := client.Connect(context.Background())
	if !IsDeviceError(err) {
		t.Fatalf("Connect() error = %v, want *DeviceError", err)
	}
	if client.Connected() {
		t.Error("client should stay disconnected")
	}
}

func TestReadings_Success(t *testing.T) {
	server, _, _ := newDeviceServer(t, mockInfoResponse, mockReadingsResponse)
	client := NewClient(hostOf(server))

	readings, err := client.Readings(context.Background())
	if err != nil {
		t.Fatalf("Readings() error = %v", err)
	}

	want := Readings{CO2: 415, VOC: 42, PM1: 1.2, PM25: 3.4, PM10: 5.6}
	if readings != want {
		t.Errorf("Readings() = %+v, want %+v", readings, want)
	}
	if client.Connected() {
		t.Error("Readings() should not change the connection state")
	}
}

func TestReadings_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("sensor warming up"))
	}))
	defer server.Close()

	client := NewClient(hostOf(server))

	_, err := client.Readings(context.Background())
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("Readings() error = %v, want *DeviceError", err)
	}
	if devErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", devErr.StatusCode)
	}
	if !strings.Contains(devErr.Error(), "sensor warming up") {
		t.Errorf("Error() = %q, should include the response body", devErr.Error())
	}
}

func TestReadings_MalformedJSON(t *testing.T) {
	server, _, _ := newDeviceServer(t, mockInfoResponse, `{"co2":415,"voc":`)
	client := NewClient(hostOf(server))

	_, err := client.Readings(context.Background())
	var devErr *DeviceError
	if !errors.As(err, &devErr) || devErr.Cause != CauseParse {
		t.Errorf("Readings() error = %v, want parse DeviceError", err)
	}
}

func TestReadings_DoesNotRequireConnect(t *testing.T) {
	server, infoHits, readingsHits := newDeviceServer(t, mockInfoResponse, mockReadingsResponse)
	client := NewClient(hostOf(server))

	if _, err := client.Readings(context.Background()); err != nil {
		t.Fatalf("Readings() error = %v", err)
	}

	if atomic.LoadInt32(infoHits) != 0 {
		t.Error("Readings() should not fetch device info")
	}
	if atomic.LoadInt32(readingsHits) != 1 {
		t.Errorf("readings fetched %d times, want 1", atomic.LoadInt32(readingsHits))
	}
}

func TestClose_NilClient(t *testing.T) {
	var client *Client

	// should not panic on nil receiver
	client.Close()
}
