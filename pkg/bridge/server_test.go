package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"isg-light-terminal/pkg/isg"
)

// newBridgeUnderTest stands up a fake controller, a client logged into it
// and a running bridge, and returns the bridge base URL plus a counter of
// commands the controller received.
func newBridgeUnderTest(t *testing.T) (string, *int) {
	t.Helper()

	commands := new(int)
	token := "tok"

	mux := http.NewServeMux()
	mux.HandleFunc("/index.php", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "sess", Path: "/"})
			return
		}
		fmt.Fprintf(w, `<html><body><input id="webtoken" value=%q></body></html>`, token)
	})
	mux.HandleFunc("/isg/light.php", func(w http.ResponseWriter, r *http.Request) {
		*commands++
		if r.URL.Query().Get("webtoken") != token {
			fmt.Fprint(w, "Restricted Access")
			return
		}
		fmt.Fprint(w, r.URL.Query().Get("light"))
	})
	controller := httptest.NewServer(mux)
	t.Cleanup(controller.Close)

	client, err := isg.NewClient(isg.Config{
		Name:     "Test Light",
		Hostname: strings.TrimPrefix(controller.URL, "http://"),
		Username: "admin",
		Password: "secret",
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	server := NewServer("127.0.0.1:0", client)
	if err := server.Start(); err != nil {
		t.Fatalf("start bridge: %v", err)
	}
	t.Cleanup(func() { _ = server.Stop() })

	return "http://" + server.Addr(), commands
}

func getLight(t *testing.T, base string) lightState {
	t.Helper()

	resp, err := http.Get(base + "/api/light")
	if err != nil {
		t.Fatalf("get light: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get light status = %d", resp.StatusCode)
	}

	var state lightState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		t.Fatalf("decode light state: %v", err)
	}
	return state
}

func TestGetLightReturnsCachedStateWithoutCommand(t *testing.T) {
	base, commands := newBridgeUnderTest(t)

	state := getLight(t, base)
	if state.On {
		t.Fatalf("initial state on = true, want false")
	}
	if *commands != 0 {
		t.Fatalf("controller commands = %d, want 0 for a state read", *commands)
	}
}

func TestPutLightCommandsController(t *testing.T) {
	base, commands := newBridgeUnderTest(t)

	body := bytes.NewBufferString(`{"on":true}`)
	req, err := http.NewRequest(http.MethodPut, base+"/api/light", body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("put light: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put light status = %d", resp.StatusCode)
	}

	var state lightState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		t.Fatalf("decode light state: %v", err)
	}
	if !state.On {
		t.Fatalf("commanded state on = false, want true")
	}

	// The client has no token yet: first command is rejected, it logs in
	// and retries once. Two controller commands, not more.
	if *commands != 2 {
		t.Fatalf("controller commands = %d, want 2", *commands)
	}

	if state := getLight(t, base); !state.On {
		t.Fatalf("state after command on = false, want true")
	}
}

func TestPutLightRejectsMalformedBody(t *testing.T) {
	base, _ := newBridgeUnderTest(t)

	req, err := http.NewRequest(http.MethodPut, base+"/api/light", strings.NewReader("not json"))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("put light: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestIdentifyAndHealth(t *testing.T) {
	base, _ := newBridgeUnderTest(t)

	resp, err := http.Post(base+"/api/identify", "", nil)
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("identify status = %d, want 204", resp.StatusCode)
	}

	resp, err = http.Get(base + "/api/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d, want 200", resp.StatusCode)
	}

	var health map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health["light"] != "Test Light" {
		t.Fatalf("health light = %q, want Test Light", health["light"])
	}
}

func TestParseOnOff(t *testing.T) {
	tests := []struct {
		payload string
		want    bool
		wantErr bool
	}{
		{"on", true, false},
		{"ON", true, false},
		{"true", true, false},
		{"1", true, false},
		{"off", false, false},
		{"false", false, false},
		{"0", false, false},
		{" on\n", true, false},
		{"toggle", false, true},
		{"", false, true},
	}

	for _, tt := range tests {
		got, err := parseOnOff(tt.payload)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseOnOff(%q) expected error", tt.payload)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseOnOff(%q): %v", tt.payload, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseOnOff(%q) = %v, want %v", tt.payload, got, tt.want)
		}
	}
}
