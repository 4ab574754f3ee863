package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"kmeansviz/internal/algorithm"
	"kmeansviz/internal/client"
	"kmeansviz/internal/config"
	"kmeansviz/internal/kmeans"
	"kmeansviz/internal/session"
)

// newTestServer wires the operator surface to an in-process algorithm service.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	engineCfg := kmeans.DefaultConfig()
	engineCfg.Seed = 5
	engineCfg.DatasetSize = 30
	algo := algorithm.New(algorithm.NewState(kmeans.NewEngine(engineCfg)), config.Algorithm{Host: "127.0.0.1", Port: 3000})
	algoTS := httptest.NewServer(algo.Router())
	t.Cleanup(algoTS.Close)

	ctrl := session.New(client.New(algoTS.URL, 5*time.Second))
	srv := New(ctrl, config.Server{Host: "127.0.0.1", Port: 8080}, config.UI{
		DefaultClusters: 3,
		DefaultMethod:   "random",
		Methods:         []string{"random", "kmeans++", "manual"},
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func htmxPost(t *testing.T, ts *httptest.Server, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.URL+path, strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request %s failed: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func jsonPost(t *testing.T, ts *httptest.Server, path string, body interface{}, out interface{}) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	resp, err := http.Post(ts.URL+path, "application/json", &buf)
	if err != nil {
		t.Fatalf("Request %s failed: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("Failed to decode %s response: %v", path, err)
		}
	}
	return resp.StatusCode
}

func getSnapshot(t *testing.T, ts *httptest.Server) map[string]interface{} {
	t.Helper()
	resp, err := http.Get(ts.URL + "/api/session/")
	if err != nil {
		t.Fatalf("GET /api/session failed: %v", err)
	}
	defer resp.Body.Close()
	var snap map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	return snap
}

func TestIndexPage(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET / failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	page := string(body)
	for _, want := range []string{`id="controls"`, `src="/scene"`, "kmeans++", "New dataset"} {
		if !strings.Contains(page, want) {
			t.Errorf("Expected index page to contain %q", want)
		}
	}
	if !strings.Contains(page, `hx-post="/api/session/step" disabled`) {
		t.Error("Expected step button disabled before initialization")
	}
}

func TestManualFlowOverHTMX(t *testing.T) {
	ts := newTestServer(t)

	resp, body := htmxPost(t, ts, "/api/session/initialize", url.Values{
		"num_clusters": {"2"},
		"init_method":  {"manual"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	trigger := resp.Header.Get("HX-Trigger")
	if !strings.Contains(trigger, eventSceneChanged) || !strings.Contains(trigger, session.NoticePlaceCentroids) {
		t.Errorf("Expected sceneChanged and placement notice, got %q", trigger)
	}
	if !strings.Contains(body, "Placing centroids") {
		t.Error("Expected controls partial to show placement mode")
	}

	var place ActionResponse
	jsonPost(t, ts, "/api/session/centroids", PlaceRequest{X: 0.1, Y: 0.2}, &place)
	if !place.Changed || place.Notice != "" {
		t.Errorf("Expected first click accepted silently, got %+v", place)
	}
	jsonPost(t, ts, "/api/session/centroids", PlaceRequest{X: -0.5, Y: 0.5}, &place)
	if place.Notice != session.NoticePlacementComplete {
		t.Errorf("Expected completion notice, got %q", place.Notice)
	}
	jsonPost(t, ts, "/api/session/centroids", PlaceRequest{X: 9, Y: 9}, &place)
	if place.Changed {
		t.Error("Expected extra click to be ignored")
	}
	if len(place.Snapshot.Centroids) != 2 {
		t.Errorf("Expected 2 centroids, got %d", len(place.Snapshot.Centroids))
	}

	resp, _ = htmxPost(t, ts, "/api/session/step", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	snap := getSnapshot(t, ts)
	if clusters, _ := snap["clusters"].([]interface{}); len(clusters) != 2 {
		t.Errorf("Expected 2 clusters after step, got %v", snap["clusters"])
	}
}

func TestStepDisabledIsSilent(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := htmxPost(t, ts, "/api/session/step", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if trigger := resp.Header.Get("HX-Trigger"); trigger != "" {
		t.Errorf("Expected no events for a disabled control, got %q", trigger)
	}

	var out ActionResponse
	if status := jsonPost(t, ts, "/api/session/step", nil, &out); status != http.StatusConflict {
		t.Errorf("Expected 409 for JSON client, got %d", status)
	}
}

func TestConvergeOverJSON(t *testing.T) {
	ts := newTestServer(t)

	var out ActionResponse
	if status := jsonPost(t, ts, "/api/session/initialize", map[string]interface{}{"num_clusters": 3, "init_method": "kmeans++"}, &out); status != http.StatusOK {
		t.Fatalf("Expected 200, got %d (%s)", status, out.Error)
	}
	if out.Snapshot.Mode != session.ReadyToIterate {
		t.Errorf("Expected ReadyToIterate, got %s", out.Snapshot.Mode)
	}

	if status := jsonPost(t, ts, "/api/session/converge", nil, &out); status != http.StatusOK {
		t.Fatalf("Expected 200, got %d (%s)", status, out.Error)
	}
	if out.Notice != session.NoticeConverged {
		t.Errorf("Expected converged notice, got %q", out.Notice)
	}
	if out.Snapshot.Controls.Step || out.Snapshot.Controls.Converge {
		t.Error("Expected iteration controls disabled after convergence")
	}

	if status := jsonPost(t, ts, "/api/session/reset", nil, &out); status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}
	if out.Snapshot.Mode != session.AwaitingInitialization || len(out.Snapshot.Dataset) != 30 {
		t.Errorf("Expected reset to keep 30 points, got mode %s with %d", out.Snapshot.Mode, len(out.Snapshot.Dataset))
	}
}

func TestInitializeServiceErrorSurfaced(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := htmxPost(t, ts, "/api/session/initialize", url.Values{
		"num_clusters": {"500"},
		"init_method":  {"random"},
	})
	trigger := resp.Header.Get("HX-Trigger")
	if !strings.Contains(trigger, eventNotify) || !strings.Contains(trigger, `"level":"error"`) {
		t.Errorf("Expected error notification, got %q", trigger)
	}
	if strings.Contains(trigger, eventSceneChanged) {
		t.Error("Expected no scene change on failure")
	}
}

func TestScenePage(t *testing.T) {
	ts := newTestServer(t)
	jsonPost(t, ts, "/api/session/initialize", map[string]interface{}{"num_clusters": 2, "init_method": "random"}, nil)

	resp, err := http.Get(ts.URL + "/scene")
	if err != nil {
		t.Fatalf("GET /scene failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	page := string(body)
	if !strings.Contains(page, "Centroids") || !strings.Contains(page, "/api/session/centroids") {
		t.Error("Expected scene page with centroid series and click endpoint")
	}
	if resp.Header.Get("Cache-Control") == "" {
		t.Error("Expected scene page not to be cached")
	}

	resp2, err := http.Get(ts.URL + "/api/scene")
	if err != nil {
		t.Fatalf("GET /api/scene failed: %v", err)
	}
	defer resp2.Body.Close()
	var scene struct {
		Series []struct {
			Name string `json:"name"`
		} `json:"series"`
	}
	if err := json.NewDecoder(resp2.Body).Decode(&scene); err != nil {
		t.Fatalf("Failed to decode scene: %v", err)
	}
	if len(scene.Series) != 2 {
		t.Errorf("Expected 2 series before any step, got %d", len(scene.Series))
	}
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	var health HealthResponse
	_ = json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if health.Status != "ok" || health.Checks["templates"] != "ok" {
		t.Errorf("Unexpected health: %+v", health)
	}

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "kmeansviz_http_requests_total") {
		t.Error("Expected operator metrics to be exported")
	}
}
