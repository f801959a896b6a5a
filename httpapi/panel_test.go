package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/hazyhaar/pagesync/translate"
)

// upperTranslator marks its output so tests can tell source from
// translation.
type upperTranslator struct{}

func (upperTranslator) Translate(_ context.Context, texts []string, _, _ string, onProgress translate.Progress) ([]string, error) {
	out := make([]string, len(texts))
	for i, s := range texts {
		out[i] = "<" + strings.ToUpper(s) + ">"
	}
	if onProgress != nil {
		onProgress(len(out), len(texts))
	}
	return out, nil
}

func doReq(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func openTestTab(t *testing.T, base string) string {
	t.Helper()
	resp := postJSON(t, base+"/api/tabs", openTabRequest{HTML: pageSrc})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("open tab: status %d", resp.StatusCode)
	}
	var info tabInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode tab: %v", err)
	}
	return base + "/api/tabs/" + strconv.Itoa(info.ID) + "/panel"
}

func TestPanelSessionFlow(t *testing.T) {
	srv, _, _ := testServerWith(t, upperTranslator{})
	panelURL := openTestTab(t, srv.URL)

	// Identical source and target is rejected, so pick a distinct target
	// before translating.
	put := doReq(t, http.MethodPut, srv.URL+"/api/settings", map[string]string{"target_language": "de"})
	put.Body.Close()
	if put.StatusCode != http.StatusOK {
		t.Fatalf("put settings: status %d", put.StatusCode)
	}

	resp := doReq(t, http.MethodPost, panelURL, nil)
	if resp.StatusCode != http.StatusCreated {
		resp.Body.Close()
		t.Fatalf("open panel: status %d", resp.StatusCode)
	}
	var opened struct {
		Tab     int    `json:"tab"`
		Session string `json:"session"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&opened); err != nil {
		t.Fatalf("decode open: %v", err)
	}
	resp.Body.Close()
	if opened.Session == "" {
		t.Fatal("open panel returned no session id")
	}

	ext := doReq(t, http.MethodPost, panelURL+"/extract", nil)
	defer ext.Body.Close()
	if ext.StatusCode != http.StatusOK {
		t.Fatalf("extract: status %d", ext.StatusCode)
	}
	var view panelView
	if err := json.NewDecoder(ext.Body).Decode(&view); err != nil {
		t.Fatalf("decode extract: %v", err)
	}
	if len(view.Blocks) != 1 {
		t.Fatalf("blocks after extract: got %d, want 1", len(view.Blocks))
	}
	if view.Blocks[0].Text != "Hello from the page body text." {
		t.Errorf("block text %q", view.Blocks[0].Text)
	}

	tr := doReq(t, http.MethodPost, panelURL+"/translate", nil)
	defer tr.Body.Close()
	if tr.StatusCode != http.StatusOK {
		t.Fatalf("translate: status %d", tr.StatusCode)
	}
	if err := json.NewDecoder(tr.Body).Decode(&view); err != nil {
		t.Fatalf("decode translate: %v", err)
	}
	want := "<HELLO FROM THE PAGE BODY TEXT.>"
	if view.Blocks[0].Translated != want {
		t.Errorf("translated: got %q, want %q", view.Blocks[0].Translated, want)
	}

	mode := doReq(t, http.MethodPut, panelURL+"/mode", panelModeRequest{Enabled: false})
	mode.Body.Close()
	if mode.StatusCode != http.StatusNoContent {
		t.Errorf("set mode: status %d", mode.StatusCode)
	}

	del := doReq(t, http.MethodDelete, panelURL, nil)
	del.Body.Close()
	if del.StatusCode != http.StatusNoContent {
		t.Fatalf("close panel: status %d", del.StatusCode)
	}
	gone := doReq(t, http.MethodGet, panelURL+"/blocks", nil)
	gone.Body.Close()
	if gone.StatusCode != http.StatusNotFound {
		t.Errorf("blocks after close: status %d, want 404", gone.StatusCode)
	}
}

func TestPanelRequiresTab(t *testing.T) {
	srv, _, _ := testServer(t)
	resp := doReq(t, http.MethodPost, srv.URL+"/api/tabs/99/panel", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("open panel for missing tab: status %d, want 404", resp.StatusCode)
	}
}

func TestPanelTranslateWithoutBackend(t *testing.T) {
	srv, _, _ := testServer(t)
	panelURL := openTestTab(t, srv.URL)

	resp := doReq(t, http.MethodPost, panelURL, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("open panel: status %d", resp.StatusCode)
	}
	tr := doReq(t, http.MethodPost, panelURL+"/translate", nil)
	tr.Body.Close()
	if tr.StatusCode != http.StatusNotImplemented {
		t.Errorf("translate without backend: status %d, want 501", tr.StatusCode)
	}
}

func TestPanelTranslateUnsupportedPair(t *testing.T) {
	srv, _, _ := testServerWith(t, translate.NewClient("http://localhost:1"))
	panelURL := openTestTab(t, srv.URL)

	resp := doReq(t, http.MethodPost, panelURL, nil)
	resp.Body.Close()
	ext := doReq(t, http.MethodPost, panelURL+"/extract", nil)
	ext.Body.Close()

	// The page is detected as English and the default target is English,
	// so the pair is rejected before the backend is ever contacted.
	tr := doReq(t, http.MethodPost, panelURL+"/translate", nil)
	defer tr.Body.Close()
	if tr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("translate: status %d, want 422", tr.StatusCode)
	}
	var out map[string]string
	if err := json.NewDecoder(tr.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["advice"] == "" {
		t.Errorf("expected advice for unsupported pair")
	}
}
