package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/websocket"

	"github.com/recera/hah/cmd/hah/internal/compiler"
	"github.com/recera/hah/cmd/hah/internal/watch"
	"github.com/recera/hah/pkg/hah"
)

func newTestServer(t *testing.T) (*devServer, *httptest.Server, string) {
	t.Helper()
	dir := t.TempDir()
	for name, body := range map[string]string{
		"index.hah":        "h1 Home\n!parts/nav.hah\n",
		"parts/nav.hah":    "ul,li Nav\n",
		"broken.hah":       ":\n",
		"parts/readme.txt": "ignored",
	} {
		path := filepath.Join(dir, name)
		os.MkdirAll(filepath.Dir(path), 0755)
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}

	c := compiler.New(compiler.Options{Config: hah.Config{Newline: "\n"}})
	s := newDevServer(dir, c)
	ts := httptest.NewServer(s.routes())
	t.Cleanup(ts.Close)

	return s, ts, dir
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestDevServer_Serve(t *testing.T) {
	_, ts, _ := newTestServer(t)

	tests := []struct {
		path   string
		status int
		body   string
	}{
		{path: "/", status: http.StatusOK, body: "/broken.hah\n/index.hah\n/parts/nav.hah\n"},
		{path: "/parts/nav.hah", status: http.StatusOK, body: "<ul><li>Nav</li></ul>"},
		{path: "/missing.hah", status: http.StatusNotFound},
		{path: "/parts/readme.txt", status: http.StatusNotFound},
		{path: "/broken.hah", status: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			status, body := get(t, ts.URL+tt.path)
			if status != tt.status {
				t.Errorf("status = %d, want %d (%s)", status, tt.status, body)
			}
			if tt.body != "" && body != tt.body {
				t.Errorf("body = %q, want %q", body, tt.body)
			}
		})
	}
}

func TestDevServer_Reload(t *testing.T) {
	s, ts, dir := newTestServer(t)

	// compile once so the compiler knows index.hah imports nav.hah
	if _, err := s.compiler.ProcessDirectory(dir); err == nil {
		t.Fatal("expected broken.hah to fail")
	}

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + reloadPath
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() failed: %v", err)
	}
	defer conn.Close()

	conn.WriteJSON(map[string]string{"type": "HELLO"})
	var ack map[string]interface{}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&ack); err != nil || ack["type"] != "ACK" {
		t.Fatalf("handshake failed: %v %v", ack, err)
	}

	nav := filepath.Join(dir, "parts", "nav.hah")
	s.handleChanges([]watch.Change{{Path: nav, Op: fsnotify.Write}})

	var msg map[string]interface{}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() failed: %v", err)
	}
	if msg["type"] != "RELOAD" {
		t.Fatalf("message type = %v, want RELOAD", msg["type"])
	}
	files, _ := msg["files"].([]interface{})
	if len(files) != 2 {
		t.Errorf("reloaded files = %v, want nav.hah and index.hah", files)
	}

	s.handleChanges([]watch.Change{{Path: filepath.Join(dir, "broken.hah"), Op: fsnotify.Write}})
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() failed: %v", err)
	}
	if msg["type"] != "ERROR" || !strings.Contains(msg["message"].(string), "dangling") {
		t.Errorf("unexpected error message: %v", msg)
	}
}
