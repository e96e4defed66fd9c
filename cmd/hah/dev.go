package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/recera/hah/cmd/hah/internal/compiler"
	"github.com/recera/hah/cmd/hah/internal/watch"
)

// reloadPath is where browsers connect to be told about rebuilds.
const reloadPath = "/__hah/ws"

type devServer struct {
	root      string
	compiler  *compiler.Compiler
	wsClients map[*websocket.Conn]bool
	wsMutex   sync.Mutex
	upgrader  websocket.Upgrader
}

func newDevCommand() *cobra.Command {
	var port int
	var host string
	var dir string

	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Start the development server",
		Long: `Serves the generated source of every .hah file below --dir as plain text
and pushes reload notices to connected browsers when sources change.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDev(cmd.Context(), host, port, dir)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to run the dev server on (default from hah.yaml)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind the dev server to (default from hah.yaml)")
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Directory of sources to serve")

	return cmd
}

func runDev(ctx context.Context, host string, port int, dir string) error {
	proj, err := loadProject()
	if err != nil {
		return err
	}
	defer proj.Close()

	// CLI flags take precedence over hah.yaml
	if port != 0 {
		proj.cfg.Dev.Port = port
	}
	if host != "" {
		proj.cfg.Dev.Host = host
	}

	server := newDevServer(dir, proj.compiler())

	log.Println("🎨 Compiling sources...")
	if results, err := server.compiler.ProcessDirectory(dir); err != nil {
		log.Printf("⚠️  Compilation warning: %v\n", err)
	} else {
		log.Printf("✅ Compiled %d files", len(results))
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := watch.New(dir, watch.Options{Filter: watch.Extension(compiler.SourceExt)})
	if err != nil {
		return err
	}
	go func() {
		if err := w.Run(ctx, server.handleChanges); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("❌ Watcher stopped: %v", err)
		}
	}()

	srv := &http.Server{
		Addr:    proj.cfg.Addr(),
		Handler: server.routes(),
	}

	go func() {
		<-ctx.Done()
		log.Println("\n🛑 Shutting down dev server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("✨ Dev server running at http://%s\n", srv.Addr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newDevServer(root string, c *compiler.Compiler) *devServer {
	return &devServer{
		root:      root,
		compiler:  c,
		wsClients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow all origins in dev mode
				return true
			},
		},
	}
}

func (s *devServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(reloadPath, s.handleWebSocket)
	mux.HandleFunc("/", s.serveSource)
	return mux
}

// serveSource answers /path/page.hah with the page's generated source and
// / with the list of sources.
func (s *devServer) serveSource(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")

	if r.URL.Path == "/" {
		files, err := compiler.FindSources(s.root)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		for _, file := range files {
			rel, _ := filepath.Rel(s.root, file)
			fmt.Fprintf(w, "/%s\n", filepath.ToSlash(rel))
		}
		return
	}

	rel := filepath.FromSlash(strings.TrimPrefix(r.URL.Path, "/"))
	if !strings.HasSuffix(rel, compiler.SourceExt) || !filepath.IsLocal(rel) {
		http.NotFound(w, r)
		return
	}

	res, err := s.compiler.CompileFile(filepath.Join(s.root, rel))
	if err != nil {
		if _, statErr := os.Stat(filepath.Join(s.root, rel)); statErr != nil {
			http.NotFound(w, r)
			return
		}
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(res.Output))
}

func (s *devServer) handleChanges(changes []watch.Change) {
	files := affectedFiles(s.compiler, changes)
	if len(files) == 0 {
		return
	}

	var rebuilt []string
	for _, file := range files {
		res, err := s.compiler.ProcessFile(file)
		if err != nil {
			log.Printf("❌ Failed to compile %s: %v\n", filepath.Base(file), err)
			s.notifyClients("error", map[string]interface{}{
				"message": fmt.Sprintf("Compilation failed: %v", err),
			})
			return
		}
		log.Printf("✅ Compiled %s\n", filepath.Base(file))
		rebuilt = append(rebuilt, filepath.ToSlash(res.Source))
	}

	s.notifyClients("reload", map[string]interface{}{
		"files": rebuilt,
	})
}

func (s *devServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("WebSocket upgrade error:", err)
		return
	}
	defer conn.Close()

	s.wsMutex.Lock()
	s.wsClients[conn] = true
	s.wsMutex.Unlock()

	defer func() {
		s.wsMutex.Lock()
		delete(s.wsClients, conn)
		s.wsMutex.Unlock()
	}()

	for {
		var msg map[string]interface{}
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		switch msg["type"] {
		case "HELLO":
			s.wsMutex.Lock()
			conn.WriteJSON(map[string]interface{}{
				"type": "ACK",
			})
			s.wsMutex.Unlock()
		default:
			log.Printf("Unknown WebSocket message type: %v", msg["type"])
		}
	}
}

// notifyClients sends {"type": MSGTYPE, ...data} to every client. Writes
// are serialized because a connection allows only one writer.
func (s *devServer) notifyClients(msgType string, data map[string]interface{}) {
	s.wsMutex.Lock()
	defer s.wsMutex.Unlock()

	message := map[string]interface{}{
		"type": strings.ToUpper(msgType),
	}
	for k, v := range data {
		message[k] = v
	}

	for client := range s.wsClients {
		if err := client.WriteJSON(message); err != nil {
			log.Printf("Failed to send message to client: %v", err)
		}
	}
}
