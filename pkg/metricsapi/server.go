// Package metricsapi exposes a pipeline's node metrics over HTTP: a
// JSON snapshot, an HTML dashboard, and the standard Prometheus
// exposition format, the optional "metrics web server" collaborator
// spec.md §4.I lists as out of the core's scope but names a contract
// for. Routing follows the gorilla/mux style used across the pack
// (TheEntropyCollective-noisefs's webui command), not the teacher's
// own pkg/api (a gRPC service with no HTTP surface to imitate here).
package metricsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/cuemby/flowrunner/pkg/log"
	"github.com/cuemby/flowrunner/pkg/node"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NodeSnapshot is the JSON shape of one node's metrics, per spec.md
// §4.I: name, cumulative input/output counts, mean/stddev duration in
// milliseconds, and current status.
type NodeSnapshot struct {
	Name   string  `json:"name"`
	Status string  `json:"status"`
	Input  int64   `json:"input"`
	Output int64   `json:"output"`
	MeanMS float64 `json:"mean_ms"`
	StdMS  float64 `json:"std_ms"`
	Now    string  `json:"now"`
}

// NodeLister is satisfied by *pipeline.Pipeline; it is an interface
// here so this package never imports pkg/pipeline (cmd/flowctl, not
// pkg/pipeline, starts this server).
type NodeLister interface {
	Nodes() []*node.Node
}

// Server serves a pipeline's metrics snapshot over HTTP.
type Server struct {
	lister NodeLister
	http   *http.Server
	router *mux.Router
}

// New builds a Server bound to addr, routing requests against lister.
func New(addr string, lister NodeLister) *Server {
	r := mux.NewRouter()
	s := &Server{
		lister: lister,
		router: r,
		http:   &http.Server{Addr: addr, Handler: r},
	}

	r.HandleFunc("/", s.handleDashboard).Methods(http.MethodGet)
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/nodes", s.handleNodes).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return s
}

// Start begins serving in a goroutine and returns immediately; errors
// other than a graceful Stop are logged, not returned, matching the
// "detached task" framing of spec.md §4.F step 7.
func (s *Server) Start() {
	lis, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		log.WithComponent("metricsapi").Error().Err(err).Str("addr", s.http.Addr).Msg("metrics server failed to listen")
		return
	}
	go func() {
		if err := s.http.Serve(lis); err != nil && err != http.ErrServerClosed {
			log.WithComponent("metricsapi").Error().Err(err).Msg("metrics server stopped")
		}
	}()
	log.WithComponent("metricsapi").Info().Str("addr", s.http.Addr).Msg("metrics server listening")
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) snapshot() []NodeSnapshot {
	nodes := s.lister.Nodes()
	out := make([]NodeSnapshot, 0, len(nodes))
	for _, n := range nodes {
		input, output := n.Metrics().Totals()
		out = append(out, NodeSnapshot{
			Name:   n.Name(),
			Status: n.Status().String(),
			Input:  input,
			Output: output,
			MeanMS: n.Metrics().MeanDuration(true),
			StdMS:  n.Metrics().StdDuration(true),
			Now:    nowString(),
		})
	}
	return out
}

func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.snapshot()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTmpl.Execute(w, s.snapshot()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

var dashboardTmpl = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html><head><title>flowrunner</title></head>
<body>
<h1>Pipeline nodes</h1>
<table border="1" cellpadding="4">
<tr><th>Name</th><th>Status</th><th>Input</th><th>Output</th><th>Mean (ms)</th><th>Std (ms)</th></tr>
{{range .}}<tr><td>{{.Name}}</td><td>{{.Status}}</td><td>{{.Input}}</td><td>{{.Output}}</td><td>{{printf "%.2f" .MeanMS}}</td><td>{{printf "%.2f" .StdMS}}</td></tr>
{{end}}</table>
</body></html>
`))

func nowString() string {
	return time.Now().Format("2006-01-02T15:04:05Z07:00")
}
