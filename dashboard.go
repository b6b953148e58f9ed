package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/udaykr117/jipctl/cluster"
)

type Server struct {
	port int
}

func NewServer(port int) *Server {
	return &Server{port: port}
}

// Routes builds the read-only dashboard router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/", s.handleDashboard)
	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Get("/jobs", s.handleJobCounts)
		r.Get("/jobs/{id}", s.handleJob)
		r.Get("/events", s.handleEvents)
		r.Get("/clusters", s.handleClusters)
	})
	return r
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	log.Printf("Dashboard server starting on http://localhost%s", addr)
	return http.ListenAndServe(addr, s.Routes())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[dashboard] Error encoding response: %v", err)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := GetSubmissionStats()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

func (s *Server) handleJobCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := GetJobCountsByState()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	result := make(map[string]int)
	for _, state := range cluster.States {
		result[string(state)] = counts[state]
	}
	writeJSON(w, result)
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}
	job, err := GetJobByID(id)
	if errors.Is(err, ErrJobNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, job)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}
	events, err := GetRecentEvents(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []JobEvent{}
	}
	writeJSON(w, events)
}

func (s *Server) handleClusters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, clusterAvailability())
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, dashboardHTML)
}

const dashboardHTML = `<!DOCTYPE html>
<html>
<head>
	<title>jipctl Dashboard</title>
	<style>
	body { font-family: 'Segoe UI', Roboto, sans-serif; margin: 0; padding: 20px; background-color: #0d1117; color: #e6edf3; }
	.container { max-width: 1200px; margin: 0 auto; background: #161b22; padding: 30px; border-radius: 10px; }
	h1, h2 { color: #58a6ff; }
	h1 { border-bottom: 2px solid #30363d; padding-bottom: 10px; }
	.stats-grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(200px, 1fr)); gap: 20px; margin: 30px 0; }
	.stat-card { background: #21262d; padding: 15px 20px; border-radius: 8px; border: 1px solid #30363d; }
	.stat-label { font-size: 12px; color: #8b949e; text-transform: uppercase; }
	.stat-value { font-size: 26px; font-weight: bold; margin-top: 8px; }
	table { width: 100%; border-collapse: collapse; margin-top: 15px; border: 1px solid #30363d; }
	th, td { padding: 10px; text-align: left; border-bottom: 1px solid #30363d; }
	th { background-color: #21262d; color: #58a6ff; text-transform: uppercase; font-size: 13px; }
	.state-pending { color: #f39c12; } .state-running { color: #1f6feb; }
	.state-completed { color: #2ecc71; } .state-failed { color: #e74c3c; }
	.state-cancelled, .state-unknown { color: #95a5a6; }
	.success { color: #2ecc71; } .failure { color: #e74c3c; }
	.refresh-info { text-align: right; color: #8b949e; font-size: 12px; margin-top: 15px; }
	</style>
</head>
<body>
	<div class="container">
		<h1>jipctl Dashboard</h1>

		<div class="stats-grid">
			<div class="stat-card"><div class="stat-label">Submitted</div><div class="stat-value success" id="total-submitted">-</div></div>
			<div class="stat-card"><div class="stat-label">Rejected</div><div class="stat-value failure" id="total-rejected">-</div></div>
			<div class="stat-card"><div class="stat-label">Cancelled</div><div class="stat-value" id="total-cancelled">-</div></div>
			<div class="stat-card"><div class="stat-label">Cluster Errors</div><div class="stat-value failure" id="cluster-errors">-</div></div>
			<div class="stat-card"><div class="stat-label">Submit Success</div><div class="stat-value" id="success-rate">-</div></div>
			<div class="stat-card"><div class="stat-label">Avg Submit</div><div class="stat-value" id="avg-submit">-</div></div>
		</div>

		<h2>Job States</h2>
		<table><thead><tr><th>State</th><th>Count</th></tr></thead><tbody id="states-body"></tbody></table>

		<h2>Recent Scheduler Calls</h2>
		<table>
			<thead><tr><th>Job</th><th>Name</th><th>Action</th><th>Cluster</th><th>Started</th><th>Duration</th><th>Result</th></tr></thead>
			<tbody id="events-body"></tbody>
		</table>

		<div class="refresh-info">Auto-updating every 5 seconds</div>
	</div>

	<script>
		function text(s) { const d = document.createElement('div'); d.textContent = s; return d.innerHTML; }

		function updateStats() {
			fetch('/api/stats').then(r => r.json()).then(data => {
				document.getElementById('total-submitted').textContent = data.total_submitted || 0;
				document.getElementById('total-rejected').textContent = data.total_rejected || 0;
				document.getElementById('total-cancelled').textContent = data.total_cancelled || 0;
				document.getElementById('cluster-errors').textContent = data.cluster_errors || 0;
				document.getElementById('success-rate').textContent = (data.submit_success_rate || 0).toFixed(1) + '%';
				document.getElementById('avg-submit').textContent = (data.avg_submit_ms || 0).toFixed(0) + 'ms';
			});
		}

		function updateStates() {
			fetch('/api/jobs').then(r => r.json()).then(data => {
				const tbody = document.getElementById('states-body');
				tbody.innerHTML = '';
				Object.keys(data).forEach(state => {
					const row = document.createElement('tr');
					row.innerHTML = '<td class="state-' + state + '">' + state + '</td><td>' + data[state] + '</td>';
					tbody.appendChild(row);
				});
			});
		}

		function updateEvents() {
			fetch('/api/events').then(r => r.json()).then(data => {
				const tbody = document.getElementById('events-body');
				tbody.innerHTML = '';
				data.forEach(ev => {
					const row = document.createElement('tr');
					const result = ev.success ? '<span class="success">ok</span>' : '<span class="failure">' + text(ev.error) + '</span>';
					row.innerHTML = '<td>' + ev.job_id + '</td><td>' + text(ev.name) + '</td><td>' + ev.action + '</td><td>' + ev.cluster +
						'</td><td>' + new Date(ev.started_at).toLocaleString() + '</td><td>' + ev.duration_ms + 'ms</td><td>' + result + '</td>';
					tbody.appendChild(row);
				});
			});
		}

		function updateAll() { updateStats(); updateStates(); updateEvents(); }
		updateAll();
		setInterval(updateAll, 5000);
	</script>
</body>
</html>`
