package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"airbrakes-ng/internal/servo"
)

// Handler serves the ground-station API: runtime status plus the flight log
// inventory. srv may be nil when no servo service is running.
func Handler(status *Status, srv *servo.Service, logDir string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		type statusResponse struct {
			StatusSnapshot
			Servo servo.Snapshot `json:"servo"`
		}
		resp := statusResponse{
			StatusSnapshot: status.Snapshot(time.Now().UTC()),
			Servo:          srv.Snapshot(),
		}
		writeJSON(w, resp)
	})

	mux.HandleFunc("/api/logs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		logs, err := listFlightLogs(logDir)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"logs": logs})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}

// FlightLogInfo describes one recorded flight log.
type FlightLogInfo struct {
	Name        string `json:"name"`
	SizeBytes   int64  `json:"size_bytes"`
	ModifiedUTC string `json:"modified_utc"`
}

func listFlightLogs(dir string) ([]FlightLogInfo, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return []FlightLogInfo{}, nil
	}
	if err != nil {
		return nil, err
	}

	out := make([]FlightLogInfo, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "log_") || filepath.Ext(name) != ".csv" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, FlightLogInfo{
			Name:        name,
			SizeBytes:   info.Size(),
			ModifiedUTC: info.ModTime().UTC().Format(time.RFC3339),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Serve runs the API server until ctx is canceled, then shuts it down with a
// short grace period.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
