package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"strings"
	"time"

	"github.com/sugawarayuuta/sonnet"

	"shopscout.ai/internal/persistence/shopdb"
)

type serverStats struct {
	Scans        int64          `json:"scans"`
	Warps        int            `json:"warps"`
	LoadedChunks map[string]int `json:"loaded_chunks"`
	Store        shopdb.Stats   `json:"store"`
}

func (rt *serverRuntime) stats(ctx context.Context) (serverStats, error) {
	st := serverStats{
		Scans:        rt.engine.Scans(),
		Warps:        len(rt.warps.Warps()),
		LoadedChunks: map[string]int{},
		Store:        rt.db.Stats(),
	}
	err := rt.loop.Do(ctx, func() error {
		for _, name := range rt.blocks.Names() {
			w, _ := rt.blocks.Get(name)
			st.LoadedChunks[name] = len(w.LoadedChunkKeys())
		}
		return nil
	})
	return st, err
}

func buildMux(rt *serverRuntime) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		st, err := rt.stats(ctx)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusServiceUnavailable)
			return
		}
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP shopscout_search_scans_total Registry scans performed on cache misses.\n")
		fmt.Fprintf(rw, "# TYPE shopscout_search_scans_total counter\n")
		fmt.Fprintf(rw, "shopscout_search_scans_total %d\n", st.Scans)

		fmt.Fprintf(rw, "# HELP shopscout_warps Warps known to the directory.\n")
		fmt.Fprintf(rw, "# TYPE shopscout_warps gauge\n")
		fmt.Fprintf(rw, "shopscout_warps %d\n", st.Warps)

		fmt.Fprintf(rw, "# HELP shopscout_loaded_chunks Loaded chunk count.\n")
		fmt.Fprintf(rw, "# TYPE shopscout_loaded_chunks gauge\n")
		for _, name := range rt.blocks.Names() {
			fmt.Fprintf(rw, "shopscout_loaded_chunks{world=%q} %d\n", name, st.LoadedChunks[name])
		}

		fmt.Fprintf(rw, "# HELP shopscout_audit_queue_depth Audit writer backlog depth.\n")
		fmt.Fprintf(rw, "# TYPE shopscout_audit_queue_depth gauge\n")
		fmt.Fprintf(rw, "shopscout_audit_queue_depth %d\n", st.Store.QueueDepth)

		fmt.Fprintf(rw, "# HELP shopscout_audit_dropped_total Audit rows dropped because the queue was full.\n")
		fmt.Fprintf(rw, "# TYPE shopscout_audit_dropped_total counter\n")
		fmt.Fprintf(rw, "shopscout_audit_dropped_total{kind=%q} %d\n", "search", st.Store.DropSearchTotal)
		fmt.Fprintf(rw, "shopscout_audit_dropped_total{kind=%q} %d\n", "teleport", st.Store.DropTeleportTotal)

		fmt.Fprintf(rw, "# HELP shopscout_audit_write_errors_total Failed audit batch writes.\n")
		fmt.Fprintf(rw, "# TYPE shopscout_audit_write_errors_total counter\n")
		fmt.Fprintf(rw, "shopscout_audit_write_errors_total %d\n", st.Store.WriteErrorsTotal)
	})

	if envBool("SHOPSCOUT_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			st, err := rt.stats(r.Context())
			if err != nil {
				http.Error(rw, err.Error(), http.StatusServiceUnavailable)
				return
			}
			writeJSON(rw, http.StatusOK, st)
		})
		mux.HandleFunc("/admin/v1/reload", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			cur, err := rt.finder.Reload(r.Context(), rt.cfg.SettingsPath)
			if err != nil {
				writeJSON(rw, http.StatusUnprocessableEntity, map[string]any{"ok": false, "error": err.Error()})
				return
			}
			writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "cache_ttl": cur.Search.CacheTTL.String(), "sorting_method": cur.Search.SortingMethod})
		})
		mux.HandleFunc("/admin/v1/warps/refresh", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			if err := rt.warps.Refresh(r.Context()); err != nil {
				writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
				return
			}
			writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "warps": len(rt.warps.Warps())})
		})
		mux.HandleFunc("/admin/v1/chunks", rt.handleChunk)
		mux.HandleFunc("/admin/v1/warps/create", func(rw http.ResponseWriter, r *http.Request) {
			name, ok := warpRequest(rw, r)
			if !ok {
				return
			}
			ws, err := rt.db.ListWarps(r.Context())
			if err != nil {
				writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
				return
			}
			for _, w := range ws {
				if w.Name == name {
					rt.warps.OnCreate(w)
					writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "warps": len(rt.warps.Warps())})
					return
				}
			}
			writeJSON(rw, http.StatusNotFound, map[string]any{"ok": false, "error": "warp not in store: " + name})
		})
		mux.HandleFunc("/admin/v1/warps/remove", func(rw http.ResponseWriter, r *http.Request) {
			name, ok := warpRequest(rw, r)
			if !ok {
				return
			}
			rt.warps.OnRemove(name)
			writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "warps": len(rt.warps.Warps())})
		})
	} else {
		rt.log.Info("admin endpoints disabled (SHOPSCOUT_ENABLE_ADMIN_HTTP=false)")
	}
	if envBool("SHOPSCOUT_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", rt.ws.Handler())
	return mux
}

// warpRequest checks a loopback POST carrying ?name= and returns the name.
func warpRequest(rw http.ResponseWriter, r *http.Request) (string, bool) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return "", false
	}
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return "", false
	}
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		writeJSON(rw, http.StatusBadRequest, map[string]any{"ok": false, "error": "missing name"})
		return "", false
	}
	return name, true
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	b, err := sonnet.Marshal(v)
	if err != nil {
		http.Error(rw, err.Error(), http.StatusInternalServerError)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_, _ = rw.Write(b)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
