package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"shopscout.ai/internal/geom"
)

var errUnknownWorld = errors.New("unknown world")

type chunkState struct {
	World  string `json:"world"`
	CX     int    `json:"cx"`
	CZ     int    `json:"cz"`
	Loaded bool   `json:"loaded"`
	Digest string `json:"digest,omitempty"`
	Shops  int    `json:"shops"`
}

// setChunkLoaded flips one chunk in the block world and the loaded flag of
// every shop standing in it, so loaded_shops_only and the teleport resolver
// agree on what the server has in memory.
func (rt *serverRuntime) setChunkLoaded(ctx context.Context, world string, cx, cz int, loaded bool) (chunkState, error) {
	st := chunkState{World: world, CX: cx, CZ: cz}
	err := rt.loop.Do(ctx, func() error {
		w, ok := rt.blocks.Get(world)
		if !ok {
			return errUnknownWorld
		}
		if loaded {
			w.LoadChunk(cx, cz)
		} else {
			w.UnloadChunk(cx, cz)
		}
		st.Loaded = w.ChunkLoaded(cx, cz)
		if d, ok := w.Digest(cx, cz); ok {
			st.Digest = hex.EncodeToString(d[:])
		}
		return nil
	})
	if err != nil {
		return st, err
	}

	shops, err := rt.db.ListShops(ctx, false)
	if err != nil {
		return st, fmt.Errorf("list shops: %w", err)
	}
	for _, sh := range shops {
		if sh.Location.World != world {
			continue
		}
		b := sh.Location.Block()
		if scx, scz := geom.ChunkOf(b.X, b.Z); scx != cx || scz != cz {
			continue
		}
		if err := rt.db.SetLoaded(ctx, sh.ID, loaded); err != nil {
			return st, fmt.Errorf("shop %d: %w", sh.ID, err)
		}
		st.Shops++
	}
	rt.log.Debug("chunk state", "world", world, "cx", cx, "cz", cz, "loaded", loaded, "shops", st.Shops)
	return st, nil
}

func (rt *serverRuntime) handleChunk(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}
	q := r.URL.Query()
	world := strings.TrimSpace(q.Get("world"))
	cx, errX := strconv.Atoi(q.Get("cx"))
	cz, errZ := strconv.Atoi(q.Get("cz"))
	loaded, errL := strconv.ParseBool(q.Get("loaded"))
	if world == "" || errX != nil || errZ != nil || errL != nil {
		writeJSON(rw, http.StatusBadRequest, map[string]any{"ok": false, "error": "need world, cx, cz and loaded"})
		return
	}
	st, err := rt.setChunkLoaded(r.Context(), world, cx, cz, loaded)
	switch {
	case errors.Is(err, errUnknownWorld):
		writeJSON(rw, http.StatusNotFound, map[string]any{"ok": false, "error": err.Error()})
	case err != nil:
		writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
	default:
		writeJSON(rw, http.StatusOK, st)
	}
}
