package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"shopscout.ai/internal/geom"
)

func stateCmd(ctx context.Context, out io.Writer, args []string) error {
	return adminRequest(ctx, out, "state", http.MethodGet, "/admin/v1/state", args)
}

func reloadCmd(ctx context.Context, out io.Writer, args []string) error {
	return adminRequest(ctx, out, "reload", http.MethodPost, "/admin/v1/reload", args)
}

// chunkCmd marks the chunk holding -pos loaded or unloaded on a running
// server, along with the shops standing in it.
func chunkCmd(ctx context.Context, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("chunk", flag.ContinueOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	world := fs.String("world", "", "world name")
	at := fs.String("pos", "", "any block x,y,z inside the chunk")
	unload := fs.Bool("unload", false, "unload instead of load")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required("world", *world); err != nil {
		return err
	}
	p, err := parsePos(*at)
	if err != nil {
		return fmt.Errorf("bad -pos: %w", err)
	}
	cx, cz := geom.ChunkOf(p.X, p.Z)
	q := url.Values{}
	q.Set("world", *world)
	q.Set("cx", strconv.Itoa(cx))
	q.Set("cz", strconv.Itoa(cz))
	q.Set("loaded", strconv.FormatBool(!*unload))
	b, err := callAdmin(ctx, *baseURL, http.MethodPost, "/admin/v1/chunks?"+q.Encode())
	if len(b) > 0 {
		fmt.Fprintln(out, string(b))
	}
	return err
}

func adminRequest(ctx context.Context, out io.Writer, name, method, path string, args []string) error {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	if err := fs.Parse(args); err != nil {
		return err
	}

	b, err := callAdmin(ctx, *baseURL, method, path)
	if len(b) > 0 {
		fmt.Fprintln(out, string(b))
	}
	return err
}

// notifyWarp tells a running server that warp name was created or removed so
// its directory follows the store without a full refresh.
func notifyWarp(ctx context.Context, baseURL, event, name string) error {
	_, err := callAdmin(ctx, baseURL, http.MethodPost, "/admin/v1/warps/"+event+"?name="+url.QueryEscape(name))
	return err
}

func callAdmin(ctx context.Context, baseURL, method, path string) ([]byte, error) {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/") + path
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, err
	}
	cl := &http.Client{Timeout: 10 * time.Second}
	resp, err := cl.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return b, fmt.Errorf("status %s", resp.Status)
	}
	return b, nil
}
