package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	adminRequest(http.MethodGet, adminURL(*baseURL, "/admin/v1/state", nil))
}

func effectsCmd(args []string) {
	fs := flag.NewFlagSet("effects", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	colliders := fs.Bool("colliders", false, "include collider bounds")
	_ = fs.Parse(args)

	q := url.Values{}
	if *colliders {
		q.Set("colliders", "1")
	}
	adminRequest(http.MethodGet, adminURL(*baseURL, "/admin/v1/effects", q))
}

func clearCmd(args []string) {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	owner := fs.String("owner", "", "only this owner's effects")
	kind := fs.String("kind", "", "only this kind")
	_ = fs.Parse(args)

	q := url.Values{}
	if s := strings.TrimSpace(*owner); s != "" {
		q.Set("owner", s)
	}
	if s := strings.TrimSpace(*kind); s != "" {
		q.Set("kind", s)
	}
	adminRequest(http.MethodDelete, adminURL(*baseURL, "/admin/v1/effects", q))
}

func adminURL(base, path string, q url.Values) string {
	u := strings.TrimRight(strings.TrimSpace(base), "/") + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func adminRequest(method, u string) {
	req, _ := http.NewRequest(method, u, nil)
	cl := &http.Client{Timeout: 10 * time.Second}
	resp, err := cl.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(string(b))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}
