package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"landmass.dev/internal/sim/params"
	"landmass.dev/internal/sim/tuning"
)

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	u := strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/v1/bootstrap"
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(u)
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

// paramsCmd pushes a parameter file to a running server.
func paramsCmd(args []string) {
	fs := flag.NewFlagSet("params", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	paramsPath := fs.String("file", "./configs/terrain.yaml", "parameter file to apply")
	_ = fs.Parse(args)

	p, err := tuning.Load(*paramsPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load params:", err)
		os.Exit(1)
	}
	body, err := paramsBody(p)
	if err != nil {
		fmt.Fprintln(os.Stderr, "encode:", err)
		os.Exit(1)
	}

	u := strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/v1/params"
	req, _ := http.NewRequest(http.MethodPut, u, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
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

func paramsBody(p params.Parameters) ([]byte, error) {
	return json.Marshal(params.ToDocument(p))
}
