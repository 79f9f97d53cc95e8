// Package main probes the local server's readiness endpoint for container
// health checks. It exits 0 only when /readyz answers 200 with status
// "ready"; otherwise the reason is printed to stderr.
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/YulsKumanikina/eco-ekb-bot/internal/config"
)

const defaultPort = "10000"

type readiness struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func main() {
	port := os.Getenv(config.EnvPort)
	if port == "" {
		port = defaultPort
	}
	client := &http.Client{Timeout: 8 * time.Second}
	if err := probe(client, fmt.Sprintf("http://localhost:%s/readyz", port)); err != nil {
		fmt.Fprintln(os.Stderr, "unhealthy:", err)
		os.Exit(1)
	}
}

func probe(client *http.Client, url string) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	var body readiness
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("status %d: decode body: %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || body.Status != "ready" {
		return fmt.Errorf("status %d: %s %s", resp.StatusCode, body.Status, body.Reason)
	}
	return nil
}
