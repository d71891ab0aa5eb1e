package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"
)

// Executor-side helper: checks whether an order is executable at the given
// reported price and, if so, submits the execution request to a running
// autoswapd instance.

type executableInfo struct {
	OrderID    uint64 `json:"orderId"`
	CanExecute bool   `json:"canExecute"`
	Reason     string `json:"reason"`
}

type executeRequest struct {
	Caller        string `json:"caller"`
	OrderID       uint64 `json:"orderId"`
	ReportedPrice string `json:"reportedPrice"`
}

type executeResponse struct {
	Status        string   `json:"status"`
	OrderID       uint64   `json:"orderId"`
	AmountSwapped string   `json:"amountSwapped"`
	AmountOut     string   `json:"amountOut"`
	Fee           string   `json:"fee"`
	Path          []string `json:"path"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

func main() {
	var (
		apiURL  = flag.String("api", "http://localhost:8080", "autoswapd API base URL")
		orderID = flag.Uint64("order", 0, "order id to execute")
		price   = flag.String("price", "", "reported price in tinybars")
		caller  = flag.String("caller", "", "backend executor address")
		dryRun  = flag.Bool("dry-run", false, "only check executability, do not execute")
	)
	flag.Parse()

	if *orderID == 0 || *price == "" || *caller == "" {
		fmt.Fprintln(os.Stderr, "usage: execute-order -order <id> -price <tinybars> -caller <address> [-api <url>] [-dry-run]")
		os.Exit(2)
	}

	client := &http.Client{Timeout: 30 * time.Second}

	// Pre-check through the read-only gate first so a doomed execution never
	// hits the mutating endpoint.
	checkURL := fmt.Sprintf("%s/api/v1/orders/%d/executable?price=%s", *apiURL, *orderID, *price)
	resp, err := client.Get(checkURL)
	if err != nil {
		fatalf("executability check failed: %v", err)
	}
	var info executableInfo
	if err := decode(resp, &info); err != nil {
		fatalf("executability check failed: %v", err)
	}

	fmt.Printf("order %d: canExecute=%v (%s)\n", info.OrderID, info.CanExecute, info.Reason)
	if !info.CanExecute {
		os.Exit(1)
	}
	if *dryRun {
		return
	}

	body, _ := json.Marshal(executeRequest{
		Caller:        *caller,
		OrderID:       *orderID,
		ReportedPrice: *price,
	})
	resp, err = client.Post(*apiURL+"/api/v1/orders/execute", "application/json", bytes.NewReader(body))
	if err != nil {
		fatalf("execute request failed: %v", err)
	}
	var result executeResponse
	if err := decode(resp, &result); err != nil {
		fatalf("execute request failed: %v", err)
	}

	fmt.Printf("order %d executed: swapped=%s out=%s fee=%s\n",
		result.OrderID, result.AmountSwapped, result.AmountOut, result.Fee)
	for i, hop := range result.Path {
		if i > 0 {
			fmt.Print(" -> ")
		}
		fmt.Print(hop)
	}
	fmt.Println()
}

func decode(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s (HTTP %d)", apiErr.Error, apiErr.Detail, resp.StatusCode)
		}
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
