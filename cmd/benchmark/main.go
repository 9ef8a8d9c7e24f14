// Benchmark tool for exercising Semáforo with synthetic clinical actions.
//
// Usage:
//   go run cmd/benchmark/main.go -url http://localhost:8080 -count 10000
//
// This tool:
//   1. Generates synthetic evaluation requests across known scenarios
//      (severe allergies, lethal interactions, missing auth, clean actions)
//   2. Sends each to Semáforo for evaluation
//   3. Compares the returned color with the scenario's expected color
//   4. Reports agreement, latency, and throughput
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Scenario is one synthetic request with an expected verdict.
type Scenario struct {
	Name     string
	Expected string // RED, YELLOW, GREEN
	Request  map[string]any
}

// Metrics tracks benchmark results.
type Metrics struct {
	Agreements    int64
	Disagreements int64

	RedSeen    int64
	YellowSeen int64
	GreenSeen  int64

	TotalProcessed int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Semáforo base URL")
	clinicID := flag.String("clinic", "benchmark-test", "Clinic ID for requests")
	count := flag.Int("count", 10000, "Number of requests to send")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each disagreement")
	seed := flag.Int64("seed", 42, "Scenario selection seed")
	flag.Parse()

	fmt.Println("================================================")
	fmt.Println("  SEMAFORO BENCHMARK - Synthetic Clinical Load")
	fmt.Println("================================================")
	fmt.Printf("\nURL:       %s\n", *baseURL)
	fmt.Printf("Clinic ID: %s\n", *clinicID)
	fmt.Printf("Requests:  %d\n", *count)
	fmt.Printf("Workers:   %d\n", *workers)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Semáforo not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Semáforo is running:")
		fmt.Println("  go run cmd/semaforo/main.go")
		os.Exit(1)
	}
	fmt.Println("Semáforo is healthy")

	scenarios := buildScenarios()
	fmt.Printf("Loaded %d scenarios\n", len(scenarios))

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(scenarios, *baseURL, *clinicID, *count, *workers, *seed, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// buildScenarios covers the main verdict paths: direct severe allergy,
// lethal interaction, billing without authorization, billing outliers, and
// clean actions that should stay GREEN.
func buildScenarios() []Scenario {
	return []Scenario{
		{
			Name:     "severe-allergy",
			Expected: "RED",
			Request: map[string]any{
				"patientId": "bench-allergy",
				"action":    "prescription",
				"payload":   map[string]any{"medication": "penicilina"},
				"patient": map[string]any{
					"patientId": "bench-allergy",
					"age":       45,
					"allergies": []map[string]any{
						{"allergen": "penicilina", "severity": "SEVERE", "type": "MEDICATION"},
					},
				},
			},
		},
		{
			Name:     "lethal-interaction",
			Expected: "RED",
			Request: map[string]any{
				"patientId": "bench-maoi",
				"action":    "prescription",
				"payload":   map[string]any{"medication": "fluoxetina"},
				"patient": map[string]any{
					"patientId": "bench-maoi",
					"age":       52,
					"medications": []map[string]any{
						{"name": "fenelzina", "dose": "15mg"},
					},
				},
			},
		},
		{
			Name:     "moderate-interaction",
			Expected: "YELLOW",
			Request: map[string]any{
				"patientId": "bench-statin",
				"action":    "prescription",
				"payload":   map[string]any{"medication": "claritromicina"},
				"patient": map[string]any{
					"patientId": "bench-statin",
					"age":       60,
					"medications": []map[string]any{
						{"name": "sinvastatina", "dose": "20mg"},
					},
				},
			},
		},
		{
			Name:     "billing-no-auth",
			Expected: "RED",
			Request: map[string]any{
				"patientId": "bench-auth",
				"action":    "billing",
				"payload": map[string]any{
					"tissCode":        "30602122",
					"billedAmount":    28000.0,
					"priorAuthStatus": "pending",
				},
				"patient": map[string]any{"patientId": "bench-auth", "age": 48},
			},
		},
		{
			Name:     "billing-outlier",
			Expected: "YELLOW",
			Request: map[string]any{
				"patientId": "bench-outlier",
				"action":    "billing",
				"payload": map[string]any{
					"tissCode":     "40304361",
					"billedAmount": 45.0,
				},
				"patient": map[string]any{"patientId": "bench-outlier", "age": 33},
			},
		},
		{
			Name:     "clean-consult",
			Expected: "GREEN",
			Request: map[string]any{
				"patientId": "bench-clean",
				"action":    "billing",
				"payload": map[string]any{
					"tissCode":     "10101012",
					"billedAmount": 150.0,
				},
				"patient": map[string]any{"patientId": "bench-clean", "age": 29},
			},
		},
		{
			Name:     "clean-prescription",
			Expected: "GREEN",
			Request: map[string]any{
				"patientId": "bench-rx",
				"action":    "prescription",
				"payload":   map[string]any{"medication": "dipirona", "dose": "500mg"},
				"patient":   map[string]any{"patientId": "bench-rx", "age": 35},
			},
		},
	}
}

func runBenchmark(scenarios []Scenario, baseURL, clinicID string, count, numWorkers int, seed int64, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan Scenario, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for sc := range work {
				start := time.Now()
				color, err := evaluate(client, baseURL, clinicID, sc)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", sc.Name, err)
					}
					continue
				}

				switch color {
				case "RED":
					atomic.AddInt64(&metrics.RedSeen, 1)
				case "YELLOW":
					atomic.AddInt64(&metrics.YellowSeen, 1)
				case "GREEN":
					atomic.AddInt64(&metrics.GreenSeen, 1)
				}

				if color == sc.Expected {
					atomic.AddInt64(&metrics.Agreements, 1)
				} else {
					atomic.AddInt64(&metrics.Disagreements, 1)
					if verbose {
						fmt.Printf("MISMATCH %-20s expected %-6s got %s\n", sc.Name, sc.Expected, color)
					}
				}
			}
		}()
	}

	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < count; i++ {
		work <- scenarios[rng.Intn(len(scenarios))]
	}
	close(work)

	wg.Wait()
	return metrics
}

func evaluate(client *http.Client, baseURL, clinicID string, sc Scenario) (string, error) {
	body, err := json.Marshal(sc.Request)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/evaluate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Clinic-ID", clinicID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	var result struct {
		Color string `json:"color"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	return result.Color, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n================================================")
	fmt.Println("              BENCHMARK RESULTS")
	fmt.Println("================================================")

	fmt.Printf("\nREQUESTS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\nVERDICTS\n")
	fmt.Printf("   RED:     %d\n", m.RedSeen)
	fmt.Printf("   YELLOW:  %d\n", m.YellowSeen)
	fmt.Printf("   GREEN:   %d\n", m.GreenSeen)

	fmt.Printf("\nAGREEMENT\n")
	fmt.Printf("   Matched expected:    %d\n", m.Agreements)
	fmt.Printf("   Mismatched expected: %d\n", m.Disagreements)
	if m.Agreements+m.Disagreements > 0 {
		rate := 100 * float64(m.Agreements) / float64(m.Agreements+m.Disagreements)
		fmt.Printf("   Agreement rate:      %.2f%%\n", rate)
	}

	fmt.Printf("\nPERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		rps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f req/sec\n", rps)
	}

	fmt.Println()
}
