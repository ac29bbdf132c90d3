package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"sync/atomic"
	"time"

	vegeta "github.com/tsenart/vegeta/v12/lib"
)

const (
	mockPort = 9091
	appPort  = 8081
)

const benchConfig = `server:
  port: "8081"
  env: production
  api_keys:
    - bench-key-12345
store:
  dsn: "file:bench.db?cache=shared&mode=rwc"
litellm:
  base_url: "http://localhost:9091"
  master_key: "sk-bench-master"
rate_limit:
  requests_per_second: 100000
  burst: 200000
`

func main() {
	duration := flag.Duration("duration", 10*time.Second, "Duration of the test")
	rate := flag.Int("rate", 50, "Requests per second")
	registrations := flag.Bool("registrations", false, "Benchmark model registrations instead of listings")
	flag.Parse()

	// start mock routing proxy
	go startMockProxy()

	// build and start application
	fmt.Println("Building application...")
	buildCmd := exec.Command("go", "build", "-o", "bin/server", "./cmd/server")
	buildCmd.Stdout = os.Stdout
	buildCmd.Stderr = os.Stderr
	if err := buildCmd.Run(); err != nil {
		log.Fatalf("Failed to build app: %v", err)
	}

	configFile := "bench_config.yaml"
	if err := os.WriteFile(configFile, []byte(benchConfig), 0644); err != nil {
		log.Fatalf("Failed to write config: %v", err)
	}
	defer os.Remove(configFile)

	fmt.Println("Starting application...")
	cmd := exec.Command("./bin/server")
	cmd.Env = append(os.Environ(), fmt.Sprintf("CONFIG_FILE=%s", configFile))
	cmd.Env = append(cmd.Env, "LOG_LEVEL=error")

	logFile, _ := os.Create("bench_server.log")
	defer logFile.Close()
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		log.Fatalf("Failed to start app: %v", err)
	}
	defer func() {
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
	}()

	waitForApp(fmt.Sprintf("http://localhost:%d/health", appPort))

	teamID := "bench-team"
	credentialID := setupCredential(teamID)

	mode := "Listing"
	if *registrations {
		mode = "Registration"
	}
	fmt.Printf("Running %s benchmark: %s duration, %d req/s\n", mode, *duration, *rate)

	var seq int64
	targeter := func(t *vegeta.Target) error {
		t.Header = http.Header{
			"Content-Type":  []string{"application/json"},
			"Authorization": []string{"Bearer bench-key-12345"},
			"X-CSRF-Token":  []string{"bench"},
			"X-Org-ID":      []string{"bench-org"},
		}
		if *registrations {
			n := atomic.AddInt64(&seq, 1)
			t.Method = "POST"
			t.URL = fmt.Sprintf("http://localhost:%d/v1/teams/%s/models", appPort, teamID)
			t.Body = []byte(fmt.Sprintf(
				`{"name": "bench-model-%d", "model": "llama2", "credentialId": %q}`, n, credentialID))
			return nil
		}
		t.Method = "GET"
		t.URL = fmt.Sprintf("http://localhost:%d/v1/teams/%s/models", appPort, teamID)
		return nil
	}

	attacker := vegeta.NewAttacker(vegeta.KeepAlive(true))
	var metrics vegeta.Metrics

	for res := range attacker.Attack(targeter, vegeta.Rate{Freq: *rate, Per: time.Second}, *duration, "Benchmark") {
		metrics.Add(res)
	}
	metrics.Close()

	fmt.Println("--------------------------------------------------")
	fmt.Println("99th percentile: ", metrics.Latencies.P99)
	fmt.Println("Mean:            ", metrics.Latencies.Mean)
	fmt.Println("Max:             ", metrics.Latencies.Max)
	fmt.Printf("Success:         %.2f%%\n", metrics.Success*100)
	fmt.Printf("Throughput:      %.2f req/s\n", metrics.Throughput)
	fmt.Println("--------------------------------------------------")

	if len(metrics.Errors) > 0 {
		fmt.Println("Error Set (first 5 unique):")
		uniqueErrors := make(map[string]bool)
		count := 0
		for _, msg := range metrics.Errors {
			if !uniqueErrors[msg] && count < 5 {
				fmt.Println(msg)
				uniqueErrors[msg] = true
				count++
			}
		}
	}

	os.Remove("bench.db")
}

// setupCredential registers one ollama credential the attack targets can
// reference, and returns its id.
func setupCredential(teamID string) string {
	body := []byte(`{"name": "Bench Ollama", "type": "ollama", "api_base": "http://localhost:11434"}`)
	req, _ := http.NewRequest("POST",
		fmt.Sprintf("http://localhost:%d/v1/teams/%s/credentials", appPort, teamID),
		bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer bench-key-12345")
	req.Header.Set("X-CSRF-Token", "bench")
	req.Header.Set("X-Org-ID", "bench-org")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("Failed to create benchmark credential: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Fatalf("Credential setup returned %d", resp.StatusCode)
	}

	var out struct {
		ID string `json:"_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Fatalf("Failed to decode credential response: %v", err)
	}
	return out.ID
}

// startMockProxy stands in for the routing proxy so registrations resolve
// without a real litellm deployment.
func startMockProxy() {
	mux := http.NewServeMux()

	mux.HandleFunc("/model/new", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model_id": "mock-` + strconv.FormatInt(time.Now().UnixNano(), 10) + `"}`))
	})

	mux.HandleFunc("/model/delete", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"deleted": true}`))
	})

	log.Printf("Mock proxy listening on :%d", mockPort)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", mockPort), mux); err != nil {
		log.Fatalf("Mock proxy failed: %v", err)
	}
}

func waitForApp(url string) {
	for i := 0; i < 50; i++ {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				fmt.Println("Application is ready.")
				return
			}
		}
		time.Sleep(200 * time.Millisecond)
	}
	log.Fatal("Application never became ready")
}
