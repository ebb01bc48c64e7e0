// seed inserts a test user and a spread of endpoints into the local dev
// database. Run: go run ./cmd/seed
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/cronicorn/scheduler/internal/domain"
	"github.com/cronicorn/scheduler/internal/infrastructure/postgres"
	"github.com/jackc/pgx/v5"
)

const seedEmail = "seed@cronicorn.local"

type endpointSpec struct {
	name       string
	url        string
	method     string
	cron       *string
	intervalMs *int64
	minMs      *int64
	maxMs      *int64
}

func ptr[T any](v T) *T { return &v }

var endpoints = []endpointSpec{
	// Happy path — 2xx from httpbin on 1- and 2-minute intervals
	{"seed-ok-post", "https://httpbin.org/post", "POST", nil, ptr(int64(60000)), nil, nil},
	{"seed-ok-get", "https://httpbin.org/get", "GET", nil, ptr(int64(60000)), nil, nil},
	{"seed-ok-put", "https://httpbin.org/put", "PUT", nil, ptr(int64(120000)), nil, nil},

	// Cron cadence — top of every hour, UTC
	{"seed-cron-hourly", "https://httpbin.org/get", "GET", ptr("0 * * * *"), nil, nil, nil},
	{"seed-cron-5min", "https://httpbin.org/get", "GET", ptr("*/5 * * * *"), nil, nil, nil},

	// Will fail — builds a failure streak for the AI planner to chew on
	{"seed-fail-500", "https://httpbin.org/status/500", "POST", nil, ptr(int64(30000)), nil, nil},
	{"seed-fail-503", "https://httpbin.org/status/503", "POST", nil, ptr(int64(30000)), nil, nil},
	{"seed-fail-404", "https://httpbin.org/status/404", "GET", nil, ptr(int64(60000)), nil, nil},

	// Guardrails — AI hints get clamped into [2min, 10min]
	{"seed-clamped", "https://httpbin.org/get", "GET", nil, ptr(int64(300000)), ptr(int64(120000)), ptr(int64(600000))},

	// Will time out — httpbin delays the response past the 10s timeout
	{"seed-timeout", "https://httpbin.org/delay/35", "GET", nil, ptr(int64(120000)), nil, nil},
}

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set — run: direnv allow")
	}

	pool, err := postgres.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	var userID string
	err = pool.QueryRow(ctx, `
		INSERT INTO users (email) VALUES ($1)
		ON CONFLICT (email) DO UPDATE SET updated_at = NOW()
		RETURNING id`, seedEmail,
	).Scan(&userID)
	if err != nil {
		log.Fatalf("upsert user: %v", err)
	}

	var inserted, skipped int
	var ids []string
	for _, spec := range endpoints {
		timeoutMs := domain.DefaultTimeoutMs
		if spec.name == "seed-timeout" {
			timeoutMs = 10000
		}
		var id string
		err := pool.QueryRow(ctx, `
			INSERT INTO endpoints (
				tenant_id, name, url, method, headers_json,
				baseline_cron, baseline_interval_ms, min_interval_ms, max_interval_ms,
				timeout_ms, max_execution_time_ms, max_response_size_kb,
				next_run_at, failure_count
			) VALUES ($1, $2, $3, $4, '{}', $5, $6, $7, $8, $9, $10, $11, NOW(), 0)
			ON CONFLICT (tenant_id, name) DO NOTHING
			RETURNING id`,
			userID, spec.name, spec.url, spec.method,
			spec.cron, spec.intervalMs, spec.minMs, spec.maxMs, timeoutMs,
			domain.DefaultMaxExecutionTimeMs, domain.DefaultMaxResponseSizeKb,
		).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			skipped++
			continue
		}
		if err != nil {
			log.Fatalf("insert endpoint %s: %v", spec.name, err)
		}
		ids = append(ids, id)
		inserted++
	}

	fmt.Println("Seed complete")
	fmt.Println()
	fmt.Printf("  User:              %s (%s)\n", seedEmail, userID)
	fmt.Printf("  Endpoints created: %d  (skipped %d already existing)\n", inserted, skipped)
	fmt.Println()

	if len(ids) > 0 {
		fmt.Println("  Sample endpoint IDs:")
		limit := 5
		if len(ids) < limit {
			limit = len(ids)
		}
		for _, id := range ids[:limit] {
			fmt.Printf("    %s\n", id)
		}
	}

	fmt.Println()
	fmt.Println("How to test:")
	fmt.Println()
	fmt.Println("  Step 1 — request a magic link and grab the JWT:")
	fmt.Println()
	fmt.Printf("    curl -s -X POST http://localhost:8080/auth/magic-link -d '{\"email\":%q}' -H 'Content-Type: application/json'\n", seedEmail)
	fmt.Println("    # with ENV=local the link is logged, not emailed — copy the token from the server log")
	fmt.Println("    curl -s 'http://localhost:8080/auth/verify?token=RAW_TOKEN'")
	fmt.Println()
	fmt.Println("  Step 2 — start the scheduler worker and watch it claim the due endpoints:")
	fmt.Println()
	fmt.Println("    go run ./cmd/scheduler")
	fmt.Println()
	fmt.Println("  Step 3 — inspect runs (use any ID from above):")
	fmt.Println()
	fmt.Println("    export JWT=eyJ...")
	fmt.Println("    curl -s http://localhost:8080/endpoints/ENDPOINT_ID/runs -H \"Authorization: Bearer $JWT\"")
	fmt.Println()
	fmt.Println("  What to expect:")
	fmt.Println("    seed-ok-*      →  success runs on their interval")
	fmt.Println("    seed-cron-*    →  success runs on the cron cadence")
	fmt.Println("    seed-fail-*    →  failure streaks; with ANTHROPIC_API_KEY set the AI planner")
	fmt.Println("                      starts writing backoff hints after a few failures")
	fmt.Println("    seed-timeout   →  failed runs with a timeout error (35s delay > 10s timeout)")
}
