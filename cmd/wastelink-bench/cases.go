// README: Bench cases; environment checks, an end-to-end pickup lifecycle, races and load.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"wastelink/internal/infra"
)

const (
	statusPass = "PASS"
	statusFail = "FAIL"
	statusSkip = "SKIP"
)

// Bench pickups are placed in central Bengaluru with collectors a few hundred metres away.
const (
	benchLat = 12.9716
	benchLng = 77.5946
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client

	run        string
	collectors []string
	pickupID   string
	winner     string
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
		run:   uuid.NewString()[:8],
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}
	for i := 0; i < r.cfg.Concurrency; i++ {
		r.collectors = append(r.collectors, fmt.Sprintf("bench-col-%s-%d", r.run, i))
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))
	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-5s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
	return results
}

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{Name: "Env: Postgres connect", Run: checkPostgres},
		{Name: "Env: Redis connect", Run: checkRedis},
		{Name: "Migration: apply (optional)", Run: applyMigration},
		{Name: "Migration: tables exist", Run: tablesExist},
		{Name: "API: health", Run: func(ctx context.Context, r *Runner) Result {
			code, _, latency, err := r.do(ctx, http.MethodGet, "/health", "", nil)
			return expect(code, latency, err, http.StatusOK)
		}},

		{Name: "Registry: collectors register, verify and report location", Run: registerCollectors},
		{Name: "Pickup: plastic without video -> 400", Run: func(ctx context.Context, r *Runner) Result {
			return r.authed(ctx, "citizen", func(citizen string) Result {
				code, _, latency, err := r.do(ctx, http.MethodPost, "/api/pickups", citizen, map[string]any{
					"waste_type": "plastic", "weight": 5, "lat": benchLat, "lng": benchLng,
				})
				return expect(code, latency, err, http.StatusBadRequest)
			})
		}},
		{Name: "Pickup: citizen creates organic pickup", Run: createPickup},
		{Name: "Matching: candidates recorded", Run: candidatesRecorded},
		{Name: "Concurrency: many collectors accept, one wins", Run: concurrentAccept},
		{Name: "Lifecycle: on_the_way, arrived, completed", Run: drivePickup},
		{Name: "Lifecycle: completed rejects collector transitions", Run: func(ctx context.Context, r *Runner) Result {
			if r.winner == "" {
				return Result{Status: statusSkip, Note: "no accepted pickup"}
			}
			return r.authed(ctx, "collector", func(string) Result {
				tok := r.token(r.winner, "collector")
				code, _, latency, err := r.do(ctx, http.MethodPatch, "/api/pickups/"+r.pickupID+"/status", tok, map[string]any{"status": "cancelled"})
				return expect(code, latency, err, http.StatusConflict)
			})
		}},
		{Name: "Marketplace: purchase settles once", Run: purchaseOnce},
		{Name: "Marketplace: admin payout", Run: func(ctx context.Context, r *Runner) Result {
			if r.pickupID == "" {
				return Result{Status: statusSkip, Note: "no pickup"}
			}
			return r.authed(ctx, "admin", func(admin string) Result {
				code, _, latency, err := r.do(ctx, http.MethodPost, "/api/admin/pickups/"+r.pickupID+"/payout", admin, nil)
				return expect(code, latency, err, http.StatusCreated)
			})
		}},
		{Name: "Consistency: audit trail matches transitions", Run: auditTrail},
		{Name: "Consistency: dispatch recorded in redis", Run: dispatchRecorded},

		{Name: "Perf: collector location throughput", Run: func(ctx context.Context, r *Runner) Result {
			if len(r.collectors) == 0 || r.cfg.JWTSecret == "" {
				return Result{Status: statusSkip, Note: "jwt secret not set"}
			}
			id := r.collectors[0]
			return perfLoad(ctx, r, http.MethodPut, "/api/collectors/"+id+"/location", r.token(id, "collector"),
				map[string]any{"lat": benchLat + 0.001, "lng": benchLng})
		}},
		{Name: "Perf: pickup creation throughput", Run: func(ctx context.Context, r *Runner) Result {
			return r.authed(ctx, "citizen", func(citizen string) Result {
				return perfLoad(ctx, r, http.MethodPost, "/api/pickups", citizen, map[string]any{
					"waste_type": "organic", "weight": 2, "lat": benchLat, "lng": benchLng, "address": "bench",
				})
			})
		}},
	}
}

func checkPostgres(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusFail, Note: "db not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.db.Ping(ctx); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass}
}

func checkRedis(ctx context.Context, r *Runner) Result {
	if r.redis == nil {
		return Result{Status: statusFail, Note: "redis not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass}
}

func applyMigration(ctx context.Context, r *Runner) Result {
	if !r.cfg.ApplyMigration {
		return Result{Status: statusSkip, Note: "apply-migration=false"}
	}
	if r.db == nil {
		return Result{Status: statusFail, Note: "db not configured"}
	}
	sql, err := os.ReadFile(r.cfg.MigrationPath)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	for _, s := range splitSQL(string(sql)) {
		if _, err := r.db.Exec(ctx, s); err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
	}
	return Result{Status: statusPass}
}

func tablesExist(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusFail, Note: "db not configured"}
	}
	tables, err := extractTables(r.cfg.MigrationPath)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	for _, t := range tables {
		var exists bool
		err := r.db.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
			t,
		).Scan(&exists)
		if err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		if !exists {
			return Result{Status: statusFail, Note: "missing table: " + t}
		}
	}
	return Result{Status: statusPass, Note: fmt.Sprintf("%d tables", len(tables))}
}

func registerCollectors(ctx context.Context, r *Runner) Result {
	return r.authed(ctx, "admin", func(admin string) Result {
		start := time.Now()
		for i, id := range r.collectors {
			tok := r.token(id, "collector")
			if code, body, _, err := r.do(ctx, http.MethodPut, "/api/me", tok, map[string]any{"name": id}); err != nil || code != http.StatusOK {
				return failed(code, err, body)
			}
			if code, body, _, err := r.do(ctx, http.MethodPost, "/api/admin/users/"+id+"/verify", admin, map[string]any{"verified": true}); err != nil || code != http.StatusOK {
				return failed(code, err, body)
			}
			offset := float64(i) * 0.0005
			if code, body, _, err := r.do(ctx, http.MethodPut, "/api/collectors/"+id+"/location", tok, map[string]any{
				"lat": benchLat + offset, "lng": benchLng,
			}); err != nil || code != http.StatusOK {
				return failed(code, err, body)
			}
		}
		return Result{Status: statusPass, Latency: time.Since(start), Note: fmt.Sprintf("collectors=%d", len(r.collectors))}
	})
}

func createPickup(ctx context.Context, r *Runner) Result {
	return r.authed(ctx, "citizen", func(citizen string) Result {
		code, body, latency, err := r.do(ctx, http.MethodPost, "/api/pickups", citizen, map[string]any{
			"waste_type": "organic", "weight": 5, "lat": benchLat, "lng": benchLng, "address": "bench run " + r.run,
		})
		if err != nil || code != http.StatusCreated {
			return failed(code, err, body)
		}
		var p struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		}
		if err := json.Unmarshal(body, &p); err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		if p.Status != "created" {
			return Result{Status: statusFail, Note: "status=" + p.Status}
		}
		r.pickupID = p.ID
		return Result{Status: statusPass, Latency: latency, Note: "pickup=" + p.ID}
	})
}

func candidatesRecorded(ctx context.Context, r *Runner) Result {
	if r.pickupID == "" {
		return Result{Status: statusSkip, Note: "no pickup"}
	}
	return r.authed(ctx, "admin", func(admin string) Result {
		code, body, latency, err := r.do(ctx, http.MethodGet, "/api/pickups/"+r.pickupID+"/candidates", admin, nil)
		if err != nil || code != http.StatusOK {
			return failed(code, err, body)
		}
		var out struct {
			Collectors []string `json:"collectors"`
		}
		_ = json.Unmarshal(body, &out)
		// Matching is best effort; an empty list is legal but worth flagging.
		if len(out.Collectors) == 0 {
			return Result{Status: statusPass, Latency: latency, Note: "no candidates dispatched"}
		}
		return Result{Status: statusPass, Latency: latency, Note: fmt.Sprintf("candidates=%d", len(out.Collectors))}
	})
}

func concurrentAccept(ctx context.Context, r *Runner) Result {
	if r.pickupID == "" || r.cfg.JWTSecret == "" {
		return Result{Status: statusSkip, Note: "no pickup"}
	}
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  []string
		conflict int
	)
	start := time.Now()
	for _, id := range r.collectors {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			code, _, _, err := r.do(ctx, http.MethodPatch, "/api/pickups/"+r.pickupID+"/status", r.token(id, "collector"), map[string]any{"status": "accepted"})
			if err != nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			switch code {
			case http.StatusOK:
				winners = append(winners, id)
			case http.StatusConflict:
				conflict++
			}
		}(id)
	}
	wg.Wait()

	if len(winners) != 1 {
		return Result{Status: statusFail, Latency: time.Since(start), Note: fmt.Sprintf("winners=%d conflicts=%d", len(winners), conflict)}
	}
	r.winner = winners[0]
	return Result{Status: statusPass, Latency: time.Since(start), Note: fmt.Sprintf("winner=%s conflicts=%d", r.winner, conflict)}
}

func drivePickup(ctx context.Context, r *Runner) Result {
	if r.winner == "" {
		return Result{Status: statusSkip, Note: "no accepted pickup"}
	}
	tok := r.token(r.winner, "collector")
	start := time.Now()
	steps := []map[string]any{
		{"status": "on_the_way"},
		{"status": "arrived"},
		{"status": "completed", "verified_weight": 4.5, "payment_mode": "electronic"},
	}
	var body []byte
	for _, step := range steps {
		code, b, _, err := r.do(ctx, http.MethodPatch, "/api/pickups/"+r.pickupID+"/status", tok, step)
		if err != nil || code != http.StatusOK {
			return failed(code, err, b)
		}
		body = b
	}
	var p struct {
		FinalAmount struct {
			Amount decimal.Decimal `json:"amount"`
		} `json:"final_amount"`
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass, Latency: time.Since(start), Note: "final_amount=" + p.FinalAmount.Amount.String()}
}

func purchaseOnce(ctx context.Context, r *Runner) Result {
	if r.winner == "" {
		return Result{Status: statusSkip, Note: "no completed pickup"}
	}
	return r.authed(ctx, "recycler", func(recycler string) Result {
		path := "/api/marketplace/" + r.pickupID + "/purchase"
		code, body, latency, err := r.do(ctx, http.MethodPost, path, recycler, nil)
		if err != nil || code != http.StatusCreated {
			return failed(code, err, body)
		}
		other := r.token("bench-rec-"+r.run+"-b", "recycler")
		code, body, _, err = r.do(ctx, http.MethodPost, path, other, nil)
		if err != nil || code != http.StatusConflict {
			return failed(code, err, body)
		}
		return Result{Status: statusPass, Latency: latency}
	})
}

func auditTrail(ctx context.Context, r *Runner) Result {
	if r.db == nil || r.pickupID == "" {
		return Result{Status: statusSkip, Note: "db or pickup missing"}
	}
	var status string
	var version, events int
	if err := r.db.QueryRow(ctx, `SELECT status, status_version FROM pickups WHERE id=$1`, r.pickupID).Scan(&status, &version); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM pickup_events WHERE pickup_id=$1`, r.pickupID).Scan(&events); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	// One creation event plus one per successful transition.
	if events != version+1 {
		return Result{Status: statusFail, Note: fmt.Sprintf("status=%s version=%d events=%d", status, version, events)}
	}
	return Result{Status: statusPass, Note: fmt.Sprintf("status=%s version=%d", status, version)}
}

func dispatchRecorded(ctx context.Context, r *Runner) Result {
	if r.redis == nil || r.pickupID == "" {
		return Result{Status: statusSkip, Note: "redis or pickup missing"}
	}
	n, err := r.redis.SCard(ctx, fmt.Sprintf("matching:pickup:%s:notified", r.pickupID)).Result()
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass, Note: fmt.Sprintf("notified=%d", n)}
}

func perfLoad(ctx context.Context, r *Runner, method, path, token string, payload any) Result {
	end := time.Now().Add(r.cfg.Duration)
	var (
		count, errCount int64
		mu              sync.Mutex
		wg              sync.WaitGroup
	)
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				code, _, _, err := r.do(ctx, method, path, token, payload)
				mu.Lock()
				if err != nil || code >= 300 {
					errCount++
				} else {
					count++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: statusFail, Note: fmt.Sprintf("no requests succeeded, errors=%d", errCount)}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: statusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}

// authed runs fn with a bearer token for a bench user of role, or skips without a secret.
func (r *Runner) authed(_ context.Context, role string, fn func(token string) Result) Result {
	if r.cfg.JWTSecret == "" {
		return Result{Status: statusSkip, Note: "jwt secret not set"}
	}
	return fn(r.token(fmt.Sprintf("bench-%s-%s", role[:3], r.run), role))
}

func (r *Runner) token(uid, role string) string {
	tok, err := infra.IssueJWT(r.cfg.JWTSecret, uid, role, time.Hour)
	if err != nil {
		return ""
	}
	return tok
}

func (r *Runner) do(ctx context.Context, method, path, token string, body any) (int, []byte, time.Duration, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, 0, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return 0, nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, nil, 0, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	return resp.StatusCode, b, time.Since(start), err
}

func expect(code int, latency time.Duration, err error, want int) Result {
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if code != want {
		return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("status=%d want=%d", code, want)}
	}
	return Result{Status: statusPass, Latency: latency, Note: fmt.Sprintf("status=%d", code)}
}

func failed(code int, err error, body []byte) Result {
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusFail, Note: fmt.Sprintf("status=%d body=%s", code, strings.TrimSpace(string(body)))}
}

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)
	matches := re.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}

func splitSQL(sql string) []string {
	lines := strings.Split(sql, "\n")
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if strings.HasPrefix(l, "--") || l == "" {
			continue
		}
		filtered = append(filtered, line)
	}
	parts := strings.Split(strings.Join(filtered, "\n"), ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
