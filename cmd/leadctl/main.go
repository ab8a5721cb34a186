// leadctl exercises the lead engine from the command line: run an
// extraction or reply against the configured providers, inspect provider
// health, or manage an organization's rate limits.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"leadengine/pkg/cache"
	"leadengine/pkg/config"
	"leadengine/pkg/llm"
	"leadengine/pkg/llm/adapters"
	"leadengine/pkg/logx"
	"leadengine/pkg/metrics"
	"leadengine/pkg/ratelimit"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "extract":
		err = runExtract(args)
	case "reply":
		err = runReply(args)
	case "summarize":
		err = runSummarize(args)
	case "health":
		err = runHealth(args)
	case "usage":
		err = runUsage(args)
	case "reset-limits":
		err = runResetLimits(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: leadctl <command> [flags]

Commands:
  extract       Extract structured lead data from a seller message
  reply         Generate a conversational reply to a seller message
  summarize     Summarize a lead from its extracted data
  health        Show circuit breaker status per provider
  usage         Show rate limit and usage stats for an org
  reset-limits  Clear an org's rate limit windows

Common flags:
  -config PATH  YAML config file (defaults + env vars when omitted)
  -org ID       Organization ID for rate limiting (default "default")

Examples:
  leadctl extract -message "Selling my 3br at 12 Palm St, Lagos"
  leadctl reply -message "yes that's correct" -stage qualifying
  leadctl usage -org acme -days 7
`)
}

// engine bundles everything a command needs. Redis is optional; without
// it the CLI falls back to in-memory rate limiting and caching.
type engine struct {
	cfg     *config.Config
	client  *llm.Client
	limiter *ratelimit.Limiter
	orgID   string
	logger  *logx.Logger
	redis   *redis.Client
}

func (e *engine) close() {
	if err := e.client.Close(); err != nil {
		e.logger.Warn("adapter shutdown: %v", err)
	}
	if e.redis != nil {
		if err := e.redis.Close(); err != nil {
			e.logger.Warn("redis shutdown: %v", err)
		}
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.Parse(nil)
}

func buildEngine(configPath, orgID string) (*engine, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := logx.NewLogger("leadctl")

	var recorder metrics.Recorder = metrics.NopRecorder{}
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(reg)
		go serveMetrics(cfg.Metrics.Addr, reg, logger)
	}

	var (
		rdb          *redis.Client
		store        ratelimit.Store
		extractCache cache.Cache
	)
	rdb = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	err = rdb.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		logger.Warn("redis unavailable at %s, using in-memory limits and cache: %v", cfg.Redis.Addr, err)
		_ = rdb.Close()
		rdb = nil
		store = ratelimit.NewMemoryStore()
		extractCache = cache.NewMemoryCache()
	} else {
		store = ratelimit.NewRedisStore(rdb)
		extractCache = cache.NewRedisCache(rdb)
	}

	limiter := ratelimit.NewLimiter(store, cfg.RateLimit, ratelimit.WithRecorder(recorder))

	adapterList, err := adapters.FromConfig(cfg.LLM)
	if err != nil {
		if rdb != nil {
			_ = rdb.Close()
		}
		return nil, err
	}

	client, err := llm.NewClient(cfg.LLM, adapterList,
		llm.WithCache(extractCache), llm.WithRecorder(recorder))
	if err != nil {
		if rdb != nil {
			_ = rdb.Close()
		}
		return nil, err
	}

	return &engine{
		cfg:     cfg,
		client:  client,
		limiter: limiter,
		orgID:   orgID,
		logger:  logger,
		redis:   rdb,
	}, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *logx.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	logger.Info("metrics listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server: %v", err)
	}
}

// checkQuota enforces the org's rate limit before any provider call.
func (e *engine) checkQuota(ctx context.Context) error {
	allowed, retryAfter := e.limiter.CheckRateLimit(ctx, e.orgID, ratelimit.DefaultOperation)
	if !allowed {
		return fmt.Errorf("rate limit exceeded for org %q, retry in %ds", e.orgID, retryAfter)
	}
	return nil
}

func (e *engine) recordUsage(ctx context.Context, resp *llm.Response) {
	if resp == nil || resp.Cached {
		return
	}
	e.limiter.RecordRequest(ctx, e.orgID, ratelimit.DefaultOperation,
		resp.TotalTokens(), 0, string(resp.Provider))
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runExtract(args []string) error {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	orgID := fs.String("org", "default", "organization ID")
	message := fs.String("message", "", "seller message to extract from")
	sender := fs.String("sender", "", "sender identifier (phone or handle)")
	leadID := fs.String("lead", "", "lead ID for extraction caching")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *message == "" {
		return fmt.Errorf("-message is required")
	}

	eng, err := buildEngine(*configPath, *orgID)
	if err != nil {
		return err
	}
	defer eng.close()

	ctx, cancel := signalContext()
	defer cancel()

	if err := eng.checkQuota(ctx); err != nil {
		return err
	}

	result := eng.client.ExtractLeadInfo(ctx, *message, *sender, nil, *leadID)
	eng.recordUsage(ctx, result.Response)

	return printJSON(map[string]any{
		"validated":         result.Validated,
		"validation_errors": result.ValidationErrors,
		"data":              result.Data,
		"provider":          result.Response.Provider,
		"model":             result.Response.Model,
		"cached":            result.Response.Cached,
		"latency_ms":        result.Response.LatencyMS,
	})
}

func runReply(args []string) error {
	fs := flag.NewFlagSet("reply", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	orgID := fs.String("org", "default", "organization ID")
	message := fs.String("message", "", "seller message to reply to")
	stage := fs.String("stage", "new", "lead stage (new, qualifying, qualified)")
	summary := fs.String("summary", "", "info summary of what is already known")
	extractedPath := fs.String("extracted", "", "JSON file with prior extraction data")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *message == "" {
		return fmt.Errorf("-message is required")
	}

	extracted, err := loadExtractedFile(*extractedPath)
	if err != nil {
		return err
	}

	eng, err := buildEngine(*configPath, *orgID)
	if err != nil {
		return err
	}
	defer eng.close()

	ctx, cancel := signalContext()
	defer cancel()

	if err := eng.checkQuota(ctx); err != nil {
		return err
	}

	resp := eng.client.GenerateResponse(ctx, *message, *stage, *summary, nil, extracted)
	eng.recordUsage(ctx, resp)

	return printJSON(map[string]any{
		"content":    resp.Content,
		"provider":   resp.Provider,
		"model":      resp.Model,
		"metadata":   resp.Metadata,
		"latency_ms": resp.LatencyMS,
	})
}

func runSummarize(args []string) error {
	fs := flag.NewFlagSet("summarize", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	orgID := fs.String("org", "default", "organization ID")
	extractedPath := fs.String("extracted", "", "JSON file with extraction data (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *extractedPath == "" {
		return fmt.Errorf("-extracted is required")
	}

	extracted, err := loadExtractedFile(*extractedPath)
	if err != nil {
		return err
	}

	eng, err := buildEngine(*configPath, *orgID)
	if err != nil {
		return err
	}
	defer eng.close()

	ctx, cancel := signalContext()
	defer cancel()

	if err := eng.checkQuota(ctx); err != nil {
		return err
	}

	summary, err := eng.client.SummarizeLead(ctx, nil, extracted)
	if err != nil {
		return err
	}
	fmt.Println(summary)
	return nil
}

func runHealth(args []string) error {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	reset := fs.Bool("reset", false, "reset all circuit breakers")
	if err := fs.Parse(args); err != nil {
		return err
	}

	eng, err := buildEngine(*configPath, "default")
	if err != nil {
		return err
	}
	defer eng.close()

	if *reset {
		eng.client.ResetCircuitBreakers()
		fmt.Println("circuit breakers reset")
	}

	health := eng.client.ProviderHealth()
	out := make(map[string]string, len(health))
	for provider, status := range health {
		out[string(provider)] = status.String()
	}
	return printJSON(out)
}

func runUsage(args []string) error {
	fs := flag.NewFlagSet("usage", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	orgID := fs.String("org", "default", "organization ID")
	operation := fs.String("operation", ratelimit.DefaultOperation, "operation name")
	days := fs.Int("days", 7, "days of usage history")
	if err := fs.Parse(args); err != nil {
		return err
	}

	eng, err := buildEngine(*configPath, *orgID)
	if err != nil {
		return err
	}
	defer eng.close()

	ctx, cancel := signalContext()
	defer cancel()

	current, err := eng.limiter.GetCurrentUsage(ctx, *orgID, *operation)
	if err != nil {
		return fmt.Errorf("current usage: %w", err)
	}
	stats, err := eng.limiter.GetUsageStats(ctx, *orgID, *operation, *days)
	if err != nil {
		return fmt.Errorf("usage stats: %w", err)
	}

	return printJSON(map[string]any{
		"current": current,
		"history": stats,
	})
}

func runResetLimits(args []string) error {
	fs := flag.NewFlagSet("reset-limits", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	orgID := fs.String("org", "default", "organization ID")
	operation := fs.String("operation", ratelimit.DefaultOperation, "operation name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	eng, err := buildEngine(*configPath, *orgID)
	if err != nil {
		return err
	}
	defer eng.close()

	ctx, cancel := signalContext()
	defer cancel()

	if err := eng.limiter.ResetLimits(ctx, *orgID, *operation); err != nil {
		return err
	}
	fmt.Printf("rate limits cleared for org %q operation %q\n", *orgID, *operation)
	return nil
}

func loadExtractedFile(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted data: %w", err)
	}
	var extracted map[string]any
	if err := json.Unmarshal(data, &extracted); err != nil {
		return nil, fmt.Errorf("failed to parse extracted data: %w", err)
	}
	return extracted, nil
}
