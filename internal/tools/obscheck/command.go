package obscheck

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/budgetwise/backend/internal/tools/common"
	"github.com/budgetwise/backend/internal/tools/loadgen"
	"github.com/budgetwise/backend/internal/tools/ui"
)

type options struct {
	grafanaURL      string
	grafanaUser     string
	grafanaPassword string
	serviceName     string
	window          time.Duration
	ci              bool
	baseURL         string

	promDS  int
	lokiDS  int
	tempoDS int
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{Use: "obscheck", Short: "Verify metrics, traces and logs correlation"}
	cmd.PersistentFlags().StringVar(&opts.grafanaURL, "grafana-url", "http://localhost:3000", "Grafana base URL")
	cmd.PersistentFlags().StringVar(&opts.grafanaUser, "grafana-user", "admin", "Grafana username")
	cmd.PersistentFlags().StringVar(&opts.grafanaPassword, "grafana-password", "admin", "Grafana password")
	cmd.PersistentFlags().StringVar(&opts.serviceName, "service-name", "budgetwise-backend", "OTel service name")
	cmd.PersistentFlags().DurationVar(&opts.window, "window", 20*time.Minute, "query lookback window")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.PersistentFlags().StringVar(&opts.baseURL, "base-url", "http://localhost:8080", "API base URL for traffic")
	cmd.PersistentFlags().IntVar(&opts.promDS, "prom-ds", 1, "Grafana datasource id for Prometheus")
	cmd.PersistentFlags().IntVar(&opts.lokiDS, "loki-ds", 2, "Grafana datasource id for Loki")
	cmd.PersistentFlags().IntVar(&opts.tempoDS, "tempo-ds", 3, "Grafana datasource id for Tempo")
	cmd.AddCommand(newRunCommand(opts))
	return cmd
}

func newRunCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Generate traffic and validate exemplar->trace->log path",
		RunE: func(cmd *cobra.Command, args []string) error {
			details, err := run(opts, "obscheck run", func(ctx context.Context) ([]string, error) {
				gc := newGrafanaClient(*opts)

				lgRes, err := loadgen.Run(ctx, loadgen.Config{
					BaseURL:     opts.baseURL,
					Profile:     "mixed",
					Duration:    6 * time.Second,
					RPS:         20,
					Concurrency: 6,
					Seed:        42,
				})
				if err != nil {
					return nil, err
				}
				details := []string{fmt.Sprintf("traffic generated total=%d failures=%d", lgRes.TotalRequests, lgRes.Failures)}

				// Give the periodic metric reader a chance to export.
				time.Sleep(8 * time.Second)

				traceID, err := gc.exemplarTraceID(ctx)
				if err != nil {
					return details, err
				}
				details = append(details, "exemplar trace_id="+traceID)

				if err := gc.traceExists(ctx, traceID); err != nil {
					return details, err
				}
				details = append(details, "tempo trace lookup: ok")

				if err := gc.logsCorrelate(ctx, traceID); err != nil {
					return details, err
				}
				details = append(details, "loki trace correlation: ok")
				return details, nil
			})
			if opts.ci {
				common.PrintCIResult(err == nil, "obscheck run", details, err)
			}
			if err != nil {
				os.Exit(4)
			}
			return nil
		},
	}
}

func run(opts *options, title string, fn func(context.Context) ([]string, error)) ([]string, error) {
	if opts.ci {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
		defer cancel()
		return fn(ctx)
	}
	return ui.Run(title, fn)
}

// grafanaClient queries the backing datasources through Grafana's proxy so a
// single set of credentials covers Prometheus, Tempo and Loki.
type grafanaClient struct {
	opts options
	http *http.Client
}

func newGrafanaClient(opts options) *grafanaClient {
	return &grafanaClient{opts: opts, http: &http.Client{Timeout: 20 * time.Second}}
}

func (g *grafanaClient) get(ctx context.Context, path string) ([]byte, error) {
	u, err := url.Parse(g.opts.grafanaURL)
	if err != nil {
		return nil, err
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(g.opts.grafanaUser, g.opts.grafanaPassword)
	resp, err := g.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("grafana request failed: %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// exemplarTraceID pulls a trace id off the auth request duration histogram's
// exemplars. Exemplars only attach to sampled requests, so the load run must
// precede this call.
func (g *grafanaClient) exemplarTraceID(ctx context.Context) (string, error) {
	end := time.Now()
	start := end.Add(-g.opts.window)
	path := fmt.Sprintf("/api/datasources/proxy/%d/api/v1/query_exemplars?query=auth_request_duration_seconds_bucket&start=%d&end=%d",
		g.opts.promDS, start.Unix(), end.Unix())
	body, err := g.get(ctx, path)
	if err != nil {
		return "", err
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", err
	}
	data, _ := payload["data"].([]any)
	for _, series := range data {
		sm, _ := series.(map[string]any)
		exemplars, _ := sm["exemplars"].([]any)
		for _, e := range exemplars {
			em, _ := e.(map[string]any)
			labels, _ := em["labels"].(map[string]any)
			if tid, ok := labels["trace_id"].(string); ok && len(tid) == 32 {
				return tid, nil
			}
		}
	}
	return "", fmt.Errorf("no trace_id exemplar found")
}

func (g *grafanaClient) traceExists(ctx context.Context, traceID string) error {
	body, err := g.get(ctx, fmt.Sprintf("/api/datasources/proxy/%d/api/traces/%s", g.opts.tempoDS, traceID))
	if err != nil {
		return err
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return err
	}
	batches, _ := payload["batches"].([]any)
	if len(batches) == 0 {
		return fmt.Errorf("tempo trace has no batches")
	}
	return nil
}

func (g *grafanaClient) logsCorrelate(ctx context.Context, traceID string) error {
	nowNS := time.Now().UnixNano()
	startNS := nowNS - g.opts.window.Nanoseconds()
	q := url.QueryEscape(fmt.Sprintf("{service_name=%q} |= \"trace_id=%s\"", g.opts.serviceName, traceID))
	path := fmt.Sprintf("/api/datasources/proxy/%d/loki/api/v1/query_range?query=%s&start=%d&end=%d&limit=1&direction=backward",
		g.opts.lokiDS, q, startNS, nowNS)
	body, err := g.get(ctx, path)
	if err != nil {
		return err
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return err
	}
	data, _ := payload["data"].(map[string]any)
	result, _ := data["result"].([]any)
	if len(result) == 0 {
		return fmt.Errorf("no correlated loki logs found for trace_id %s", traceID)
	}
	return nil
}
