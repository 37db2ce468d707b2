package platform

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Persistence is the injected capability for shipping tracing events off
// the host (spec's metrics arena, §4.7), grounded on PythonPersistence.
type Persistence interface {
	PersistMetrics(ctx context.Context, events []string) error
	PersistDeveloperDump(events []string) error
}

// InsightsPersistence POSTs metrics batches to the Superface insights
// endpoint and writes developer dumps to a timestamped local file, the
// same split PythonPersistence makes between persist_metrics (network)
// and persist_developer_dump (local file).
type InsightsPersistence struct {
	network   Network
	token     string
	userAgent string
	batchURL  string
	logger    *zap.Logger
}

const defaultInsightsURL = "https://superface.ai/insights/sdk_event"

// NewInsightsPersistence constructs an InsightsPersistence. logger
// receives a diagnostic line whenever a metrics upload or developer
// dump write fails; pass nil to disable it.
func NewInsightsPersistence(network Network, token, superfaceAPIURL, userAgent string, logger *zap.Logger) *InsightsPersistence {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := defaultInsightsURL
	if superfaceAPIURL != "" {
		base = superfaceAPIURL + "/insights/sdk_event"
	}
	return &InsightsPersistence{
		network:   network,
		token:     token,
		userAgent: userAgent,
		batchURL:  base + "/batch",
		logger:    logger,
	}
}

func (p *InsightsPersistence) PersistMetrics(ctx context.Context, events []string) error {
	headers := http.Header{"Content-Type": []string{"application/json"}}
	if p.token != "" {
		headers.Set("Authorization", "SUPERFACE-SDK-TOKEN "+p.token)
	}
	if p.userAgent != "" {
		headers.Set("User-Agent", p.userAgent)
	}

	body := []byte("[" + strings.Join(events, ",") + "]")
	deferred := p.network.Fetch(ctx, http.MethodPost, p.batchURL, headers, body)
	resp, err := deferred.Resolve()
	if err != nil {
		p.logger.Warn("persisting metrics failed", zap.String("url", p.batchURL), zap.Error(err))
		return err
	}
	if err := resp.Body.Close(); err != nil {
		p.logger.Warn("closing metrics response body failed", zap.Error(err))
		return err
	}
	return nil
}

func (p *InsightsPersistence) PersistDeveloperDump(events []string) error {
	timestamp := strings.NewReplacer(":", "-", ".", "-").Replace(time.Now().Format(time.RFC3339Nano))
	fileName := fmt.Sprintf("onesdk_devlog_dump_%s.txt", timestamp)

	if err := os.WriteFile(fileName, []byte(strings.Join(events, "")), 0o644); err != nil {
		p.logger.Warn("writing developer dump failed", zap.String("file", fileName), zap.Error(err))
		return err
	}
	return nil
}
