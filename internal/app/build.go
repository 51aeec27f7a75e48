// Package app assembles the service from its parts: config in, a ready
// HTTP server and registry out.
package app

import (
	"context"
	"time"

	"github.com/carevox/carevox/internal/config"
	"github.com/carevox/carevox/internal/httpapi"
	"github.com/carevox/carevox/internal/nlu"
	"github.com/carevox/carevox/internal/observability"
	"github.com/carevox/carevox/internal/realtime"
	"github.com/carevox/carevox/internal/scriptgen"
	"github.com/carevox/carevox/internal/session"
	"github.com/carevox/carevox/internal/summary"
)

type BuildResult struct {
	Config   config.Config
	API      *httpapi.Server
	Registry *session.Registry
	Metrics  *observability.Metrics
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	registry := session.NewRegistry(cfg.CallInactivityTimeout)
	registry.StartJanitor(ctx, 30*time.Second)

	dialer := realtime.NewClient(realtime.ClientConfig{
		BootstrapURL: cfg.RealtimeBootstrapURL,
		RealtimeURL:  cfg.RealtimeWSURL,
		Model:        cfg.RealtimeModel,
		DialTimeout:  cfg.RealtimeDialTimeout,
	})

	var matcher nlu.Matcher = nlu.Local{}
	if cfg.RemoteMatcher {
		matcher = nlu.Cascade{
			Local:  nlu.Local{},
			Remote: nlu.NewRemote(cfg.OpenAIAPIKey, cfg.MatcherModel),
		}
	}

	summarizer := summary.NewSummarizer(cfg.OpenAIAPIKey, cfg.SummaryModel)
	generator := scriptgen.NewGenerator(cfg.OpenAIAPIKey, cfg.ScriptModel)

	api := httpapi.New(cfg, registry, dialer, matcher, summarizer, generator, metrics)

	return &BuildResult{
		Config:   cfg,
		API:      api,
		Registry: registry,
		Metrics:  metrics,
	}, nil
}
