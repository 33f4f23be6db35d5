package main

import (
	"context"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"podcast-search/pkg/classifier"
	"podcast-search/pkg/config"
	"podcast-search/pkg/httpclient"
	"podcast-search/pkg/parser"
	"podcast-search/pkg/pipeline"
	"podcast-search/pkg/podcasts"
	"podcast-search/pkg/store"
)

// fetchers builds the feed and page clients. Pages go through the per-host
// gate so programme pages are requested at most once per RequestDelay.
func fetchers(c config.IngestConfig) podcasts.Deps {
	return podcasts.Deps{
		Feeds: httpclient.New(httpclient.Options{
			Type:        httpclient.BotClient,
			UserAgent:   c.UserAgent,
			Timeout:     60 * time.Second,
			MaxAttempts: 3,
		}),
		Pages: httpclient.New(httpclient.Options{
			Type:        httpclient.BotClient,
			UserAgent:   c.UserAgent,
			MinInterval: c.RequestDelay,
			MaxAttempts: 3,
		}),
	}
}

func openStore(ctx context.Context) (store.Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "create data dir")
	}
	return store.Open(ctx, cfg.Store, cfg.DataDir)
}

// newClassifier builds the classifier for the configured provider. The
// returned cleanup releases the completion cache connection, if any.
func newClassifier(c config.LLMConfig) (*classifier.Classifier, func(), error) {
	var completer classifier.Completer
	switch c.Provider {
	case config.ProviderAnthropic:
		completer = classifier.NewAnthropicCompleter(c.APIKey, c.Model, c.MaxTokens,
			option.WithRequestTimeout(c.Timeout))
	default:
		completer = classifier.NewOpenAICompleter(c.BaseURL, c.APIKey, c.Model, c.MaxTokens, c.Timeout)
	}

	cleanup := func() {}
	if c.CacheURL != "" {
		opts, err := redis.ParseURL(c.CacheURL)
		if err != nil {
			return nil, nil, eris.Wrap(err, "parse llm.cache_url")
		}
		client := redis.NewClient(opts)
		completer = classifier.NewCachedCompleter(completer, client, c.Provider+"/"+c.Model, c.CacheTTL)
		cleanup = func() {
			if err := client.Close(); err != nil {
				zap.L().Warn("close completion cache", zap.Error(err))
			}
		}
	}

	return classifier.New(completer), cleanup, nil
}

// newPipeline wires a pipeline over st with the configured classifier.
func newPipeline(st store.Store, workers, limit int) (*pipeline.Pipeline, func(), error) {
	cl, cleanup, err := newClassifier(cfg.LLM)
	if err != nil {
		return nil, nil, err
	}
	if workers <= 0 {
		workers = cfg.Ingest.Workers
	}
	p, err := pipeline.NewPipeline(pipeline.Config{
		Store:       st,
		Parser:      parser.NewHTMLDescriptionParser(),
		Classifier:  cl,
		WorkerCount: workers,
		FeedDir:     cfg.FeedDir(),
		Limit:       limit,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return p, cleanup, nil
}

func closeStore(st store.Store) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := st.Close(ctx); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}
