// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"slices"

	"go.uber.org/zap"

	"github.com/pdiddy/partnerform/internal/calllog"
	"github.com/pdiddy/partnerform/internal/container"
	"github.com/pdiddy/partnerform/internal/extract"
	"github.com/pdiddy/partnerform/internal/gather"
	"github.com/pdiddy/partnerform/internal/pipeline"
	"github.com/pdiddy/partnerform/internal/provider"
	"github.com/pdiddy/partnerform/internal/schema"
	"github.com/pdiddy/partnerform/internal/secrets"
	"github.com/pdiddy/partnerform/internal/wizard"
	"github.com/pdiddy/partnerform/pkg/types"
)

// app holds the components one command invocation needs.
type app struct {
	cfg      types.PipelineConfig
	reg      *schema.Registry
	pipeline *pipeline.Pipeline
	calls    *calllog.Log
	fetcher  *gather.WebsiteFetcher
	docs     *gather.DocumentParser
	logger   *zap.Logger
}

// newApp wires the schema, provider, pipeline, call log and gatherers
// from cfg. The caller must Close the app.
func newApp(ctx context.Context, cfg types.PipelineConfig, log *zap.Logger) (*app, error) {
	reg, err := schema.Load(cfg.Extraction.SchemaPath)
	if err != nil {
		return nil, err
	}

	if cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = secrets.APIKey(loadedSecrets, cfg.Provider.Name)
	}
	httpClient := &http.Client{}
	p, err := provider.New(ctx, cfg.Provider, provider.WithHTTPClient(httpClient), provider.WithLogger(log))
	if err != nil {
		return nil, err
	}
	if !p.Configured() && cfg.Provider.Name != types.ProviderStatic {
		log.Warn("provider.unconfigured",
			zap.String("provider", p.Name()),
			zap.String("secrets_file", secrets.FileName(cfg.Provider.Name)),
			zap.String("env", secrets.EnvVar(cfg.Provider.Name)))
	}

	calls, err := calllog.Open(cfg.CallLog)
	if err != nil {
		return nil, err
	}

	orch := extract.New(p, reg, cfg.Provider,
		extract.WithLogger(log),
		extract.WithMaxContextChars(cfg.Extraction.MaxContextChars))

	var rt container.Runtime
	if cfg.Gather.UseContainer {
		if rt, err = container.DetectRuntime(ctx); err != nil {
			log.Warn("gather.no_container_runtime", zap.Error(err))
			rt = nil
		}
	}

	pl := pipeline.New(orch, reg,
		pipeline.WithLogger(log),
		pipeline.WithCallLog(calls),
		pipeline.WithFallback(cfg.Extraction.Fallback))

	return &app{
		cfg:      cfg,
		reg:      reg,
		pipeline: pl,
		calls:    calls,
		fetcher:  gather.NewWebsiteFetcher(cfg.Gather.HTTPConfig, httpClient, log),
		docs:     gather.NewDocumentParser(rt, log),
		logger:   log,
	}, nil
}

func (a *app) Close() error {
	return a.calls.Close()
}

func (a *app) newSession() *wizard.Session {
	return wizard.New(a.reg, a.pipeline, wizard.WithLogger(a.logger))
}

// loadWebsite fetches url into s. A URL the session already parsed is not
// fetched again until Reset; reused reports that case.
func (a *app) loadWebsite(ctx context.Context, s *wizard.Session, url string) (page gather.Page, reused bool, err error) {
	u, err := gather.NormalizeURL(url)
	if err != nil {
		return gather.Page{}, false, err
	}
	if prev, text, ok := s.ParsedWebsite(); ok && prev == u {
		a.logger.Debug("gather.website_reused", zap.String("url", u))
		return gather.Page{URL: u, Text: text}, true, nil
	}
	page, err = a.fetcher.Fetch(ctx, u)
	if err != nil {
		return gather.Page{}, false, err
	}
	s.SetWebsite(page.URL, page.Text)
	return page, false, nil
}

// loadDocuments parses paths into s and returns the text size. The same
// path list is parsed at most once per session until Reset.
func (a *app) loadDocuments(ctx context.Context, s *wizard.Session, paths []string) (n int, reused bool, err error) {
	if prev, text, ok := s.ParsedDocuments(); ok && slices.Equal(prev, paths) {
		a.logger.Debug("gather.documents_reused", zap.Strings("paths", paths))
		return len(text), true, nil
	}
	text, err := a.docs.Parse(ctx, paths)
	if err != nil {
		return 0, false, fmt.Errorf("parsing documents: %w", err)
	}
	s.SetDocuments(paths, text)
	return len(text), false, nil
}
