// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package reviewpipe wires storage, credentials, classification, search
// and notification from a configuration into ready-to-run pipelines.
package reviewpipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/poiesic/reviewpipe/ai"
	"github.com/poiesic/reviewpipe/ai/cache"
	"github.com/poiesic/reviewpipe/ai/comprehend"
	"github.com/poiesic/reviewpipe/ai/openai"
	"github.com/poiesic/reviewpipe/config"
	"github.com/poiesic/reviewpipe/core"
	"github.com/poiesic/reviewpipe/index"
	"github.com/poiesic/reviewpipe/index/opensearch"
	"github.com/poiesic/reviewpipe/ingestion"
	"github.com/poiesic/reviewpipe/metrics"
	"github.com/poiesic/reviewpipe/notify/kafka"
	"github.com/poiesic/reviewpipe/storage"
	"github.com/poiesic/reviewpipe/storage/badger"
	"github.com/poiesic/reviewpipe/storage/s3"
	"github.com/poiesic/reviewpipe/storage/secrets"
)

// System holds the collaborators built from a configuration.
type System struct {
	cfg            *config.Config
	backend        *badger.Backend
	journalBackend *badger.Backend
	store          storage.BlobStore
	credentials    storage.CredentialProvider
	connector      index.Connector
	provider       ai.Provider
	cached         *cache.Classifier
	classifier     ai.TextClassifier
	runs           storage.RunRepository
	notifier       *kafka.Notifier
	metrics        *metrics.Metrics
	awsConfig      *aws.Config
	logger         *slog.Logger
}

// Option overrides a collaborator that would otherwise be built from config.
type Option func(*System)

// WithBlobStore uses store instead of the configured storage backend.
func WithBlobStore(store storage.BlobStore) Option {
	return func(s *System) {
		s.store = store
	}
}

// WithCredentials uses provider instead of the configured secrets backend.
func WithCredentials(provider storage.CredentialProvider) Option {
	return func(s *System) {
		s.credentials = provider
	}
}

// WithConnector uses connector instead of an OpenSearch connector.
func WithConnector(connector index.Connector) Option {
	return func(s *System) {
		s.connector = connector
	}
}

// WithClassifier uses classifier instead of the configured backend.
// Caching and instrumentation still apply.
func WithClassifier(classifier ai.TextClassifier) Option {
	return func(s *System) {
		s.classifier = classifier
	}
}

// WithAWSConfig uses cfg for every AWS client instead of loading the default chain.
func WithAWSConfig(cfg aws.Config) Option {
	return func(s *System) {
		s.awsConfig = &cfg
	}
}

// Open validates cfg and builds every collaborator it names.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &System{
		cfg:     cfg,
		metrics: metrics.New(),
		logger:  slog.Default().With("component", "reviewpipe"),
	}
	for _, opt := range opts {
		opt(s)
	}

	steps := []func(context.Context) error{
		s.openStorage,
		s.openJournal,
		s.openCredentials,
		s.openClassifier,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			s.Close()
			return nil, err
		}
	}

	if s.connector == nil {
		s.connector = opensearch.NewConnector(s.credentials,
			opensearch.WithSecretNames(cfg.Secrets.UsernameSecret, cfg.Secrets.PasswordSecret),
			opensearch.WithPort(cfg.Search.Port))
	}
	if len(cfg.Notify.Brokers) > 0 {
		s.notifier = kafka.NewNotifier(kafka.Config{Brokers: cfg.Notify.Brokers, Topic: cfg.Notify.Topic})
	}

	s.logger.Debug("system opened",
		"storage", cfg.Storage.Backend,
		"secrets", cfg.Secrets.Backend,
		"classifier", cfg.Classifier.Backend,
		"journal", s.runs != nil,
		"notify", s.notifier != nil)
	return s, nil
}

func (s *System) loadAWS(ctx context.Context, region string) (aws.Config, error) {
	if s.awsConfig != nil {
		cfg := s.awsConfig.Copy()
		if region != "" {
			cfg.Region = region
		}
		return cfg, nil
	}
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

func (s *System) openStorage(ctx context.Context) error {
	if s.store != nil {
		return nil
	}
	switch s.cfg.Storage.Backend {
	case "s3":
		awsCfg, err := s.loadAWS(ctx, s.cfg.Storage.Region)
		if err != nil {
			return err
		}
		s.store = s3.NewFromConfig(awsCfg)
	default:
		backend, err := badger.OpenBackend(s.cfg.Storage.Path, s.cfg.Storage.InMemory)
		if err != nil {
			return fmt.Errorf("open blob store: %w", err)
		}
		s.backend = backend
		s.store = badger.NewBlobStore(backend)
	}
	return nil
}

func (s *System) openJournal(ctx context.Context) error {
	switch {
	case s.cfg.Pipeline.JournalPath != "":
		backend, err := badger.OpenBackend(s.cfg.Pipeline.JournalPath, false)
		if err != nil {
			return fmt.Errorf("open run journal: %w", err)
		}
		s.journalBackend = backend
		s.runs = badger.NewRunRepository(backend)
	case s.backend != nil:
		s.runs = badger.NewRunRepository(s.backend)
	}
	return nil
}

func (s *System) openCredentials(ctx context.Context) error {
	if s.credentials != nil {
		return nil
	}
	switch s.cfg.Secrets.Backend {
	case "secretsmanager":
		awsCfg, err := s.loadAWS(ctx, s.cfg.Secrets.Region)
		if err != nil {
			return err
		}
		s.credentials = secrets.NewCached(secrets.NewFromConfig(awsCfg))
	default:
		s.credentials = secrets.NewEnv(s.cfg.Secrets.EnvPrefix)
	}
	return nil
}

func (s *System) openClassifier(ctx context.Context) error {
	cc := s.cfg.Classifier
	if s.classifier == nil {
		switch cc.Backend {
		case "none":
			return nil
		case "comprehend":
			awsCfg, err := s.loadAWS(ctx, cc.Region)
			if err != nil {
				return err
			}
			s.classifier = comprehend.NewFromConfig(awsCfg, cc.Language)
		default:
			aiCfg := ai.NewConfig(
				ai.WithClassifierHost(cc.Host),
				ai.WithClassifierModel(cc.Model),
				ai.WithToken(cc.Token),
				ai.WithLanguage(cc.Language),
				ai.WithParseAttempts(cc.ParseAttempts),
			)
			provider, err := openai.NewProvider(aiCfg)
			if err != nil {
				return fmt.Errorf("create classifier: %w", err)
			}
			s.provider = provider
			s.classifier = provider.Classifier()
		}
	}

	s.classifier = s.metrics.InstrumentClassifier(s.classifier)

	var store cache.Store
	switch cc.Cache.Backend {
	case "memory":
		store = cache.NewMemoryStore()
	case "redis":
		redisStore, err := cache.NewRedisStore(cache.RedisOptions{
			Addr:     cc.Cache.Addr,
			Password: cc.Cache.Password,
			DB:       cc.Cache.DB,
			PoolSize: cc.Cache.PoolSize,
		})
		if err != nil {
			return fmt.Errorf("open classification cache: %w", err)
		}
		store = redisStore
	default:
		return nil
	}
	s.cached = cache.New(s.classifier, store, cache.WithTTL(cc.Cache.TTL))
	s.classifier = s.cached
	return nil
}

// Config returns the configuration the system was opened with.
func (s *System) Config() *config.Config {
	return s.cfg
}

// BlobStore returns the object store.
func (s *System) BlobStore() storage.BlobStore {
	return s.store
}

// Runs returns the run journal, or nil when none is configured.
func (s *System) Runs() storage.RunRepository {
	return s.runs
}

// Metrics returns the pipeline collectors.
func (s *System) Metrics() *metrics.Metrics {
	return s.metrics
}

// Classifier returns the effective classifier, or nil when classification is disabled.
func (s *System) Classifier() ai.TextClassifier {
	return s.classifier
}

// NewPipeline builds a pipeline from the system's collaborators.
// opts are applied after the configured ones.
func (s *System) NewPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	base := []ingestion.Option{
		ingestion.WithPoolSize(s.cfg.Classifier.Workers),
		ingestion.WithBulkTimeout(s.cfg.Search.Timeout),
		ingestion.WithFormat(core.Format(s.cfg.Pipeline.Format)),
		ingestion.WithObserver(s.metrics),
	}
	if s.classifier != nil {
		base = append(base, ingestion.WithClassifier(s.classifier))
	}
	if s.runs != nil {
		base = append(base, ingestion.WithNotifier(ingestion.NewJournal(s.runs)))
	}
	if s.notifier != nil {
		base = append(base, ingestion.WithNotifier(s.notifier))
	}
	return ingestion.NewPipeline(s.store, s.connector, append(base, opts...)...)
}

// FlushMetrics writes the metrics textfile when one is configured.
func (s *System) FlushMetrics() error {
	if s.cfg.Metrics.Textfile == "" {
		return nil
	}
	return s.metrics.WriteToTextfile(s.cfg.Metrics.Textfile)
}

// Close releases every collaborator and returns the combined errors.
func (s *System) Close() error {
	var errs []error
	if s.notifier != nil {
		if err := s.notifier.Close(); err != nil {
			s.logger.Error("error closing notifier", "err", err)
			errs = append(errs, err)
		}
	}
	if s.cached != nil {
		if err := s.cached.Close(); err != nil {
			s.logger.Error("error closing classification cache", "err", err)
			errs = append(errs, err)
		}
	}
	if s.provider != nil {
		if err := s.provider.Close(); err != nil {
			s.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	if s.journalBackend != nil {
		if err := s.journalBackend.Close(); err != nil {
			s.logger.Error("error closing run journal", "err", err)
			errs = append(errs, err)
		}
	}
	if s.backend != nil {
		if err := s.backend.Close(); err != nil {
			s.logger.Error("error closing backend storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
