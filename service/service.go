// Package service wires configuration, trust anchors and the validation API into a runnable validator
package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"golang.org/x/crypto/ed25519"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/houzhh15/smolcert/cert"
	"github.com/houzhh15/smolcert/config"
	"github.com/houzhh15/smolcert/logging"
	"github.com/houzhh15/smolcert/transport"
)

// Service is a configured certificate validator and its HTTP surface
type Service struct {
	cfg       *config.Config
	logger    logging.Logger
	closers   []func() error
	registry  *cert.Registry
	store     *cert.TrustStore
	validator *cert.Validator
}

// Option customizes a Service
type Option func(*options)

type options struct {
	logger logging.Logger
	clock  cert.Clock
	db     *gorm.DB
}

// WithLogger overrides the logger built from the logging config
func WithLogger(logger logging.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithClock overrides the system clock (tests, historical validation)
func WithClock(clock cert.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithDB supplies an open database for the anchor registry instead of trust.database
func WithDB(db *gorm.DB) Option {
	return func(o *options) { o.db = db }
}

// New builds a Service from configuration.
// Anchors from trust.anchors, trust.anchor_files and the registry are merged into one trust store.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	s := &Service{cfg: cfg, store: cert.NewTrustStore()}

	// Initialize logger
	if o.logger != nil {
		s.logger = o.logger
	} else {
		logger, err := logging.NewLogger(&logging.Config{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			Output: cfg.Logging.Output,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		s.logger = logger
		s.closers = append(s.closers, logger.Close)
	}

	// Initialize audit logger
	var audit logging.AuditLogger
	if cfg.Logging.AuditFile != "" {
		a, err := logging.NewFileAuditLogger(cfg.Logging.AuditFile,
			logging.With(s.logger, "component", "audit"),
			logging.WithRetention(cfg.Logging.AuditRetention))
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to initialize audit logger: %w", err)
		}
		audit = a
		s.closers = append(s.closers, a.Close)
	}

	// Initialize anchor registry
	db := o.db
	if db == nil && cfg.Trust.Database != "" {
		opened, err := gorm.Open(sqlite.Open(cfg.Trust.Database), &gorm.Config{})
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		db = opened
		s.closers = append(s.closers, func() error {
			sqlDB, err := opened.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		})
	}
	if db != nil {
		reg, err := cert.NewRegistry(db, logging.With(s.logger, "component", "registry"))
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to initialize anchor registry: %w", err)
		}
		s.registry = reg
	}

	if err := s.Reload(); err != nil {
		s.Close()
		return nil, err
	}

	policy, err := cert.ParseAnchorPolicy(cfg.Trust.AnchorPolicy)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.validator = cert.NewValidator(&cert.ValidatorConfig{
		TrustStore:   s.store,
		Clock:        o.clock,
		AnchorPolicy: policy,
		Logger:       logging.With(s.logger, "component", "validator"),
		AuditLogger:  audit,
	})

	s.logger.Info("Validator initialized",
		"anchors", s.store.Len(),
		"anchor_policy", policy.String(),
		"registry", s.registry != nil)
	return s, nil
}

// Reload rebuilds the trust store from every configured anchor source and swaps it in atomically.
// Validations in flight keep the anchor set they started with.
func (s *Service) Reload() error {
	anchors := make(map[string]ed25519.PublicKey)

	for _, a := range s.cfg.Trust.Anchors {
		pub, err := a.PublicKeyBytes()
		if err != nil {
			return err
		}
		anchors[a.Identity] = pub
	}

	if len(s.cfg.Trust.AnchorFiles) > 0 {
		fileStore, err := cert.LoadTrustStore(s.cfg.Trust.AnchorFiles...)
		if err != nil {
			return fmt.Errorf("failed to load anchor files: %w", err)
		}
		for id, pub := range fileStore.Anchors() {
			anchors[id] = pub
		}
	}

	if s.registry != nil {
		active, err := s.registry.ActiveAnchors()
		if err != nil {
			return err
		}
		for id, pub := range active {
			anchors[id] = pub
		}
	}

	if err := s.store.Replace(anchors); err != nil {
		return fmt.Errorf("failed to replace trust anchors: %w", err)
	}
	s.logger.Info("Trust anchors loaded", "anchors", len(anchors))
	return nil
}

// Validator returns the configured validator
func (s *Service) Validator() *cert.Validator {
	return s.validator
}

// Registry returns the anchor registry, nil when no database is configured
func (s *Service) Registry() *cert.Registry {
	return s.registry
}

// Logger returns the service logger
func (s *Service) Logger() logging.Logger {
	return s.logger
}

// Handler returns the validation API handler
func (s *Service) Handler() http.Handler {
	return transport.NewValidationHandler(s.validator, logging.With(s.logger, "component", "http"),
		transport.WithMaxBodyBytes(s.cfg.Server.MaxBodyBytes))
}

func (s *Service) newServer() (transport.HTTPServer, error) {
	tlsConfig, err := transport.LoadTLSConfig(s.cfg.Server.CertFile, s.cfg.Server.KeyFile)
	if err != nil {
		return nil, err
	}

	server := transport.NewHTTPServerWithTimeouts(tlsConfig, transport.Timeouts{
		Read:  s.cfg.Server.ReadTimeout,
		Write: s.cfg.Server.WriteTimeout,
		Idle:  s.cfg.Server.IdleTimeout,
	})
	server.RegisterMiddleware(transport.MetricsMiddleware)
	return server, nil
}

// Run serves the validation API on server.addr until ctx is cancelled
func (s *Service) Run(ctx context.Context) error {
	server, err := s.newServer()
	if err != nil {
		return err
	}
	s.logger.Info("Validation API listening", "addr", s.cfg.Server.Addr, "tls", s.cfg.Server.CertFile != "")
	return s.serve(ctx, server, func() error {
		return server.Start(s.cfg.Server.Addr, s.Handler())
	})
}

// Serve serves the validation API on l until ctx is cancelled
func (s *Service) Serve(ctx context.Context, l net.Listener) error {
	server, err := s.newServer()
	if err != nil {
		return err
	}
	s.logger.Info("Validation API listening", "addr", l.Addr().String())
	return s.serve(ctx, server, func() error {
		return server.Serve(l, s.Handler())
	})
}

func (s *Service) serve(ctx context.Context, server transport.HTTPServer, start func() error) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("Shutting down validation API")
		if err := server.Stop(); err != nil {
			return fmt.Errorf("failed to stop server: %w", err)
		}
		return <-errCh
	}
}

// Close releases the audit log, log file and database
func (s *Service) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
