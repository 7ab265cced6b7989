package app

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/escolab/boletim/internal/grading"
	"github.com/escolab/boletim/internal/report"
	"github.com/escolab/boletim/internal/store"
)

type Service struct {
	Config  *Config
	Store   store.BoletimStore
	Auth    *Auth
	Boletim *grading.Manager
	Reports *report.Assembler
}

func NewService(configPath string) (*Service, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	st, err := NewStore(config.Database.DSN, config.Database.MigrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}

	auth, err := NewAuth(config)
	if err != nil {
		return nil, fmt.Errorf("failed to init auth: %w", err)
	}

	return &Service{
		Config:  config,
		Store:   st,
		Auth:    auth,
		Boletim: grading.NewManager(st, config.Grading),
		Reports: report.NewAssembler(st, config.Grading),
	}, nil
}

// Actor reads the acting user and role from request headers. The HTTP layer
// never relies on ambient request state: every manager call takes the actor
// explicitly.
func (s *Service) Actor(r *http.Request) grading.Actor {
	role := grading.Role(strings.ToLower(r.Header.Get(s.Config.API.RoleHeader)))
	return grading.Actor{
		ID:   r.Header.Get(s.Config.API.ActorHeader),
		Role: role,
	}
}

func (s *Service) ValidateAuthAndActor(r *http.Request, actor grading.Actor) error {
	if !s.Config.Server.EnableAuth {
		return nil
	}

	authHeader := r.Header.Get(s.Auth.tokenHeader)
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return fmt.Errorf("Invalid authorization header format")
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")

	return s.Auth.ValidateToken(r.Context(), string(actor.Role), actor.ID, token)
}

func (s *Service) ValidateHeaders(headers map[string][]string) bool {
	for _, required := range s.Config.API.RequiredHeaders {
		value := headers[http.CanonicalHeaderKey(required.Name)]
		if len(value) == 0 || !strings.EqualFold(value[0], required.Value) {
			return false
		}
	}
	return true
}

func (s *Service) Close() error {
	var errs []error

	if err := s.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	if err := s.Auth.Close(); err != nil {
		errs = append(errs, fmt.Errorf("auth: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors while closing: %v", errs)
	}
	return nil
}
