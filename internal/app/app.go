package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github/chapool/twap-rebalancer/internal/api"
	"github/chapool/twap-rebalancer/internal/chain"
	"github/chapool/twap-rebalancer/internal/checkpoint"
	"github/chapool/twap-rebalancer/internal/config"
	"github/chapool/twap-rebalancer/internal/contract"
	"github/chapool/twap-rebalancer/internal/errs"
	"github/chapool/twap-rebalancer/internal/metrics"
	"github/chapool/twap-rebalancer/internal/rebalance"
	"github/chapool/twap-rebalancer/internal/signer"
)

// App keeps all the components of a rebalance run.
// It is initialized with wire, which handles making the new instances of the components
// in the right order. To add a new component, 3 steps are required:
// - declaring it in this struct
// - adding a provider function in providers.go
// - adding the provider's function name to the arguments of wire.Build() in wire.go
//
// For more information about wire refer to https://pkg.go.dev/github.com/google/wire
type App struct {
	Config   config.Config
	Binding  *contract.Binding
	Identity *signer.Identity
	Client   *chain.Client
	Store    checkpoint.Store
	Metrics  *metrics.Service
	Driver   *rebalance.Driver
	// Server is nil when no HTTP address is configured.
	Server *api.Server
}

func newAppWithComponents(
	cfg config.Config,
	binding *contract.Binding,
	identity *signer.Identity,
	client *chain.Client,
	store checkpoint.Store,
	m *metrics.Service,
	driver *rebalance.Driver,
	server *api.Server,
) *App {
	return &App{
		Config:   cfg,
		Binding:  binding,
		Identity: identity,
		Client:   client,
		Store:    store,
		Metrics:  m,
		Driver:   driver,
		Server:   server,
	}
}

// Run executes the rebalance, serving the HTTP surface alongside when configured.
func (a *App) Run(ctx context.Context) (*rebalance.Summary, error) {
	if a.Server != nil {
		if err := a.Server.Listen(); err != nil {
			return nil, &errs.ConfigurationError{Field: config.KeyHTTPAddr, Err: err}
		}

		served := make(chan struct{})
		go func() {
			defer close(served)
			log.Info().Str("addr", a.Server.Addr().String()).Msg("Starting status server")
			if err := a.Server.Start(); err != nil {
				log.Error().Err(err).Msg("Status server stopped")
			}
		}()

		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = a.Server.Shutdown(shutdownCtx)
			<-served
		}()
	}

	return a.Driver.Run(ctx)
}
