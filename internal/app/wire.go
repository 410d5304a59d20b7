//go:build wireinject

package app

import (
	"context"

	"github.com/google/wire"
	"github/chapool/twap-rebalancer/internal/api"
	"github/chapool/twap-rebalancer/internal/chain"
	"github/chapool/twap-rebalancer/internal/config"
	"github/chapool/twap-rebalancer/internal/contract"
	"github/chapool/twap-rebalancer/internal/metrics"
	"github/chapool/twap-rebalancer/internal/rebalance"
	"github/chapool/twap-rebalancer/internal/signer"
)

// INJECTORS - https://github.com/google/wire/blob/main/docs/guide.md#injectors

var driverSet = wire.NewSet(
	NewDriver,
	NewOptions,
	NewClock,
	wire.Bind(new(rebalance.Node), new(*chain.Client)),
	wire.Bind(new(rebalance.Signer), new(*signer.Identity)),
	wire.Bind(new(rebalance.CallEncoder), new(*contract.Binding)),
)

var serviceSet = wire.NewSet(
	newAppWithComponents,
	NewBinding,
	NewIdentity,
	NewChainClient,
	NewStore,
	metrics.New,
	driverSet,
	NewServer,
	wire.Bind(new(api.ProgressSource), new(*rebalance.Driver)),
)

// InitNewApp returns a ready to run App. The returned cleanup closes the node connection.
func InitNewApp(
	_ context.Context,
	_ config.Config,
	_ PasswordFunc,
) (*App, func(), error) {
	wire.Build(serviceSet)
	return new(App), nil, nil
}
