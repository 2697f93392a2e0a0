package app

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/jonwraymond/maildispatch/config"
	"github.com/jonwraymond/maildispatch/provider"
	"github.com/jonwraymond/maildispatch/secret"
)

// buildProviders creates providers in configured order. SMTP credentials
// are resolved through resolver.
func buildProviders(ctx context.Context, defs []config.ProviderConfig, resolver *secret.Resolver, clock clockwork.Clock) ([]provider.Provider, error) {
	out := make([]provider.Provider, 0, len(defs))
	for _, def := range defs {
		p, err := buildProvider(ctx, def, resolver, clock)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", def.Name, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func buildProvider(ctx context.Context, def config.ProviderConfig, resolver *secret.Resolver, clock clockwork.Clock) (provider.Provider, error) {
	switch def.Type {
	case config.ProviderSimulated:
		return provider.NewSimulated(provider.SimulatedConfig{
			Name:        def.Name,
			FailureRate: def.FailureRate,
			Latency:     config.Millis(def.LatencyMs),
			Clock:       clock,
		})

	case config.ProviderSMTP:
		username, err := resolver.ResolveValue(ctx, def.SMTP.Username)
		if err != nil {
			return nil, fmt.Errorf("resolve username: %w", err)
		}
		password, err := resolver.ResolveValue(ctx, def.SMTP.Password)
		if err != nil {
			return nil, fmt.Errorf("resolve password: %w", err)
		}
		return provider.NewSMTP(provider.SMTPConfig{
			Name:     def.Name,
			Host:     def.SMTP.Host,
			Port:     def.SMTP.Port,
			Username: username,
			Password: password,
			From:     def.SMTP.From,
			TLS:      def.SMTP.TLS,
			Clock:    clock,
		})

	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownProviderType, def.Type)
	}
}
