package repository

import (
	"context"

	drepo "SigPulse/internal/domain/repository"
	"SigPulse/pkg/config"
)

type staticCredential struct {
	identity string
	tier     drepo.Tier
}

// StaticEntitlements resolves API credentials from the config file's
// credential table. Production swaps this for the billing-system client
// behind the same interface.
type StaticEntitlements struct {
	byToken map[string]staticCredential
}

func NewStaticEntitlements(cfg *config.Config) *StaticEntitlements {
	byToken := make(map[string]staticCredential, len(cfg.Gateway.Credentials))
	for _, c := range cfg.Gateway.Credentials {
		if c.Token == "" {
			continue
		}
		byToken[c.Token] = staticCredential{
			identity: c.Identity,
			tier:     drepo.NormalizeTier(c.Tier),
		}
	}
	return &StaticEntitlements{byToken: byToken}
}

func (e *StaticEntitlements) Resolve(_ context.Context, credential string) (string, drepo.Tier, error) {
	c, ok := e.byToken[credential]
	if !ok {
		return "", "", drepo.ErrUnknownCredential
	}
	return c.identity, c.tier, nil
}

var _ drepo.Entitlements = (*StaticEntitlements)(nil)
