package mev

import (
	"strings"

	"github.com/paulwcunningham/FLIS/internal/opportunity"
)

// Provider identifies a bundle relay family.
type Provider string

const (
	ProviderJito  Provider = "jito"
	ProviderSuave Provider = "suave"
)

// chain → default provider. Solana bundles go through the Jito block engine,
// EVM chains through a SUAVE-style builder relay.
var providerByChain = map[string]Provider{
	"solana":    ProviderJito,
	"ethereum":  ProviderSuave,
	"polygon":   ProviderSuave,
	"arbitrum":  ProviderSuave,
	"base":      ProviderSuave,
	"optimism":  ProviderSuave,
	"avalanche": ProviderSuave,
	"bsc":       ProviderSuave,
}

// SelectProvider picks the relay for an opportunity. An explicit preference
// wins; otherwise the chain map decides, defaulting to suave.
func SelectProvider(opp *opportunity.Opportunity) Provider {
	switch strings.ToLower(opp.PreferredMevProvider) {
	case string(ProviderJito):
		return ProviderJito
	case string(ProviderSuave):
		return ProviderSuave
	}
	if p, ok := providerByChain[strings.ToLower(opp.ChainName)]; ok {
		return p
	}
	return ProviderSuave
}
