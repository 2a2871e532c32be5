package issuance

import (
	"context"

	"oid4vci-issuer/pkg/logger"
	"oid4vci-issuer/pkg/openid4vci"
	"oid4vci-issuer/pkg/trace"
)

// CredentialMatcher matches a credential request against a session's
// offered configurations under format-specific rules.
type CredentialMatcher struct {
	log    *logger.Log
	tracer *trace.Tracer
}

// NewCredentialMatcher creates a CredentialMatcher.
func NewCredentialMatcher(log *logger.Log, tracer *trace.Tracer) *CredentialMatcher {
	return &CredentialMatcher{log: log.New("credential_matcher"), tracer: tracer}
}

// Match returns the non-empty mapping of configuration_id -> configuration
// that request satisfies, given the offer payload and the issuer's
// supported configurations.
func (m *CredentialMatcher) Match(
	ctx context.Context,
	issuer *IssuerRecord,
	session *IssuanceSession,
	request *CredentialRequest,
) (map[string]openid4vci.CredentialConfigurationsSupported, error) {
	ctx, span := m.tracer.Start(ctx, "issuance:matcher:match")
	defer span.End()

	offeredConfigurations, order := offeredConfigurations(issuer, session)

	if request.CredentialIdentifier != "" {
		cfg, ok := offeredConfigurations[request.CredentialIdentifier]
		if !ok {
			return nil, newError(ErrCodeNotOffered, errNotOffered)
		}
		return map[string]openid4vci.CredentialConfigurationsSupported{request.CredentialIdentifier: cfg}, nil
	}

	var matchedIDs []string
	for _, id := range order {
		cfg := offeredConfigurations[id]
		if CredentialFormat(cfg.Format) != request.Format {
			continue
		}
		if session.HasIssued(id) {
			continue
		}
		if !formatPredicate(request.Format, cfg, request) {
			continue
		}
		matchedIDs = append(matchedIDs, id)
	}

	if len(matchedIDs) == 0 {
		return nil, newError(ErrCodeNoMatchingOffer, errNoMatchingOffer)
	}

	if len(matchedIDs) > 1 {
		m.log.Debug("multiple offered configurations match request, picking the first", "matched", matchedIDs)
		span.SetAttributes(trace.SafeAttr("issuance.matcher.tie_break_candidates", &matchedIDs))
	}

	chosen := matchedIDs[0]
	return map[string]openid4vci.CredentialConfigurationsSupported{chosen: offeredConfigurations[chosen]}, nil
}

// offeredConfigurations intersects the session's offered ids (whichever of
// draft-13 credential_configuration_ids or draft-11 credentials it carries)
// with the issuer's supported set, preserving the session's offer order.
func offeredConfigurations(issuer *IssuerRecord, session *IssuanceSession) (map[string]openid4vci.CredentialConfigurationsSupported, []string) {
	offeredIDs := session.OfferedCredentials
	if session.CredentialOfferPayloadV11 != nil {
		offeredIDs = session.CredentialOfferPayloadV11.Credentials
	} else if session.CredentialOfferPayload != nil {
		offeredIDs = session.CredentialOfferPayload.CredentialConfigurationIDs
	}

	result := make(map[string]openid4vci.CredentialConfigurationsSupported, len(offeredIDs))
	order := make([]string, 0, len(offeredIDs))
	for _, id := range offeredIDs {
		cfg, ok := issuer.ConfigurationByID(id)
		if !ok {
			continue
		}
		result[id] = cfg
		order = append(order, id)
	}
	return result, order
}

// formatPredicate dispatches the format-specific matching rule.
func formatPredicate(format CredentialFormat, cfg openid4vci.CredentialConfigurationsSupported, request *CredentialRequest) bool {
	switch format {
	case FormatJwtVcJson:
		return equalAsSets(cfg.CredentialDefinition.Type, request.requestedTypes())
	case FormatJwtVcJsonLd, FormatLdpVc:
		return equalAsSets(cfg.CredentialDefinition.Type, request.requestedTypes())
	case FormatSdJwtVc:
		return cfg.VCT == request.VCT
	case FormatMsoMdoc:
		return cfg.Doctype == request.Doctype
	default:
		return false
	}
}

// equalAsSets reports whether a and b contain the same elements, order
// independent, treating them as multisets of type IRIs.
func equalAsSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, v := range a {
		counts[v]++
	}
	for _, v := range b {
		counts[v]--
		if counts[v] < 0 {
			return false
		}
	}
	for _, n := range counts {
		if n != 0 {
			return false
		}
	}
	return true
}
