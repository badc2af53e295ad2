// internal/model/integration.go
package model

import (
	custom_errors "scm-project-sync/internal/errors"
)

// IntegrationType is the source provider a project or target was imported from.
type IntegrationType string

const (
	IntegrationGitHub           IntegrationType = "github"
	IntegrationGitHubEnterprise IntegrationType = "github-enterprise"
	IntegrationBitbucketCloud   IntegrationType = "bitbucket-cloud"
)

// ParseIntegrationType maps a raw origin onto a known integration type.
func ParseIntegrationType(origin string) (IntegrationType, error) {
	switch t := IntegrationType(origin); t {
	case IntegrationGitHub, IntegrationGitHubEnterprise, IntegrationBitbucketCloud:
		return t, nil
	default:
		return "", &custom_errors.UnsupportedIntegrationError{Type: origin}
	}
}

// SupportsSync reports whether projects of this type can be reconciled
// against a clone of their repository.
func (t IntegrationType) SupportsSync() bool {
	return t == IntegrationGitHub || t == IntegrationGitHubEnterprise
}
