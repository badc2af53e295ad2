// internal/scanner/manifests.go
package scanner

import (
	"sort"
)

// Entitlement is a product scope controlling which manifest types an org may import.
type Entitlement string

const (
	EntitlementOpenSource          Entitlement = "openSource"
	EntitlementInfrastructureAsCode Entitlement = "infrastructureAsCode"
	EntitlementDockerfileFromSCM    Entitlement = "dockerfileFromScm"
)

// manifestPatterns maps a project type to the file name patterns that identify it.
var manifestPatterns = map[string][]string{
	"npm":       {"package.json"},
	"yarn":      {"yarn.lock"},
	"rubygems":  {"Gemfile.lock"},
	"pip":       {"*req*.txt", "requirements/*.txt"},
	"poetry":    {"pyproject.toml"},
	"pipenv":    {"Pipfile"},
	"maven":     {"pom.xml"},
	"gradle":    {"build.gradle", "build.gradle.kts"},
	"sbt":       {"build.sbt"},
	"nuget":     {"*.csproj", "*.vbproj", "*.fsproj", "packages.config", "project.json", "project.assets.json"},
	"paket":     {"paket.dependencies"},
	"composer":  {"composer.lock"},
	"gomodules": {"go.mod"},
	"golangdep": {"Gopkg.lock"},
	"govendor":  {"vendor.json"},
	"cocoapods": {"Podfile", "Podfile.lock"},
	"hex":       {"mix.exs"},

	"cloudformationconfig": {"*.yaml", "*.yml", "*.json"},
	"k8sconfig":            {"*.yaml", "*.yml", "*.json"},
	"helmconfig":           {"Chart.yaml"},
	"terraformconfig":      {"*.tf"},

	"dockerfile": {"*Dockerfile*"},
}

var entitlementTypes = map[Entitlement][]string{
	EntitlementOpenSource: {
		"npm", "yarn", "rubygems", "pip", "poetry", "pipenv", "maven", "gradle", "sbt",
		"nuget", "paket", "composer", "gomodules", "golangdep", "govendor", "cocoapods", "hex",
	},
	EntitlementInfrastructureAsCode: {"cloudformationconfig", "k8sconfig", "helmconfig", "terraformconfig"},
	EntitlementDockerfileFromSCM:    {"dockerfile"},
}

// SupportedProjectTypes returns the project types available to the given entitlements.
func SupportedProjectTypes(entitlements []Entitlement) []string {
	seen := make(map[string]struct{})
	var types []string
	for _, e := range entitlements {
		for _, t := range entitlementTypes[e] {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			types = append(types, t)
		}
	}
	sort.Strings(types)
	return types
}

// SupportedManifests returns the file patterns for projectTypes that are
// covered by the entitlements. Unknown types are ignored.
func SupportedManifests(projectTypes []string, entitlements []Entitlement) []string {
	allowed := make(map[string]struct{})
	for _, t := range SupportedProjectTypes(entitlements) {
		allowed[t] = struct{}{}
	}
	seen := make(map[string]struct{})
	var patterns []string
	for _, t := range projectTypes {
		if _, ok := allowed[t]; !ok {
			continue
		}
		for _, p := range manifestPatterns[t] {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			patterns = append(patterns, p)
		}
	}
	return patterns
}

// ResolveProjectTypes returns manifestTypes when given, otherwise every type
// the entitlements cover.
func ResolveProjectTypes(manifestTypes []string, entitlements []Entitlement) []string {
	if len(manifestTypes) > 0 {
		return manifestTypes
	}
	return SupportedProjectTypes(entitlements)
}
