package orchestrator

import (
	"fmt"
	"strings"

	"github.com/younsl/autopaused/pkg/provider"
)

// Deployment is where GPU workloads run for a customer
type Deployment string

const (
	DeploymentSaaS      Deployment = "saas"       // shared infrastructure we operate
	DeploymentBYOC      Deployment = "byoc"       // customer's own cloud account
	DeploymentOnPremise Deployment = "on_premise" // customer's data center
	DeploymentHybrid    Deployment = "hybrid"
)

// ParseDeployment validates a deployment name
func ParseDeployment(s string) (Deployment, error) {
	d := Deployment(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case DeploymentSaaS, DeploymentBYOC, DeploymentOnPremise, DeploymentHybrid:
		return d, nil
	}
	return "", fmt.Errorf("unknown deployment %q (want saas, byoc, on_premise or hybrid)", s)
}

// Policy maps each deployment to provider names in preference order
type Policy map[Deployment][]string

// DefaultPolicy returns the built-in preference orders. Serverless comes
// first where we own the infrastructure since it suspends on its own.
func DefaultPolicy() Policy {
	return Policy{
		DeploymentSaaS:      {"lambda", "ec2", "mock"},
		DeploymentBYOC:      {"ec2"},
		DeploymentOnPremise: {"mock"},
		DeploymentHybrid:    {"lambda", "ec2", "mock"},
	}
}

// With returns a copy of p with d's preference order replaced
func (p Policy) With(d Deployment, preferences []string) Policy {
	out := make(Policy, len(p)+1)
	for k, v := range p {
		out[k] = v
	}
	out[d] = append([]string(nil), preferences...)
	return out
}

// Select returns the first provider in d's preference order that is
// available and supports gpuType. It has no side effects.
func (p Policy) Select(d Deployment, gpuType string, available []provider.Client) (provider.Client, error) {
	preferences, ok := p[d]
	if !ok {
		return nil, fmt.Errorf("%w: no policy for deployment %q", ErrNoProviderAvailable, d)
	}

	byName := make(map[string]provider.Client, len(available))
	for _, c := range available {
		if _, dup := byName[c.Name()]; !dup {
			byName[c.Name()] = c
		}
	}

	for _, name := range preferences {
		c, ok := byName[name]
		if ok && c.SupportsGPU(gpuType) {
			return c, nil
		}
	}

	return nil, fmt.Errorf("%w: deployment %s, gpu %s (preferences %v)", ErrNoProviderAvailable, d, gpuType, preferences)
}
