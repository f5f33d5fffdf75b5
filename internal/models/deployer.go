package models

import "time"

// DeployerStats summarizes one wallet's launches as seen by the registry.
type DeployerStats struct {
	Wallet            string     `json:"wallet"`
	FirstSeenAt       *time.Time `json:"firstSeenAt,omitempty"`
	LastDeploymentAt  *time.Time `json:"lastDeploymentAt,omitempty"`
	TotalDeployments  int        `json:"totalDeployments"`
	BondedDeployments int        `json:"bondedDeployments"`
}
