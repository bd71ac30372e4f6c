package models

import "time"

// Binding ties a provisioned instance to the provider that backs it
type Binding struct {
	InstanceID   string    // provider-side identifier (EC2 instance ID, Lambda function name)
	OwnerID      string    // owning user or account
	Provider     string    // provider name, e.g. "ec2", "lambda"
	GPUType      string    // e.g. "T4", "A10G", "A100"
	InstanceType string    // provider instance size, if any (e.g. "g5.xlarge")
	Region       string    // AWS region or provider location
	HourlyRate   float64   // USD per hour while running
	CreatedAt    time.Time // when the binding was recorded
}
