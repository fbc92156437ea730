package types

import "time"

// Debit represents one committed charge against a user's balance.
// A debit is written exactly once, after the provider accepts the job,
// and is never updated or deleted afterwards (audit trail).
type Debit struct {
	ID              string    `db:"id" json:"id"`
	UserAddress     string    `db:"user_address" json:"user_address"`
	ProviderJobID   string    `db:"provider_job_id" json:"provider_job_id"`
	GPUType         string    `db:"gpu_type" json:"gpu_type"`
	Image           string    `db:"image" json:"image"`
	DurationSeconds int       `db:"duration_seconds" json:"duration_seconds"`
	CostUSD         float64   `db:"cost_usd" json:"cost_usd"`
	CostSettlement  float64   `db:"cost_settlement" json:"cost_settlement"`
	RateUSD         float64   `db:"rate_usd" json:"rate_usd"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`

	// Billed is false only when billing was globally disabled at creation
	// time. Unbilled debits are excluded from every spent sum.
	Billed bool `db:"billed" json:"billed"`
}

// LaunchRequest represents the API request to launch a GPU job
type LaunchRequest struct {
	GPUType         string            `json:"gpu_type" validate:"required"`
	Image           string            `json:"image" validate:"required"`
	DurationSeconds int               `json:"duration_seconds" validate:"required,gt=0"`
	Region          *string           `json:"region,omitempty"`
	Command         *string           `json:"command,omitempty"`
	Env             map[string]string `json:"env,omitempty"`
	Ports           map[string]int    `json:"ports,omitempty"`
	Auth            bool              `json:"auth,omitempty"`
}

// LaunchResult is returned to the caller after a job is admitted,
// provisioned and its debit committed.
type LaunchResult struct {
	ID              string  `json:"id"`
	ProviderJobID   string  `json:"provider_job_id"`
	Hostname        string  `json:"hostname,omitempty"`
	GPUType         string  `json:"gpu_type"`
	DurationSeconds int     `json:"duration_seconds"`
	CostUSD         float64 `json:"cost_usd"`
	CostSettlement  float64 `json:"cost_settlement"`
}

// DebitSummary is the compact listing form of a debit
type DebitSummary struct {
	ID             string    `json:"id"`
	ProviderJobID  string    `json:"provider_job_id"`
	GPUType        string    `json:"gpu_type"`
	CostSettlement float64   `json:"cost_settlement"`
	CreatedAt      time.Time `json:"created_at"`
}

// ToSummary converts a debit to its listing form
func (d *Debit) ToSummary() *DebitSummary {
	return &DebitSummary{
		ID:             d.ID,
		ProviderJobID:  d.ProviderJobID,
		GPUType:        d.GPUType,
		CostSettlement: d.CostSettlement,
		CreatedAt:      d.CreatedAt,
	}
}
