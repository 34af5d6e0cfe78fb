package domain

import (
	"context"
)

// ClassificationSource supplies the FORTA reference table.
type ClassificationSource interface {
	LoadClassification(ctx context.Context) ([]ClassificationRow, error)
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetReferenceConfig() *ReferenceConfig
	GetEvaluationConfig() *EvaluationConfig
	Validate() error
	IsProduction() bool
	IsDevelopment() bool
}
