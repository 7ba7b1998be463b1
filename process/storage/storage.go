// Package storage defines interfaces for process and deployment storage backends.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/piecework/piecework/model"
)

var (
	ErrProcessNotFound     = errors.New("process not found")
	ErrDeploymentNotFound  = errors.New("deployment not found")
	ErrDeploymentPublished = errors.New("deployment is published and can no longer be edited")
)

// ReadStorage retrieves processes and their deployments.
type ReadStorage interface {
	// RetrieveProcess returns ErrProcessNotFound if key has not been stored.
	// Deleted processes are returned with their Deleted flag set.
	RetrieveProcess(ctx context.Context, key string) (*model.Process, error)

	// RetrieveProcesses returns all stored processes, including deleted ones.
	RetrieveProcesses(ctx context.Context) ([]*model.Process, error)

	// RetrieveDeployment returns ErrDeploymentNotFound if the deployment has not been stored.
	RetrieveDeployment(ctx context.Context, key, deploymentID string) (*model.ProcessDeployment, error)
}

// Storage stores processes and deployments.
type Storage interface {
	ReadStorage

	StoreProcess(ctx context.Context, p *model.Process) error

	// DeleteProcess marks the process deleted. Its deployments are kept.
	DeleteProcess(ctx context.Context, key string) error

	// StoreDeployment stores d for the process key.
	// Implementations must return ErrDeploymentPublished when a published
	// deployment with the same ID exists and differs from d.
	StoreDeployment(ctx context.Context, key string, d *model.ProcessDeployment) error

	// PublishDeployment freezes the deployment and makes it the process's current deployment.
	PublishDeployment(ctx context.Context, key, deploymentID string, at time.Time) error
}
