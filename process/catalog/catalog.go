// Package catalog loads process definitions from YAML and seeds process storage.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/piecework/piecework/model"
	"github.com/piecework/piecework/process/storage"

	"gopkg.in/yaml.v3"
)

// Entry is a process and its deployments.
// A deployment marked published is published after it is stored.
type Entry struct {
	model.Process `yaml:",inline"`
	Deployments   []*model.ProcessDeployment `yaml:"deployments"`
}

// Catalog is a YAML document of processes.
type Catalog struct {
	Processes []*Entry `yaml:"processes"`
}

// Parse decodes a YAML catalog and validates its entries.
func Parse(data []byte) (*Catalog, error) {
	c := new(Catalog)
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	for i, e := range c.Processes {
		if e == nil {
			return nil, fmt.Errorf("process %d: %w", i, model.ErrMissingProcessKey)
		}
		if err := e.Process.Validate(); err != nil {
			return nil, fmt.Errorf("process %d: %w", i, err)
		}
		for _, d := range e.Deployments {
			if err := d.Validate(); err != nil {
				return nil, fmt.Errorf("process %s: %w", e.Key, err)
			}
		}
	}
	return c, nil
}

// Load reads and parses the catalog at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Seed stores every process and deployment of c in s.
// A current deployment already stored for a process is kept unless
// the catalog publishes another.
func (c *Catalog) Seed(ctx context.Context, s storage.Storage, at time.Time) error {
	for _, e := range c.Processes {
		p := e.Process
		existing, err := s.RetrieveProcess(ctx, p.Key)
		if err != nil && !errors.Is(err, storage.ErrProcessNotFound) {
			return err
		}
		if existing != nil && p.DeploymentID == "" {
			p.DeploymentID = existing.DeploymentID
		}
		if err = s.StoreProcess(ctx, &p); err != nil {
			return fmt.Errorf("storing process %s: %w", p.Key, err)
		}
		for _, d := range e.Deployments {
			publish := d.Published
			stored := *d
			stored.Published = false
			stored.PublishedAt = time.Time{}
			if err = s.StoreDeployment(ctx, p.Key, &stored); err != nil {
				return fmt.Errorf("storing deployment %s/%s: %w", p.Key, d.ID, err)
			}
			if publish {
				if err = s.PublishDeployment(ctx, p.Key, d.ID, at); err != nil {
					return fmt.Errorf("publishing deployment %s/%s: %w", p.Key, d.ID, err)
				}
			}
		}
	}
	return nil
}
