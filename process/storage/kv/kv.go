// Package kv implements a process storage backend using JSON with key-value storage.
package kv

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/piecework/piecework/model"
	"github.com/piecework/piecework/process/storage"
	"github.com/piecework/piecework/utils/kv"
)

const (
	keyPfxProcess    = "proc."
	keyPfxDeployment = "dep."
)

// KV is a process storage backend using JSON with key-value storage.
type KV struct {
	mu sync.RWMutex
	b  kv.TraversingBucket
}

func New(b kv.TraversingBucket) *KV {
	return &KV{b: b}
}

func deploymentKey(key, deploymentID string) string {
	return keyPfxDeployment + key + "." + deploymentID
}

func (s *KV) retrieveProcess(ctx context.Context, key string) (*model.Process, error) {
	p := new(model.Process)
	if err := kv.GetJSON(ctx, s.b, keyPfxProcess+key, p); errors.Is(err, kv.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", storage.ErrProcessNotFound, key)
	} else if err != nil {
		return nil, err
	}
	return p, nil
}

// RetrieveProcess unmarshals the JSON stored for the process key.
func (s *KV) RetrieveProcess(ctx context.Context, key string) (*model.Process, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.retrieveProcess(ctx, key)
}

// RetrieveProcesses returns every stored process sorted by key.
func (s *KV) RetrieveProcesses(ctx context.Context) ([]*model.Process, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := kv.KeysPrefix(ctx, s.b, keyPfxProcess)
	sort.Strings(keys)
	var ret []*model.Process
	for _, key := range keys {
		p, err := s.retrieveProcess(ctx, key)
		if err != nil {
			return ret, err
		}
		ret = append(ret, p)
	}
	return ret, nil
}

func (s *KV) retrieveDeployment(ctx context.Context, key, deploymentID string) (*model.ProcessDeployment, error) {
	d := new(model.ProcessDeployment)
	if err := kv.GetJSON(ctx, s.b, deploymentKey(key, deploymentID), d); errors.Is(err, kv.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s/%s", storage.ErrDeploymentNotFound, key, deploymentID)
	} else if err != nil {
		return nil, err
	}
	return d, nil
}

// RetrieveDeployment unmarshals the JSON stored for the deployment.
func (s *KV) RetrieveDeployment(ctx context.Context, key, deploymentID string) (*model.ProcessDeployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.retrieveDeployment(ctx, key, deploymentID)
}

// StoreProcess marshals p into JSON and stores it by key.
func (s *KV) StoreProcess(ctx context.Context, p *model.Process) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return kv.SetJSON(ctx, s.b, keyPfxProcess+p.Key, p)
}

// DeleteProcess marks the process deleted.
func (s *KV) DeleteProcess(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.retrieveProcess(ctx, key)
	if err != nil {
		return err
	}
	p.Deleted = true
	return kv.SetJSON(ctx, s.b, keyPfxProcess+key, p)
}

// StoreDeployment stores d unless a differing published deployment exists.
func (s *KV) StoreDeployment(ctx context.Context, key string, d *model.ProcessDeployment) error {
	if err := d.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, err := s.retrieveDeployment(ctx, key, d.ID)
	if err != nil && !errors.Is(err, storage.ErrDeploymentNotFound) {
		return err
	}
	if existing != nil && !existing.Editable() {
		if sameDefinition(existing, d) {
			return nil
		}
		return fmt.Errorf("%w: %s/%s", storage.ErrDeploymentPublished, key, d.ID)
	}
	return kv.SetJSON(ctx, s.b, deploymentKey(key, d.ID), d)
}

// PublishDeployment freezes the deployment and points the process at it.
func (s *KV) PublishDeployment(ctx context.Context, key, deploymentID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.retrieveProcess(ctx, key)
	if err != nil {
		return err
	}
	d, err := s.retrieveDeployment(ctx, key, deploymentID)
	if err != nil {
		return err
	}
	if d.Editable() {
		d.Published = true
		d.PublishedAt = at
		if err = kv.SetJSON(ctx, s.b, deploymentKey(key, deploymentID), d); err != nil {
			return err
		}
	}
	p.DeploymentID = deploymentID
	return kv.SetJSON(ctx, s.b, keyPfxProcess+key, p)
}

// sameDefinition reports whether a and b define the same activities.
// Publication metadata is ignored.
func sameDefinition(a, b *model.ProcessDeployment) bool {
	if a.StartActivityKey != b.StartActivityKey {
		return false
	}
	rawA, errA := json.Marshal(a.Activities)
	rawB, errB := json.Marshal(b.Activities)
	return errA == nil && errB == nil && bytes.Equal(rawA, rawB)
}
