// Package kv implements a task engine storage backend using a key-value interface.
package kv

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/piecework/piecework/engine/storage"
	"github.com/piecework/piecework/model"
	"github.com/piecework/piecework/utils/kv"
)

// KV is a task engine storage backend using a key-value interface.
type KV struct {
	mu            sync.RWMutex
	instanceStore kv.Bucket
	taskStore     kv.TraversingBucket
}

// New creates a new key-value task engine storage backend.
func New(instanceStore kv.Bucket, taskStore kv.TraversingBucket) *KV {
	return &KV{instanceStore: instanceStore, taskStore: taskStore}
}

// RetrieveInstance implements the storage interface method.
func (s *KV) RetrieveInstance(ctx context.Context, id string) (*model.ProcessInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := new(model.ProcessInstance)
	if err := kv.GetJSON(ctx, s.instanceStore, id, i); errors.Is(err, kv.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", storage.ErrInstanceNotFound, id)
	} else if err != nil {
		return nil, err
	}
	return i, nil
}

func (s *KV) retrieveTask(ctx context.Context, id string) (*model.Task, error) {
	t := new(model.Task)
	if err := kv.GetJSON(ctx, s.taskStore, id, t); errors.Is(err, kv.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", storage.ErrTaskNotFound, id)
	} else if err != nil {
		return nil, err
	}
	return t, nil
}

// RetrieveTask implements the storage interface method.
func (s *KV) RetrieveTask(ctx context.Context, id string) (*model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.retrieveTask(ctx, id)
}

// SearchTasks implements the storage interface method.
// Every task is loaded and matched; there are no secondary indexes.
func (s *KV) SearchTasks(ctx context.Context, c *storage.TaskCriteria) ([]*model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ret []*model.Task
	for _, id := range kv.KeysPrefix(ctx, s.taskStore, "") {
		t, err := s.retrieveTask(ctx, id)
		if errors.Is(err, storage.ErrTaskNotFound) {
			// expired or removed while traversing
			continue
		} else if err != nil {
			return nil, err
		}
		if c.Match(t) {
			ret = append(ret, t)
		}
	}
	storage.SortTasks(ret)
	return ret, nil
}

// StoreInstance implements the storage interface method.
func (s *KV) StoreInstance(ctx context.Context, i *model.ProcessInstance) error {
	if i == nil || i.ID == "" {
		return storage.ErrMissingInstanceID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return kv.SetJSON(ctx, s.instanceStore, i.ID, i)
}

// StoreTask implements the storage interface method.
func (s *KV) StoreTask(ctx context.Context, t *model.Task) error {
	if t == nil || t.ID == "" {
		return storage.ErrMissingTaskID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return kv.SetJSON(ctx, s.taskStore, t.ID, t)
}
