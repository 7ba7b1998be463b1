package main

import (
	"context"
	"fmt"
	"time"

	storageatt "github.com/piecework/piecework/attachment/storage"
	storageattdiskv "github.com/piecework/piecework/attachment/storage/diskv"
	storageattinmem "github.com/piecework/piecework/attachment/storage/inmem"
	storageattkv "github.com/piecework/piecework/attachment/storage/kv"
	storageattminio "github.com/piecework/piecework/attachment/storage/minio"
	storageeng "github.com/piecework/piecework/engine/storage"
	storageengdiskv "github.com/piecework/piecework/engine/storage/diskv"
	storageenginmem "github.com/piecework/piecework/engine/storage/inmem"
	storageengredis "github.com/piecework/piecework/engine/storage/redis"
	storageform "github.com/piecework/piecework/form/storage"
	storageformdiskv "github.com/piecework/piecework/form/storage/diskv"
	storageforminmem "github.com/piecework/piecework/form/storage/inmem"
	storageformmysql "github.com/piecework/piecework/form/storage/mysql"
	storageformredis "github.com/piecework/piecework/form/storage/redis"
	storageproc "github.com/piecework/piecework/process/storage"
	storageprocdiskv "github.com/piecework/piecework/process/storage/diskv"
	storageprocinmem "github.com/piecework/piecework/process/storage/inmem"
	storageprockv "github.com/piecework/piecework/process/storage/kv"
	"github.com/piecework/piecework/utils/kv/kvredis"

	_ "github.com/go-sql-driver/mysql"
)

// fileStoragePath is where file storage lives when the DSN names a database.
const fileStoragePath = "db"

type storageConfig struct {
	form       storageform.Storage
	process    storageproc.Storage
	engine     storageeng.Storage
	attachment storageatt.MetadataStorage
	content    storageatt.ContentStorage
}

func fileStorage(path string) *storageConfig {
	att := storageattdiskv.New(path)
	return &storageConfig{
		form:       storageformdiskv.New(path),
		process:    storageprocdiskv.New(path),
		engine:     storageengdiskv.New(path),
		attachment: att,
		content:    att,
	}
}

func parseStorage(ctx context.Context, name, dsn string, requestTTL time.Duration) (*storageConfig, error) {
	switch name {
	case "inmem":
		att := storageattinmem.New()
		return &storageConfig{
			form:       storageforminmem.New(),
			process:    storageprocinmem.New(),
			engine:     storageenginmem.New(),
			attachment: att,
			content:    att,
		}, nil
	case "file", "diskv":
		if dsn == "" {
			dsn = fileStoragePath
		}
		return fileStorage(dsn), nil
	case "mysql":
		form, err := storageformmysql.New(storageformmysql.WithDSN(dsn))
		if err != nil {
			return nil, err
		}
		s := fileStorage(fileStoragePath)
		s.form = form
		return s, nil
	case "redis":
		client, err := kvredis.NewClient(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return &storageConfig{
			form:       storageformredis.New(client, requestTTL),
			process:    storageprockv.New(kvredis.NewBucket(client, "piecework:process")),
			engine:     storageengredis.New(client),
			attachment: storageattkv.New(kvredis.NewBucket(client, "piecework:attachment:meta")),
			content:    storageattkv.NewContent(kvredis.NewBucket(client, "piecework:attachment:content")),
		}, nil
	}
	return nil, fmt.Errorf("unknown storage: %s", name)
}

// withMinIO replaces attachment content storage with a MinIO bucket.
func (s *storageConfig) withMinIO(ctx context.Context, cfg storageattminio.Config) error {
	content, err := storageattminio.New(ctx, cfg)
	if err != nil {
		return err
	}
	s.content = content
	return nil
}
