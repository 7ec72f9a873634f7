// Package app picks the storage, queue and realtime backends named in the config
// and seeds the accounts a fresh deployment needs.
package app

import (
	"fmt"
	"log/slog"

	"campushub/internal/blob"
	"campushub/internal/config"
	"campushub/internal/queue"
	"campushub/internal/realtime"
	"campushub/internal/store"
)

var (
	QueueKey        = store.Key("jobs")
	RealtimePrefix  = store.Key("realtime", "")
	RateLimitPrefix = store.Key("ratelimit", "")
)

// Storage returns the configured blob store wrapped with metrics. The second value
// is the local backend when one is in use, so its files can be served.
func Storage(cfg config.App) (blob.Store, *blob.Local, error) {
	switch cfg.StorageBackend {
	case "cloudinary":
		if !cfg.CloudinaryConfigured() {
			return nil, nil, fmt.Errorf("storage backend cloudinary needs CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET")
		}
		slog.Info("storage: cloudinary", "cloud", cfg.CloudinaryCloudName, "folder", cfg.CloudinaryFolder)
		c := blob.NewCloudinary(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		return blob.Instrumented{Store: c}, nil, nil
	case "local", "":
		l, err := blob.NewLocal(cfg.StorageDir, cfg.PublicBaseURL)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("storage: local disk", "dir", cfg.StorageDir)
		return blob.Instrumented{Store: l}, l, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// Queue returns the job queue. The memory queue only reaches consumers in the
// same process.
func Queue(cfg config.App, r *store.Redis) queue.Queue {
	if cfg.QueueBackend == "memory" {
		return queue.NewInMemory(64)
	}
	return queue.NewRedisQueue(r.Client, QueueKey)
}

// Broker returns the realtime change broker.
func Broker(cfg config.App, r *store.Redis) realtime.Broker {
	if cfg.RealtimeBackend == "memory" {
		return realtime.NewMemory(64)
	}
	return realtime.NewRedis(r.Client, RealtimePrefix)
}
