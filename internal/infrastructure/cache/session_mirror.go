// Package cache keeps per-device session snapshots in Redis.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/go-storefront-session/internal/application"
	"github.com/oksasatya/go-storefront-session/pkg/helpers"
)

func sessionKey(deviceID string) string {
	return "device:session:" + deviceID
}

// MirroredSession is the stored form of a device snapshot.
type MirroredSession struct {
	DeviceID  string               `json:"device_id"`
	Snapshot  application.Snapshot `json:"snapshot"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// SessionMirror stores device snapshots as JSON strings with the device idle
// TTL, so a mirrored entry expires with the device.
type SessionMirror struct {
	rdb *redis.Client
	now func() time.Time
}

func NewSessionMirror(rdb *redis.Client) *SessionMirror {
	return &SessionMirror{rdb: rdb, now: func() time.Time { return time.Now().UTC() }}
}

func (m *SessionMirror) Save(ctx context.Context, deviceID string, snap application.Snapshot, ttl time.Duration) error {
	rec := MirroredSession{DeviceID: deviceID, Snapshot: snap, UpdatedAt: m.now()}
	return helpers.RedisSetJSON(ctx, m.rdb, sessionKey(deviceID), rec, ttl)
}

func (m *SessionMirror) Delete(ctx context.Context, deviceID string) error {
	return helpers.RedisDel(ctx, m.rdb, sessionKey(deviceID))
}

// Load returns the mirrored session for deviceID, or nil when none is stored.
func (m *SessionMirror) Load(ctx context.Context, deviceID string) (*MirroredSession, error) {
	var rec MirroredSession
	ok, err := helpers.RedisGetJSON(ctx, m.rdb, sessionKey(deviceID), &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &rec, nil
}

var _ application.SessionMirror = (*SessionMirror)(nil)
