// Package redis implements the presence directory on Redis. Live rooms and
// players are stored as JSON values indexed by sets, and every change is
// published on a channel for subscribers in other processes.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cory-johannsen/fairway/internal/directory"
)

// Event is the message published for each notification.
type Event struct {
	Kind   string                `json:"kind"`
	Action string                `json:"action"`
	Room   *directory.RoomInfo   `json:"room,omitempty"`
	Player *directory.PlayerInfo `json:"player,omitempty"`
}

// Directory is a Redis-backed directory.Directory.
type Directory struct {
	client *redis.Client
	cfg    Config
	logger *zap.Logger
}

var _ directory.Directory = (*Directory)(nil)

// New connects to Redis and verifies the connection.
//
// Precondition: cfg.URL must be a valid redis:// URL; logger must not be nil.
// Postcondition: Returns a connected Directory or a non-nil error.
func New(cfg Config, logger *zap.Logger) (*Directory, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return NewWithClient(client, cfg, logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, cfg Config, logger *zap.Logger) *Directory {
	return &Directory{client: client, cfg: cfg, logger: logger}
}

// Close closes the Redis connection.
func (d *Directory) Close() error {
	return d.client.Close()
}

// Health pings Redis.
func (d *Directory) Health(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}

// roomScript applies one room notification atomically. KEYS are the room
// record, the live index and the destroyed index; ARGV are the action, the
// index member, the record, the channel and the event. An update for a room
// in the destroyed index is dropped and the script returns 0.
var roomScript = redis.NewScript(`
local action, member = ARGV[1], ARGV[2]
if action == "destroyed" then
  redis.call("DEL", KEYS[1])
  redis.call("SREM", KEYS[2], member)
  redis.call("SADD", KEYS[3], member)
elseif action == "created" then
  redis.call("SREM", KEYS[3], member)
  redis.call("SET", KEYS[1], ARGV[3])
  redis.call("SADD", KEYS[2], member)
else
  if redis.call("SISMEMBER", KEYS[3], member) == 1 then
    return 0
  end
  redis.call("SET", KEYS[1], ARGV[3])
  redis.call("SADD", KEYS[2], member)
end
redis.call("PUBLISH", ARGV[4], ARGV[5])
return 1
`)

// RoomChanged stores or deletes the room record and publishes the event.
// Destroyed room ids are remembered until the id is created again, so a
// late update cannot bring a destroyed room back.
func (d *Directory) RoomChanged(ctx context.Context, action directory.RoomAction, room directory.RoomInfo) {
	ctx, cancel := d.bound(ctx)
	defer cancel()

	applied, err := d.applyRoom(ctx, action, room)
	switch {
	case err != nil:
		d.logger.Warn("directory room update failed",
			zap.Uint16("room_id", room.ID),
			zap.Stringer("action", action),
			zap.Error(err),
		)
	case !applied:
		d.logger.Debug("stale room update dropped", zap.Uint16("room_id", room.ID))
	}
}

func (d *Directory) applyRoom(ctx context.Context, action directory.RoomAction, room directory.RoomInfo) (bool, error) {
	data, err := json.Marshal(room)
	if err != nil {
		return false, err
	}
	msg, err := json.Marshal(Event{Kind: "room", Action: action.String(), Room: &room})
	if err != nil {
		return false, err
	}
	keys := []string{d.roomKey(room.ID), d.roomIndexKey(), d.destroyedRoomIndexKey()}
	n, err := roomScript.Run(ctx, d.client, keys,
		action.String(), strconv.Itoa(int(room.ID)), data, d.cfg.Channel, msg).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// PresenceChanged stores or deletes the player record and publishes the event.
func (d *Directory) PresenceChanged(ctx context.Context, action directory.PresenceAction, player directory.PlayerInfo) {
	ctx, cancel := d.bound(ctx)
	defer cancel()

	err := d.apply(ctx, d.playerKey(player.ConnID), d.playerIndexKey(), strconv.FormatUint(uint64(player.ConnID), 10),
		action == directory.PresenceLeft, player,
		Event{Kind: "player", Action: action.String(), Player: &player})
	if err != nil {
		d.logger.Warn("directory presence update failed",
			zap.Uint32("conn_id", player.ConnID),
			zap.Stringer("action", action),
			zap.Error(err),
		)
	}
}

func (d *Directory) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.cfg.Timeout)
}

// apply writes or removes one player record and its index entry, then
// publishes ev, all in a single transaction pipeline.
func (d *Directory) apply(ctx context.Context, key, index, member string, remove bool, record any, ev Event) error {
	msg, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	pipe := d.client.TxPipeline()
	if remove {
		pipe.Del(ctx, key)
		pipe.SRem(ctx, index, member)
	} else {
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		pipe.Set(ctx, key, data, 0)
		pipe.SAdd(ctx, index, member)
	}
	pipe.Publish(ctx, d.cfg.Channel, msg)
	_, err = pipe.Exec(ctx)
	return err
}

// Rooms returns every live room ordered by id.
func (d *Directory) Rooms(ctx context.Context) ([]directory.RoomInfo, error) {
	ids, err := d.client.SMembers(ctx, d.roomIndexKey()).Result()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		n, err := strconv.ParseUint(id, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("room index entry %q: %w", id, err)
		}
		keys = append(keys, d.roomKey(uint16(n)))
	}
	out := make([]directory.RoomInfo, 0, len(keys))
	if err := d.loadAll(ctx, keys, func(data []byte) error {
		var r directory.RoomInfo
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	}); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Players returns every present player ordered by connection id.
func (d *Directory) Players(ctx context.Context) ([]directory.PlayerInfo, error) {
	ids, err := d.client.SMembers(ctx, d.playerIndexKey()).Result()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		n, err := strconv.ParseUint(id, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("player index entry %q: %w", id, err)
		}
		keys = append(keys, d.playerKey(uint32(n)))
	}
	out := make([]directory.PlayerInfo, 0, len(keys))
	if err := d.loadAll(ctx, keys, func(data []byte) error {
		var p directory.PlayerInfo
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		out = append(out, p)
		return nil
	}); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConnID < out[j].ConnID })
	return out, nil
}

func (d *Directory) loadAll(ctx context.Context, keys []string, fn func([]byte) error) error {
	if len(keys) == 0 {
		return nil
	}
	vals, err := d.client.MGet(ctx, keys...).Result()
	if err != nil {
		return err
	}
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if err := fn([]byte(s)); err != nil {
			return err
		}
	}
	return nil
}
