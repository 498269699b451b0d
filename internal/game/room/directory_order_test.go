package room_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/cory-johannsen/fairway/internal/directory"
	redisdir "github.com/cory-johannsen/fairway/internal/directory/redis"
	"github.com/cory-johannsen/fairway/internal/game/catalog"
	"github.com/cory-johannsen/fairway/internal/game/room"
)

// slowUpdateDirectory holds the first single-member update until a destroy
// has been applied or a timeout passes.
type slowUpdateDirectory struct {
	directory.Directory
	held      chan struct{}
	destroyed chan struct{}
	holdOnce  sync.Once
	doneOnce  sync.Once
}

func (d *slowUpdateDirectory) RoomChanged(ctx context.Context, action directory.RoomAction, info directory.RoomInfo) {
	if action == directory.RoomUpdated && info.Size == 1 {
		d.holdOnce.Do(func() {
			close(d.held)
			select {
			case <-d.destroyed:
			case <-time.After(200 * time.Millisecond):
			}
		})
	}
	d.Directory.RoomChanged(ctx, action, info)
	if action == directory.RoomDestroyed {
		d.doneOnce.Do(func() { close(d.destroyed) })
	}
}

func TestConcurrentLeavers_DirectoryEndsEmpty(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	mini := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	backing := redisdir.NewWithClient(client, redisdir.DefaultConfig(), logger)
	dir := &slowUpdateDirectory{
		Directory: backing,
		held:      make(chan struct{}),
		destroyed: make(chan struct{}),
	}

	cat, err := catalog.Parse([]byte(testCatalog))
	require.NoError(t, err)
	members := newRegistry(2)
	rooms := room.NewManager(cat, members, dir, bcrypt.MinCost, logger)

	r, err := rooms.Open(ctx, kindLounge, "lounge", "", members[1])
	require.NoError(t, err)
	require.NoError(t, r.Enter(ctx, members[2], ""))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.Leave(ctx, 1)
	}()
	<-dir.held
	r.Leave(ctx, 2)
	wg.Wait()

	assert.False(t, r.Valid())
	assert.Equal(t, 0, rooms.Len())
	listed, err := backing.Rooms(ctx)
	require.NoError(t, err)
	assert.Empty(t, listed)
}
