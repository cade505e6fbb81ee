package rediscache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilabs/users-api/pkg/apperrors"
)

// scriptedHook answers every command from the test's script before it can
// reach the network, so the encode/decode paths in Get and Set run against
// controlled replies.
type scriptedHook struct {
	handle func(cmd redis.Cmder)
	seen   []redis.Cmder
}

func (h *scriptedHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *scriptedHook) ProcessHook(redis.ProcessHook) redis.ProcessHook {
	return func(_ context.Context, cmd redis.Cmder) error {
		h.seen = append(h.seen, cmd)
		h.handle(cmd)
		return cmd.Err()
	}
}

func (h *scriptedHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func newScriptedClient(handle func(cmd redis.Cmder)) (*Client, *scriptedHook) {
	hook := &scriptedHook{handle: handle}
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	rdb.AddHook(hook)
	return &Client{rdb: rdb}, hook
}

type cachedUser struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

func TestGetDecodesJSON(t *testing.T) {
	c, _ := newScriptedClient(func(cmd redis.Cmder) {
		cmd.(*redis.StringCmd).SetVal(`{"id":7,"email":"a@x.com"}`)
	})

	var u cachedUser
	found, err := c.Get(context.Background(), "user:7", &u)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, cachedUser{ID: 7, Email: "a@x.com"}, u)
}

func TestGetMissIsNotAnError(t *testing.T) {
	c, _ := newScriptedClient(func(cmd redis.Cmder) {
		cmd.(*redis.StringCmd).SetErr(redis.Nil)
	})

	var u cachedUser
	found, err := c.Get(context.Background(), "user:404", &u)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetRawStringFallback(t *testing.T) {
	// not valid JSON, but a *string dest still gets the raw bytes
	c, _ := newScriptedClient(func(cmd redis.Cmder) {
		cmd.(*redis.StringCmd).SetVal("plain text value")
	})

	var s string
	found, err := c.Get(context.Background(), "note", &s)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "plain text value", s)
}

func TestGetQuotedStringDecodesAsJSON(t *testing.T) {
	c, _ := newScriptedClient(func(cmd redis.Cmder) {
		cmd.(*redis.StringCmd).SetVal(`"hello"`)
	})

	var s string
	found, err := c.Get(context.Background(), "note", &s)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "hello", s)
}

func TestGetCorruptPayloadIntoStruct(t *testing.T) {
	c, _ := newScriptedClient(func(cmd redis.Cmder) {
		cmd.(*redis.StringCmd).SetVal("not-json")
	})

	var u cachedUser
	found, err := c.Get(context.Background(), "user:7", &u)
	assert.False(t, found)
	var ce *apperrors.CacheError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "get", ce.Op)
	assert.Equal(t, "user:7", ce.Key)
}

func TestGetTransportFailureIsCacheError(t *testing.T) {
	c, _ := newScriptedClient(func(cmd redis.Cmder) {
		cmd.(*redis.StringCmd).SetErr(assert.AnError)
	})

	var u cachedUser
	found, err := c.Get(context.Background(), "user:7", &u)
	assert.False(t, found)
	var ce *apperrors.CacheError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "get", ce.Op)
}

func TestSetEncodesStructsAsJSON(t *testing.T) {
	c, hook := newScriptedClient(func(cmd redis.Cmder) {
		cmd.(*redis.StatusCmd).SetVal("OK")
	})

	u := cachedUser{ID: 7, Email: "a@x.com"}
	require.NoError(t, c.Set(context.Background(), "user:7", u, 5*time.Minute))

	require.Len(t, hook.seen, 1)
	args := hook.seen[0].Args()
	require.GreaterOrEqual(t, len(args), 3)
	assert.Equal(t, "set", args[0])
	assert.Equal(t, "user:7", args[1])

	var stored cachedUser
	require.NoError(t, json.Unmarshal(args[2].([]byte), &stored))
	assert.Equal(t, u, stored)

	// the ttl must make it onto the wire
	require.Len(t, args, 5)
	assert.Equal(t, "ex", args[3])
}

func TestSetStoresStringsRaw(t *testing.T) {
	c, hook := newScriptedClient(func(cmd redis.Cmder) {
		cmd.(*redis.StatusCmd).SetVal("OK")
	})

	require.NoError(t, c.Set(context.Background(), "note", "plain text value", 0))

	require.Len(t, hook.seen, 1)
	args := hook.seen[0].Args()
	// zero ttl means no expiry argument at all
	require.Len(t, args, 3)
	assert.Equal(t, "plain text value", args[2])
}

func TestSetStoresBytesRaw(t *testing.T) {
	c, hook := newScriptedClient(func(cmd redis.Cmder) {
		cmd.(*redis.StatusCmd).SetVal("OK")
	})

	require.NoError(t, c.Set(context.Background(), "blob", []byte("\x00\x01"), 0))

	args := hook.seen[0].Args()
	assert.Equal(t, []byte("\x00\x01"), args[2])
}

func TestSetUnencodableValue(t *testing.T) {
	c, hook := newScriptedClient(func(cmd redis.Cmder) {
		t.Fatal("no command should reach the connection")
	})

	err := c.Set(context.Background(), "bad", func() {}, 0)
	var ce *apperrors.CacheError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "set", ce.Op)
	assert.Empty(t, hook.seen)
}

func TestDeleteReportsCount(t *testing.T) {
	c, _ := newScriptedClient(func(cmd redis.Cmder) {
		cmd.(*redis.IntCmd).SetVal(1)
	})

	n, err := c.Delete(context.Background(), "user:7")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestExists(t *testing.T) {
	c, _ := newScriptedClient(func(cmd redis.Cmder) {
		cmd.(*redis.IntCmd).SetVal(1)
	})
	ok, err := c.Exists(context.Background(), "user:7")
	require.NoError(t, err)
	assert.True(t, ok)

	c, _ = newScriptedClient(func(cmd redis.Cmder) {
		cmd.(*redis.IntCmd).SetVal(0)
	})
	ok, err = c.Exists(context.Background(), "user:404")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTTLSentinels(t *testing.T) {
	// -1: key exists without expiry
	c, _ := newScriptedClient(func(cmd redis.Cmder) {
		cmd.(*redis.DurationCmd).SetVal(time.Duration(-1))
	})
	d, err := c.TTL(context.Background(), "user:7")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-1), d)

	// -2: key is gone
	c, _ = newScriptedClient(func(cmd redis.Cmder) {
		cmd.(*redis.DurationCmd).SetVal(time.Duration(-2))
	})
	d, err = c.TTL(context.Background(), "user:404")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-2), d)

	c, _ = newScriptedClient(func(cmd redis.Cmder) {
		cmd.(*redis.DurationCmd).SetErr(assert.AnError)
	})
	_, err = c.TTL(context.Background(), "user:7")
	var ce *apperrors.CacheError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "ttl", ce.Op)
}
