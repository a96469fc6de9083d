package chatmodel_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devagency/chatmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatContext(t *testing.T) {
	t.Parallel()

	c := chatmodel.NewChatContext("tid", "cid", 123)
	assert.Equal(t, "tid", c.GetTenantID())
	assert.Equal(t, "cid", c.GetChatID())
	assert.Equal(t, 123, c.AppData())
	assert.NotEmpty(t, c.RunID())

	_, ok := c.GetMetadata("foo")
	assert.False(t, ok)
	c.SetMetadata("foo", 1)
	v, ok := c.GetMetadata("foo")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	d := chatmodel.NewChatContext("", "", nil)
	assert.Equal(t, chatmodel.DefaultTenantID, d.GetTenantID())
	assert.NotEmpty(t, d.GetChatID())
	assert.NotEqual(t, d.GetChatID(), chatmodel.NewChatContext("", "", nil).GetChatID())
}

func TestContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.Nil(t, chatmodel.GetChatContext(ctx))
	_, _, err := chatmodel.GetTenantAndChatID(ctx)
	assert.Equal(t, chatmodel.ErrInvalidChatContext, err)
	_, err = chatmodel.WithChatID(ctx, "x")
	assert.ErrorIs(t, err, chatmodel.ErrInvalidChatContext)

	parent := chatmodel.NewChatContext("t1", "c1", "app")
	ctx = chatmodel.WithChatContext(ctx, parent)
	tenant, chat, err := chatmodel.GetTenantAndChatID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "t1", tenant)
	assert.Equal(t, "c1", chat)

	child, err := chatmodel.WithChatID(ctx, "c1/CEO->CTO")
	require.NoError(t, err)
	cc := chatmodel.GetChatContext(child)
	assert.Equal(t, "t1", cc.GetTenantID())
	assert.Equal(t, "c1/CEO->CTO", cc.GetChatID())
	assert.Equal(t, "app", cc.AppData())
	assert.NotEqual(t, parent.RunID(), cc.RunID())

	// metadata is shared
	cc.SetMetadata("k", "v")
	v, ok := parent.GetMetadata("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	_, err = chatmodel.WithChatID(ctx, "")
	assert.EqualError(t, err, "chat ID is required")
}

func TestInputOutput(t *testing.T) {
	t.Parallel()

	r := &chatmodel.InputRequest{}
	require.NoError(t, r.ParseInput(`{"input":"hello"}`))
	assert.Equal(t, "hello", r.GetContent())

	err := r.ParseInput("{broken}")
	assert.True(t, errors.Is(err, chatmodel.ErrFailedUnmarshalInput))

	assert.Equal(t, "bar", chatmodel.NewInputRequest("bar").Input)
	assert.Equal(t, "done", chatmodel.OutputResult{Content: "done"}.GetContent())
}

func TestStringify(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "plain", chatmodel.Stringify("plain"))
	assert.Equal(t, "str", chatmodel.Stringify(chatmodel.NewString("str")))
	assert.Equal(t, "res", chatmodel.Stringify(chatmodel.OutputResult{Content: "res"}))
	assert.Equal(t, `{"a":1}`, chatmodel.Stringify(map[string]int{"a": 1}))

	var s chatmodel.String
	require.NoError(t, s.Unmarshal([]byte(`"quoted"`)))
	assert.Equal(t, "quoted", s.GetContent())
}
