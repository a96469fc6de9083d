package chatmodel

import (
	"context"
	"strconv"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xdb/pkg/flake"
)

// DefaultTenantID is used when the tenant is not provided.
const DefaultTenantID = "default"

// ErrInvalidChatContext is returned when the context has no chat context.
var ErrInvalidChatContext = errors.New("invalid chat context")

// ChatContext identifies the conversation a run belongs to.
type ChatContext interface {
	GetTenantID() string
	GetChatID() string
	// RunID is unique for every ChatContext instance
	RunID() string
	// AppData returns immutable app data
	AppData() any
	GetMetadata(key string) (value any, ok bool)
	SetMetadata(key string, value any)
}

type chatContext struct {
	tenantID string
	chatID   string
	runID    string
	appData  any
	metadata *sync.Map
}

// NewChatContext returns a ChatContext, empty tenant defaults to
// DefaultTenantID and empty chat ID to a new ID.
func NewChatContext(tenantID, chatID string, appData any) ChatContext {
	return &chatContext{
		tenantID: values.StringsCoalesce(tenantID, DefaultTenantID),
		chatID:   values.StringsCoalesce(chatID, NewChatID()),
		runID:    NewChatID(),
		appData:  appData,
		metadata: &sync.Map{},
	}
}

func (c *chatContext) GetTenantID() string { return c.tenantID }
func (c *chatContext) GetChatID() string   { return c.chatID }
func (c *chatContext) RunID() string       { return c.runID }
func (c *chatContext) AppData() any        { return c.appData }

func (c *chatContext) GetMetadata(key string) (any, bool) {
	return c.metadata.Load(key)
}

func (c *chatContext) SetMetadata(key string, value any) {
	c.metadata.Store(key, value)
}

type contextKey int

const keyChatContext contextKey = iota

// WithChatContext returns a context carrying chatCtx.
func WithChatContext(ctx context.Context, chatCtx ChatContext) context.Context {
	return context.WithValue(ctx, keyChatContext, chatCtx)
}

// GetChatContext returns the ChatContext or nil.
func GetChatContext(ctx context.Context) ChatContext {
	v, _ := ctx.Value(keyChatContext).(ChatContext)
	return v
}

// GetTenantAndChatID returns the tenant and chat IDs from the context.
func GetTenantAndChatID(ctx context.Context) (tenantID string, chatID string, err error) {
	cc := GetChatContext(ctx)
	if cc == nil {
		return "", "", ErrInvalidChatContext
	}
	return cc.GetTenantID(), cc.GetChatID(), nil
}

// WithChatID returns a context for another chat of the same tenant.
// The app data and metadata are shared with the parent chat context.
func WithChatID(ctx context.Context, chatID string) (context.Context, error) {
	if chatID == "" {
		return nil, errors.New("chat ID is required")
	}
	parent, ok := GetChatContext(ctx).(*chatContext)
	if !ok || parent == nil {
		return nil, errors.WithStack(ErrInvalidChatContext)
	}
	child := &chatContext{
		tenantID: parent.tenantID,
		chatID:   chatID,
		runID:    NewChatID(),
		appData:  parent.appData,
		metadata: parent.metadata,
	}
	return WithChatContext(ctx, child), nil
}

// NewChatID returns a new unique ID.
func NewChatID() string {
	return strconv.FormatUint(flake.DefaultIDGenerator.NextID(), 10)
}
