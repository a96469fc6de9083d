// Package store keeps the chat history of the agents, per tenant and chat,
// as found in the chat context.
package store

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devagency/pkg/llms"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/devagency", "store")

// ErrNotFound is returned when the chat does not exist.
var ErrNotFound = errors.New("chat not found")

// MaxHistory is the number of messages kept per chat.
const MaxHistory = 50

// DefaultTitle is the title of a new chat.
const DefaultTitle = "New Chat"

// TimeNowFn is used for chat timestamps.
var TimeNowFn = time.Now

// ChatInfo describes a chat.
type ChatInfo struct {
	TenantID  string         `json:"tenant_id" yaml:"tenant_id"`
	ChatID    string         `json:"chat_id" yaml:"chat_id"`
	Title     string         `json:"title" yaml:"title"`
	CreatedAt time.Time      `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" yaml:"updated_at"`
	Metadata  map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Messages  []llms.Message `json:"messages,omitempty" yaml:"-"`
}

// MessageStore keeps the messages of the chat found in the context.
type MessageStore interface {
	// Messages returns the history, nil if the context has no chat.
	Messages(ctx context.Context) []llms.Message
	// Add appends the messages, only the last MaxHistory messages are kept.
	Add(ctx context.Context, msgs ...llms.Message) error
	// Reset deletes the chat.
	Reset(ctx context.Context) error
	// UpdateChat creates or updates the chat info.
	UpdateChat(ctx context.Context, title string, metadata map[string]any) error
	// ListChats returns the chat IDs of the tenant.
	ListChats(ctx context.Context) ([]string, error)
	// GetChatInfo returns the chat with messages, the chat from context when id is empty.
	GetChatInfo(ctx context.Context, id string) (*ChatInfo, error)
}

// MessageStoreManager provides maintenance across tenants.
type MessageStoreManager interface {
	ListTenants(ctx context.Context) ([]string, error)
	// Cleanup deletes the chats of the tenant not updated within olderThan.
	Cleanup(ctx context.Context, tenantID string, olderThan time.Duration) (uint32, error)
}

// Store is a MessageStore with maintenance.
type Store interface {
	MessageStore
	MessageStoreManager
}

func newChatInfo(tenantID, chatID string) *ChatInfo {
	now := TimeNowFn()
	return &ChatInfo{
		TenantID:  tenantID,
		ChatID:    chatID,
		Title:     DefaultTitle,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  make(map[string]any),
	}
}

func (c *ChatInfo) update(title string, metadata map[string]any) {
	if title != "" {
		c.Title = title
	}
	if len(metadata) > 0 {
		if c.Metadata == nil {
			c.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			c.Metadata[k] = v
		}
	}
	c.UpdatedAt = TimeNowFn()
}
