package store

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/effective-security/devagency/chatmodel"
	"github.com/effective-security/devagency/pkg/llms"
)

type memChat struct {
	info     ChatInfo
	messages []llms.Message
}

type inMemory struct {
	lock    sync.RWMutex
	tenants map[string]map[string]*memChat
}

// NewMemoryStore returns a store that keeps chats in memory.
func NewMemoryStore() Store {
	return &inMemory{
		tenants: make(map[string]map[string]*memChat),
	}
}

func (m *inMemory) Messages(ctx context.Context) []llms.Message {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil
	}

	m.lock.RLock()
	defer m.lock.RUnlock()
	if c := m.tenants[tenantID][chatID]; c != nil {
		return slices.Clone(c.messages)
	}
	return nil
}

// chat returns the chat, creating it; must be called under the write lock.
func (m *inMemory) chat(tenantID, chatID string) *memChat {
	chats := m.tenants[tenantID]
	if chats == nil {
		chats = make(map[string]*memChat)
		m.tenants[tenantID] = chats
	}
	c := chats[chatID]
	if c == nil {
		c = &memChat{info: *newChatInfo(tenantID, chatID)}
		chats[chatID] = c
	}
	return c
}

func (m *inMemory) Add(ctx context.Context, msgs ...llms.Message) error {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return err
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	c := m.chat(tenantID, chatID)
	c.messages = append(c.messages, msgs...)
	if n := len(c.messages); n > MaxHistory {
		c.messages = slices.Clone(c.messages[n-MaxHistory:])
	}
	c.info.update("", nil)
	return nil
}

func (m *inMemory) Reset(ctx context.Context) error {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return err
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.tenants[tenantID], chatID)
	return nil
}

func (m *inMemory) UpdateChat(ctx context.Context, title string, metadata map[string]any) error {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return err
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	m.chat(tenantID, chatID).info.update(title, metadata)
	return nil
}

func (m *inMemory) ListChats(ctx context.Context) ([]string, error) {
	tenantID, _, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, err
	}

	m.lock.RLock()
	defer m.lock.RUnlock()
	return slices.Sorted(maps.Keys(m.tenants[tenantID])), nil
}

func (m *inMemory) GetChatInfo(ctx context.Context, id string) (*ChatInfo, error) {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = chatID
	}

	m.lock.RLock()
	defer m.lock.RUnlock()
	c := m.tenants[tenantID][id]
	if c == nil {
		return nil, ErrNotFound
	}
	info := c.info
	info.Metadata = maps.Clone(c.info.Metadata)
	info.Messages = slices.Clone(c.messages)
	return &info, nil
}

func (m *inMemory) ListTenants(_ context.Context) ([]string, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return slices.Sorted(maps.Keys(m.tenants)), nil
}

func (m *inMemory) Cleanup(_ context.Context, tenantID string, olderThan time.Duration) (uint32, error) {
	cutoff := TimeNowFn().Add(-olderThan)

	m.lock.Lock()
	defer m.lock.Unlock()
	var deleted uint32
	for id, c := range m.tenants[tenantID] {
		if c.info.UpdatedAt.Before(cutoff) {
			delete(m.tenants[tenantID], id)
			deleted++
		}
	}
	return deleted, nil
}
