package store

import (
	"context"
	"encoding/json"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devagency/chatmodel"
	"github.com/effective-security/devagency/pkg/llms"
	"github.com/effective-security/xlog"
	"github.com/redis/go-redis/v9"
)

// The keys namespace is organized as follows:
// - `<prefix>/chatstore/<tenantID>/messages/<chatID>` list of messages
// - `<prefix>/chatstore/<tenantID>/info/<chatID>` chat info
// - `<prefix>/chatstore/<tenantID>/chats` set of chat IDs

type redisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore returns a store backed by Redis, keys are created under prefix.
func NewRedisStore(client *redis.Client, prefix string) Store {
	return &redisStore{
		client: client,
		prefix: prefix,
	}
}

func (m *redisStore) messagesKey(tenantID, chatID string) string {
	return path.Join(m.prefix, "chatstore", tenantID, "messages", chatID)
}

func (m *redisStore) infoKey(tenantID, chatID string) string {
	return path.Join(m.prefix, "chatstore", tenantID, "info", chatID)
}

func (m *redisStore) chatsKey(tenantID string) string {
	return path.Join(m.prefix, "chatstore", tenantID, "chats")
}

func (m *redisStore) Messages(ctx context.Context) []llms.Message {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil
	}
	messages, err := m.messages(ctx, tenantID, chatID)
	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR,
			"status", "failed_to_get_messages",
			"chat_id", chatID,
			"err", err.Error(),
		)
		return nil
	}
	return messages
}

func (m *redisStore) messages(ctx context.Context, tenantID, chatID string) ([]llms.Message, error) {
	data, err := m.client.LRange(ctx, m.messagesKey(tenantID, chatID), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get messages from Redis")
	}

	messages := make([]llms.Message, 0, len(data))
	for _, item := range data {
		var msg llms.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			logger.ContextKV(ctx, xlog.ERROR,
				"status", "failed_to_unmarshal_message",
				"chat_id", chatID,
				"err", err.Error(),
			)
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (m *redisStore) Add(ctx context.Context, msgs ...llms.Message) error {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	values := make([]any, 0, len(msgs))
	for _, msg := range msgs {
		data, err := json.Marshal(msg)
		if err != nil {
			return errors.Wrap(err, "failed to marshal message")
		}
		values = append(values, data)
	}

	key := m.messagesKey(tenantID, chatID)
	pipe := m.client.Pipeline()
	pipe.RPush(ctx, key, values...)
	pipe.LTrim(ctx, key, -MaxHistory, -1)
	if _, err = pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to store message in Redis")
	}

	return m.UpdateChat(ctx, "", nil)
}

func (m *redisStore) Reset(ctx context.Context) error {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return err
	}
	return m.deleteChat(ctx, tenantID, chatID)
}

func (m *redisStore) deleteChat(ctx context.Context, tenantID, chatID string) error {
	pipe := m.client.Pipeline()
	pipe.Del(ctx, m.messagesKey(tenantID, chatID))
	pipe.Del(ctx, m.infoKey(tenantID, chatID))
	pipe.SRem(ctx, m.chatsKey(tenantID), chatID)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to delete chat in Redis")
	}
	return nil
}

func (m *redisStore) UpdateChat(ctx context.Context, title string, metadata map[string]any) error {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return err
	}

	chat, err := m.getInfo(ctx, tenantID, chatID)
	isNew := false
	if errors.Is(err, ErrNotFound) {
		chat = newChatInfo(tenantID, chatID)
		isNew = true
	} else if err != nil {
		return err
	}
	chat.update(title, metadata)

	chatData, err := json.Marshal(chat)
	if err != nil {
		return errors.Wrap(err, "failed to marshal chat info")
	}

	pipe := m.client.Pipeline()
	pipe.Set(ctx, m.infoKey(tenantID, chatID), chatData, 0)
	if isNew {
		pipe.SAdd(ctx, m.chatsKey(tenantID), chatID)
	}
	if _, err = pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to store chat info in Redis")
	}
	return nil
}

func (m *redisStore) getInfo(ctx context.Context, tenantID, chatID string) (*ChatInfo, error) {
	data, err := m.client.Get(ctx, m.infoKey(tenantID, chatID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get chat info from Redis")
	}

	chat := &ChatInfo{}
	if err = json.Unmarshal([]byte(data), chat); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal chat info")
	}
	return chat, nil
}

func (m *redisStore) ListChats(ctx context.Context) ([]string, error) {
	tenantID, _, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, err
	}

	chatIDs, err := m.client.SMembers(ctx, m.chatsKey(tenantID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to list chats from Redis")
	}
	slices.Sort(chatIDs)
	return chatIDs, nil
}

func (m *redisStore) GetChatInfo(ctx context.Context, id string) (*ChatInfo, error) {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = chatID
	}

	info, err := m.getInfo(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	info.Messages, err = m.messages(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (m *redisStore) ListTenants(ctx context.Context) ([]string, error) {
	root := path.Join(m.prefix, "chatstore") + "/"
	iter := m.client.Scan(ctx, 0, root+"*", 0).Iterator()
	tenants := make(map[string]struct{})
	for iter.Next(ctx) {
		parts := strings.SplitN(strings.TrimPrefix(iter.Val(), root), "/", 2)
		if len(parts) > 0 && parts[0] != "" {
			tenants[parts[0]] = struct{}{}
		}
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to scan tenants from Redis")
	}

	result := make([]string, 0, len(tenants))
	for tenant := range tenants {
		result = append(result, tenant)
	}
	slices.Sort(result)
	return result, nil
}

func (m *redisStore) Cleanup(ctx context.Context, tenantID string, olderThan time.Duration) (uint32, error) {
	chatIDs, err := m.client.SMembers(ctx, m.chatsKey(tenantID)).Result()
	if err != nil {
		return 0, errors.Wrap(err, "failed to list chats from Redis")
	}

	var deleted uint32
	cutoff := TimeNowFn().Add(-olderThan)
	for _, chatID := range chatIDs {
		chat, err := m.getInfo(ctx, tenantID, chatID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return deleted, err
		}
		if chat.UpdatedAt.Before(cutoff) {
			if err = m.deleteChat(ctx, tenantID, chatID); err != nil {
				return deleted, err
			}
			deleted++
		}
	}
	return deleted, nil
}
