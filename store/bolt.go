package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devagency/chatmodel"
	"github.com/effective-security/devagency/pkg/llms"
	"github.com/effective-security/xlog"
	bolt "go.etcd.io/bbolt"
)

// The database has one bucket per tenant, with nested buckets:
// - `info`: chat ID -> ChatInfo JSON
// - `messages`: one bucket per chat ID, sequence -> message JSON

var (
	bucketInfo     = []byte("info")
	bucketMessages = []byte("messages")
)

// BoltStore persists chats to a BoltDB file on disk.
type BoltStore struct {
	db *bolt.DB
}

var _ Store = (*BoltStore)(nil)

// NewBoltStore opens (or creates) a BoltDB database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (b *BoltStore) Close() error {
	return b.db.Close()
}

// tenantBuckets returns the info and messages buckets, nil if the tenant
// has no chats.
func tenantBuckets(tx *bolt.Tx, tenantID string, create bool) (info, messages *bolt.Bucket, err error) {
	if !create {
		tb := tx.Bucket([]byte(tenantID))
		if tb == nil {
			return nil, nil, nil
		}
		return tb.Bucket(bucketInfo), tb.Bucket(bucketMessages), nil
	}

	tb, err := tx.CreateBucketIfNotExists([]byte(tenantID))
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	if info, err = tb.CreateBucketIfNotExists(bucketInfo); err != nil {
		return nil, nil, errors.WithStack(err)
	}
	if messages, err = tb.CreateBucketIfNotExists(bucketMessages); err != nil {
		return nil, nil, errors.WithStack(err)
	}
	return info, messages, nil
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

func readMessages(messages *bolt.Bucket, chatID string) ([]llms.Message, error) {
	if messages == nil {
		return nil, nil
	}
	cb := messages.Bucket([]byte(chatID))
	if cb == nil {
		return nil, nil
	}
	var list []llms.Message
	err := cb.ForEach(func(_, v []byte) error {
		var msg llms.Message
		if err := json.Unmarshal(v, &msg); err != nil {
			return errors.Wrap(err, "failed to unmarshal message")
		}
		list = append(list, msg)
		return nil
	})
	return list, err
}

func readInfo(info *bolt.Bucket, chatID string) (*ChatInfo, error) {
	if info == nil {
		return nil, ErrNotFound
	}
	raw := info.Get([]byte(chatID))
	if raw == nil {
		return nil, ErrNotFound
	}
	chat := &ChatInfo{}
	if err := json.Unmarshal(raw, chat); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal chat info")
	}
	return chat, nil
}

func writeInfo(info *bolt.Bucket, tenantID, chatID, title string, metadata map[string]any) error {
	chat, err := readInfo(info, chatID)
	if errors.Is(err, ErrNotFound) {
		chat = newChatInfo(tenantID, chatID)
	} else if err != nil {
		return err
	}
	chat.update(title, metadata)

	raw, err := json.Marshal(chat)
	if err != nil {
		return errors.Wrap(err, "failed to marshal chat info")
	}
	return info.Put([]byte(chatID), raw)
}

func (b *BoltStore) Messages(ctx context.Context) []llms.Message {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil
	}

	var list []llms.Message
	err = b.db.View(func(tx *bolt.Tx) error {
		_, messages, _ := tenantBuckets(tx, tenantID, false)
		list, err = readMessages(messages, chatID)
		return err
	})
	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR,
			"status", "failed_to_get_messages",
			"chat_id", chatID,
			"err", err.Error(),
		)
		return nil
	}
	return list
}

func (b *BoltStore) Add(ctx context.Context, msgs ...llms.Message) error {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return err
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		info, messages, err := tenantBuckets(tx, tenantID, true)
		if err != nil {
			return err
		}
		cb, err := messages.CreateBucketIfNotExists([]byte(chatID))
		if err != nil {
			return errors.WithStack(err)
		}
		for _, msg := range msgs {
			raw, err := json.Marshal(msg)
			if err != nil {
				return errors.Wrap(err, "failed to marshal message")
			}
			seq, err := cb.NextSequence()
			if err != nil {
				return errors.WithStack(err)
			}
			if err = cb.Put(seqKey(seq), raw); err != nil {
				return errors.WithStack(err)
			}
		}

		// drop the oldest messages over the limit
		var keys [][]byte
		c := cb.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			keys = append(keys, bytes.Clone(k))
		}
		for i := 0; i < len(keys)-MaxHistory; i++ {
			if err = cb.Delete(keys[i]); err != nil {
				return errors.WithStack(err)
			}
		}

		return writeInfo(info, tenantID, chatID, "", nil)
	})
}

func (b *BoltStore) Reset(ctx context.Context) error {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return deleteChat(tx, tenantID, chatID)
	})
}

func deleteChat(tx *bolt.Tx, tenantID, chatID string) error {
	info, messages, _ := tenantBuckets(tx, tenantID, false)
	if info != nil {
		if err := info.Delete([]byte(chatID)); err != nil {
			return errors.WithStack(err)
		}
	}
	if messages != nil && messages.Bucket([]byte(chatID)) != nil {
		if err := messages.DeleteBucket([]byte(chatID)); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

func (b *BoltStore) UpdateChat(ctx context.Context, title string, metadata map[string]any) error {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		info, _, err := tenantBuckets(tx, tenantID, true)
		if err != nil {
			return err
		}
		return writeInfo(info, tenantID, chatID, title, metadata)
	})
}

func (b *BoltStore) ListChats(ctx context.Context) ([]string, error) {
	tenantID, _, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, err
	}

	var list []string
	err = b.db.View(func(tx *bolt.Tx) error {
		info, _, _ := tenantBuckets(tx, tenantID, false)
		if info == nil {
			return nil
		}
		// keys are sorted
		return info.ForEach(func(k, _ []byte) error {
			list = append(list, string(k))
			return nil
		})
	})
	return list, err
}

func (b *BoltStore) GetChatInfo(ctx context.Context, id string) (*ChatInfo, error) {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = chatID
	}

	var chat *ChatInfo
	err = b.db.View(func(tx *bolt.Tx) error {
		info, messages, _ := tenantBuckets(tx, tenantID, false)
		if chat, err = readInfo(info, id); err != nil {
			return err
		}
		chat.Messages, err = readMessages(messages, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return chat, nil
}

func (b *BoltStore) ListTenants(_ context.Context) ([]string, error) {
	var list []string
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			list = append(list, string(name))
			return nil
		})
	})
	return list, err
}

func (b *BoltStore) Cleanup(_ context.Context, tenantID string, olderThan time.Duration) (uint32, error) {
	cutoff := TimeNowFn().Add(-olderThan)
	var deleted uint32
	err := b.db.Update(func(tx *bolt.Tx) error {
		info, _, _ := tenantBuckets(tx, tenantID, false)
		if info == nil {
			return nil
		}

		var expired []string
		err := info.ForEach(func(k, v []byte) error {
			var chat ChatInfo
			if err := json.Unmarshal(v, &chat); err != nil {
				return errors.Wrap(err, "failed to unmarshal chat info")
			}
			if chat.UpdatedAt.Before(cutoff) {
				expired = append(expired, string(k))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, id := range expired {
			if err = deleteChat(tx, tenantID, id); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}
