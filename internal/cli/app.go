package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devagency/agency"
	"github.com/effective-security/devagency/callbacks"
	"github.com/effective-security/devagency/chatmodel"
	"github.com/effective-security/devagency/pkg/llmfactory"
	"github.com/effective-security/devagency/store"
	"github.com/effective-security/devagency/tools"
	"github.com/effective-security/devagency/tools/artifact"
	"github.com/effective-security/devagency/tools/tavily"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/redis/go-redis/v9"
)

// BoltFile is the name of the bolt store in the data directory.
const BoltFile = "devagency.db"

// redis keys prefix
const redisPrefix = "devagency"

func (a *app) mode() callbacks.Mode {
	if a.verbose {
		return callbacks.ModeVerbose
	}
	return callbacks.ModeDefault
}

// openStore returns the chat store and its closer.
func (a *app) openStore() (store.Store, func(), error) {
	switch a.storeType {
	case StoreMemory, "":
		return store.NewMemoryStore(), func() {}, nil
	case StoreBolt:
		dir := a.dataDir
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, nil, errors.WithStack(err)
			}
			dir = filepath.Join(home, ".devagency")
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, errors.Wrapf(err, "unable to create data directory %s", dir)
		}
		st, err := store.NewBoltStore(filepath.Join(dir, BoltFile))
		if err != nil {
			return nil, nil, err
		}
		return st, func() {
			if err := st.Close(); err != nil {
				logger.KV(xlog.ERROR, "status", "failed_to_close_store", "err", err.Error())
			}
		}, nil
	case StoreRedis:
		opts, err := redis.ParseURL(a.redisURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "invalid redis URL")
		}
		client := redis.NewClient(opts)
		return store.NewRedisStore(client, redisPrefix), func() {
			_ = client.Close()
		}, nil
	default:
		return nil, nil, errors.Newf("unsupported store: %s", a.storeType)
	}
}

// registry returns the tools of the agents, web search is available
// when TAVILY_API_KEY is set.
func (a *app) registry() (*tools.Registry, error) {
	list, err := artifact.Tools()
	if err != nil {
		return nil, err
	}
	if tavily.Available() {
		ws, err := tavily.New()
		if err != nil {
			return nil, err
		}
		list = append(list, ws)
	}
	return tools.NewRegistry(list...), nil
}

// models returns the LLM factory from the config file, or from the
// API keys in the environment.
func (a *app) models() (agency.ModelProvider, error) {
	cfg := llmfactory.ConfigFromEnv()
	if a.llmConfig != "" {
		var err error
		cfg, err = llmfactory.LoadConfig(a.llmConfig)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to load LLM config")
		}
	}
	if len(cfg.Providers) == 0 {
		return nil, errors.New("no LLM provider is configured: use --llm-config or set OPENAI_API_KEY, ANTHROPIC_API_KEY or GOOGLE_API_KEY")
	}
	return llmfactory.New(cfg), nil
}

func (a *app) loadManifest() (*agency.Manifest, error) {
	return agency.LoadManifest(a.manifest)
}

// newAgency returns the agency with the events sent to the callbacks
// and the package logger.
func (a *app) newAgency(st store.MessageStore, cbs ...agency.Callback) (*agency.Agency, *tools.Registry, error) {
	m, err := a.loadManifest()
	if err != nil {
		return nil, nil, err
	}
	models, err := a.models()
	if err != nil {
		return nil, nil, err
	}
	registry, err := a.registry()
	if err != nil {
		return nil, nil, err
	}

	cb := callbacks.NewFanout(append(cbs, callbacks.NewPackageLogger(logger))...)
	ag, err := agency.New(m, models, registry,
		agency.WithStore(st),
		agency.WithCallback(cb),
	)
	if err != nil {
		return nil, nil, err
	}
	return ag, registry, nil
}

// chatContext returns ctx with the chat of the tenant, a new chat is
// started when chatID is empty.
func (a *app) chatContext(ctx context.Context, chatID string) (context.Context, string) {
	tenantID := values.StringsCoalesce(a.tenant, chatmodel.DefaultTenantID)
	cc := chatmodel.NewChatContext(tenantID, chatID, nil)
	return chatmodel.WithChatContext(ctx, cc), cc.GetChatID()
}
