package notify

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/quorumhq/quorum/types"
)

// RedisConfig configures the Redis pub/sub notifier.
type RedisConfig struct {
	// Enabled turns Redis publishing on.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Addr is the Redis host:port.
	Addr string `yaml:"addr" json:"addr"`

	// Password, empty for none.
	Password string `yaml:"password" json:"-"`

	// DB index.
	DB int `yaml:"db" json:"db"`

	// ChannelPrefix prefixes the per-conversation channel name.
	ChannelPrefix string `yaml:"channel_prefix" json:"channel_prefix"`
}

// DefaultRedisConfig returns default notifier settings.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:          "localhost:6379",
		ChannelPrefix: "conversation.",
	}
}

// RedisNotifier publishes each change as JSON to the channel
// "<prefix><conversation-id>".
type RedisNotifier struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisNotifier creates the notifier and verifies connectivity.
func NewRedisNotifier(ctx context.Context, config RedisConfig, logger *zap.Logger) (*RedisNotifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.ChannelPrefix == "" {
		config.ChannelPrefix = DefaultRedisConfig().ChannelPrefix
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisNotifier{
		client: client,
		prefix: config.ChannelPrefix,
		logger: logger.With(zap.String("component", "notify_redis")),
	}, nil
}

// ConversationChanged implements Notifier. Publish failures are logged and
// swallowed; notification is best-effort and must never fail a turn.
func (n *RedisNotifier) ConversationChanged(ctx context.Context, conv *types.Conversation) {
	payload, err := json.Marshal(Event{
		ConversationID: conv.ID,
		Conversation:   conv,
	})
	if err != nil {
		n.logger.Error("marshal conversation event", zap.Error(err))
		return
	}
	if err := n.client.Publish(ctx, n.prefix+conv.ID, payload).Err(); err != nil {
		n.logger.Warn("publish conversation event failed",
			zap.String("conversation_id", conv.ID),
			zap.Error(err),
		)
	}
}

// Close releases the Redis connection.
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}
