package registrysync

import (
	"context"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/pubsub"
	"github.com/anejaagam/trazo-backend/config"
	"github.com/anejaagam/trazo-backend/utils"
	"github.com/gin-gonic/gin"
)

// PublishSyncRun queues a sync request on the registry sync topic. The push
// subscription delivers it back to PubSubPushHandler, which runs it inline.
func PublishSyncRun(ctx context.Context, payload SyncPubSubPayload) error {
	topicName := strings.TrimSpace(os.Getenv("REGISTRY_SYNC_TOPIC"))
	if topicName == "" {
		topicName = "registry-sync"
	}

	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}

	topic := client.Topic(topicName)
	if envBoolDefault("REGISTRY_SYNC_CREATE_TOPIC", false) {
		topic, err = config.CreateTopicIfNotExists(client, topicName)
		if err != nil {
			return err
		}
		if sub := strings.TrimSpace(os.Getenv("REGISTRY_SYNC_SUBSCRIPTION")); sub != "" {
			if _, err := config.CreateSubscriptionIfNotExists(client, sub, topic); err != nil {
				return err
			}
		}
	}

	data, err := utils.MarshalToJSON(payload)
	if err != nil {
		return err
	}
	res := topic.Publish(ctx, &pubsub.Message{Data: []byte(data)})
	_, err = res.Get(ctx)
	return err
}

// PubSubPushHandler receives push deliveries from the registry sync
// subscription. It always acks with 204: a failed run is recorded in the sync
// log, and redelivering the same message would just repeat the same failure.
func PubSubPushHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !envBoolDefault("ENABLE_REGISTRY_PUBSUB_PUSH_ENDPOINT", true) {
			c.Status(204)
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(204)
			return
		}

		var envelope PubSubPushEnvelope
		if err := utils.UnmarshalFromJSON(body, &envelope); err != nil {
			c.Status(204)
			return
		}

		var payload SyncPubSubPayload
		if err := utils.UnmarshalFromJSON(envelope.Message.Data, &payload); err != nil {
			c.Status(204)
			return
		}
		if payload.OrganizationId == "" || payload.SiteId == 0 {
			c.Status(204)
			return
		}

		_, _ = RunSync(c.Request.Context(), SyncRequest{
			SyncType:       payload.SyncType,
			SiteId:         payload.SiteId,
			OrganizationId: payload.OrganizationId,
			UserId:         payload.UserId,
			TagType:        payload.TagType,
		})
		c.Status(204)
	}
}

func envBoolDefault(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return def
	}
}
