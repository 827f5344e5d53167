package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/sitewatch/sitewatch/internal/detect"
)

// changeEvent is the wire shape published for downstream consumers. Raster
// payloads are stripped; consumers fetch them from the blob store if needed.
type changeEvent struct {
	Target  string          `json:"target"`
	Changes []detect.Change `json:"changes"`
}

// PubSubNotifier publishes change batches to a Google Cloud Pub/Sub topic.
// Authentication uses Application Default Credentials.
type PubSubNotifier struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSubNotifier creates the client and verifies the topic exists, so a
// misconfigured deployment fails at startup.
func NewPubSubNotifier(ctx context.Context, projectID, topicID string) (*PubSubNotifier, error) {
	if projectID == "" || topicID == "" {
		return nil, fmt.Errorf("pubsub project_id and topic_id must be set")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("check pubsub topic %q: %w", topicID, err)
	}
	if !exists {
		_ = client.Close()
		return nil, fmt.Errorf("pubsub topic %q does not exist in project %q", topicID, projectID)
	}
	return &PubSubNotifier{client: client, topic: topic}, nil
}

// Notify publishes one message per batch and waits for the server ack so
// delivery failures surface to the fan-out wrapper's log.
func (n *PubSubNotifier) Notify(ctx context.Context, target string, changes []detect.Change) error {
	slim := make([]detect.Change, 0, len(changes))
	for _, c := range changes {
		c.BeforeImage, c.AfterImage, c.DiffImage = nil, nil, nil
		slim = append(slim, c)
	}
	payload, err := json.Marshal(changeEvent{Target: target, Changes: slim})
	if err != nil {
		return fmt.Errorf("encode change event: %w", err)
	}
	result := n.topic.Publish(ctx, &pubsub.Message{
		Data:       payload,
		Attributes: map[string]string{"target": target},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish change event: %w", err)
	}
	return nil
}

// Close stops the topic publisher and the client.
func (n *PubSubNotifier) Close() error {
	n.topic.Stop()
	return n.client.Close()
}
