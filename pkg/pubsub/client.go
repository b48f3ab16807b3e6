package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dvillegas/storefront-backend/pkg/config"
	"github.com/dvillegas/storefront-backend/pkg/logger"
)

var (
	errMissingProject      = errors.New("pubsub: gcp project id is required")
	errNoSubscriptionNames = errors.New("pubsub: at least one subscription must be configured")
)

// Client resolves config-driven topic and subscription IDs against one GCP
// project. Provisioning is infrastructure's job; the client only checks that
// what the config names actually exists.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
}

// NewClient dials Pub/Sub and probes every configured subscription. A
// consumer pointed at a missing subscription would otherwise sit idle
// forever, so a bad deploy dies here instead.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errMissingProject
	}

	inner, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("dial pubsub: %w", err)
	}

	c := &Client{client: inner, projectID: project, cfg: cfg}
	if err := c.ensureSubscriptions(ctx); err != nil {
		_ = inner.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(ctx, "pubsub client ready")
	}
	return c, nil
}

func (c *Client) configuredSubscriptions() []string {
	candidates := []string{
		c.cfg.OrdersSubscription,
		c.cfg.CartsSubscription,
		c.cfg.ReceiptsSubscription,
	}
	names := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		if id := strings.TrimSpace(candidate); id != "" {
			names = append(names, id)
		}
	}
	return names
}

func (c *Client) ensureSubscriptions(ctx context.Context) error {
	names := c.configuredSubscriptions()
	if len(names) == 0 {
		return errNoSubscriptionNames
	}

	admin := c.client.SubscriptionAdminClient
	for _, name := range names {
		qualified := c.qualify("subscriptions", name)
		if qualified == "" {
			return fmt.Errorf("pubsub: subscription %q is not resolvable", name)
		}
		req := &pubsubpb.GetSubscriptionRequest{Subscription: qualified}
		if _, err := admin.GetSubscription(ctx, req); err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("pubsub: subscription %q was never provisioned", name)
			}
			return fmt.Errorf("probe subscription %q: %w", name, err)
		}
	}
	return nil
}

// Subscription returns a Subscriber for a subscription ID or full resource
// name.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	qualified := c.qualify("subscriptions", name)
	if qualified == "" {
		return nil
	}
	return c.client.Subscriber(qualified)
}

// OrdersSubscription returns the subscriber for order lifecycle events.
func (c *Client) OrdersSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.OrdersSubscription)
}

// CartsSubscription returns the subscriber for cart lifecycle events.
func (c *Client) CartsSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.CartsSubscription)
}

// ReceiptsSubscription returns the orders subscription reserved for the
// receipt consumer. Receipts and notifications each need their own
// subscription so they never steal each other's deliveries.
func (c *Client) ReceiptsSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.ReceiptsSubscription)
}

// Publisher returns a publisher handle for a topic ID or full resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	qualified := c.qualify("topics", name)
	if qualified == "" {
		return nil
	}
	return c.client.Publisher(qualified)
}

// OrdersPublisher returns the configured orders event publisher.
func (c *Client) OrdersPublisher() *pubsub.Publisher {
	return c.Publisher(c.cfg.OrdersTopic)
}

// Ping re-probes the configured subscriptions, doubling as a health check.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil {
		return errors.New("pubsub: client not initialized")
	}
	return c.ensureSubscriptions(ctx)
}

// Close releases the underlying gRPC resources.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// qualify turns a bare ID into projects/<project>/<kind>/<id>. Names that
// already carry the full prefix pass through untouched.
func (c *Client) qualify(kind, name string) string {
	if c == nil {
		return ""
	}
	id := strings.TrimSpace(name)
	switch {
	case id == "":
		return ""
	case strings.HasPrefix(id, "projects/") && strings.Contains(id, "/"+kind+"/"):
		return id
	case c.projectID == "":
		return ""
	}
	return "projects/" + c.projectID + "/" + kind + "/" + id
}
