package jobs

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/golang-jwt/jwt/v4"

	"github.com/crumbhouse/bakery-api/internal/services"
)

const (
	attrEventType   = "eventType"
	attrOrderID     = "orderId"
	attrOrderNumber = "orderNumber"
	attrKind        = "kind"
	attrSignature   = "signature"

	kindOrder       = "order"
	kindCustomOrder = "custom_order"

	signatureIssuer = "bakery-api"
)

// NotificationClaims is the payload of the signature attribute. Digest is the base64url SHA-256
// of the message data so consumers can verify the body was not altered.
type NotificationClaims struct {
	EventType string `json:"evt"`
	Digest    string `json:"dig"`
	jwt.RegisteredClaims
}

// NotificationPublisher publishes order lifecycle events to a Pub/Sub topic for the
// notification workers.
type NotificationPublisher struct {
	topic   *pubsub.Topic
	secret  []byte
	ttl     time.Duration
	clock   func() time.Time
	marshal func(any) ([]byte, error)
}

// NotificationOption customises the publisher.
type NotificationOption func(*NotificationPublisher)

// WithSigningSecret enables the HS256 signature attribute.
func WithSigningSecret(secret string) NotificationOption {
	return func(p *NotificationPublisher) {
		if trimmed := strings.TrimSpace(secret); trimmed != "" {
			p.secret = []byte(trimmed)
		}
	}
}

// WithSignatureTTL sets the expiry stamped into signatures. Zero leaves them without expiry.
func WithSignatureTTL(ttl time.Duration) NotificationOption {
	return func(p *NotificationPublisher) {
		if ttl > 0 {
			p.ttl = ttl
		}
	}
}

// WithNotificationClock overrides the clock used for signature timestamps.
func WithNotificationClock(clock func() time.Time) NotificationOption {
	return func(p *NotificationPublisher) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// NewNotificationPublisher constructs a Pub/Sub backed event publisher.
func NewNotificationPublisher(topic *pubsub.Topic, opts ...NotificationOption) (*NotificationPublisher, error) {
	if topic == nil {
		return nil, errors.New("notification publisher: topic is required")
	}
	publisher := &NotificationPublisher{
		topic:   topic,
		clock:   time.Now,
		marshal: json.Marshal,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(publisher)
		}
	}
	return publisher, nil
}

// PublishOrderEvent implements services.OrderEventPublisher.
func (p *NotificationPublisher) PublishOrderEvent(ctx context.Context, event services.OrderEvent) error {
	attrs := map[string]string{attrKind: kindOrder}
	setAttr(attrs, attrEventType, event.Type)
	setAttr(attrs, attrOrderID, event.OrderID)
	setAttr(attrs, attrOrderNumber, event.OrderNumber)
	_, err := p.publish(ctx, event.Type, event, attrs)
	return err
}

// PublishCustomOrderEvent implements services.CustomOrderEventPublisher.
func (p *NotificationPublisher) PublishCustomOrderEvent(ctx context.Context, event services.CustomOrderEvent) error {
	attrs := map[string]string{attrKind: kindCustomOrder}
	setAttr(attrs, attrEventType, event.Type)
	setAttr(attrs, attrOrderID, event.OrderID)
	setAttr(attrs, attrOrderNumber, event.OrderNumber)
	_, err := p.publish(ctx, event.Type, event, attrs)
	return err
}

func (p *NotificationPublisher) publish(ctx context.Context, eventType string, payload any, attrs map[string]string) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("notification publisher: not initialised")
	}

	data, err := p.marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	if len(p.secret) > 0 {
		signature, err := p.sign(eventType, data)
		if err != nil {
			return "", err
		}
		attrs[attrSignature] = signature
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish %s event: %w", eventType, err)
	}
	return id, nil
}

func (p *NotificationPublisher) sign(eventType string, data []byte) (string, error) {
	sum := sha256.Sum256(data)
	now := p.clock().UTC()
	claims := NotificationClaims{
		EventType: eventType,
		Digest:    base64.RawURLEncoding.EncodeToString(sum[:]),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   signatureIssuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if p.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(p.ttl))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s event: %w", eventType, err)
	}
	return signed, nil
}

// VerifyNotification checks a signature attribute against the message data and returns its
// claims.
func VerifyNotification(secret string, data []byte, signature string) (NotificationClaims, error) {
	var claims NotificationClaims
	_, err := jwt.ParseWithClaims(signature, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %s", token.Method.Alg())
		}
		return []byte(strings.TrimSpace(secret)), nil
	})
	if err != nil {
		return NotificationClaims{}, fmt.Errorf("verify notification: %w", err)
	}
	sum := sha256.Sum256(data)
	if claims.Digest != base64.RawURLEncoding.EncodeToString(sum[:]) {
		return NotificationClaims{}, errors.New("verify notification: digest mismatch")
	}
	return claims, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
