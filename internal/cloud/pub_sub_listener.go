// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cloud provides components for interacting with Google Cloud services.
// This file defines the Pub/Sub side of the handler: a pull listener that
// feeds subscription messages to the same logic the push endpoint uses, and a
// small publisher used to forward malformed deliveries to a topic.
//
// Logic Flow:
//  1. A PubSubListener is created with a client and a subscription ID.
//  2. A MessageHandler is attached to it.
//  3. `Receive` blocks and hands every message to the handler.
//  4. The message is acked when the handler reports the outcome as final and
//     nacked otherwise, so Pub/Sub redelivers it under the subscription's
//     retry policy.
//
// Structs:
//   - PubSubListener: Manages the connection to a subscription and holds its handler.
//   - TopicPublisher: Publishes raw payloads to one topic.
package cloud

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// MessageHandler handles one pulled message and reports whether it should be
// acknowledged.
type MessageHandler interface {
	HandleMessage(ctx context.Context, data []byte, attributes map[string]string, messageID string) (ack bool)
}

// PubSubListener connects a subscription to a MessageHandler. Listeners have
// a life-cycle independent of individual requests.
type PubSubListener struct {
	client       *pubsub.Client
	subscription *pubsub.Subscription
	handler      MessageHandler
}

// NewPubSubListener creates a listener for subscriptionID. A positive
// maxOutstanding bounds the number of messages handled concurrently.
//
// Inputs:
//   - pubsubClient: An authenticated *pubsub.Client for connecting to the service.
//   - subscriptionID: The string ID of the subscription (e.g., "my-subscription").
//   - maxOutstanding: Flow control limit; 0 keeps the library default.
//   - handler: The handler for each message; may be attached later with SetHandler.
//
// Outputs:
//   - *PubSubListener: A pointer to the newly created and configured listener.
func NewPubSubListener(pubsubClient *pubsub.Client, subscriptionID string, maxOutstanding int, handler MessageHandler) *PubSubListener {
	sub := pubsubClient.Subscription(subscriptionID)
	if maxOutstanding > 0 {
		sub.ReceiveSettings.MaxOutstandingMessages = maxOutstanding
	}
	return &PubSubListener{
		client:       pubsubClient,
		subscription: sub,
		handler:      handler,
	}
}

// SetHandler attaches a handler if none is set yet.
func (m *PubSubListener) SetHandler(handler MessageHandler) {
	if m.handler == nil {
		m.handler = handler
	}
}

// Receive pulls messages until ctx is canceled or the subscription fails.
func (m *PubSubListener) Receive(ctx context.Context) error {
	if m.handler == nil {
		return fmt.Errorf("no handler attached to subscription %s", m.subscription.ID())
	}
	slog.InfoContext(ctx, "listening", "subscription", m.subscription.ID())
	tracer := otel.Tracer("message-listener")

	return m.subscription.Receive(ctx, func(msgCtx context.Context, msg *pubsub.Message) {
		spanCtx, span := tracer.Start(msgCtx, "receive-message")
		defer span.End()
		span.SetAttributes(
			attribute.String("messaging.message.id", msg.ID),
			attribute.String("messaging.source.name", m.subscription.ID()),
		)

		if m.handler.HandleMessage(spanCtx, msg.Data, msg.Attributes, msg.ID) {
			span.SetStatus(codes.Ok, "acked")
			msg.Ack()
			return
		}
		span.SetStatus(codes.Error, "nacked")
		msg.Nack()
	})
}

// TopicPublisher publishes payloads to a single topic.
type TopicPublisher struct {
	topic *pubsub.Topic
}

// NewTopicPublisher creates a publisher for topicID.
func NewTopicPublisher(client *pubsub.Client, topicID string) *TopicPublisher {
	return &TopicPublisher{topic: client.Topic(topicID)}
}

// Publish sends data with attributes and waits for the server to accept it.
func (p *TopicPublisher) Publish(ctx context.Context, data []byte, attributes map[string]string) error {
	result := p.topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attributes})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic.ID(), err)
	}
	return nil
}

// Stop flushes pending messages.
func (p *TopicPublisher) Stop() {
	p.topic.Stop()
}
