// Package events is the outbound event port of the delivery engine.
//
// Components receive a Publisher and emit named events such as
// "connection.established" or "notification.delivered". Tests inject a
// Recorder and assert on exact names and payloads; production wiring fans out
// with Multi to a LogPublisher, a KafkaPublisher and an OpenSearchPublisher.
package events
