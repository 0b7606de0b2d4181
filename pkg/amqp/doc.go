// Package amqp publishes JSON messages to RabbitMQ queues. Push and SMS
// channels hand their payloads to downstream provider workers through it.
package amqp
