// Package channels holds the delivery processors registered with the router:
// web (live stream connections), email, push and SMS (queued to provider
// workers over AMQP) and outbound webhooks.
//
// Recipients are taken from the notification metadata: "email", "phone",
// "webhook_url", and "siteId" or "channelKey" for web.
package channels
