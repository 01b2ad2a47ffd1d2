// Package events publishes project lifecycle events to NATS.
//
// Each event is JSON encoded and published to the subject
//
//	{prefix}.{type}
//
// where type is one of created, renamed, verified, deleted, purged or reset.
// Publishing is fire-and-forget: subscribers that are offline miss events.
package events
