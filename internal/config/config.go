package config

import "time"

const (
	// DefaultPort is the default HTTP server port.
	DefaultPort = "8080"

	// DefaultDatabaseURL is empty; must be provided via flag or environment.
	DefaultDatabaseURL = ""

	// DefaultNotifyWebhookURL is empty; notifications are logged and dropped
	// until a webhook is configured.
	DefaultNotifyWebhookURL = ""

	// DefaultNotifyTimeout bounds a single notification delivery.
	DefaultNotifyTimeout = 5 * time.Second

	// DefaultDueSoonWindow is how far ahead the due date scanner looks.
	DefaultDueSoonWindow = 7 * 24 * time.Hour
)
