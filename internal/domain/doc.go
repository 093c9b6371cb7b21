// Package domain holds the model types, shared interfaces and sentinel
// errors used across the article moderation and realtime layers.
package domain
