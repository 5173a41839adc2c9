// Package llm provides an OpenRouter-compatible chat client used to write the
// short overlay subtitle shown under each segment's title.
//
// # Entry Points
//
// NewClient: construct a client from Config.
// Client.CompleteJSON: send system/user prompts, receive a JSON payload.
// Client.GenerateSubtitle: turn a segment transcript into a one-line subtitle.
// Client.HealthCheck: verify API key and model availability.
//
// # Retry Behaviour
//
// Requests are retried on HTTP 408/429/5xx, empty completions, and network
// timeouts with exponential backoff (base 1s, max 10s, up to 3 attempts by
// default). A Retry-After header overrides the computed delay. Context
// cancellation aborts retries immediately.
//
// Subtitle generation is best-effort: callers treat any error as "no subtitle"
// and render the title alone.
package llm
