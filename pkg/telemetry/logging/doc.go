// Package logging configures the process-wide structured logger.
//
// The gateway embeds upstream API keys in route URLs, and transport
// errors quote the full URL. Every handler installed here is wrapped
// with a redactor that scrubs the configured secrets from log messages
// and attribute values before they are written.
package logging
