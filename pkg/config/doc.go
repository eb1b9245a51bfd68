// Package config holds the agent's startup options: defaults, an optional
// YAML overlay, and the flat key/value view served by the /vars endpoint.
package config
