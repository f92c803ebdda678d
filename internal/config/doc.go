// Package config loads imglabel settings from an optional YAML file, a .env
// file and IMGLABEL_* environment variables, then validates backend
// selections so a process fails at startup rather than on first use.
package config
