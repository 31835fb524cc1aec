// SPDX-License-Identifier: MPL-2.0

// Package config handles viberails configuration using Viper with CUE as the
// file format.
//
// Configuration is read from config.cue in the config directory
// (VIBERAILS_CONFIG_DIR, or the platform default such as ~/.config/viberails),
// validated against the embedded #Config schema in config_schema.cue, and
// layered over built-in defaults. Every key can also be set from the
// environment with the VIBERAILS_ prefix, e.g. VIBERAILS_UPGRADE_BASE_URL.
package config
