// Package config provides configuration management for the Battleship server.
//
// The config package handles:
//   - Loading server settings from a YAML file
//   - Default values for every setting
//   - Validation of the loaded values
//
// Configuration Format:
//
//	server:
//	  host: 0.0.0.0
//	  port: 8080
//	  public_url: https://example.ngrok.app
//	store:
//	  driver: sqlite      # memory, file or sqlite
//	  dsn: data/battleship.db
//	  data_dir: data/games
//	  retention: 24h
//	  prune_interval: 10m
//	log:
//	  level: info
//	  debug: false
//	ngrok:
//	  enabled: false
//	  domain: ""
//
// Command line flags and environment variables override file values; see
// main.go for the precedence rules.
package config
