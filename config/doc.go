// Package config loads service configuration with Viper.
//
// Values are read from defaults, a config.yml found next to the service
// binary sources (./cmd/<service>/config.yml) and the environment, with an
// optional .env file loaded through godotenv first.
//
// # Usage
//
//	var cfg MyConfig
//	err := config.LoadConfig("notify-server", &cfg,
//	    config.WithDefault("server.port", 8080))
//
// Environment variables override file values using underscore-separated
// paths (SERVER_PORT overrides server.port).
package config
