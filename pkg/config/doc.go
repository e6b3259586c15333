// Package config loads typed configuration structs from environment
// variables, with an optional .env file for local development.
//
// Each component declares its own config struct with `env` tags and loads it
// at startup:
//
//	type GatewayConfig struct {
//		KeyID     string `env:"RAZORPAY_KEY_ID,required"`
//		KeySecret string `env:"RAZORPAY_KEY_SECRET,required"`
//	}
//
//	var cfg GatewayConfig
//	config.MustLoad(&cfg)
package config
