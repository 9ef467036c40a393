package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config is the process configuration, read from a .env file with
// environment variables taking precedence.
type Config struct {
	DB            string
	Addr          string
	WebhookURL    string
	WebhookSecret string
}

// Load reads configuration with viper. A missing .env file is fine;
// defaults and environment cover everything.
func Load() *Config {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.BindEnv("db", "TALLY_DB")
	v.BindEnv("addr", "TALLY_ADDR")
	v.BindEnv("webhook.url", "TALLY_WEBHOOK_URL")
	v.BindEnv("webhook.secret", "TALLY_WEBHOOK_SECRET")

	v.SetDefault("db", "tally.db")
	v.SetDefault("addr", ":8888")
	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.secret", "")

	if err := v.ReadInConfig(); err != nil {
		log.Printf("config file not found, using defaults: %v", err)
	}

	return &Config{
		DB:            v.GetString("db"),
		Addr:          v.GetString("addr"),
		WebhookURL:    v.GetString("webhook.url"),
		WebhookSecret: v.GetString("webhook.secret"),
	}
}
