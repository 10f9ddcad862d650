package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	ApiKey           string `mapstructure:"api_key"`
	ApiBaseUrl       string `mapstructure:"api_base_url" validate:"required,url"`
	ApiModel         string `mapstructure:"api_model" validate:"required"`
	RegistryBaseUrl  string `mapstructure:"registry_base_url" validate:"required,url"`
	MaxFacilities    int    `mapstructure:"max_facilities" validate:"gte=1"`
	MaxSampleTitles  int    `mapstructure:"max_sample_titles" validate:"gte=1"`
	DefaultMaxTrials int    `mapstructure:"default_max_trials" validate:"gte=1"`
	LLMMaxTokens     int    `mapstructure:"llm_max_tokens" validate:"gte=1"`
	LLMTimeOut       int    `mapstructure:"llm_timeout" validate:"gte=1"`
}

func LoadConfig() (*Config, error) {
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.SetEnvPrefix("trialq")

	viper.SetDefault("api_base_url", "https://api.groq.com/openai/v1")
	viper.SetDefault("api_model", "llama-3.3-70b-versatile")
	viper.SetDefault("registry_base_url", "https://clinicaltrials.gov/api/v2")
	viper.SetDefault("max_facilities", 20)
	viper.SetDefault("max_sample_titles", 3)
	viper.SetDefault("default_max_trials", 5)
	viper.SetDefault("llm_max_tokens", 4096)
	viper.SetDefault("llm_timeout", 60)

	viper.BindEnv("api_key")
	viper.BindEnv("api_base_url")
	viper.BindEnv("api_model")
	viper.BindEnv("registry_base_url")
	viper.BindEnv("max_facilities")
	viper.BindEnv("max_sample_titles")
	viper.BindEnv("default_max_trials")
	viper.BindEnv("llm_max_tokens")
	viper.BindEnv("llm_timeout")

	viper.AutomaticEnv()
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			fieldError := validationErrors[0]
			return nil, fmt.Errorf(
				"config: validation failed for field '%s' on tag '%s'",
				fieldError.Field(),
				fieldError.Tag(),
			)
		}
		return nil, err
	}

	return &cfg, nil
}
