package cmd

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"

	"github.com/searchmux/searchmux/pkg/config"
	"github.com/searchmux/searchmux/pkg/core"
)

// createProvidersFromConfig creates and configures providers from the config
func createProvidersFromConfig(registry *core.Registry, cfg *config.Config) error {
	for name := range cfg.Providers {
		providerType, providerConfigRaw, err := cfg.GetProviderConfig(name)
		if err != nil {
			return fmt.Errorf("getting config for provider %s: %w", name, err)
		}

		prototype, err := registry.Prototype(providerType)
		if err != nil {
			return fmt.Errorf("provider %s: %w", name, err)
		}

		// Convert the raw config table into the provider's expected type.
		providerConfig, err := convertRawConfigToType(prototype, providerConfigRaw)
		if err != nil {
			return fmt.Errorf("converting config for provider %s: %w", name, err)
		}

		if err := registry.CreateProvider(name, providerType, providerConfig); err != nil {
			return fmt.Errorf("creating provider %s: %w", name, err)
		}
	}

	return nil
}

// convertRawConfigToType converts raw config to the provider's expected type
func convertRawConfigToType(prototype core.Provider, rawConfig interface{}) (interface{}, error) {
	configType := prototype.ConfigType()

	if rawConfig == nil {
		return nil, nil
	}

	// Marshal and unmarshal to convert between types
	configData, err := toml.Marshal(rawConfig)
	if err != nil {
		return nil, fmt.Errorf("marshaling config data: %w", err)
	}

	if err := toml.Unmarshal(configData, configType); err != nil {
		return nil, fmt.Errorf("unmarshaling provider config: %w", err)
	}

	return configType, nil
}
