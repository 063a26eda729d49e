package config

type AppConfig struct {
	CliConfig *CliConfig
}

func New() *AppConfig {
	return &AppConfig{
		CliConfig: NewCliConfig(),
	}
}
