package config

type CliConfig struct {
	LogLevel  string
	CsvComma  rune
	LoadBatch int
}

func NewCliConfig() *CliConfig {
	return &CliConfig{
		LogLevel:  "info",
		CsvComma:  ',',
		LoadBatch: 1000,
	}
}
