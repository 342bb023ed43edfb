package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
			Locale:   "en",
		},
		Telegram: TelegramConfig{
			PollTimeout: 30,
		},
		Provider: ProviderConfig{
			Name: "openai", // model left empty: each provider has its own default
		},
		Analysis: AnalysisConfig{
			MinPhotoBytes:       1000,
			MaxImageDimension:   1024,
			MaxImagePixels:      40_000_000,
			JPEGQuality:         85,
			ImageDetail:         "low",
			PhotoMaxTokens:      80,
			TextMaxTokens:       60,
			Temperature:         0.1,
			PhotoTimeoutSeconds: 15,
			TextTimeoutSeconds:  6,
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Listen:   "127.0.0.1:9464",
			Endpoint: "/metrics",
		},
	}
}
