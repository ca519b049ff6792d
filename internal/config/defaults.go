package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:              "info",
			MaxConcurrentMessages: 5,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 3000,
		},
		Channels: ChannelsConfig{
			WhatsApp: WhatsAppConfig{
				WebhookPath: "/webhook",
			},
		},
		Scheduler: SchedulerConfig{
			TimeoutSeconds: 10,
			MaxSlots:       3,
		},
		History: HistoryConfig{
			Enabled: true,
			DBPath:  "~/.citabot/citabot.db",
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Endpoint: "/metrics",
		},
	}
}
