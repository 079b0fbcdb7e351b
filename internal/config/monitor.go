package config

import "time"

// MonitorConfig holds the SLA policy and the monitor's scheduling knobs.
type MonitorConfig struct {
	WarningThresholdPercent float64
	WarningHoursBefore      time.Duration
	Cooldown                time.Duration
	ImmediateBreachNotify   bool

	SchedulerEnabled bool
	CheckInterval    time.Duration
	OnDemandTimeout  time.Duration
	ChannelTimeout   time.Duration
	SweepTimeout     time.Duration

	CronSecret string
	ListenAddr string
}

func NewMonitorConfig() *MonitorConfig {
	return &MonitorConfig{
		WarningThresholdPercent: getEnvFloat("SLA_WARNING_THRESHOLD_PERCENT", 25),
		WarningHoursBefore:      time.Duration(getEnvFloat("SLA_WARNING_HOURS_BEFORE", 0) * float64(time.Hour)),
		Cooldown:                getEnvDuration("SLA_NOTIFICATION_COOLDOWN", 4*time.Hour),
		ImmediateBreachNotify:   getEnvBool("SLA_IMMEDIATE_BREACH_NOTIFY", true),
		SchedulerEnabled:        getEnvBool("SLA_SCHEDULER_ENABLED", true),
		CheckInterval:           getEnvDuration("SLA_CHECK_INTERVAL", 15*time.Minute),
		OnDemandTimeout:         getEnvDuration("SLA_ONDEMAND_TIMEOUT", 3*time.Second),
		ChannelTimeout:          getEnvDuration("CHANNEL_TIMEOUT", 10*time.Second),
		SweepTimeout:            getEnvDuration("SLA_SWEEP_TIMEOUT", 5*time.Minute),
		CronSecret:              getEnv("CRON_SECRET", ""),
		ListenAddr:              getEnv("LISTEN_ADDR", ":8080"),
	}
}
