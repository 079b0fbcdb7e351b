package config

// EmailConfig holds credentials for the transactional email providers. Resend
// is preferred when its key is set; SMTP is the fallback. Both may be empty,
// in which case the email channel reports itself as not configured.
type EmailConfig struct {
	ResendAPIKey string
	ResendAPIURL string
	From         string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string

	TemplatesEnabled bool
}

func NewEmailConfig() *EmailConfig {
	return &EmailConfig{
		ResendAPIKey:     getEnv("RESEND_API_KEY", ""),
		ResendAPIURL:     getEnv("RESEND_API_URL", ""),
		From:             getEnv("FROM_EMAIL", ""),
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         getEnvInt("SMTP_PORT", 587),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		TemplatesEnabled: getEnvBool("EMAIL_TEMPLATES_ENABLED", false),
	}
}

// PortalConfig describes the client portal that links in notifications point
// back to.
type PortalConfig struct {
	Name string
	URL  string
}

func NewPortalConfig() *PortalConfig {
	return &PortalConfig{
		Name: getEnv("PORTAL_NAME", "Client Portal"),
		URL:  getEnv("PORTAL_URL", "http://localhost:3000"),
	}
}

// TicketURL returns the deep link for a ticket.
func (p *PortalConfig) TicketURL(ticketID string) string {
	return p.URL + "/tickets/" + ticketID
}

// PreferencesURL is where recipients manage or unsubscribe from notifications.
func (p *PortalConfig) PreferencesURL() string {
	return p.URL + "/settings/notifications"
}
