package config

// TwilioConfig carries the SMS and WhatsApp provider credentials.
type TwilioConfig struct {
	AccountSID   string
	AuthToken    string
	SMSFrom      string
	WhatsAppFrom string
	APIURL       string
}

func NewTwilioConfig() *TwilioConfig {
	return &TwilioConfig{
		AccountSID:   getEnv("TWILIO_ACCOUNT_SID", ""),
		AuthToken:    getEnv("TWILIO_AUTH_TOKEN", ""),
		SMSFrom:      getEnv("TWILIO_SMS_FROM", ""),
		WhatsAppFrom: getEnv("TWILIO_WHATSAPP_FROM", ""),
		APIURL:       getEnv("TWILIO_API_URL", "https://api.twilio.com"),
	}
}

func (c *TwilioConfig) HasCredentials() bool {
	return c.AccountSID != "" && c.AuthToken != ""
}
