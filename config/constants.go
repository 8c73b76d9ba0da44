package config

const (
	DefaultDripAmount = "10"
	DefaultDripUnit   = "UNIT"

	DefaultVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

	DefaultSubmitTimeoutMs  = 10_000
	DefaultConfirmTimeoutMs = 60_000

	DefaultRecipientMax       = 1
	DefaultRecipientWindowSec = 3600
	DefaultGlobalMax          = 500
	DefaultGlobalWindowSec    = 3600
)
