package port

// AuthMetrics records business counters for the access core.
type AuthMetrics interface {
	LoginAttempt(outcome, reason string)
	CaptchaVerified(result string)
	Registration(outcome string)
	ConfigLoad(result string)
}

// NopAuthMetrics discards every observation.
type NopAuthMetrics struct{}

func (NopAuthMetrics) LoginAttempt(string, string) {}
func (NopAuthMetrics) CaptchaVerified(string)      {}
func (NopAuthMetrics) Registration(string)         {}
func (NopAuthMetrics) ConfigLoad(string)           {}
