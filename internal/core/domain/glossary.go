package domain

// Glossary maps a domain category to its associated vocabulary. It is loaded
// once at startup and read-only afterwards, so unlimited concurrent readers
// are safe.
type Glossary map[string][]string

// Terms returns the vocabulary for a category, nil when unknown.
func (g Glossary) Terms(category string) []string {
	return g[category]
}

// Categories returns the category names in unspecified order.
func (g Glossary) Categories() []string {
	out := make([]string, 0, len(g))
	for c := range g {
		out = append(out, c)
	}
	return out
}

// DefaultGlossary is the built-in fallback used when no glossary file is
// configured or the configured one cannot be read.
func DefaultGlossary() Glossary {
	return Glossary{
		"installation": {
			"install", "installation", "setup", "deploy", "deployment",
			"prerequisites", "requirements", "hardware", "provisioning",
		},
		"integration": {
			"integration", "api", "interface", "endpoint", "connector",
			"webhook", "sync", "import", "export", "middleware",
		},
		"security": {
			"security", "authentication", "authorization", "certificate",
			"encryption", "tls", "firewall", "credential", "hardening",
		},
		"troubleshooting": {
			"error", "failure", "issue", "troubleshoot", "diagnostic",
			"log", "debug", "outage", "alarm", "recovery",
		},
		"version": {
			"version", "release", "upgrade", "migration", "patch",
			"changelog", "compatibility", "rollback",
		},
		"configuration": {
			"configuration", "config", "parameter", "setting", "option",
			"tuning", "profile", "threshold", "default",
		},
	}
}
