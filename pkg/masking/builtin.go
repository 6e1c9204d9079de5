package masking

// PatternDef is a named regex masking rule, expressed before compilation so
// it can be embedded as a Go literal (builtin) or decoded from YAML (custom,
// per MCP server).
type PatternDef struct {
	Pattern     string
	Replacement string
	Description string
}

// BuiltinPatterns are the regex-based masking rules shipped with the engine.
// Keys are referenced from pattern groups and from a server's explicit
// Patterns list (spec §4.5).
var BuiltinPatterns = map[string]PatternDef{
	"api_key": {
		Pattern:     `(?i)(?:api[_-]?key|apikey|key)["\']?\s*[:=]\s*["\']?([A-Za-z0-9_\-]{20,})["\']?`,
		Replacement: `"api_key": "[MASKED_API_KEY]"`,
		Description: "API keys",
	},
	"password": {
		Pattern:     `(?i)(?:password|pwd|pass)["\']?\s*[:=]\s*["\']?([^"\'\s\n]{6,})["\']?`,
		Replacement: `"password": "[MASKED_PASSWORD]"`,
		Description: "Passwords",
	},
	"certificate": {
		Pattern:     `(?s)-----BEGIN [A-Z ]+-----.*?-----END [A-Z ]+-----`,
		Replacement: `[MASKED_CERTIFICATE]`,
		Description: "SSL/TLS certificates",
	},
	"certificate_authority_data": {
		Pattern:     `(?i)certificate-authority-data:\s*([A-Za-z0-9+/]{20,}={0,2})`,
		Replacement: `certificate-authority-data: [MASKED_CA_CERTIFICATE]`,
		Description: "Kubernetes kubeconfig CA data",
	},
	"token": {
		Pattern:     `(?i)(?:token|bearer|jwt)["\']?\s*[:=]\s*["\']?([A-Za-z0-9_\-\.]{20,})["\']?`,
		Replacement: `"token": "[MASKED_TOKEN]"`,
		Description: "Access tokens",
	},
	"email": {
		Pattern:     `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9]+(?:[.-][A-Za-z0-9]+)*\.[A-Za-z]{2,63}\b`,
		Replacement: `[MASKED_EMAIL]`,
		Description: "Email addresses",
	},
	"ssh_key": {
		Pattern:     `ssh-(?:rsa|dss|ed25519|ecdsa)\s+[A-Za-z0-9+/=]+`,
		Replacement: `[MASKED_SSH_KEY]`,
		Description: "SSH public keys",
	},
	"base64_secret": {
		Pattern:     `\b([A-Za-z0-9+/]{20,}={0,2})\b`,
		Replacement: `[MASKED_BASE64_VALUE]`,
		Description: "Base64 values, 20+ chars",
	},
	"base64_short": {
		Pattern:     `:\s+([A-Za-z0-9+/]{4,19}={0,2})(?:\s|$)`,
		Replacement: `: [MASKED_SHORT_BASE64]`,
		Description: "Short base64 values",
	},
	"private_key": {
		Pattern:     `(?i)(?:private[_-]?key)["\']?\s*[:=]\s*["\']?([A-Za-z0-9_\-\.]{20,})["\']?`,
		Replacement: `"private_key": "[MASKED_PRIVATE_KEY]"`,
		Description: "Private keys",
	},
	"secret_key": {
		Pattern:     `(?i)(?:secret[_-]?key)["\']?\s*[:=]\s*["\']?([A-Za-z0-9_\-\.]{20,})["\']?`,
		Replacement: `"secret_key": "[MASKED_SECRET_KEY]"`,
		Description: "Secret keys",
	},
	"aws_access_key": {
		Pattern:     `(?i)(?:aws[_-]?access[_-]?key[_-]?id)["\']?\s*[:=]\s*["\']?(AKIA[A-Z0-9]{16})["\']?`,
		Replacement: `"aws_access_key_id": "[MASKED_AWS_KEY]"`,
		Description: "AWS access keys",
	},
	"aws_secret_key": {
		Pattern:     `(?i)(?:aws[_-]?secret[_-]?access[_-]?key)["\']?\s*[:=]\s*["\']?([A-Za-z0-9/+=]{40})["\']?`,
		Replacement: `"aws_secret_access_key": "[MASKED_AWS_SECRET]"`,
		Description: "AWS secret keys",
	},
	"github_token": {
		Pattern:     `(?i)(?:github[_-]?token|gh[ps]_[A-Za-z0-9_]{36,255})`,
		Replacement: `[MASKED_GITHUB_TOKEN]`,
		Description: "GitHub tokens",
	},
	"slack_token": {
		Pattern:     `(?i)xox[baprs]-[A-Za-z0-9-]{10,72}`,
		Replacement: `[MASKED_SLACK_TOKEN]`,
		Description: "Slack tokens",
	},
}

// BuiltinPatternGroups bundles patterns (and code maskers, see
// BuiltinCodeMaskers) under a short name a server or alert config can
// reference instead of listing every pattern individually.
var BuiltinPatternGroups = map[string][]string{
	"basic":      {"api_key", "password"},
	"secrets":    {"api_key", "password", "token", "private_key", "secret_key"},
	"security":   {"api_key", "password", "token", "certificate", "certificate_authority_data", "email", "ssh_key"},
	"kubernetes": {"kubernetes_secret", "api_key", "password", "certificate_authority_data"},
	"cloud":      {"aws_access_key", "aws_secret_key", "api_key", "token"},
	"all": {
		"base64_secret", "base64_short", "api_key", "password", "certificate",
		"certificate_authority_data", "email", "token", "ssh_key", "private_key",
		"secret_key", "aws_access_key", "aws_secret_key", "github_token", "slack_token",
	},
}

// BuiltinCodeMaskers names the code-based (structural) maskers a pattern
// group may reference instead of a regex. Each name must match a Masker's
// Name() registered in NewMaskingService.
var BuiltinCodeMaskers = []string{
	"kubernetes_secret",
}
