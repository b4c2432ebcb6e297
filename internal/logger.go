package internal

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"regexp"
	"runtime"
	"strings"
	"time"
)

// LogLevel represents different logging levels
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LogLevelError:
		return "ERROR"
	case LogLevelWarn:
		return "WARN"
	case LogLevelInfo:
		return "INFO"
	case LogLevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// SecureLogger provides leveled logging with credential redaction. The
// Stream API traffic carries an account API key, a private signing key and
// minted bearer tokens; none of those may reach the log output.
type SecureLogger struct {
	logger    *log.Logger
	level     LogLevel
	debug     bool
	quiet     bool
	redactors []Redactor
}

// Redactor defines an interface for redacting sensitive information
type Redactor interface {
	Redact(input string) string
}

// HeaderRedactor redacts credential-bearing header values from strings
type HeaderRedactor struct{}

func (r *HeaderRedactor) Redact(input string) string {
	patterns := []string{
		"X-Auth-Key:",
		"X-Auth-Email:",
		"Authorization:",
		"Bearer ",
	}

	result := input
	for _, pattern := range patterns {
		lower := strings.ToLower(result)
		index := strings.Index(lower, strings.ToLower(pattern))
		if index == -1 {
			continue
		}
		start := index + len(pattern)
		end := start
		for end < len(result) && result[end] != ' ' && result[end] != ';' && result[end] != '\n' && result[end] != '\r' {
			end++
		}
		if end > start {
			result = result[:start] + "[REDACTED]" + result[end:]
		}
	}
	return result
}

var pemBlockPattern = regexp.MustCompile(`(?s)-----BEGIN [A-Z ]*PRIVATE KEY-----.*?(-----END [A-Z ]*PRIVATE KEY-----|\z)`)

// PEMRedactor removes private key material wherever it appears
type PEMRedactor struct{}

func (r *PEMRedactor) Redact(input string) string {
	return pemBlockPattern.ReplaceAllString(input, "[PEM REDACTED]")
}

// TokenRedactor redacts minted tokens from JSON payloads and delivery URLs.
// Delivery URLs embed the token as the first path segment.
type TokenRedactor struct{}

var tokenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`"(token|pem)"\s*:\s*"[^"]*"`),
	regexp.MustCompile(`(https://[^/\s]+/)[A-Za-z0-9_.=-]{40,}(/downloads/)`),
}

func (r *TokenRedactor) Redact(input string) string {
	result := tokenPatterns[0].ReplaceAllString(input, `"$1":"[REDACTED]"`)
	result = tokenPatterns[1].ReplaceAllString(result, "$1[REDACTED]$2")
	return result
}

// NewSecureLogger creates a new secure logger
func NewSecureLogger(output io.Writer, level LogLevel, debug, quiet bool) *SecureLogger {
	logger := log.New(output, "", 0) // We'll handle our own formatting

	return &SecureLogger{
		logger: logger,
		level:  level,
		debug:  debug,
		quiet:  quiet,
		redactors: []Redactor{
			&HeaderRedactor{},
			&PEMRedactor{},
			&TokenRedactor{},
		},
	}
}

// NewDefaultLogger creates a logger with default settings
func NewDefaultLogger(debug, quiet bool) *SecureLogger {
	level := LogLevelInfo
	if debug {
		level = LogLevelDebug
	}
	if quiet {
		level = LogLevelError
	}

	return NewSecureLogger(os.Stderr, level, debug, quiet)
}

// redactSensitiveData applies all redactors to the input string
func (sl *SecureLogger) redactSensitiveData(input string) string {
	result := input
	for _, redactor := range sl.redactors {
		result = redactor.Redact(result)
	}
	return result
}

// formatMessage formats a log message with timestamp and caller information
func (sl *SecureLogger) formatMessage(level LogLevel, message string) string {
	timestamp := time.Now().Format("2006-01-02 15:04:05")

	if sl.debug {
		// Walk a few frames up to skip the logger's own wrappers
		for depth := 3; depth <= 5; depth++ {
			_, file, line, ok := runtime.Caller(depth)
			if ok && !strings.Contains(file, "logger.go") {
				parts := strings.Split(file, "/")
				filename := parts[len(parts)-1]
				return fmt.Sprintf("[%s] %s %s:%d %s", timestamp, level.String(), filename, line, message)
			}
		}
	}

	return fmt.Sprintf("[%s] %s %s", timestamp, level.String(), message)
}

// shouldLog determines if a message should be logged based on level
func (sl *SecureLogger) shouldLog(level LogLevel) bool {
	if sl.quiet && level > LogLevelError {
		return false
	}
	return level <= sl.level
}

func (sl *SecureLogger) logf(level LogLevel, format string, args ...interface{}) {
	if !sl.shouldLog(level) {
		return
	}

	message := fmt.Sprintf(format, args...)
	message = sl.redactSensitiveData(message)
	sl.logger.Print(sl.formatMessage(level, message))
}

// Error logs an error message
func (sl *SecureLogger) Error(format string, args ...interface{}) {
	sl.logf(LogLevelError, format, args...)
}

// Warn logs a warning message
func (sl *SecureLogger) Warn(format string, args ...interface{}) {
	sl.logf(LogLevelWarn, format, args...)
}

// Info logs an info message
func (sl *SecureLogger) Info(format string, args ...interface{}) {
	sl.logf(LogLevelInfo, format, args...)
}

// Debug logs a debug message
func (sl *SecureLogger) Debug(format string, args ...interface{}) {
	sl.logf(LogLevelDebug, format, args...)
}

// LogHTTPRequest logs an HTTP request with sensitive data redacted
func (sl *SecureLogger) LogHTTPRequest(req *http.Request) {
	if !sl.shouldLog(LogLevelDebug) {
		return
	}

	sanitizedHeaders := make(map[string]string)
	for name, values := range req.Header {
		if isSensitiveHeader(name) {
			sanitizedHeaders[name] = "[REDACTED]"
		} else {
			sanitizedHeaders[name] = strings.Join(values, ", ")
		}
	}

	sl.Debug("HTTP Request: %s %s Headers: %v", req.Method, req.URL.String(), sanitizedHeaders)
}

// LogHTTPResponse logs an HTTP response with sensitive data redacted
func (sl *SecureLogger) LogHTTPResponse(resp *http.Response) {
	if !sl.shouldLog(LogLevelDebug) {
		return
	}

	sl.Debug("HTTP Response: %d %s", resp.StatusCode, resp.Status)
}

// isSensitiveHeader checks if a header carries credentials
func isSensitiveHeader(name string) bool {
	switch strings.ToLower(name) {
	case "authorization", "x-auth-key", "x-auth-email", "cookie", "set-cookie":
		return true
	}
	return false
}

// SetLevel sets the logging level
func (sl *SecureLogger) SetLevel(level LogLevel) {
	sl.level = level
}

// SetQuiet enables or disables quiet mode
func (sl *SecureLogger) SetQuiet(quiet bool) {
	sl.quiet = quiet
	if quiet {
		sl.level = LogLevelError
	}
}

// AddRedactor adds a custom redactor
func (sl *SecureLogger) AddRedactor(redactor Redactor) {
	sl.redactors = append(sl.redactors, redactor)
}
