package config

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// AgentName is the default name advertised on the A2A agent card
	AgentName = "TicketActionsAgent"

	// BackendFreshdesk serves ticket data through templated Freshdesk REST requests
	BackendFreshdesk = "freshdesk"
	// BackendJira serves ticket data through the Jira REST API
	BackendJira = "jira"

	// DefaultJokeAPIURL is the joke source used by the update-joke-field action
	DefaultJokeAPIURL = "https://official-joke-api.appspot.com/random_joke"
	// DefaultPostAPIURL is the post creation endpoint used by the create-post action
	DefaultPostAPIURL = "https://jsonplaceholder.typicode.com/posts"
)

// Config holds the application configuration
type Config struct {
	// Widget API server
	ServerPort int
	ServerHost string

	// A2A agent
	AgentEnabled bool
	AgentName    string
	AgentVersion string
	AgentURL     string
	AgentPort    int

	// Ticketing backend
	Backend         string // "freshdesk" or "jira"
	FreshdeskURL    string
	FreshdeskAPIKey string
	JiraBaseURL     string
	JiraUsername    string
	JiraAPIToken    string

	// External APIs
	JokeAPIURL string
	PostAPIURL string

	// Authentication
	AuthType  string // "jwt", "apikey" or empty
	JWTSecret string
	APIKey    string

	// Behavior
	StatusClearAfter       time.Duration
	RequestTimeout         time.Duration
	SerializeTicketActions bool
	ChoicesEnabled         bool
	// SessionIdleTimeout closes ticket sessions unused for this long; zero keeps them
	SessionIdleTimeout time.Duration
	UISettableFields       []string

	LogLevel string

	// Templates overrides the built-in request templates by name
	Templates map[string]TemplateConfig
}

// TemplateConfig describes a named HTTP request template
type TemplateConfig struct {
	Method  string            `mapstructure:"method"`
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

var v *viper.Viper

// init loads environment variables from .env file and prepares viper
func init() {
	// Try to load from project root first
	err := godotenv.Load()
	if err != nil {
		// Try loading from parent directory (assuming we're in a subdirectory)
		err = godotenv.Load("../.env")
		if err != nil {
			err = godotenv.Load("../../.env")
			if err != nil {
				log.Println("No .env file found or error loading it. Using environment variables or defaults.")
			}
		}
	}

	v = viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	v.SetConfigName("ticketwidget")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/ticketwidget")
}

// GetViper returns the viper instance backing the configuration so callers
// can bind flags or override values before NewConfig is called.
func GetViper() *viper.Viper {
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server_port", 8080)
	v.SetDefault("server_host", "localhost")

	v.SetDefault("agent_enabled", true)
	v.SetDefault("agent_name", AgentName)
	v.SetDefault("agent_version", "1.0.0")
	v.SetDefault("agent_port", 8081)
	v.SetDefault("agent_url", "")

	v.SetDefault("backend", BackendFreshdesk)
	v.SetDefault("freshdesk_url", "")
	v.SetDefault("freshdesk_domain", "")
	v.SetDefault("freshdesk_api_key", "")
	v.SetDefault("jira_base_url", "https://your-jira-instance.atlassian.net")
	v.SetDefault("jira_username", "")
	v.SetDefault("jira_api_token", "")

	v.SetDefault("joke_api_url", DefaultJokeAPIURL)
	v.SetDefault("post_api_url", DefaultPostAPIURL)

	v.SetDefault("auth_type", "")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("api_key", "")

	v.SetDefault("status_clear_after", "5s")
	v.SetDefault("request_timeout", "30s")
	v.SetDefault("serialize_ticket_actions", true)
	v.SetDefault("choices_enabled", true)
	v.SetDefault("session_idle_timeout", "30m")
	v.SetDefault("ui_settable_fields", "")

	v.SetDefault("log_level", "info")
}

// ReadConfigFile loads the optional ticketwidget.yaml. A missing file is not an error.
func ReadConfigFile(path string) error {
	if path != "" {
		v.SetConfigFile(path)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	log.Printf("Loaded configuration from %s", v.ConfigFileUsed())
	return nil
}

// NewConfig creates a new configuration from defaults, environment variables
// and the optional config file
func NewConfig() *Config {
	cfg := &Config{
		ServerPort: v.GetInt("server_port"),
		ServerHost: v.GetString("server_host"),

		AgentEnabled: v.GetBool("agent_enabled"),
		AgentName:    v.GetString("agent_name"),
		AgentVersion: v.GetString("agent_version"),
		AgentPort:    v.GetInt("agent_port"),
		AgentURL:     v.GetString("agent_url"),

		Backend:         strings.ToLower(v.GetString("backend")),
		FreshdeskURL:    freshdeskURL(v.GetString("freshdesk_url"), v.GetString("freshdesk_domain")),
		FreshdeskAPIKey: v.GetString("freshdesk_api_key"),
		JiraBaseURL:     v.GetString("jira_base_url"),
		JiraUsername:    v.GetString("jira_username"),
		JiraAPIToken:    v.GetString("jira_api_token"),

		JokeAPIURL: v.GetString("joke_api_url"),
		PostAPIURL: v.GetString("post_api_url"),

		AuthType:  v.GetString("auth_type"),
		JWTSecret: v.GetString("jwt_secret"),
		APIKey:    v.GetString("api_key"),

		StatusClearAfter:       v.GetDuration("status_clear_after"),
		RequestTimeout:         v.GetDuration("request_timeout"),
		SerializeTicketActions: v.GetBool("serialize_ticket_actions"),
		ChoicesEnabled:         v.GetBool("choices_enabled"),
		SessionIdleTimeout:     v.GetDuration("session_idle_timeout"),
		UISettableFields:       splitList(v.GetString("ui_settable_fields")),

		LogLevel: v.GetString("log_level"),
	}

	if err := v.UnmarshalKey("templates", &cfg.Templates); err != nil {
		log.Printf("Ignoring malformed templates section: %v", err)
	}

	return cfg
}

// freshdeskURL prefers an explicit base URL and falls back to the account domain
func freshdeskURL(explicit, domain string) string {
	if explicit != "" {
		return strings.TrimRight(explicit, "/")
	}
	if domain == "" {
		return ""
	}
	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return strings.TrimRight(domain, "/")
	}
	return "https://" + strings.TrimRight(domain, "/")
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
