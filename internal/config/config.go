// Package config provides configuration loading and validation for the
// intake bot. Values come from defaults, config.yaml, and BOT_-prefixed
// environment variables, in that order of precedence. The loaded Config is
// immutable and injected into components at construction; nothing reads
// viper at runtime.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config defines the application configuration parameters for all components
// of the intake bot: logging, the Telegram transport, destination branches,
// database, SMTP mirror, report generation, and scheduled tasks.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Branches  []BranchConfig  `mapstructure:"branches"    validate:"dive"`
	Database  DatabaseConfig  `mapstructure:"database"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Report    ReportConfig    `mapstructure:"report"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

// LogConfig controls log level and output format.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds transport credentials.
type TelegramConfig struct {
	Token string `mapstructure:"token" validate:"required"`
}

// BranchConfig names one destination organizational unit with its staff
// channel and mirror address. The head office entry doubles as the default
// catch-all destination that additionally receives a copy of everything.
type BranchConfig struct {
	Name   string `mapstructure:"name"    validate:"required"`
	ChatID int64  `mapstructure:"chat_id" validate:"required"`
	Email  string `mapstructure:"email"   validate:"omitempty,email"`
}

// DatabaseConfig holds the SQLite database location.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// SMTPConfig holds credentials for the email mirror. Email delivery is
// best-effort; an unset host disables it entirely.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"     validate:"omitempty,min=1,max=65535"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"     validate:"omitempty,email"`
}

// ReportConfig controls spreadsheet report generation.
type ReportConfig struct {
	Dir string `mapstructure:"dir" validate:"required"`
}

// SchedulerConfig holds the scheduled task table keyed by task name.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// TaskConfig enables a named task on a cron schedule.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// MessagesConfig holds the user-facing message strings so deployments can
// localize the conversation without code changes.
type MessagesConfig struct {
	Welcome            string `mapstructure:"welcome"`
	About              string `mapstructure:"about"`
	ChooseBranch       string `mapstructure:"choose_branch"`
	BranchRouted       string `mapstructure:"branch_routed"`
	HeadOfficeRouted   string `mapstructure:"head_office_routed"`
	ReviewPrompt       string `mapstructure:"review_prompt"`
	SendMore           string `mapstructure:"send_more"`
	DraftCleared       string `mapstructure:"draft_cleared"`
	ThankYou           string `mapstructure:"thank_you"`
	AlreadyDispatched  string `mapstructure:"already_dispatched"`
	NoActiveDraft      string `mapstructure:"no_active_draft"`
	UnsupportedContent string `mapstructure:"unsupported_content"`
	ReplyTargetMissing string `mapstructure:"reply_target_missing"`
	EnterReply         string `mapstructure:"enter_reply"`
	ReplyPreview       string `mapstructure:"reply_preview"`
	ReplyEditPrompt    string `mapstructure:"reply_edit_prompt"`
	ReplySent          string `mapstructure:"reply_sent"`
	ReplyToClient      string `mapstructure:"reply_to_client"`
	NoStoredReply      string `mapstructure:"no_stored_reply"`
	NotAuthorized      string `mapstructure:"not_authorized"`
	GeneralError       string `mapstructure:"general_error"`
}

// Load loads and validates configuration from defaults, config.yaml, and
// BOT_* environment variables.
func Load() (*Config, error) {
	setDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("BOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Allow missing config file; env and defaults may be enough.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration beyond struct tags: exactly one branch
// must be flagged as head office, and branch names must be unique since
// they key routing and callback payloads.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	if len(c.Branches) == 0 {
		return fmt.Errorf("at least one branch (the head office) must be configured")
	}

	seen := make(map[string]bool, len(c.Branches))
	for _, b := range c.Branches {
		if seen[b.Name] {
			return fmt.Errorf("duplicate branch name %q", b.Name)
		}
		seen[b.Name] = true
		if strings.Contains(b.Name, "_") {
			// Underscores delimit callback payload fields.
			return fmt.Errorf("branch name %q must not contain underscores", b.Name)
		}
	}

	return nil
}

// HeadOffice returns the head office branch: the first configured branch.
// Configuration order is deliberate; the catch-all destination comes first.
func (c *Config) HeadOffice() BranchConfig {
	return c.Branches[0]
}

// FindBranch looks up a branch by name.
func (c *Config) FindBranch(name string) (BranchConfig, bool) {
	for _, b := range c.Branches {
		if b.Name == name {
			return b, true
		}
	}
	return BranchConfig{}, false
}

// IsStaffChat reports whether chatID belongs to the static staff allow-list
// (any branch channel, head office included).
func (c *Config) IsStaffChat(chatID int64) bool {
	for _, b := range c.Branches {
		if b.ChatID == chatID {
			return true
		}
	}
	return false
}

func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.json", true)

	viper.SetDefault("database.path", "storage.db")
	viper.SetDefault("report.dir", ".")

	viper.SetDefault("smtp.port", 465)

	viper.SetDefault("messages.welcome", "Good day! How can I help you? Choose one of the options:")
	viper.SetDefault("messages.about", "I'm a virtual assistant that routes your requests to our branches or the head office.")
	viper.SetDefault("messages.choose_branch", "Please choose where to direct your request:")
	viper.SetDefault("messages.branch_routed", "Your request will go to %s and a copy to the head office. You can send text, photos, videos, or voice notes.")
	viper.SetDefault("messages.head_office_routed", "Your request will go to the head office. You can send text, photos, videos, or voice notes.")
	viper.SetDefault("messages.review_prompt", "Review your request:\n%s\nReady to send, or would you like to change it?")
	viper.SetDefault("messages.send_more", "Go ahead, send the next message for this request.")
	viper.SetDefault("messages.draft_cleared", "Draft cleared. Send the new content for your request.")
	viper.SetDefault("messages.thank_you", "Thank you for your request! We will get back to you shortly.")
	viper.SetDefault("messages.already_dispatched", "This request has already been sent. Use /start to open a new one.")
	viper.SetDefault("messages.no_active_draft", "There is no request in progress. Use /start to open one.")
	viper.SetDefault("messages.unsupported_content", "That content type is not supported. Please send text, a photo, a video, or a voice note.")
	viper.SetDefault("messages.reply_target_missing", "Could not determine which request this reply belongs to. Use the Reply button on a request.")
	viper.SetDefault("messages.enter_reply", "Enter your message for the client:")
	viper.SetDefault("messages.reply_preview", "Preview of your reply:\n%s")
	viper.SetDefault("messages.reply_edit_prompt", "Edit your message and send it again.")
	viper.SetDefault("messages.reply_sent", "Your reply has been sent to the client.")
	viper.SetDefault("messages.reply_to_client", "Reply from the administrator: %s")
	viper.SetDefault("messages.no_stored_reply", "No stored reply for this request. Enter the reply text first.")
	viper.SetDefault("messages.not_authorized", "You are not authorized to use this command.")
	viper.SetDefault("messages.general_error", "An error occurred. Please try again later.")
}
