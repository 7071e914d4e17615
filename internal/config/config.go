package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/tradebot-network/tradebot-daemon/internal/core/domain"
)

const (
	// HTTPPortKey is the port where the operator HTTP interface will listen on
	HTTPPortKey = "HTTP_PORT"
	// LogLevelKey are the different logging levels. For reference on the values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// DatadirKey is the local data directory to store the internal state of the daemon
	DatadirKey = "DATADIR"
	// AccountsFileKey is the path of the YAML file holding the account records
	AccountsFileKey = "ACCOUNTS_FILE"
	// SteamAPIURLKey is the base url of the trading platform endpoints
	SteamAPIURLKey = "STEAM_API_URL"
	// SteamRPSKey caps the request rate against the platform across all accounts
	SteamRPSKey = "STEAM_REQUESTS_PER_SECOND"
	// MaxSendAttemptsKey is the number of failed sends after which an offer is abandoned
	MaxSendAttemptsKey = "MAX_SEND_ATTEMPTS"
	// SendRetryDelayKey is the wait between failed offer send attempts
	SendRetryDelayKey = "SEND_RETRY_DELAY"
	// ConfirmRetryDelayKey is the wait between failed confirmation attempts
	ConfirmRetryDelayKey = "CONFIRM_RETRY_DELAY"
	// LoginRetryDelayKey is the wait between failed login attempts, long enough to outlast an authenticator lockout
	LoginRetryDelayKey = "LOGIN_RETRY_DELAY"
	// ReauthCooldownKey is the wait before forcing a new login on a confirmation session fault
	ReauthCooldownKey = "REAUTH_COOLDOWN"
	// SettleDelayKey is the wait between a successful send and the first confirmation attempt
	SettleDelayKey = "SETTLE_DELAY"
	// BootstrapDelayKey is the pause between two account logins during startup
	BootstrapDelayKey = "BOOTSTRAP_DELAY"
	// PollIntervalKey is the interval between two scans of incoming offers for auto-accept accounts
	PollIntervalKey = "POLL_INTERVAL"
	// TelegramTokenKey is the bot token of the telegram observer sink
	TelegramTokenKey = "TELEGRAM_TOKEN"
	// TelegramChatIDKey is the chat id of the telegram observer sink
	TelegramChatIDKey = "TELEGRAM_CHAT_ID"
	// StatsIntervalKey defines interval for printing basic daemon statistics
	StatsIntervalKey = "STATS_INTERVAL"
)

var vip *viper.Viper

func InitConfig() error {
	vip = viper.New()
	vip.SetEnvPrefix("TRADEBOT")
	vip.AutomaticEnv()

	vip.SetDefault(HTTPPortKey, 9945)
	vip.SetDefault(LogLevelKey, 4)
	vip.SetDefault(DatadirKey, ".")
	vip.SetDefault(AccountsFileKey, "accounts.yaml")
	vip.SetDefault(SteamRPSKey, 5.0)
	vip.SetDefault(MaxSendAttemptsKey, 5)
	vip.SetDefault(SendRetryDelayKey, 10*time.Second)
	vip.SetDefault(ConfirmRetryDelayKey, 30*time.Second)
	vip.SetDefault(LoginRetryDelayKey, 60*time.Second)
	vip.SetDefault(ReauthCooldownKey, 20*time.Second)
	vip.SetDefault(SettleDelayKey, 10*time.Second)
	vip.SetDefault(BootstrapDelayKey, 10*time.Second)
	vip.SetDefault(PollIntervalKey, 2*time.Minute)
	vip.SetDefault(StatsIntervalKey, 600*time.Second)

	if err := validate(); err != nil {
		return fmt.Errorf("error while validating config: %s", err)
	}

	return nil
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetFloat(key string) float64 {
	return vip.GetFloat64(key)
}

func GetDuration(key string) time.Duration {
	return vip.GetDuration(key)
}

func GetDatadir() string {
	return GetString(DatadirKey)
}

// GetRetryPolicy assembles the retry policy of the offer pipeline from the
// configured knobs.
func GetRetryPolicy() domain.RetryPolicy {
	return domain.RetryPolicy{
		MaxSendAttempts:   GetInt(MaxSendAttemptsKey),
		SendRetryDelay:    GetDuration(SendRetryDelayKey),
		ConfirmRetryDelay: GetDuration(ConfirmRetryDelayKey),
		LoginRetryDelay:   GetDuration(LoginRetryDelayKey),
		ReauthCooldown:    GetDuration(ReauthCooldownKey),
		SettleDelay:       GetDuration(SettleDelayKey),
		BootstrapDelay:    GetDuration(BootstrapDelayKey),
	}
}

func validate() error {
	if port := GetInt(HTTPPortKey); port <= 0 || port > 65535 {
		return fmt.Errorf("%s must be a valid port number", HTTPPortKey)
	}
	if GetInt(MaxSendAttemptsKey) <= 0 {
		return fmt.Errorf("%s must be a positive number", MaxSendAttemptsKey)
	}
	if GetString(AccountsFileKey) == "" {
		return fmt.Errorf("missing accounts file")
	}
	token, chatID := GetString(TelegramTokenKey), GetString(TelegramChatIDKey)
	if (token == "" && chatID != "") || (token != "" && chatID == "") {
		return fmt.Errorf(
			"telegram notifications require both token and chat id when enabled",
		)
	}
	return nil
}

type accountRecord struct {
	AccountName    string `mapstructure:"account_name"`
	Password       string `mapstructure:"password"`
	SharedSecret   string `mapstructure:"shared_secret"`
	IdentitySecret string `mapstructure:"identity_secret"`
	Proxy          string `mapstructure:"proxy"`
	AcceptOffers   bool   `mapstructure:"accept_offers"`
	UserID         int64  `mapstructure:"user_id"`
}

// LoadAccounts reads the account records from the configured YAML file. The
// returned list preserves declaration order, which drives the bootstrap
// sequence.
func LoadAccounts() ([]domain.Account, error) {
	path := GetString(AccountsFileKey)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("accounts file not found at %s", path)
	}

	accountsViper := viper.New()
	accountsViper.SetConfigFile(path)
	if err := accountsViper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error while reading accounts file: %s", err)
	}

	records := make([]accountRecord, 0)
	if err := accountsViper.UnmarshalKey("accounts", &records); err != nil {
		return nil, fmt.Errorf("error while parsing accounts file: %s", err)
	}
	if len(records) <= 0 {
		return nil, fmt.Errorf("accounts file holds no accounts")
	}

	accounts := make([]domain.Account, 0, len(records))
	for _, record := range records {
		account := domain.Account{
			Name:           record.AccountName,
			Password:       record.Password,
			SharedSecret:   record.SharedSecret,
			IdentitySecret: record.IdentitySecret,
			ProxyURL:       record.Proxy,
			AcceptOffers:   record.AcceptOffers,
			UserID:         record.UserID,
		}
		if err := account.Validate(); err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}
