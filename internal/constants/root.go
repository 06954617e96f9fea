package constants

import "time"

const (
	AppName            = "habitat"
	DefaultKeyringUser = "remote-connection"
	DefaultConfigPath  = "~/.config/habitat/config.yaml"
	DefaultDataPath    = "~/.config/habitat/habitat.db"
	Version            = "v0.3.0"

	// DateFormat is the standard date format used throughout the application (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// TimeFormat is the standard time format used throughout the application (HH:MM)
	TimeFormat = "15:04"

	// Environment overrides
	EnvRemoteDSN = "HABITAT_REMOTE_DSN"
	EnvDebug     = "HABITAT_DEBUG"

	// Notify constants
	NotifierLockfileName   = "habitat-notifier.lock"
	NotificationDurationMs = 5000
	TrayAppIdentifier      = "com.julianstephens.habitat"
	TrayAppExecutable      = "habitat-tray"
	TraySecretHeader       = "X-Habitat-Secret"
	TrayRequestTimeout     = 3 * time.Second

	// Sync defaults
	DefaultSyncMaxAttempts = 5
	DefaultSyncBaseDelay   = 500 * time.Millisecond
	DefaultSyncMaxDelay    = 30 * time.Second
	DefaultSyncJitter      = 0.2
	DefaultSyncStaleAfter  = 15 * time.Minute
	DefaultRemoteTimeout   = 10 * time.Second
	DefaultFlushTimeout    = 15 * time.Second

	// Local store snapshots
	BackupDirName    = "backups"
	BackupFilePrefix = "habitat-"
	MaxBackups       = 14
	AutoBackupMinAge = 24 * time.Hour
)
