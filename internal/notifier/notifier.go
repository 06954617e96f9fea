// Package notifier talks to the desktop tray application, which owns the
// actual delivery of notifications. The tray publishes its port, pid and a
// shared secret in a lockfile; every request is authenticated with that
// secret.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/go-ps"

	"github.com/julianstephens/habitat/internal/constants"
	"github.com/julianstephens/habitat/internal/logger"
)

var (
	userConfigDirFunc = os.UserConfigDir
	findProcessFunc   = ps.FindProcess
)

// ErrTrayNotRunning means no live tray process could be located.
var ErrTrayNotRunning = errors.New("habitat-tray is not running")

type Notifier struct {
	client *http.Client
}

type WebhookPayload struct {
	Text       string `json:"text"`
	DurationMs uint32 `json:"duration_ms"`
}

// SchedulePayload asks the tray to fire a notification every week at the
// given local wall-clock time.
type SchedulePayload struct {
	TriggerID string `json:"trigger_id"`
	HabitID   string `json:"habit_id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Weekday   int    `json:"weekday"`
	Hour      int    `json:"hour"`
	Minute    int    `json:"minute"`
}

func New() *Notifier {
	return &Notifier{client: &http.Client{Timeout: constants.TrayRequestTimeout}}
}

// Notify shows text immediately.
func (n *Notifier) Notify(text string) error {
	ctx, cancel := context.WithTimeout(context.Background(), constants.TrayRequestTimeout)
	defer cancel()

	payload := WebhookPayload{
		Text:       text,
		DurationMs: constants.NotificationDurationMs,
	}
	return n.do(ctx, http.MethodPost, "/", payload, nil)
}

// ScheduleWeekly registers a recurring reminder with the tray and returns
// the trigger id it was stored under.
func (n *Notifier) ScheduleWeekly(ctx context.Context, habitID, title, body string, weekday time.Weekday, hour, minute int) (string, error) {
	payload := SchedulePayload{
		TriggerID: uuid.NewString(),
		HabitID:   habitID,
		Title:     title,
		Body:      body,
		Weekday:   int(weekday),
		Hour:      hour,
		Minute:    minute,
	}

	var resp struct {
		TriggerID string `json:"trigger_id"`
	}
	if err := n.do(ctx, http.MethodPost, "/schedules", payload, &resp); err != nil {
		return "", err
	}
	if resp.TriggerID != "" {
		return resp.TriggerID, nil
	}
	return payload.TriggerID, nil
}

// CancelAllFor removes every recurring reminder the tray holds for a habit.
func (n *Notifier) CancelAllFor(ctx context.Context, habitID string) error {
	path := "/schedules?habit_id=" + url.QueryEscape(habitID)
	return n.do(ctx, http.MethodDelete, path, nil, nil)
}

// Ping reports whether a live tray process owns the lockfile.
func (n *Notifier) Ping() error {
	dir, err := GetTrayAppConfigDir()
	if err != nil {
		return err
	}
	_, _, err = findAndValidateTrayProcess(filepath.Join(dir, constants.NotifierLockfileName))
	return err
}

func (n *Notifier) do(ctx context.Context, method, path string, payload, out any) error {
	trayAppConfigPath, err := GetTrayAppConfigDir()
	if err != nil {
		return err
	}

	port, secret, err := findAndValidateTrayProcess(filepath.Join(trayAppConfigPath, constants.NotifierLockfileName))
	if err != nil {
		return err
	}

	return n.send(ctx, method, fmt.Sprintf("http://127.0.0.1:%s%s", port, path), secret, payload, out)
}

// GetTrayAppConfigDir returns the configuration directory used by the tray application.
func GetTrayAppConfigDir() (string, error) {
	configDir, err := userConfigDirFunc()
	if err != nil {
		return "", fmt.Errorf("failed to get user config dir: %w", err)
	}

	trayConfigDir := filepath.Join(configDir, constants.TrayAppIdentifier)

	// The tray can relocate its lockfile through settings.json.
	data, err := os.ReadFile(filepath.Join(trayConfigDir, "settings.json"))
	if err != nil {
		return trayConfigDir, nil
	}
	var store struct {
		Settings struct {
			LockfileDir *string `json:"lockfile_dir"`
		} `json:"settings"`
	}
	if err := json.Unmarshal(data, &store); err != nil {
		logger.Debug("Ignoring unreadable tray settings", "error", err)
		return trayConfigDir, nil
	}
	if dir := store.Settings.LockfileDir; dir != nil && *dir != "" {
		return *dir, nil
	}
	return trayConfigDir, nil
}

func findAndValidateTrayProcess(lockfilePath string) (string, string, error) {
	content, err := os.ReadFile(lockfilePath)
	if err != nil {
		return "", "", ErrTrayNotRunning
	}

	parts := strings.Split(strings.TrimSpace(string(content)), "|")
	if len(parts) != 3 {
		return "", "", errors.New("lockfile is malformed")
	}

	port := strings.TrimSpace(parts[0])
	if port == "" {
		return "", "", errors.New("port in lockfile is empty")
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return "", "", errors.New("invalid port number in lockfile")
	}
	if portNum < 1 || portNum > 65535 {
		return "", "", fmt.Errorf("port number %d is outside valid range (1-65535)", portNum)
	}

	pid, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", "", errors.New("invalid process ID in lockfile")
	}
	secret := parts[2]
	if strings.TrimSpace(secret) == "" {
		return "", "", errors.New("secret in lockfile is empty")
	}

	process, err := findProcessFunc(pid)
	if err != nil || process == nil {
		return "", "", ErrTrayNotRunning
	}
	if !strings.HasPrefix(process.Executable(), constants.TrayAppExecutable) {
		return "", "", fmt.Errorf("process with PID %d is not %s (is %s)", pid, constants.TrayAppExecutable, process.Executable())
	}

	return port, secret, nil
}

func (n *Notifier) send(ctx context.Context, method, target, secret string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(constants.TraySecretHeader, secret)

	res, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		msg, _ := io.ReadAll(res.Body)
		return fmt.Errorf("tray request failed with status %d: %s", res.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil || res.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode tray response: %w", err)
	}
	return nil
}
