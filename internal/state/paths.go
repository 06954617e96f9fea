package state

import "strings"

// Entity keys in the local store mirror the remote document paths, so a
// key can be handed to the remote store unchanged.

func AccountPrefix(account string) string { return "accounts/" + account + "/" }

func HabitsCollection(account string) string       { return AccountPrefix(account) + "habits" }
func LogsCollection(account string) string         { return AccountPrefix(account) + "logs" }
func GamificationCollection(account string) string { return AccountPrefix(account) + "gamification" }
func BadgesCollection(account string) string       { return AccountPrefix(account) + "badges" }
func SubscriptionCollection(account string) string { return AccountPrefix(account) + "subscription" }

func HabitPath(account, id string) string      { return HabitsCollection(account) + "/" + id }
func LogPath(account, logKey string) string    { return LogsCollection(account) + "/" + logKey }
func GamificationPath(account string) string   { return GamificationCollection(account) + "/state" }
func BadgePath(account, badgeID string) string { return BadgesCollection(account) + "/" + badgeID }
func SubscriptionPath(account string) string   { return SubscriptionCollection(account) + "/current" }

// SyncPrefix holds the sync coordinator's bookkeeping for an account.
func SyncPrefix(account string) string { return AccountPrefix(account) + "sync/" }

// Collections lists every entity collection of an account.
func Collections(account string) []string {
	return []string{
		HabitsCollection(account),
		LogsCollection(account),
		GamificationCollection(account),
		BadgesCollection(account),
		SubscriptionCollection(account),
	}
}

// LastSegment returns the id part of a document path.
func LastSegment(path string) string {
	return path[strings.LastIndex(path, "/")+1:]
}
