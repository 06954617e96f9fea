package syncer

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/julianstephens/habitat/internal/logger"
	"github.com/julianstephens/habitat/internal/models"
	"github.com/julianstephens/habitat/internal/remote"
	"github.com/julianstephens/habitat/internal/state"
)

// EncodeDocument converts an entity to its remote document form.
func EncodeDocument(v any) (remote.Document, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc remote.Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// DecodeDocument fills v from a remote document.
func DecodeDocument(doc remote.Document, v any) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// EncodeTree maps every entity of the tree to its document path.
func EncodeTree(t *state.Tree) (map[string]remote.Document, error) {
	docs := make(map[string]remote.Document, len(t.Habits)+len(t.Logs)+len(t.Badges)+2)
	put := func(path string, v any) error {
		doc, err := EncodeDocument(v)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", path, err)
		}
		docs[path] = doc
		return nil
	}

	a := t.AccountID
	for id, h := range t.Habits {
		if err := put(state.HabitPath(a, id), h); err != nil {
			return nil, err
		}
	}
	for key, l := range t.Logs {
		if err := put(state.LogPath(a, key), l); err != nil {
			return nil, err
		}
	}
	for id, b := range t.Badges {
		if err := put(state.BadgePath(a, id), b); err != nil {
			return nil, err
		}
	}
	if err := put(state.GamificationPath(a), t.Gamification); err != nil {
		return nil, err
	}
	if err := put(state.SubscriptionPath(a), t.Subscription); err != nil {
		return nil, err
	}
	return docs, nil
}

// DecodeTree rebuilds a tree from documents. Documents that do not decode,
// or that sit outside the account's collections, are logged and skipped.
func DecodeTree(account string, docs map[string]remote.Document) *state.Tree {
	t := state.NewTree(account)
	for path, doc := range docs {
		var err error
		id := state.LastSegment(path)

		switch remote.Parent(path) {
		case state.HabitsCollection(account):
			var h models.Habit
			if err = DecodeDocument(doc, &h); err == nil {
				t.Habits[id] = h
			}
		case state.LogsCollection(account):
			var l models.HabitLog
			if err = DecodeDocument(doc, &l); err == nil {
				t.Logs[id] = l
			}
		case state.BadgesCollection(account):
			var b models.UnlockedBadge
			if err = DecodeDocument(doc, &b); err == nil {
				t.Badges[id] = b
			}
		case state.GamificationCollection(account):
			if path == state.GamificationPath(account) {
				err = DecodeDocument(doc, &t.Gamification)
			}
		case state.SubscriptionCollection(account):
			if path == state.SubscriptionPath(account) {
				err = DecodeDocument(doc, &t.Subscription)
			}
		default:
			err = fmt.Errorf("unknown collection")
		}

		if err != nil {
			logger.Warn("Skipping undecodable document", "path", path, "error", err)
		}
	}
	return t
}

// diff derives the remote writes that turn before into after. Documents
// whose content changed without their updated_at moving forward are
// stamped with now so the write wins over the version it replaces.
func diff(before, after map[string]remote.Document, now time.Time) []remote.Op {
	var ops []remote.Op
	for path, doc := range after {
		old, existed := before[path]
		if existed && reflect.DeepEqual(old, doc) {
			continue
		}
		doc = doc.Clone()
		if stamp := doc.UpdatedAt(); stamp.IsZero() || (existed && !stamp.After(old.UpdatedAt())) {
			doc[remote.UpdatedAtField] = now.UTC().Format(time.RFC3339Nano)
		}
		ops = append(ops, remote.Op{Kind: remote.OpSet, Path: path, Doc: doc})
	}
	for path := range before {
		if _, ok := after[path]; !ok {
			ops = append(ops, remote.Op{Kind: remote.OpDelete, Path: path, UpdatedAt: now.UTC()})
		}
	}
	sortOps(ops)
	return ops
}

// merge reconciles a remote snapshot with local documents. Paths with a
// pending local write keep the local version unless the remote copy is
// strictly newer; every other path takes the remote version, including its
// absence. It returns the merged documents and the dirty paths the remote
// superseded.
func merge(remoteDocs, localDocs map[string]remote.Document, dirty map[string]dirtyEntry) (map[string]remote.Document, []string) {
	merged := make(map[string]remote.Document, len(remoteDocs))
	for path, doc := range remoteDocs {
		merged[path] = doc
	}

	var superseded []string
	for path, d := range dirty {
		if doc, ok := remoteDocs[path]; ok && doc.UpdatedAt().After(d.Op.Stamp()) {
			superseded = append(superseded, path)
			continue
		}
		if local, ok := localDocs[path]; ok && d.Op.Kind != remote.OpDelete {
			merged[path] = local
		} else {
			delete(merged, path)
		}
	}
	return merged, superseded
}
