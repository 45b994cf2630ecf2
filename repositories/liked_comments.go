package repositories

import (
	"encoding/json"
	"estate-live/contract"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

// LikedCommentsKey is the well-known key the liked-comment set lives under.
const LikedCommentsKey = "likedComments"

var _ contract.ILikedRepository = LikedRepository{}

// LikedRepository persists the set of comments this client has liked.
// The set is client-local: the server keeps only a counter, so it can diverge
// from what the same user did on another device.
type LikedRepository struct {
	db  *badger.DB
	log *slog.Logger
	key []byte
}

// NewLikedRepository stores the set under LikedCommentsKey, or under
// "likedComments:{owner}" when several identities share one database.
func NewLikedRepository(db *badger.DB, log *slog.Logger, owner string) LikedRepository {
	key := LikedCommentsKey
	if owner != "" {
		key = fmt.Sprintf("%s:%s", LikedCommentsKey, owner)
	}
	return LikedRepository{db: db, log: log, key: []byte(key)}
}

// Load returns the persisted ids, or an empty set when nothing was saved yet.
func (l LikedRepository) Load() ([]string, error) {
	var ids []string
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(l.key)
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &ids)
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	return lo.Uniq(ids), nil
}

// Save overwrites the set. Duplicates are dropped, order is kept.
func (l LikedRepository) Save(commentIDs []string) error {
	ids := lo.Uniq(lo.Compact(commentIDs))
	bytes, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	err = l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(l.key, bytes)
	})
	if err != nil {
		return err
	}
	l.log.Debug("Liked comments saved", "key", string(l.key), "count", len(ids))
	return nil
}
