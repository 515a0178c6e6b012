package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/mementohq/memento-go/core"
)

// GetPreferences returns the user's preference sets. A user with no stored
// row gets empty sets; preferences are created lazily on first mutation.
func (s *Store) GetPreferences(ctx context.Context, ownerID string) (core.UserPreference, error) {
	prefs := core.UserPreference{OwnerID: ownerID}

	var boostJSON, suppressJSON, updatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT boost_topics, suppress_topics, updated_at FROM user_preferences WHERE owner_id = ?`,
		ownerID).Scan(&boostJSON, &suppressJSON, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return prefs, nil
	}
	if err != nil {
		return prefs, err
	}

	if err := json.Unmarshal([]byte(boostJSON), &prefs.BoostTopics); err != nil {
		return prefs, fmt.Errorf("decode boost topics: %w", err)
	}
	if err := json.Unmarshal([]byte(suppressJSON), &prefs.SuppressTopics); err != nil {
		return prefs, fmt.Errorf("decode suppress topics: %w", err)
	}
	prefs.UpdatedAt = parseTime(updatedAt)
	return prefs, nil
}

// AddBoost adds a topic to the boost set. Adding an already-present topic
// is a no-op success. The topic leaves the suppress set if present there:
// the two sets stay disjoint.
func (s *Store) AddBoost(ctx context.Context, ownerID, topic string) error {
	return s.mutatePreferences(ctx, ownerID, topic, func(p *core.UserPreference, t string) {
		p.SuppressTopics = remove(p.SuppressTopics, t)
		p.BoostTopics = add(p.BoostTopics, t)
	})
}

// RemoveBoost removes a topic from the boost set. Removing an absent topic
// is a no-op success.
func (s *Store) RemoveBoost(ctx context.Context, ownerID, topic string) error {
	return s.mutatePreferences(ctx, ownerID, topic, func(p *core.UserPreference, t string) {
		p.BoostTopics = remove(p.BoostTopics, t)
	})
}

// AddSuppress adds a topic to the suppress set, removing it from boost.
func (s *Store) AddSuppress(ctx context.Context, ownerID, topic string) error {
	return s.mutatePreferences(ctx, ownerID, topic, func(p *core.UserPreference, t string) {
		p.BoostTopics = remove(p.BoostTopics, t)
		p.SuppressTopics = add(p.SuppressTopics, t)
	})
}

// RemoveSuppress removes a topic from the suppress set.
func (s *Store) RemoveSuppress(ctx context.Context, ownerID, topic string) error {
	return s.mutatePreferences(ctx, ownerID, topic, func(p *core.UserPreference, t string) {
		p.SuppressTopics = remove(p.SuppressTopics, t)
	})
}

// ResetPreferences clears both sets. Preferences are never deleted, only
// reset.
func (s *Store) ResetPreferences(ctx context.Context, ownerID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE user_preferences SET boost_topics = '[]', suppress_topics = '[]', updated_at = ? WHERE owner_id = ?`,
		now(), ownerID)
	return err
}

func (s *Store) mutatePreferences(ctx context.Context, ownerID, topic string, apply func(*core.UserPreference, string)) error {
	topic = strings.ToLower(strings.TrimSpace(topic))
	if topic == "" {
		return core.Validationf("empty topic")
	}
	if ownerID == "" {
		return core.Validationf("empty owner id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	prefs := core.UserPreference{OwnerID: ownerID}
	var boostJSON, suppressJSON string
	err = tx.QueryRowContext(ctx,
		`SELECT boost_topics, suppress_topics FROM user_preferences WHERE owner_id = ?`,
		ownerID).Scan(&boostJSON, &suppressJSON)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// First mutation creates the row.
	case err != nil:
		return err
	default:
		if err := json.Unmarshal([]byte(boostJSON), &prefs.BoostTopics); err != nil {
			return fmt.Errorf("decode boost topics: %w", err)
		}
		if err := json.Unmarshal([]byte(suppressJSON), &prefs.SuppressTopics); err != nil {
			return fmt.Errorf("decode suppress topics: %w", err)
		}
	}

	apply(&prefs, topic)

	newBoost, _ := json.Marshal(emptyNotNil(prefs.BoostTopics))
	newSuppress, _ := json.Marshal(emptyNotNil(prefs.SuppressTopics))
	_, err = tx.ExecContext(ctx,
		`INSERT INTO user_preferences (owner_id, boost_topics, suppress_topics, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(owner_id) DO UPDATE SET
		   boost_topics = excluded.boost_topics,
		   suppress_topics = excluded.suppress_topics,
		   updated_at = excluded.updated_at`,
		ownerID, string(newBoost), string(newSuppress), now())
	if err != nil {
		return fmt.Errorf("upsert preferences: %w", err)
	}

	return tx.Commit()
}

func add(topics []string, topic string) []string {
	if slices.Contains(topics, topic) {
		return topics
	}
	return append(topics, topic)
}

func remove(topics []string, topic string) []string {
	return slices.DeleteFunc(topics, func(t string) bool { return t == topic })
}

func emptyNotNil(topics []string) []string {
	if topics == nil {
		return []string{}
	}
	return topics
}
