// Package memory is an in-process picker.QueryEngine. It mirrors the SQL
// stores: rows come back in key order, soft-deleted rows are hidden from
// Find and Get, and Exists sees every row.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	bferrors "github.com/otherjamesbrown/backoffice/pkg/errors"
	"github.com/otherjamesbrown/backoffice/pkg/picker"
)

// User is a row in the users table.
type User struct {
	ID        int64      `yaml:"id"`
	Name      string     `yaml:"name"`
	Email     string     `yaml:"email"`
	DeletedAt *time.Time `yaml:"deleted_at,omitempty"`
}

// Post is a row in the posts table.
type Post struct {
	ID          int64      `yaml:"id"`
	UserID      int64      `yaml:"user_id"`
	Title       string     `yaml:"title"`
	Description string     `yaml:"description"`
	DeletedAt   *time.Time `yaml:"deleted_at,omitempty"`
}

// Store holds users and posts in memory.
type Store struct {
	mu    sync.RWMutex
	users map[int64]User
	posts map[int64]Post
}

// New creates an empty store.
func New() *Store {
	return &Store{
		users: make(map[int64]User),
		posts: make(map[int64]Post),
	}
}

// AddUser inserts or replaces a user.
func (s *Store) AddUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// AddPost inserts or replaces a post.
func (s *Store) AddPost(p Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts[p.ID] = p
}

// SoftDelete marks a row deleted without removing it.
func (s *Store) SoftDelete(entity picker.EntityType, key int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch entity {
	case picker.EntityUser:
		u, ok := s.users[key]
		if !ok {
			return fmt.Errorf("%s %d: %w", entity, key, bferrors.ErrNotFound)
		}
		u.DeletedAt = &at
		s.users[key] = u
	case picker.EntityPost:
		p, ok := s.posts[key]
		if !ok {
			return fmt.Errorf("%s %d: %w", entity, key, bferrors.ErrNotFound)
		}
		p.DeletedAt = &at
		s.posts[key] = p
	default:
		return unknownEntity(entity)
	}
	return nil
}

// Remove deletes a row outright.
func (s *Store) Remove(entity picker.EntityType, key int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch entity {
	case picker.EntityUser:
		delete(s.users, key)
	case picker.EntityPost:
		delete(s.posts, key)
	}
}

// Find implements picker.QueryEngine.
func (s *Store) Find(ctx context.Context, q picker.Query) ([]picker.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", bferrors.ErrStoreUnavailable, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.rows(q.Entity)
	if err != nil {
		return nil, err
	}

	var out []picker.Record
	for _, row := range rows {
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
		if !matchesAny(row, q.Attributes, q.Pattern) {
			continue
		}
		out = append(out, project(row, q.Fields))
	}
	return out, nil
}

// Get implements picker.QueryEngine.
func (s *Store) Get(ctx context.Context, entity picker.EntityType, key int64, fields []string) (*picker.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", bferrors.ErrStoreUnavailable, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.rows(entity)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.Key == key {
			rec := project(row, fields)
			return &rec, nil
		}
	}
	return nil, fmt.Errorf("%s %d: %w", entity, key, bferrors.ErrNotFound)
}

// Exists implements picker.QueryEngine.
func (s *Store) Exists(ctx context.Context, entity picker.EntityType, key int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("%w: %w", bferrors.ErrStoreUnavailable, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch entity {
	case picker.EntityUser:
		_, ok := s.users[key]
		return ok, nil
	case picker.EntityPost:
		_, ok := s.posts[key]
		return ok, nil
	default:
		return false, unknownEntity(entity)
	}
}

// rows returns the live rows of a table in key order, with every column
// including joined ones. Callers must hold the read lock.
func (s *Store) rows(entity picker.EntityType) ([]picker.Record, error) {
	var out []picker.Record
	switch entity {
	case picker.EntityUser:
		for _, u := range s.users {
			if u.DeletedAt != nil {
				continue
			}
			out = append(out, picker.Record{Key: u.ID, Fields: map[string]string{
				"name":  u.Name,
				"email": u.Email,
			}})
		}
	case picker.EntityPost:
		for _, p := range s.posts {
			if p.DeletedAt != nil {
				continue
			}
			// Owner is resolved the way a LEFT JOIN would: a missing owner
			// renders as empty. Soft-deleted owners still count.
			owner := s.users[p.UserID].Name
			out = append(out, picker.Record{Key: p.ID, Fields: map[string]string{
				"title":       p.Title,
				"description": p.Description,
				"user_id":     strconv.FormatInt(p.UserID, 10),
				"owner_name":  owner,
			}})
		}
	default:
		return nil, unknownEntity(entity)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func matchesAny(row picker.Record, attrs []string, pattern string) bool {
	if pattern == "" || len(attrs) == 0 {
		return true
	}
	for _, a := range attrs {
		if matchLike(pattern, row.Field(a)) {
			return true
		}
	}
	return false
}

func project(row picker.Record, fields []string) picker.Record {
	rec := picker.Record{Key: row.Key, Fields: make(map[string]string, len(fields))}
	for _, f := range fields {
		rec.Fields[f] = row.Field(f)
	}
	return rec
}

func unknownEntity(entity picker.EntityType) error {
	return fmt.Errorf("%w: unknown entity type %q", bferrors.ErrInvalidRequest, entity)
}
