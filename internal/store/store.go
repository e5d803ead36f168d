// Package store is the single source of truth for one organization's data.
// All mutations are serialized through a single writer so read-modify-write
// cycles cannot interleave; every write round-trips through the persistence
// boundary and emits a governance audit record.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/odontosync/backend/internal/audit"
	"github.com/odontosync/backend/internal/models"
)

// Config tunes the persistence behavior of a Store.
type Config struct {
	DocumentKey  string
	SaveRetries  int
	RetryBackoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.DocumentKey == "" {
		c.DocumentKey = "odontosync:org"
	}
	if c.SaveRetries <= 0 {
		c.SaveRetries = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 200 * time.Millisecond
	}
	return c
}

// Store holds one organization and round-trips every change through the
// document store. Construct one per session and pass it by reference; it is
// never a package-level singleton.
type Store struct {
	docs     DocumentStore
	recorder audit.Recorder
	logger   *zap.Logger
	cfg      Config

	// Now and NewID are injectable for deterministic tests.
	Now   func() time.Time
	NewID func() string

	mu       sync.Mutex
	current  *models.Organization // last-known-good snapshot
	onChange func(*models.Organization)
}

// New creates a Store over the given document backend and audit recorder.
func New(docs DocumentStore, recorder audit.Recorder, logger *zap.Logger, cfg Config) *Store {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		docs:     docs,
		recorder: recorder,
		logger:   logger,
		cfg:      cfg.withDefaults(),
		Now:      time.Now,
		NewID:    func() string { return uuid.New().String() },
	}
}

// SetOnChange registers a callback invoked with the new snapshot after every
// successful mutation (e.g. to push a refresh event to connected dashboards).
func (s *Store) SetOnChange(fn func(*models.Organization)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// FetchState returns the current organization, materializing and persisting
// the seeded default when no document exists yet. The returned value is a
// deep copy; mutate through the Store, not the snapshot.
func (s *Store) FetchState(ctx context.Context) (*models.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, err := s.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	return org.Clone(), nil
}

// SaveState persists a whole organization snapshot (whole-aggregate replace).
// A snapshot whose version is older than the current one is rejected with
// ErrStaleWrite; a snapshot at the current version replaces it verbatim, so
// SaveState(FetchState()) is idempotent.
func (s *Store) SaveState(ctx context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && org.Version < s.current.Version {
		return ErrStaleWrite
	}
	next := org.Clone()
	if err := s.persistLocked(ctx, next); err != nil {
		return err
	}
	s.current = next
	s.emitAudit(ctx, "SAVE_STATE", next.ID)
	s.notifyLocked()
	return nil
}

// AddPatient prepends a patient to the organization.
func (s *Store) AddPatient(ctx context.Context, p models.Patient) error {
	return s.mutate(ctx, "CREATE_PATIENT", p.ID, func(org *models.Organization) error {
		org.Patients = append([]models.Patient{p}, org.Patients...)
		return nil
	})
}

// UpdatePatient replaces a patient record by ID. Mode is immutable after
// creation: the stored mode always wins over the incoming one.
func (s *Store) UpdatePatient(ctx context.Context, p models.Patient) error {
	return s.MutatePatient(ctx, p.ID, "UPDATE_PATIENT", func(cur *models.Patient) error {
		mode := cur.Mode
		*cur = p
		cur.Mode = mode
		return nil
	})
}

// MutatePatient applies fn to a single patient under the store's write lock,
// then persists. This is the serialized read-modify-write used by the
// pipeline engine for stage transitions.
func (s *Store) MutatePatient(ctx context.Context, id, action string, fn func(*models.Patient) error) error {
	return s.mutate(ctx, action, id, func(org *models.Organization) error {
		p := org.FindPatient(id)
		if p == nil {
			return ErrPatientNotFound
		}
		return fn(p)
	})
}

// AddSubUser appends a staff directory entry, rejecting duplicate emails
// with ErrDuplicateEmail and leaving the directory unchanged.
func (s *Store) AddSubUser(ctx context.Context, u models.SubUser) error {
	return s.mutate(ctx, "ADD_SUBUSER", u.ID, func(org *models.Organization) error {
		for _, existing := range org.SubUsers {
			if existing.Email == u.Email {
				return ErrDuplicateEmail
			}
		}
		org.SubUsers = append(org.SubUsers, u)
		return nil
	})
}

// RemoveSubUser revokes a staff directory entry by ID.
func (s *Store) RemoveSubUser(ctx context.Context, id string) error {
	return s.mutate(ctx, "REMOVE_SUBUSER", id, func(org *models.Organization) error {
		kept := org.SubUsers[:0]
		for _, u := range org.SubUsers {
			if u.ID != id {
				kept = append(kept, u)
			}
		}
		org.SubUsers = kept
		return nil
	})
}

// AddAppointment appends an appointment. Conflict validation is the
// scheduling package's responsibility; the store only persists.
func (s *Store) AddAppointment(ctx context.Context, a models.Appointment) error {
	return s.mutate(ctx, "ADD_APPOINTMENT", a.ID, func(org *models.Organization) error {
		org.Appointments = append(org.Appointments, a)
		return nil
	})
}

// DeleteAppointment removes an appointment by ID, unconditionally.
func (s *Store) DeleteAppointment(ctx context.Context, id string) error {
	return s.mutate(ctx, "DELETE_APPOINTMENT", id, func(org *models.Organization) error {
		kept := org.Appointments[:0]
		for _, a := range org.Appointments {
			if a.ID != id {
				kept = append(kept, a)
			}
		}
		org.Appointments = kept
		return nil
	})
}

// mutate runs one serialized read-modify-write: load (or reuse) the current
// snapshot, apply fn to a working copy, bump the version, persist with
// retries, then swap the in-memory snapshot. On persistence failure the
// previous snapshot remains current.
func (s *Store) mutate(ctx context.Context, action, entityID string, fn func(*models.Organization) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return err
	}
	next.Version = cur.Version + 1
	if err := s.persistLocked(ctx, next); err != nil {
		return err
	}
	s.current = next
	s.emitAudit(ctx, action, entityID)
	s.notifyLocked()
	return nil
}

func (s *Store) loadLocked(ctx context.Context) (*models.Organization, error) {
	if s.current != nil {
		return s.current, nil
	}
	data, err := s.docs.Load(ctx, s.cfg.DocumentKey)
	if err == ErrNoDocument {
		seed := models.SeedOrganization(s.Now())
		if err := s.persistLocked(ctx, seed); err != nil {
			return nil, err
		}
		s.current = seed
		return seed, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	var org models.Organization
	if err := json.Unmarshal(data, &org); err != nil {
		return nil, fmt.Errorf("decode organization document: %w", err)
	}
	s.current = &org
	return s.current, nil
}

func (s *Store) persistLocked(ctx context.Context, org *models.Organization) error {
	data, err := json.Marshal(org)
	if err != nil {
		return fmt.Errorf("encode organization document: %w", err)
	}
	var lastErr error
	for attempt := 0; attempt < s.cfg.SaveRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.cfg.RetryBackoff << (attempt - 1)):
			}
		}
		if lastErr = s.docs.Save(ctx, s.cfg.DocumentKey, data); lastErr == nil {
			return nil
		}
		s.logger.Warn("document save failed",
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr),
		)
	}
	return fmt.Errorf("%w: %v", ErrPersistence, lastErr)
}

// emitAudit records the mutation; failure is logged, never propagated.
func (s *Store) emitAudit(ctx context.Context, action, entityID string) {
	ev := audit.Event{
		Actor:    audit.ActorFrom(ctx),
		Action:   action,
		EntityID: entityID,
		At:       s.Now(),
	}
	if err := s.recorder.Record(ctx, ev); err != nil {
		s.logger.Warn("audit record dropped", zap.String("action", action), zap.Error(err))
	}
}

func (s *Store) notifyLocked() {
	if s.onChange != nil {
		s.onChange(s.current.Clone())
	}
}
