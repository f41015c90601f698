package dimension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/malbeclabs/electionlake/pipeline/pkg/metrics"
	"github.com/malbeclabs/electionlake/pipeline/pkg/record"
)

// lookupsAfterInsert bounds the lookups that follow an insert: the first,
// plus one retry for a row committed by another writer that is not yet
// visible.
const lookupsAfterInsert = 2

type ResolverConfig struct {
	Logger *slog.Logger
	Store  Store
	// Cache defaults to a fresh cache.
	Cache *Cache
	// Schemas defaults to Schemas().
	Schemas map[Type]Schema
}

func (cfg *ResolverConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Store == nil {
		return errors.New("store is required")
	}
	if cfg.Cache == nil {
		cfg.Cache = NewCache()
	}
	if cfg.Schemas == nil {
		cfg.Schemas = Schemas()
	}
	return nil
}

// Resolver implements get-or-create for every dimension type. It is not safe
// for concurrent use; one resolver serves one worker.
type Resolver struct {
	log   *slog.Logger
	cfg   ResolverConfig
	store Store
	cache *Cache
}

func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}
	return &Resolver{
		log:   cfg.Logger,
		cfg:   cfg,
		store: cfg.Store,
		cache: cfg.Cache,
	}, nil
}

func (r *Resolver) Cache() *Cache {
	return r.cache
}

// Resolve maps key to its identifier, creating the row with attrs when it
// does not exist. Sentinel keys resolve to None without touching storage.
// Failures are returned as *ResolutionError.
func (r *Resolver) Resolve(ctx context.Context, t Type, key NaturalKey, attrs ...any) (ID, error) {
	schema, ok := r.cfg.Schemas[t]
	if !ok {
		return None, &ResolutionError{Type: t, Key: key, Err: ErrUnknownType}
	}
	if schema.IsSentinel(key) {
		return None, nil
	}
	if len(key.Values) != len(schema.KeyColumns) {
		return None, &ResolutionError{Type: t, Key: key, Err: ErrKeyArity}
	}
	if key.IsEmpty() {
		return None, &ResolutionError{Type: t, Key: key, Err: ErrEmptyKey}
	}
	if len(attrs) > len(schema.AttributeColumns) {
		return None, &ResolutionError{Type: t, Key: key, Err: fmt.Errorf("got %d attributes, schema has %d", len(attrs), len(schema.AttributeColumns))}
	}

	if id, ok := r.cache.Get(t, key); ok {
		metrics.DimensionCacheTotal.WithLabelValues(string(t), "hit").Inc()
		return id, nil
	}
	metrics.DimensionCacheTotal.WithLabelValues(string(t), "miss").Inc()

	id, err := r.lookup(ctx, schema, key)
	if err == nil {
		r.cache.Put(t, key, id)
		return id, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return None, r.fail(t, key, fmt.Errorf("failed to lookup: %w", err))
	}

	padded := make([]any, len(schema.AttributeColumns))
	copy(padded, attrs)
	if err := r.insert(ctx, schema, key, padded); err != nil {
		if !errors.Is(err, ErrConflict) {
			return None, r.fail(t, key, fmt.Errorf("failed to insert: %w", err))
		}
		r.log.Debug("dimension: insert conflicted, row created elsewhere", "dimension", t, "key", key.String())
	}

	for attempt := 1; attempt <= lookupsAfterInsert; attempt++ {
		id, err = r.lookup(ctx, schema, key)
		if err == nil {
			r.cache.Put(t, key, id)
			return id, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return None, r.fail(t, key, fmt.Errorf("failed to lookup after insert: %w", err))
		}
		if attempt < lookupsAfterInsert {
			r.log.Warn("dimension: row not visible after insert, retrying lookup", "dimension", t, "key", key.String())
		}
	}
	return None, r.fail(t, key, ErrNotFound)
}

func (r *Resolver) lookup(ctx context.Context, schema Schema, key NaturalKey) (ID, error) {
	id, err := r.store.Lookup(ctx, schema, key)
	switch {
	case err == nil:
		metrics.DimensionStorageOpsTotal.WithLabelValues(string(schema.Type), "lookup", "found").Inc()
	case errors.Is(err, ErrNotFound):
		metrics.DimensionStorageOpsTotal.WithLabelValues(string(schema.Type), "lookup", "not_found").Inc()
	default:
		metrics.DimensionStorageOpsTotal.WithLabelValues(string(schema.Type), "lookup", "error").Inc()
	}
	return id, err
}

func (r *Resolver) insert(ctx context.Context, schema Schema, key NaturalKey, attrs []any) error {
	err := r.store.Insert(ctx, schema, key, attrs)
	switch {
	case err == nil:
		metrics.DimensionStorageOpsTotal.WithLabelValues(string(schema.Type), "insert", "created").Inc()
	case errors.Is(err, ErrConflict):
		metrics.DimensionStorageOpsTotal.WithLabelValues(string(schema.Type), "insert", "conflict").Inc()
	default:
		metrics.DimensionStorageOpsTotal.WithLabelValues(string(schema.Type), "insert", "error").Inc()
	}
	return err
}

func (r *Resolver) fail(t Type, key NaturalKey, err error) error {
	metrics.DimensionResolutionFailuresTotal.WithLabelValues(string(t)).Inc()
	return &ResolutionError{Type: t, Key: key, Err: err}
}

// ResolveElection resolves an election by (year, round, code).
func (r *Resolver) ResolveElection(ctx context.Context, e record.ElectionInfo) (ID, error) {
	var ballotDate any
	if e.BallotDate != nil {
		ballotDate = e.BallotDate.UTC().Truncate(24 * time.Hour)
	}
	return r.Resolve(ctx, TypeElection, NewNaturalKey(e.Year, e.Round, e.Code), e.Type, ballotDate, e.Description)
}

func (r *Resolver) ResolveState(ctx context.Context, code string) (ID, error) {
	return r.Resolve(ctx, TypeState, NewNaturalKey(code))
}

// ResolveMunicipality requires the owning state to be resolved first.
func (r *Resolver) ResolveMunicipality(ctx context.Context, stateID ID, code, name string) (ID, error) {
	key := NewNaturalKey(stateID, code)
	if !stateID.Valid() {
		return None, &ResolutionError{Type: TypeMunicipality, Key: key, Err: fmt.Errorf("state: %w", ErrMissingParent)}
	}
	return r.Resolve(ctx, TypeMunicipality, key, name)
}

func (r *Resolver) ResolveOffice(ctx context.Context, code, description string) (ID, error) {
	return r.Resolve(ctx, TypeOffice, NewNaturalKey(code), description)
}

// ResolveParty returns None for sentinel party numbers.
func (r *Resolver) ResolveParty(ctx context.Context, number, abbreviation, name string) (ID, error) {
	return r.Resolve(ctx, TypeParty, NewNaturalKey(number), abbreviation, name)
}

// ResolveCandidate requires the election and office to be resolved first.
// partyID may be None. An empty ballot number is a valid key (blank and
// null votes).
func (r *Resolver) ResolveCandidate(ctx context.Context, electionID, officeID, partyID ID, ballotNumber, name string) (ID, error) {
	key := NewNaturalKey(electionID, officeID, ballotNumber)
	switch {
	case !electionID.Valid():
		return None, &ResolutionError{Type: TypeCandidate, Key: key, Err: fmt.Errorf("election: %w", ErrMissingParent)}
	case !officeID.Valid():
		return None, &ResolutionError{Type: TypeCandidate, Key: key, Err: fmt.Errorf("office: %w", ErrMissingParent)}
	}
	return r.Resolve(ctx, TypeCandidate, key, partyID, name)
}
