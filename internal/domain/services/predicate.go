package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/mnemo-ai/mnemo/internal/domain/entities"
	"github.com/mnemo-ai/mnemo/internal/domain/ports"
)

// validPredicateNameRegex allows alphanumeric and underscores only.
var validPredicateNameRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// PredicateService manages predicate declarations. The single-valued flag of
// a predicate decides whether ingestion supersedes or appends facts.
type PredicateService struct {
	relationalDB ports.RelationalDB
	cache        map[string]*entities.Predicate
	sortedNames  []string // cached sorted names, populated with cache
	cacheMu      sync.RWMutex
}

// NewPredicateService creates a new PredicateService.
func NewPredicateService(relationalDB ports.RelationalDB) *PredicateService {
	return &PredicateService{
		relationalDB: relationalDB,
		cache:        make(map[string]*entities.Predicate),
	}
}

// LoadDefaults seeds the default predicates into the database.
// Lists once then inserts missing, rather than one Find per default.
func (s *PredicateService) LoadDefaults(ctx context.Context) error {
	existing, err := s.relationalDB.ListPredicates(ctx)
	if err != nil {
		return fmt.Errorf("listing predicates: %w", err)
	}

	existingSet := make(map[string]bool, len(existing))
	for _, p := range existing {
		existingSet[p.Name] = true
	}

	for _, p := range entities.DefaultPredicates {
		if !existingSet[p.Name] {
			pCopy := p
			if err := s.relationalDB.SavePredicate(ctx, &pCopy); err != nil {
				return fmt.Errorf("seeding predicate %s: %w", p.Name, err)
			}
		}
	}
	s.invalidateCache()
	return nil
}

// List returns all predicate declarations.
func (s *PredicateService) List(ctx context.Context) ([]entities.Predicate, error) {
	return s.relationalDB.ListPredicates(ctx)
}

// Get returns a specific predicate by name, or nil if not found.
func (s *PredicateService) Get(ctx context.Context, name string) (*entities.Predicate, error) {
	s.cacheMu.RLock()
	if len(s.cache) > 0 {
		p := s.cache[name]
		s.cacheMu.RUnlock()
		return p, nil
	}
	s.cacheMu.RUnlock()

	if err := s.warmCache(ctx); err != nil {
		return nil, err
	}

	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return s.cache[name], nil
}

// IsSingleValued reports whether the named predicate allows at most one open
// fact per entity. Unknown predicates default to multi-valued.
func (s *PredicateService) IsSingleValued(ctx context.Context, name string) (bool, error) {
	p, err := s.Get(ctx, name)
	if err != nil {
		return false, err
	}
	if p == nil {
		return false, nil
	}
	return p.SingleValue, nil
}

// Add creates a new custom predicate.
func (s *PredicateService) Add(ctx context.Context, name, description string, singleValue bool) error {
	name = strings.TrimSpace(name)

	// Validate before any normalization so "UPPER" is rejected, not
	// silently lowercased into validity.
	if !validPredicateNameRegex.MatchString(name) {
		return errors.New("invalid predicate name: must be lowercase alphanumeric with underscores, starting with a letter")
	}

	existing, err := s.relationalDB.FindPredicate(ctx, name)
	if err != nil {
		return fmt.Errorf("checking predicate: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("predicate '%s' already exists", name)
	}

	p := &entities.Predicate{
		Name:        name,
		Description: description,
		SingleValue: singleValue,
	}
	if err := s.relationalDB.SavePredicate(ctx, p); err != nil {
		return fmt.Errorf("saving predicate: %w", err)
	}

	s.invalidateCache()
	return nil
}

// Remove deletes a custom predicate.
func (s *PredicateService) Remove(ctx context.Context, name string) error {
	if entities.IsDefaultPredicate(name) {
		return fmt.Errorf("cannot remove default predicate '%s'", name)
	}

	existing, err := s.relationalDB.FindPredicate(ctx, name)
	if err != nil {
		return fmt.Errorf("checking predicate: %w", err)
	}
	if existing == nil {
		return fmt.Errorf("predicate '%s' not found", name)
	}

	if err := s.relationalDB.DeletePredicate(ctx, name); err != nil {
		return fmt.Errorf("deleting predicate: %w", err)
	}

	s.invalidateCache()
	return nil
}

// IsValid checks if a predicate name is known.
func (s *PredicateService) IsValid(ctx context.Context, name string) bool {
	p, err := s.Get(ctx, name)
	return err == nil && p != nil
}

// ValidNames returns all known predicate names, sorted.
// The returned slice is shared and must not be modified by callers.
func (s *PredicateService) ValidNames(ctx context.Context) ([]string, error) {
	s.cacheMu.RLock()
	if len(s.cache) > 0 {
		names := s.sortedNames
		s.cacheMu.RUnlock()
		return names, nil
	}
	s.cacheMu.RUnlock()

	if err := s.warmCache(ctx); err != nil {
		return nil, err
	}

	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return s.sortedNames, nil
}

// warmCache loads predicates from the database into the cache.
func (s *PredicateService) warmCache(ctx context.Context) error {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	// Double-check: another goroutine may have populated the cache
	if len(s.cache) > 0 {
		return nil
	}

	predicates, err := s.relationalDB.ListPredicates(ctx)
	if err != nil {
		return err
	}

	s.cache = make(map[string]*entities.Predicate, len(predicates))
	s.sortedNames = make([]string, len(predicates))
	for i := range predicates {
		s.cache[predicates[i].Name] = &predicates[i]
		s.sortedNames[i] = predicates[i].Name
	}
	sort.Strings(s.sortedNames)
	return nil
}

func (s *PredicateService) invalidateCache() {
	s.cacheMu.Lock()
	s.cache = make(map[string]*entities.Predicate)
	s.sortedNames = nil
	s.cacheMu.Unlock()
}
