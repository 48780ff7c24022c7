package contexttracker

import (
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	maxRecentEntities    = 50
	maxReferenceHistory  = 20
)

// WorkingContext is a small scratchpad of "what are we doing right now".
type WorkingContext struct {
	CurrentDirectory string
	LastFile         string
	LastCommand      string
	ActiveVariables  map[string]string
	CurrentTask      string
}

// ReferenceRecord is one resolved pronoun, kept for diagnostics.
type ReferenceRecord struct {
	Pronoun        string
	ResolvedEntity Entity
	ResolvedAt     time.Time
}

// Stats summarizes the tracker's current memory.
type Stats struct {
	TotalEntities        int
	TotalReferences      int
	WorkingContextActive bool
}

// Tracker records recently mentioned entities, resolves pronouns against
// them, and holds a small working context (C10).
type Tracker struct {
	recentEntities  *lru.Cache[string, Entity]
	workingContext  WorkingContext
	referenceHistory []ReferenceRecord
	extractor       *entityExtractor
}

// New builds a Tracker with a 50-entry entity cache and a 20-entry
// reference history, matching the original context tracker's bounds.
func New() *Tracker {
	cache, _ := lru.New[string, Entity](maxRecentEntities)
	return &Tracker{
		recentEntities: cache,
		workingContext: WorkingContext{ActiveVariables: make(map[string]string)},
		extractor:      newEntityExtractor(),
	}
}

// ExtractEntities pulls entities out of free text without recording them.
func (t *Tracker) ExtractEntities(userInput string) []Entity {
	return t.extractor.extract(userInput)
}

// RecordEntity stores or updates (bumping mention count) one entity.
func (t *Tracker) RecordEntity(e Entity) {
	key := e.DisplayName()
	if key == "" {
		return
	}
	if existing, ok := t.recentEntities.Get(key); ok {
		existing.updateMention(e.Context)
		t.recentEntities.Add(key, existing)
		return
	}
	t.recentEntities.Add(key, e)
}

// RecordEntities stores a batch.
func (t *Tracker) RecordEntities(entities []Entity) {
	for _, e := range entities {
		t.RecordEntity(e)
	}
}

// ResolveReference resolves a pronoun ("it", "this file", "last command",
// ...) against the most recently mentioned matching entity, recording the
// resolution in the bounded reference history.
func (t *Tracker) ResolveReference(pronoun string) (Entity, bool) {
	lower := strings.ToLower(strings.TrimSpace(pronoun))

	var (
		entity Entity
		found  bool
	)
	switch lower {
	case "it", "this", "that", "它":
		entity, found = t.mostRecentEntity()
	case "this file", "that file", "这个文件", "该文件":
		entity, found = t.mostRecentEntityByType("file")
	case "this directory", "that directory", "这个目录", "该目录":
		entity, found = t.mostRecentEntityByType("directory")
	case "last command", "the last command", "上一个命令", "刚才的命令":
		entity, found = t.mostRecentEntityByType("command")
	default:
		entity, found = t.resolveFromWorkingContext()
	}

	if found {
		t.referenceHistory = append(t.referenceHistory, ReferenceRecord{
			Pronoun:        pronoun,
			ResolvedEntity: entity,
			ResolvedAt:     time.Now(),
		})
		if len(t.referenceHistory) > maxReferenceHistory {
			t.referenceHistory = t.referenceHistory[1:]
		}
	}
	return entity, found
}

func (t *Tracker) mostRecentEntity() (Entity, bool) {
	keys := t.recentEntities.Keys()
	if len(keys) == 0 {
		return Entity{}, false
	}
	// golang-lru orders Keys() oldest-to-newest; the most recently used
	// entry is the last one.
	e, ok := t.recentEntities.Peek(keys[len(keys)-1])
	return e, ok
}

func (t *Tracker) mostRecentEntityByType(typeName string) (Entity, bool) {
	keys := t.recentEntities.Keys()
	for i := len(keys) - 1; i >= 0; i-- {
		e, ok := t.recentEntities.Peek(keys[i])
		if ok && e.TypeName() == typeName {
			return e, true
		}
	}
	return Entity{}, false
}

func (t *Tracker) resolveFromWorkingContext() (Entity, bool) {
	if t.workingContext.LastFile == "" {
		return Entity{}, false
	}
	e := NewEntity(EntityFile, "working context", 0.8)
	e.Path = t.workingContext.LastFile
	return e, true
}

// WorkingContextUpdate carries one field update for UpdateWorkingContext.
type WorkingContextUpdate struct {
	CurrentDirectory *string
	LastFile         *string
	LastCommand      *string
	VarName          string
	VarValue         string
	CurrentTask      *string
}

// UpdateWorkingContext applies whichever fields of u are non-nil/non-empty.
func (t *Tracker) UpdateWorkingContext(u WorkingContextUpdate) {
	if u.CurrentDirectory != nil {
		t.workingContext.CurrentDirectory = *u.CurrentDirectory
	}
	if u.LastFile != nil {
		t.workingContext.LastFile = *u.LastFile
	}
	if u.LastCommand != nil {
		t.workingContext.LastCommand = *u.LastCommand
	}
	if u.VarName != "" {
		t.workingContext.ActiveVariables[u.VarName] = u.VarValue
	}
	if u.CurrentTask != nil {
		t.workingContext.CurrentTask = *u.CurrentTask
	}
}

// WorkingContext returns a copy of the tracker's current working context.
func (t *Tracker) WorkingContext() WorkingContext {
	vars := make(map[string]string, len(t.workingContext.ActiveVariables))
	for k, v := range t.workingContext.ActiveVariables {
		vars[k] = v
	}
	wc := t.workingContext
	wc.ActiveVariables = vars
	return wc
}

// GetAllEntities returns every cached entity, oldest-mentioned first.
func (t *Tracker) GetAllEntities() []Entity {
	keys := t.recentEntities.Keys()
	entities := make([]Entity, 0, len(keys))
	for _, k := range keys {
		if e, ok := t.recentEntities.Peek(k); ok {
			entities = append(entities, e)
		}
	}
	return entities
}

// Clear drops every entity, reference, and working-context field.
func (t *Tracker) Clear() {
	t.recentEntities.Purge()
	t.referenceHistory = nil
	t.workingContext = WorkingContext{ActiveVariables: make(map[string]string)}
}

// Stats reports the tracker's current memory footprint.
func (t *Tracker) Stats() Stats {
	return Stats{
		TotalEntities:        t.recentEntities.Len(),
		TotalReferences:      len(t.referenceHistory),
		WorkingContextActive: t.workingContext.CurrentTask != "",
	}
}
