package persona

// Store exposes read-only persona lookups for the orchestrator and handlers.
type Store interface {
	// List returns the catalog in stable registry order.
	List() []Persona
	FindByID(id string) (Persona, bool)
	// FindByTopic returns the first persona bound to the topic in registry
	// order. Multiple personas may share a topic.
	FindByTopic(topic Topic) (Persona, bool)
}

// MemoryStore implements Store with an in-memory slice, initialized once at
// startup and never mutated afterwards.
type MemoryStore struct {
	items []Persona
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied personas.
func NewMemoryStore(items []Persona) *MemoryStore {
	return &MemoryStore{items: append([]Persona(nil), items...)}
}

// List returns the catalog in registry order.
func (s *MemoryStore) List() []Persona {
	return append([]Persona(nil), s.items...)
}

// FindByID looks up a persona by identifier.
func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Persona{}, false
}

// FindByTopic returns the first persona in registry order bound to the topic.
func (s *MemoryStore) FindByTopic(topic Topic) (Persona, bool) {
	for _, item := range s.items {
		if item.Topic == topic {
			return item, true
		}
	}
	return Persona{}, false
}

// Topics returns the distinct topics present in the catalog, in registry order.
func (s *MemoryStore) Topics() []Topic {
	seen := make(map[Topic]bool, len(s.items))
	topics := make([]Topic, 0, len(s.items))
	for _, item := range s.items {
		if !seen[item.Topic] {
			seen[item.Topic] = true
			topics = append(topics, item.Topic)
		}
	}
	return topics
}
