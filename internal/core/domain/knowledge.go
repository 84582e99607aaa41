package domain

// KnowledgeBaseStatus is the process-wide view of queryable content.
// Available is nil until the first check resolves.
type KnowledgeBaseStatus struct {
	Available *bool
	ItemCount int
}

func (s KnowledgeBaseStatus) Known() bool {
	return s.Available != nil
}

func (s KnowledgeBaseStatus) IsAvailable() bool {
	return s.Available != nil && *s.Available
}
