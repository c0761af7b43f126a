package consol

// entityAccountKey addresses one ledger account within one entity.
type entityAccountKey struct {
	EntityID        int64
	EntityAccountID int64
}

// MappingIndex resolves entity-scoped ledger accounts to master accounts
// and exposes the inverse. Built once per request; lookups are O(1).
type MappingIndex struct {
	forward map[entityAccountKey]int64
	reverse map[int64][]AccountMapping
}

// NewMappingIndex builds the index from the full mapping set. Later
// duplicates for the same entity account are ignored; the data model
// guarantees at most one mapping per entity account.
func NewMappingIndex(mappings []AccountMapping) *MappingIndex {
	idx := &MappingIndex{
		forward: make(map[entityAccountKey]int64, len(mappings)),
		reverse: make(map[int64][]AccountMapping),
	}
	for _, m := range mappings {
		key := entityAccountKey{EntityID: m.EntityID, EntityAccountID: m.EntityAccountID}
		if _, exists := idx.forward[key]; exists {
			continue
		}
		idx.forward[key] = m.MasterAccountID
		idx.reverse[m.MasterAccountID] = append(idx.reverse[m.MasterAccountID], m)
	}
	return idx
}

// Resolve returns the master account for an entity account, or false when
// the entity account is unmapped.
func (idx *MappingIndex) Resolve(entityID, entityAccountID int64) (int64, bool) {
	masterID, ok := idx.forward[entityAccountKey{EntityID: entityID, EntityAccountID: entityAccountID}]
	return masterID, ok
}

// MembersOf returns every entity account contributing to a master account.
func (idx *MappingIndex) MembersOf(masterAccountID int64) []AccountMapping {
	return idx.reverse[masterAccountID]
}

// Len returns the number of indexed mappings.
func (idx *MappingIndex) Len() int {
	return len(idx.forward)
}
