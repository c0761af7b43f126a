package consol

import "testing"

func TestMappingIndexResolveAndMembers(t *testing.T) {
	idx := NewMappingIndex([]AccountMapping{
		{EntityID: 1, EntityAccountID: 101, MasterAccountID: 60},
		{EntityID: 2, EntityAccountID: 201, MasterAccountID: 60},
		{EntityID: 1, EntityAccountID: 102, MasterAccountID: 50},
	})
	if idx.Len() != 3 {
		t.Fatalf("Len = %d", idx.Len())
	}
	master, ok := idx.Resolve(1, 101)
	if !ok || master != 60 {
		t.Fatalf("Resolve(1,101) = %d,%v", master, ok)
	}
	if _, ok := idx.Resolve(1, 999); ok {
		t.Fatal("unmapped account resolved")
	}
	if _, ok := idx.Resolve(2, 101); ok {
		t.Fatal("entity scoping ignored: entity 2 resolved entity 1's account")
	}
	members := idx.MembersOf(60)
	if len(members) != 2 {
		t.Fatalf("MembersOf(60) = %d members", len(members))
	}
	if len(idx.MembersOf(99)) != 0 {
		t.Fatal("MembersOf unknown master should be empty")
	}
}

func TestMappingIndexIgnoresDuplicateEntityAccount(t *testing.T) {
	idx := NewMappingIndex([]AccountMapping{
		{EntityID: 1, EntityAccountID: 101, MasterAccountID: 60},
		{EntityID: 1, EntityAccountID: 101, MasterAccountID: 70},
	})
	master, ok := idx.Resolve(1, 101)
	if !ok || master != 60 {
		t.Fatalf("first mapping should win, got %d,%v", master, ok)
	}
	if len(idx.MembersOf(70)) != 0 {
		t.Fatal("duplicate mapping leaked into reverse index")
	}
}
