package posting

import "testing"

func TestSkipListInsertAndFind(t *testing.T) {
	sl := NewSkipList()
	sl.Insert(Position{DocumentID: 1, Offset: 5})
	sl.Insert(Position{DocumentID: 1, Offset: 2})
	sl.Insert(Position{DocumentID: 2, Offset: 0})

	got, err := sl.Find(Position{DocumentID: 1, Offset: 2})
	if err != nil {
		t.Fatalf("Find returned error: %v", err)
	}
	if got.DocumentID != 1 || got.Offset != 2 {
		t.Errorf("Find = %+v, want {1 2}", got)
	}
}

func TestSkipListFindGreaterThan(t *testing.T) {
	sl := NewSkipList()
	for _, p := range []Position{{1, 0}, {1, 3}, {2, 1}} {
		sl.Insert(p)
	}
	got, err := sl.FindGreaterThan(Position{DocumentID: 1, Offset: 0})
	if err != nil {
		t.Fatalf("FindGreaterThan returned error: %v", err)
	}
	if got.DocumentID != 1 || got.Offset != 3 {
		t.Errorf("FindGreaterThan = %+v, want {1 3}", got)
	}
}

func TestSkipListFindLessThan(t *testing.T) {
	sl := NewSkipList()
	for _, p := range []Position{{1, 0}, {1, 3}, {2, 1}} {
		sl.Insert(p)
	}
	got, err := sl.FindLessThan(Position{DocumentID: 2, Offset: 1})
	if err != nil {
		t.Fatalf("FindLessThan returned error: %v", err)
	}
	if got.DocumentID != 1 || got.Offset != 3 {
		t.Errorf("FindLessThan = %+v, want {1 3}", got)
	}
}

func TestSkipListDelete(t *testing.T) {
	sl := NewSkipList()
	sl.Insert(Position{DocumentID: 1, Offset: 0})
	if !sl.Delete(Position{DocumentID: 1, Offset: 0}) {
		t.Fatal("Delete returned false for existing key")
	}
	if _, err := sl.Find(Position{DocumentID: 1, Offset: 0}); err == nil {
		t.Error("Find succeeded after Delete")
	}
}

func TestIndexPhraseSearch(t *testing.T) {
	idx := NewIndex()
	// doc 1: "quick brown fox" at field 0 offsets 0,1,2
	idx.Add("quick", 1, PackPosition(0, 0))
	idx.Add("brown", 1, PackPosition(0, 1))
	idx.Add("fox", 1, PackPosition(0, 2))
	// doc 2: "brown quick" - not a phrase match for "quick brown"
	idx.Add("brown", 2, PackPosition(0, 0))
	idx.Add("quick", 2, PackPosition(0, 1))

	matches := idx.FindAllPhrases([]string{"quick", "brown"})
	if len(matches) != 1 {
		t.Fatalf("FindAllPhrases found %d matches, want 1", len(matches))
	}
	if matches[0][0].DocumentID != 1 {
		t.Errorf("phrase matched doc %v, want doc 1", matches[0][0].DocumentID)
	}
}

func TestIndexNextCover(t *testing.T) {
	idx := NewIndex()
	idx.Add("quick", 1, PackPosition(0, 0))
	idx.Add("fox", 1, PackPosition(0, 8))
	idx.Add("brown", 1, PackPosition(0, 2))

	cover := idx.NextCover([]string{"quick", "fox", "brown"}, BOFDocument)
	if cover[0].IsEnd() {
		t.Fatal("expected a cover, got EOF")
	}
	if cover[0].GetOffset() != 0 || cover[1].GetOffset() != 8 {
		t.Errorf("cover = [%v,%v], want [0,8]", cover[0].GetOffset(), cover[1].GetOffset())
	}
}

func TestPackUnpackPosition(t *testing.T) {
	packed := PackPosition(7, 123)
	field, offset := UnpackPosition(packed)
	if field != 7 || offset != 123 {
		t.Errorf("UnpackPosition(PackPosition(7,123)) = (%d,%d), want (7,123)", field, offset)
	}
}

func TestPositionFieldIDAndInFieldOffset(t *testing.T) {
	pos := NewPosition(42, 3, 17)
	if pos.GetDocumentID() != 42 {
		t.Errorf("GetDocumentID() = %d, want 42", pos.GetDocumentID())
	}
	if pos.FieldID() != 3 {
		t.Errorf("FieldID() = %d, want 3", pos.FieldID())
	}
	if pos.InFieldOffset() != 17 {
		t.Errorf("InFieldOffset() = %d, want 17", pos.InFieldOffset())
	}
}

func TestPositionOrderingAcrossFields(t *testing.T) {
	// field 0 offset 5 sorts before field 1 offset 0: the packed Offset
	// compares by field first, matching word_position_docids' intended
	// (doc, field, in-field position) scan order.
	lower := NewPosition(1, 0, 5)
	higher := NewPosition(1, 1, 0)
	if !lower.IsBefore(higher) {
		t.Errorf("expected field 0 position to sort before field 1 position")
	}
}
