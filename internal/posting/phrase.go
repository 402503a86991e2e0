package posting

// Phrase and cover search, adapted from the teacher's search.go
// (NextPhrase/findPhraseEnd/findPhraseStart/FindAllPhrases and
// NextCover/findCoverEnd/findCoverStart), retargeted from
// *InvertedIndex to the shard-local *Index built during extraction.
// These back §4.10's "ordered exact" phrase nodes and the Proximity/
// Attribute ranking rules' cover-finding.

// NextPhrase finds the next occurrence, at or after startPos, of terms
// appearing at consecutive positions in the same document.
func (idx *Index) NextPhrase(terms []string, startPos Position) []Position {
	endPos := idx.findPhraseEnd(terms, startPos)
	if endPos.IsEnd() {
		return []Position{EOFDocument, EOFDocument}
	}
	phraseStart := idx.findPhraseStart(terms, endPos)
	if isValidPhrase(phraseStart, endPos, len(terms)) {
		return []Position{phraseStart, endPos}
	}
	return idx.NextPhrase(terms, phraseStart)
}

func (idx *Index) findPhraseEnd(terms []string, startPos Position) Position {
	current := startPos
	for _, term := range terms {
		current, _ = idx.Next(term, current)
		if current.IsEnd() {
			return EOFDocument
		}
	}
	return current
}

func (idx *Index) findPhraseStart(terms []string, endPos Position) Position {
	current := endPos
	for i := len(terms) - 2; i >= 0; i-- {
		current, _ = idx.Previous(terms[i], current)
	}
	return current
}

func isValidPhrase(start, end Position, termCount int) bool {
	expected := termCount - 1
	actual := end.GetOffset() - start.GetOffset()
	return start.DocumentID == end.DocumentID && actual == expected
}

// FindAllPhrases enumerates every phrase occurrence across the index.
func (idx *Index) FindAllPhrases(terms []string) [][]Position {
	var all [][]Position
	current := BOFDocument
	for !current.IsEnd() {
		match := idx.NextPhrase(terms, current)
		start := match[0]
		if !start.IsEnd() {
			all = append(all, match)
		}
		current = start
		if start.IsEnd() {
			break
		}
		// Advance past this match so we don't loop on the same phrase.
		current, _ = idx.Next(terms[0], current)
	}
	return all
}

// NextCover finds the next minimal range, at or after startPos, that
// contains every token (order-independent) within one document —
// the primitive the Proximity ranking rule sums over.
func (idx *Index) NextCover(tokens []string, startPos Position) []Position {
	coverEnd := idx.findCoverEnd(tokens, startPos)
	if coverEnd.IsEnd() {
		return []Position{EOFDocument, EOFDocument}
	}
	coverStart := idx.findCoverStart(tokens, coverEnd)
	if coverStart.DocumentID == coverEnd.DocumentID {
		return []Position{coverStart, coverEnd}
	}
	return idx.NextCover(tokens, coverStart)
}

func (idx *Index) findCoverEnd(tokens []string, startPos Position) Position {
	maxPos := startPos
	for _, token := range tokens {
		pos, _ := idx.Next(token, startPos)
		if pos.IsEnd() {
			return EOFDocument
		}
		if pos.IsAfter(maxPos) {
			maxPos = pos
		}
	}
	return maxPos
}

func (idx *Index) findCoverStart(tokens []string, endPos Position) Position {
	minPos := BOFDocument
	searchBound := Position{DocumentID: endPos.DocumentID, Offset: endPos.Offset + 1}
	for _, token := range tokens {
		pos, _ := idx.Previous(token, searchBound)
		if minPos.IsBeginning() || pos.IsBefore(minPos) {
			minPos = pos
		}
	}
	return minPos
}
