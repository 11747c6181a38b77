package docstore

import "sort"

// Diff computes the ordered changes that turn the result prev into next.
//
// Removals come first, then additions and modifications in next order. A
// document present in both results is reported as modified when its
// UpdateTime changed or when it has to move; the longest run of documents
// that keep their relative order stays put, so a single moved document
// yields a single change.
func Diff(prev, next []Document) []Change {
	nextIndex := make(map[string]int, len(next))
	for i, d := range next {
		nextIndex[d.Path] = i
	}

	working := make([]Document, 0, len(prev))
	var changes []Change

	for _, d := range prev {
		if _, ok := nextIndex[d.Path]; ok {
			working = append(working, d)
			continue
		}
		changes = append(changes, Change{
			Kind: ChangeRemoved,
			Doc:  d,
			// Earlier removals are already applied, so the document sits
			// right after the survivors seen so far.
			OldIndex: len(working),
			NewIndex: -1,
		})
	}

	order := make([]int, len(working))
	for i, d := range working {
		order[i] = nextIndex[d.Path]
	}
	stable := make(map[string]bool, len(working))
	for _, i := range longestIncreasing(order) {
		stable[working[i].Path] = true
	}

	// Documents of next placed so far precede every stable document that is
	// not placed yet, so each one goes right after its predecessor.
	for i, d := range next {
		cur := indexOf(working, d.Path)

		if cur >= 0 && stable[d.Path] {
			if working[cur].UpdateTime != d.UpdateTime {
				working[cur] = d
				changes = append(changes, Change{
					Kind:     ChangeModified,
					Doc:      d,
					OldIndex: cur,
					NewIndex: cur,
				})
			}
			continue
		}

		if cur >= 0 {
			working = removeAt(working, cur)
		}
		target := 0
		if i > 0 {
			target = indexOf(working, next[i-1].Path) + 1
		}
		working = insertAt(working, target, d)

		if cur < 0 {
			changes = append(changes, Change{
				Kind:     ChangeAdded,
				Doc:      d,
				OldIndex: -1,
				NewIndex: target,
			})
			continue
		}
		changes = append(changes, Change{
			Kind:     ChangeModified,
			Doc:      d,
			OldIndex: cur,
			NewIndex: target,
		})
	}

	return changes
}

// longestIncreasing returns the positions of a longest strictly increasing
// subsequence of seq.
func longestIncreasing(seq []int) []int {
	// tails[k] is the position ending the best subsequence of length k+1.
	var tails []int
	parent := make([]int, len(seq))
	for i, v := range seq {
		k := sort.Search(len(tails), func(j int) bool { return seq[tails[j]] >= v })
		if k > 0 {
			parent[i] = tails[k-1]
		} else {
			parent[i] = -1
		}
		if k == len(tails) {
			tails = append(tails, i)
		} else {
			tails[k] = i
		}
	}

	out := make([]int, len(tails))
	if len(tails) == 0 {
		return out
	}
	i := tails[len(tails)-1]
	for k := len(tails) - 1; k >= 0; k-- {
		out[k] = i
		i = parent[i]
	}
	return out
}

// Apply replays changes on docs and returns the resulting slice. It is the
// inverse of Diff and is what consumers use to patch local state.
func Apply(docs []Document, changes []Change) []Document {
	out := make([]Document, len(docs))
	copy(out, docs)
	for _, ch := range changes {
		switch ch.Kind {
		case ChangeRemoved:
			idx := ch.OldIndex
			if idx < 0 || idx >= len(out) || out[idx].Path != ch.Doc.Path {
				idx = indexOf(out, ch.Doc.Path)
			}
			if idx >= 0 {
				out = removeAt(out, idx)
			}
		case ChangeAdded:
			out = insertAt(out, clampIndex(ch.NewIndex, len(out)), ch.Doc)
		case ChangeModified:
			idx := ch.OldIndex
			if idx < 0 || idx >= len(out) || out[idx].Path != ch.Doc.Path {
				idx = indexOf(out, ch.Doc.Path)
			}
			if idx >= 0 {
				out = removeAt(out, idx)
			}
			out = insertAt(out, clampIndex(ch.NewIndex, len(out)), ch.Doc)
		}
	}
	return out
}

func indexOf(docs []Document, p string) int {
	for i, d := range docs {
		if d.Path == p {
			return i
		}
	}
	return -1
}

func insertAt(docs []Document, i int, d Document) []Document {
	docs = append(docs, Document{})
	copy(docs[i+1:], docs[i:])
	docs[i] = d
	return docs
}

func removeAt(docs []Document, i int) []Document {
	copy(docs[i:], docs[i+1:])
	docs[len(docs)-1] = Document{}
	return docs[:len(docs)-1]
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}
