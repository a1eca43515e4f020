package catalog

// DiffNew returns the cards in fresh whose name does not appear in existing,
// in fresh order.
func DiffNew(fresh, existing []Card) []Card {
	known := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		known[c.Name] = struct{}{}
	}

	var added []Card
	for _, c := range fresh {
		if _, ok := known[c.Name]; !ok {
			added = append(added, c)
		}
	}
	return added
}

// Merge reconciles a fresh extraction with the existing catalog. The result
// follows fresh order and carries fresh image and link values; a local image
// held by the existing counterpart is kept. Cards found only in existing are
// not part of the result.
func Merge(fresh, existing []Card) []Card {
	byName := make(map[string]Card, len(existing))
	for _, c := range existing {
		byName[c.Name] = c
	}

	merged := make([]Card, 0, len(fresh))
	for _, c := range fresh {
		if prev, ok := byName[c.Name]; ok && prev.LocalImage.Valid {
			c.LocalImage = prev.LocalImage
		}
		merged = append(merged, c)
	}
	return merged
}

// AttachLocalImages returns a copy of cards in which every card named in
// downloaded with a valid local image takes that image.
func AttachLocalImages(cards, downloaded []Card) []Card {
	paths := make(map[string]LocalImage, len(downloaded))
	for _, d := range downloaded {
		if d.LocalImage.Valid {
			paths[d.Name] = d.LocalImage
		}
	}

	out := make([]Card, len(cards))
	for i, c := range cards {
		if li, ok := paths[c.Name]; ok {
			c.LocalImage = li
		}
		out[i] = c
	}
	return out
}

// Summary is the end-of-run tally shown to the user.
type Summary struct {
	Total      int
	Added      int
	WithImages int
}

// Summarize counts the merged catalog.
func Summarize(merged []Card, added int) Summary {
	s := Summary{Total: len(merged), Added: added}
	for _, c := range merged {
		if c.LocalImage.Valid {
			s.WithImages++
		}
	}
	return s
}
