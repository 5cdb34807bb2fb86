package usecase

import (
	"cmp"
	"slices"

	"github.com/user/imagegrab-service/internal/entity"
)

// RankBy returns a copy of c ordered by key. Sorting is stable, so ties keep
// their relative order and ranking twice by the same key changes nothing.
//
// By size, descriptors with an unknown size come first, then known sizes in
// descending order. By width or height, larger values come first.
func RankBy(c entity.Collection, key entity.SortKey) (entity.Collection, error) {
	var compare func(a, b entity.ImageDescriptor) int
	switch key {
	case entity.SortBySize:
		compare = compareSize
	case entity.SortByWidth:
		compare = func(a, b entity.ImageDescriptor) int { return cmp.Compare(b.Width, a.Width) }
	case entity.SortByHeight:
		compare = func(a, b entity.ImageDescriptor) int { return cmp.Compare(b.Height, a.Height) }
	default:
		return nil, entity.ErrInvalidSortKey
	}

	ranked := slices.Clone(c)
	slices.SortStableFunc(ranked, compare)
	return ranked, nil
}

func compareSize(a, b entity.ImageDescriptor) int {
	switch {
	case a.SizeKB == nil && b.SizeKB == nil:
		return 0
	case a.SizeKB == nil:
		return -1
	case b.SizeKB == nil:
		return 1
	}
	return cmp.Compare(*b.SizeKB, *a.SizeKB)
}
