package pypi

import "github.com/matzehuels/wheelbench/pkg/packaging"

// PickBestCandidate chooses the file to read metadata from.
//
// Every wheel is scored by the position of its most specific tag in tags;
// wheels without a supported tag are ignored. The wheel with the strictly
// lowest score wins and the first one seen wins ties. Without a usable
// wheel, the first source distribution is returned. ok is false when
// neither exists.
func PickBestCandidate(details []DistDetail, tags *packaging.SupportedTags) (best DistDetail, ok bool) {
	bestIndex := -1
	for _, d := range details {
		if !d.IsWheel() || tags == nil {
			continue
		}
		idx, match := tags.BestIndex(d.Wheel.Tags)
		if !match {
			continue
		}
		if bestIndex < 0 || idx < bestIndex {
			best, bestIndex = d, idx
		}
	}
	if bestIndex >= 0 {
		return best, true
	}
	for _, d := range details {
		if d.Sdist != nil {
			return d, true
		}
	}
	return DistDetail{}, false
}
