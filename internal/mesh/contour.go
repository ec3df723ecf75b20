package mesh

// RenderContour connects the region's points in definition order. A closed
// region with more than two points also gets the segment from its last point
// back to its first; with two or fewer that edge would be degenerate and is skipped.
func RenderContour(points []Point, region Region) []Segment {
	k := len(region.Indices)
	if k < 2 {
		return nil
	}
	n := k - 1
	closing := region.Closed && k > 2
	if closing {
		n++
	}

	segments := make([]Segment, 0, n)
	for i := 0; i < k-1; i++ {
		segments = append(segments, Segment{
			From: points[region.Indices[i]],
			To:   points[region.Indices[i+1]],
		})
	}
	if closing {
		segments = append(segments, Segment{
			From: points[region.Indices[k-1]],
			To:   points[region.Indices[0]],
		})
	}
	return segments
}
