package rings

// Position places a day inside its block: the heatmap cell spans
// [Start, End) and the text label sits at TextPosition, the cell midpoint.
type Position struct {
	Start        int
	End          int
	TextPosition float64
}

// AssignPositions walks buckets in date order and numbers each day within
// its block from zero. The counter resets whenever the block id differs
// from the previous day's.
func AssignPositions(buckets []DailyBucket) []Position {
	positions := make([]Position, len(buckets))

	inc := 0
	textInc := 0.5
	for i := range buckets {
		positions[i] = Position{Start: inc, End: inc + 1, TextPosition: textInc}

		if i == len(buckets)-1 {
			break
		}
		if buckets[i].BlockID == buckets[i+1].BlockID {
			inc++
			textInc++
		} else {
			inc = 0
			textInc = 0.5
		}
	}
	return positions
}
