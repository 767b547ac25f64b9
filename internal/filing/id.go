package filing

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// NewVatID returns a 15-digit filing id: the last 9 digits of the Unix
// millisecond clock followed by 6 random digits.
func NewVatID(now time.Time) string {
	return fmt.Sprintf("%09d%06d", now.UnixMilli()%1_000_000_000, rand.IntN(1_000_000))
}
