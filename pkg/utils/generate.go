package utils

import (
	"fmt"
	"math/rand"
	"time"
)

// GenerateBookingCode creates a human-readable booking code.
// Format: SHOOT-YYYYMMDD-HHMMSS-NNNN
func GenerateBookingCode(now time.Time) string {
	datePart := now.Format("20060102")
	timePart := now.Format("150405")
	randomPart := fmt.Sprintf("%04d", rand.Intn(10000))

	return fmt.Sprintf("SHOOT-%s-%s-%s", datePart, timePart, randomPart)
}
