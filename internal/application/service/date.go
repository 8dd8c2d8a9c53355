package service

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

func parseDate(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	t, err := time.Parse(dateLayout, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected %s format: %v", dateLayout, err)
	}
	return t, nil
}
