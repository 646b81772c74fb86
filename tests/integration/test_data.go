package integration

import (
	"fmt"
	"time"
)

// TestUser generates unique credentials per invocation so parallel
// tests never collide on the email or username indexes.
func TestUser(suffix string) (name, username, email, password string) {
	ts := time.Now().UnixNano()
	name = "Test " + suffix
	username = fmt.Sprintf("t%d%s", ts%1_000_000_000, suffix)
	email = fmt.Sprintf("test-%d-%s@example.com", ts, suffix)
	password = "TestPassword123!"
	return
}
