package auth

import (
	"fmt"
	"io"
	"strings"
)

// WriteTokenGuide explains how to copy the auth_token cookie from a browser
func WriteTokenGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "GETTING YOUR AUTH TOKEN")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The crawler signs in by injecting your auth_token cookie into its browser.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "1. Log in at https://twitter.com in your usual browser.")
	fmt.Fprintln(w, "2. Open Developer Tools (F12, or Cmd+Option+I on macOS).")
	fmt.Fprintln(w, "3. Chrome/Edge: Application tab > Cookies > https://twitter.com")
	fmt.Fprintln(w, "   Firefox: Storage tab > Cookies > https://twitter.com")
	fmt.Fprintln(w, "4. Copy the value of the cookie named auth_token (40 hex characters).")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Then run: tweetcrawl auth login")
	fmt.Fprintln(w, "or export TWEETCRAWL_AUTH_TOKEN=<value>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The token grants full access to the account. Do not share it.")
	fmt.Fprintln(w, rule)
}
