package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowCredentialGuide prints where credentials are looked up and how to set them
func ShowCredentialGuide(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "🔑 CYWORLD CREDENTIALS")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "cyarchive signs in to cyworld.com with the email and password of the")
	fmt.Fprintln(w, "account whose posts are being archived. They are looked up in order:")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "   1. Environment: %s and %s (a .env file works too)\n", EnvEmail, EnvPassword)
	fmt.Fprintln(w, "   2. The system keychain, after 'cyarchive auth login'")
	fmt.Fprintln(w, "   3. An encrypted file in the cyarchive config directory")
	fmt.Fprintln(w, "   4. credentials.email / credentials.password in config.yaml")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "💡 TIPS:")
	fmt.Fprintf(w, "   • Set %s to choose the encryption passphrase yourself\n", EnvPassphrase)
	fmt.Fprintln(w, "   • 'cyarchive auth list' shows stored accounts with masked passwords")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "⚠️  Never commit config.yaml or .env files that hold a password.")
	fmt.Fprintln(w, strings.Repeat("=", 72))
}
