package bootstrap

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// PrintBootstrapResult writes the admin token banner to w
func PrintBootstrapResult(w io.Writer, result *AdminBootstrapResult) {
	if result == nil || !result.Created {
		return
	}

	border := strings.Repeat("=", 80)
	fmt.Fprintf(w, "\n%s\n", border)
	fmt.Fprintf(w, "ADMIN TOKEN ISSUED\n")
	fmt.Fprintf(w, "%s\n", border)

	fmt.Fprintf(w, "  Subject:  %s\n", result.Subject)
	fmt.Fprintf(w, "  Expires:  %s\n", result.ExpiresAt.Format(time.RFC3339))
	fmt.Fprintf(w, "  Token:    %s\n", result.Token)
	fmt.Fprintf(w, "\n  curl -H 'Authorization: Bearer <token>' .../api/v1/admin/cleanup/status\n")

	fmt.Fprintln(w, "\nSECURITY REMINDERS:")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	fmt.Fprintln(w, "  * Anyone holding this token can approve identities and delete data")
	fmt.Fprintln(w, "  * Unset ADMIN_BOOTSTRAP_TOKEN once you have stored it")
	if result.DefaultSecret {
		fmt.Fprintln(w, "  * JWT_SECRET is still the default value: change it before going live")
	}
	fmt.Fprintf(w, "%s\n\n", border)
}
