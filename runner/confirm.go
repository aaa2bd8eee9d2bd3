package runner

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Decision is the outcome of the live-mode confirmation gate.
type Decision int

const (
	Aborted Decision = iota
	Confirmed
)

// ConfirmLive shows the accounts real money would move through and asks
// for confirmation. Only the exact, case-sensitive answer "yes"
// confirms; any other input, including EOF, aborts. The prompt is asked
// once, never re-asked.
func ConfirmLive(in io.Reader, out io.Writer, accounts []string) (Decision, error) {
	fmt.Fprintln(out, "LIVE MODE: orders will be placed with real funds on:")
	for _, acct := range accounts {
		fmt.Fprintf(out, "  - %s\n", acct)
	}
	fmt.Fprint(out, `Type "yes" to continue: `)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return Aborted, fmt.Errorf("confirm: read answer: %w", err)
	}

	if strings.TrimRight(line, "\r\n") == "yes" {
		return Confirmed, nil
	}
	return Aborted, nil
}
