package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/dmitrijs2005/kitchensink/internal/common"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// GetSimpleText asks for one line on w and returns it trimmed. A last line
// without a newline is accepted; EOF with no input is an error.
//
//	Prompt text
//	> _
func GetSimpleText(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	fmt.Fprintf(w, "%s\n> ", prompt)

	line, err := reader.ReadString('\n')
	switch {
	case err == nil:
	case errors.Is(err, io.EOF) && line != "":
	default:
		return "", fmt.Errorf("reading %q: %w", prompt, err)
	}
	return strings.TrimSpace(line), nil
}

// GetPassword reads a password from the terminal without echo. The raw
// bytes are wiped once copied into the returned string.
func GetPassword(w io.Writer) (string, error) {
	fmt.Fprint(w, "Enter password: ")

	raw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	defer common.WipeByteArray(raw)

	if len(raw) == 0 {
		return "", errors.New("empty password")
	}
	return string(raw), nil
}
