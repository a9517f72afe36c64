// Package prompt provides the interactive prompts used when creating or
// unlocking wallet files.
package prompt

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/ssh/terminal"
)

// promptPass prompts the user for a passphrase with the given prefix.  The
// function will ask the user to confirm the passphrase and will repeat the
// prompts until they enter a matching response.
func promptPass(reader *bufio.Reader, prefix string, confirm bool) ([]byte, error) {
	// Prompt the user until they enter a passphrase.
	prompt := fmt.Sprintf("%s: ", prefix)
	for {
		fmt.Print(prompt)
		var pass []byte
		var err error
		fd := int(os.Stdin.Fd())
		if terminal.IsTerminal(fd) {
			pass, err = terminal.ReadPassword(fd)
		} else {
			pass, err = reader.ReadBytes('\n')
			if err == bufio.ErrBufferFull {
				continue
			}
		}
		if err != nil {
			return nil, err
		}
		fmt.Print("\n")
		pass = bytes.TrimSpace(pass)
		if len(pass) == 0 {
			continue
		}

		if !confirm {
			return pass, nil
		}

		fmt.Print("Confirm passphrase: ")
		var confirmPass []byte
		if terminal.IsTerminal(fd) {
			confirmPass, err = terminal.ReadPassword(fd)
		} else {
			confirmPass, err = reader.ReadBytes('\n')
		}
		if err != nil {
			return nil, err
		}
		fmt.Print("\n")
		confirmPass = bytes.TrimSpace(confirmPass)
		if !bytes.Equal(pass, confirmPass) {
			fmt.Println("The entered passphrases do not match")
			continue
		}

		return pass, nil
	}
}

// PrivatePass prompts the user for a private passphrase.  All prompts are
// repeated until the user enters a valid response.
func PrivatePass(reader *bufio.Reader) ([]byte, error) {
	return promptPass(reader, "Enter the private passphrase for your new wallet", true)
}

// ProvidePrivPassphrase is used to prompt for the private passphrase which
// may be required during upgrades.
func ProvidePrivPassphrase() ([]byte, error) {
	reader := bufio.NewReader(os.Stdin)
	return promptPass(reader, "Enter the private passphrase of your wallet", false)
}

// ErrAborted is returned when the user answers no to a confirmation prompt.
var ErrAborted = errors.New("aborted by user")

// Confirm prompts the user with a yes/no question, repeating until a valid
// answer is entered.  The default answer is used on an empty response.
func Confirm(reader *bufio.Reader, prompt string, defaultYes bool) (bool, error) {
	defaultAnswer := "no"
	if defaultYes {
		defaultAnswer = "yes"
	}

	for {
		fmt.Printf("%s (yes/no) [%s]: ", prompt, defaultAnswer)
		reply, err := reader.ReadString('\n')
		if err != nil {
			return false, err
		}
		reply = strings.TrimSpace(strings.ToLower(reply))
		if reply == "" {
			reply = defaultAnswer
		}

		switch reply {
		case "yes", "y":
			return true, nil
		case "no", "n":
			return false, nil
		}
	}
}
