package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.io/infrasutra/docreg/internal/sheets"
)

// terminalPrompt asks for the OAuth authorization code on the controlling
// terminal. Without one there is nobody to paste the code.
func terminalPrompt(ctx context.Context, authURL string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", sheets.ErrNoPrompter
	}

	color.New(color.FgCyan, color.Bold).Println("Autoriza el acceso a Google Sheets en esta URL:")
	fmt.Println(authURL)
	fmt.Println()
	color.New(color.FgYellow).Print("Código de autorización: ")

	type result struct {
		code string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		done <- result{code: strings.TrimSpace(line), err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		if res.code == "" {
			if res.err != nil {
				return "", res.err
			}
			return "", errors.New("empty authorization code")
		}
		return res.code, nil
	}
}
